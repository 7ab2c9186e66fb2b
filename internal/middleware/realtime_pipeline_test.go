package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
)

type stubProc struct {
	mu    sync.Mutex
	seen  []*models.Candle
	fail  bool
	calls int
}

func (p *stubProc) Process(ctx context.Context, c *models.Candle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return errors.New("downstream down")
	}
	p.seen = append(p.seen, c)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordTrainingStep(string, float64, float64)      {}
func (nopMetrics) RecordPrediction(string, string, string, float64) {}
func (nopMetrics) RecordSchedulerCycle(string)                      {}
func (nopMetrics) RecordBacktest(string, float64, float64)          {}
func (nopMetrics) RecordLastPrice(string, float64)                  {}
func (nopMetrics) RecordError(string)                               {}
func (nopMetrics) RecordLatency(string, float64)                    {}

func candle(symbol string, close float64) *models.Candle {
	return &models.Candle{
		Bucket: time.Now(),
		Symbol: symbol,
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1,
	}
}

func TestPipelineForwardsValidCandle(t *testing.T) {
	proc := &stubProc{}
	p := NewCandlePipeline(proc, nopMetrics{})

	if err := p.Process(context.Background(), candle("BTCUSDT", 100)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(proc.seen) != 1 {
		t.Fatalf("expected 1 candle forwarded, got %d", len(proc.seen))
	}
}

func TestPipelineRejectsInvalidCandle(t *testing.T) {
	proc := &stubProc{}
	p := NewCandlePipeline(proc, nopMetrics{})

	bad := candle("BTCUSDT", 100)
	bad.Close = -1
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatal("expected validation error for negative close")
	}
	if err := p.Process(context.Background(), &models.Candle{}); err == nil {
		t.Fatal("expected validation error for empty candle")
	}
	if len(proc.seen) != 0 {
		t.Fatalf("invalid candles must not reach downstream, got %d", len(proc.seen))
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &stubProc{}
	p := NewCandlePipeline(proc, nopMetrics{}, WithMaxRPS(1))

	for i := 0; i < 5; i++ {
		_ = p.Process(context.Background(), candle("BTCUSDT", 100+float64(i)))
	}
	if len(proc.seen) != 1 {
		t.Fatalf("expected throttle to pass 1 of 5, got %d", len(proc.seen))
	}
	// a different symbol is throttled independently
	_ = p.Process(context.Background(), candle("ETHUSDT", 50))
	if len(proc.seen) != 2 {
		t.Fatalf("expected second symbol to pass, got %d", len(proc.seen))
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &stubProc{fail: true}
	p := NewCandlePipeline(proc, nopMetrics{}, WithBufferSize(4))

	if err := p.Process(context.Background(), candle("BTCUSDT", 100)); err == nil {
		t.Fatal("expected downstream error to surface")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("expected failed candle buffered, got %d", len(p.bufCh))
	}
}

func TestPipelineTransformRuns(t *testing.T) {
	proc := &stubProc{}
	p := NewCandlePipeline(proc, nopMetrics{}, WithTransform(func(c *models.Candle) *models.Candle {
		c.Volume = c.Volume * 2
		return c
	}))

	in := candle("BTCUSDT", 100)
	if err := p.Process(context.Background(), in); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.seen[0].Volume != 2 {
		t.Fatalf("expected transform applied, volume=%v", proc.seen[0].Volume)
	}
}
