package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
	drepo "SignalPull/internal/domain/repository"
	"SignalPull/internal/engine/backprop"
	"SignalPull/internal/engine/features"
	applogger "SignalPull/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordTrainingStep(string, float64, float64)      {}
func (nopMetrics) RecordPrediction(string, string, string, float64) {}
func (nopMetrics) RecordSchedulerCycle(string)                      {}
func (nopMetrics) RecordBacktest(string, float64, float64)          {}
func (nopMetrics) RecordLastPrice(string, float64)                  {}
func (nopMetrics) RecordError(string)                               {}
func (nopMetrics) RecordLatency(string, float64)                    {}

type memPredStore struct {
	mu   sync.Mutex
	recs []models.PredictionRecord
}

func (s *memPredStore) Store(ctx context.Context, rec *models.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, *rec)
	return nil
}

func (s *memPredStore) Recent(ctx context.Context, symbol string, lookback time.Duration, limit int) ([]models.PredictionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PredictionRecord(nil), s.recs...), nil
}

func (s *memPredStore) Close() error { return nil }

type memWriter struct {
	mu      sync.Mutex
	candles []*models.Candle
}

func (w *memWriter) StoreBatch(ctx context.Context, tf drepo.Timeframe, candles []*models.Candle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.candles = append(w.candles, candles...)
	return nil
}

type memPublisher struct {
	mu   sync.Mutex
	exps []*models.Experience
}

func (p *memPublisher) Publish(ctx context.Context, exp *models.Experience) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exps = append(p.exps, exp)
	return nil
}

func (p *memPublisher) Close() error { return nil }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testEngine(t *testing.T, preds PredictionStore) *EngineUseCase {
	t.Helper()
	return NewEngineUseCase(EngineConfig{
		Architecture:   models.ArchDense,
		LearningRate:   0.01,
		BatchSize:      8,
		BufferCapacity: 128,
		Loss:           backprop.LossCrossEntropy,
		ModelVersion:   "test",
	}, nil, preds, nil, nil, nopMetrics{}, testLogger(t))
}

func makeCandle(symbol string, i int, close float64) *models.Candle {
	return &models.Candle{
		Bucket: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		Symbol: symbol,
		Open:   close * 0.999,
		High:   close * 1.001,
		Low:    close * 0.998,
		Close:  close,
		Volume: 10,
	}
}

func TestObservationProcessorStoresEveryCandle(t *testing.T) {
	preds := &memPredStore{}
	writer := &memWriter{}
	proc := NewObservationProcessor(testEngine(t, preds), writer, nil, drepo.TF1m, nopMetrics{}, testLogger(t))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := proc.Process(ctx, makeCandle("BTCUSDT", i, 100+float64(i))); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if len(writer.candles) != 5 {
		t.Fatalf("expected 5 stored candles, got %d", len(writer.candles))
	}
}

func TestObservationProcessorHoldsForecastUntilWindowFills(t *testing.T) {
	preds := &memPredStore{}
	proc := NewObservationProcessor(testEngine(t, preds), nil, nil, drepo.TF1m, nopMetrics{}, testLogger(t))

	ctx := context.Background()
	for i := 0; i < features.MinWindow-1; i++ {
		if err := proc.Process(ctx, makeCandle("BTCUSDT", i, 100+float64(i))); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if len(preds.recs) != 0 {
		t.Fatalf("no forecast should be emitted before the window fills, got %d", len(preds.recs))
	}

	if err := proc.Process(ctx, makeCandle("BTCUSDT", features.MinWindow-1, 120)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(preds.recs) != 1 {
		t.Fatalf("expected first forecast once window filled, got %d", len(preds.recs))
	}
}

func TestObservationProcessorScoresPreviousForecast(t *testing.T) {
	preds := &memPredStore{}
	pub := &memPublisher{}
	engine := testEngine(t, preds)
	proc := NewObservationProcessor(engine, nil, pub, drepo.TF1m, nopMetrics{}, testLogger(t))

	ctx := context.Background()
	n := features.MinWindow + 3
	for i := 0; i < n; i++ {
		if err := proc.Process(ctx, makeCandle("BTCUSDT", i, 100+float64(i))); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}

	// every bar after the first forecast realizes the previous one
	stats := engine.Session("BTCUSDT").Buffer.Statistics()
	if stats.Size != n-features.MinWindow {
		t.Fatalf("expected %d experiences in buffer, got %d", n-features.MinWindow, stats.Size)
	}
	if len(pub.exps) != stats.Size {
		t.Fatalf("every experience should be published, got %d of %d", len(pub.exps), stats.Size)
	}
	for _, exp := range pub.exps {
		if exp.Symbol != "BTCUSDT" {
			t.Fatalf("unexpected symbol %q", exp.Symbol)
		}
		if len(exp.State) != features.FeatureCount {
			t.Fatalf("experience state length = %d, want %d", len(exp.State), features.FeatureCount)
		}
		if exp.Reward <= 0 {
			t.Fatalf("rising closes must yield positive rewards, got %v", exp.Reward)
		}
	}
}

func TestObservationProcessorIsolatesSymbols(t *testing.T) {
	preds := &memPredStore{}
	engine := testEngine(t, preds)
	proc := NewObservationProcessor(engine, nil, nil, drepo.TF1m, nopMetrics{}, testLogger(t))

	ctx := context.Background()
	n := features.MinWindow + 2
	for i := 0; i < n; i++ {
		if err := proc.Process(ctx, makeCandle("BTCUSDT", i, 100+float64(i))); err != nil {
			t.Fatalf("btc %d: %v", i, err)
		}
		if err := proc.Process(ctx, makeCandle("ETHUSDT", i, 50+float64(i))); err != nil {
			t.Fatalf("eth %d: %v", i, err)
		}
	}

	btc := engine.Session("BTCUSDT").Buffer.Statistics()
	eth := engine.Session("ETHUSDT").Buffer.Statistics()
	if btc.Size == 0 || eth.Size == 0 {
		t.Fatalf("both symbols should accumulate experiences: btc=%d eth=%d", btc.Size, eth.Size)
	}
	if btc.Size != eth.Size {
		t.Fatalf("symbols fed equally should match: btc=%d eth=%d", btc.Size, eth.Size)
	}
}

func TestObservationProcessorRejectsNil(t *testing.T) {
	proc := NewObservationProcessor(testEngine(t, &memPredStore{}), nil, nil, drepo.TF1m, nopMetrics{}, testLogger(t))
	if err := proc.Process(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil candle")
	}
}
