package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
	"SignalPull/internal/engine/core"
	"SignalPull/pkg/logger"
)

type stubMetrics struct{ backtests int }

func (m *stubMetrics) RecordTrainingStep(string, float64, float64)      {}
func (m *stubMetrics) RecordPrediction(string, string, string, float64) {}
func (m *stubMetrics) RecordSchedulerCycle(string)                     {}
func (m *stubMetrics) RecordBacktest(string, float64, float64)         { m.backtests++ }
func (m *stubMetrics) RecordLastPrice(string, float64)                 {}
func (m *stubMetrics) RecordError(string)                              {}
func (m *stubMetrics) RecordLatency(string, float64)                   {}

// scriptedPredictor returns a fixed class with fixed confidence.
type scriptedPredictor struct {
	class      string
	confidence float64
}

func (p *scriptedPredictor) PredictWindow(context.Context, string, []models.Candle) (*models.PredictionResult, error) {
	pred := models.Prediction{Neutral: 1}
	switch p.class {
	case "BULL":
		pred = models.Prediction{Bull: p.confidence, Bear: (1 - p.confidence) / 2, Neutral: (1 - p.confidence) / 2}
	case "BEAR":
		pred = models.Prediction{Bear: p.confidence, Bull: (1 - p.confidence) / 2, Neutral: (1 - p.confidence) / 2}
	}
	return &models.PredictionResult{
		Prediction: pred,
		Class:      pred.Class(),
		Confidence: pred.Confidence(),
		Source:     "heuristic",
	}, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func trending(n int, drift float64) []models.Candle {
	out := make([]models.Candle, n)
	price := 50000.0
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		open := price
		price *= 1 + drift
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Hour),
			Symbol: "BTCUSDT",
			Open:   open,
			High:   math.Max(open, price) * 1.001,
			Low:    math.Min(open, price) * 0.999,
			Close:  price,
			Volume: 10,
		}
	}
	return out
}

func TestRunRejectsShortHistory(t *testing.T) {
	e := NewEngine(testLogger(t), &stubMetrics{})
	_, err := e.Run(context.Background(), "BTCUSDT", repository.TF1h,
		trending(WarmupBars, 0.001), models.BacktestConfig{}, &scriptedPredictor{class: "BULL", confidence: 0.9})
	var ide *core.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestRunLongInUptrendProfits(t *testing.T) {
	e := NewEngine(testLogger(t), &stubMetrics{})
	res, err := e.Run(context.Background(), "BTCUSDT", repository.TF1h,
		trending(300, 0.002), models.BacktestConfig{InitialCapital: 10000},
		&scriptedPredictor{class: "BULL", confidence: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades != 1 {
		t.Fatalf("expected one held long, got %d trades", res.TotalTrades)
	}
	if res.Trades[0].Side != "LONG" {
		t.Fatalf("side %s", res.Trades[0].Side)
	}
	if res.FinalCapital <= res.InitialCapital {
		t.Fatalf("long in uptrend lost money: %v -> %v", res.InitialCapital, res.FinalCapital)
	}
	if res.TotalReturn <= 0 || res.WinRate != 1 {
		t.Fatalf("stats %+v", res)
	}
	if res.ProfitFactor != profitFactorCap {
		t.Fatalf("profit factor with no losses: %v", res.ProfitFactor)
	}
	if res.DirectionalAccuracy <= 0.9 {
		t.Fatalf("directional accuracy in a pure uptrend: %v", res.DirectionalAccuracy)
	}
}

func TestRunShortInDowntrendProfits(t *testing.T) {
	e := NewEngine(testLogger(t), &stubMetrics{})
	res, err := e.Run(context.Background(), "BTCUSDT", repository.TF1h,
		trending(300, -0.002), models.BacktestConfig{InitialCapital: 10000},
		&scriptedPredictor{class: "BEAR", confidence: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades == 0 || res.Trades[0].Side != "SHORT" {
		t.Fatalf("trades %+v", res.Trades)
	}
	if res.FinalCapital <= res.InitialCapital {
		t.Fatalf("short in downtrend lost money: %v -> %v", res.InitialCapital, res.FinalCapital)
	}
}

func TestRunNeutralNeverTrades(t *testing.T) {
	m := &stubMetrics{}
	e := NewEngine(testLogger(t), m)
	res, err := e.Run(context.Background(), "BTCUSDT", repository.TF1h,
		trending(200, 0.001), models.BacktestConfig{InitialCapital: 10000},
		&scriptedPredictor{class: "NEUTRAL", confidence: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades != 0 {
		t.Fatalf("neutral predictor opened %d trades", res.TotalTrades)
	}
	if res.FinalCapital != res.InitialCapital {
		t.Fatalf("capital moved without trades: %v", res.FinalCapital)
	}
	if m.backtests != 1 {
		t.Fatalf("backtest not recorded")
	}
}

func TestRunLowConfidenceStaysFlat(t *testing.T) {
	e := NewEngine(testLogger(t), &stubMetrics{})
	res, err := e.Run(context.Background(), "BTCUSDT", repository.TF1h,
		trending(200, 0.002), models.BacktestConfig{InitialCapital: 10000, ConfidenceThreshold: 0.8},
		&scriptedPredictor{class: "BULL", confidence: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalTrades != 0 {
		t.Fatalf("low confidence still traded: %d", res.TotalTrades)
	}
}

func TestTradeTimesOrdered(t *testing.T) {
	e := NewEngine(testLogger(t), &stubMetrics{})
	res, err := e.Run(context.Background(), "BTCUSDT", repository.TF1h,
		trending(400, 0.002), models.BacktestConfig{InitialCapital: 10000},
		&scriptedPredictor{class: "BULL", confidence: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	var prev time.Time
	for _, tr := range res.Trades {
		if tr.ExitTime.Before(tr.EntryTime) {
			t.Fatalf("trade exits before entry: %+v", tr)
		}
		if tr.EntryTime.Before(prev) {
			t.Fatal("trades not ordered by entry time")
		}
		prev = tr.EntryTime
	}
}

func TestRunFeesReduceProfit(t *testing.T) {
	e := NewEngine(testLogger(t), &stubMetrics{})
	cheap, err := e.Run(context.Background(), "BTCUSDT", repository.TF1h,
		trending(300, 0.002), models.BacktestConfig{InitialCapital: 10000, FeeRate: 0.0001, SlippageRate: 0.0001},
		&scriptedPredictor{class: "BULL", confidence: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	costly, err := e.Run(context.Background(), "BTCUSDT", repository.TF1h,
		trending(300, 0.002), models.BacktestConfig{InitialCapital: 10000, FeeRate: 0.005, SlippageRate: 0.002},
		&scriptedPredictor{class: "BULL", confidence: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	if costly.FinalCapital >= cheap.FinalCapital {
		t.Fatalf("fees did not reduce profit: cheap=%v costly=%v", cheap.FinalCapital, costly.FinalCapital)
	}
}

func TestMaxDrawdown(t *testing.T) {
	dd := maxDrawdown([]float64{100, 120, 90, 110, 80})
	want := (120.0 - 80.0) / 120.0
	if math.Abs(dd-want) > 1e-12 {
		t.Fatalf("drawdown %v, want %v", dd, want)
	}
	if maxDrawdown(nil) != 0 {
		t.Fatal("empty curve drawdown")
	}
}

func TestValueAtRisk(t *testing.T) {
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 1000 // -0.05 .. 0.049
	}
	v := valueAtRisk(returns, 0.95)
	if v > -0.04 || v < -0.05 {
		t.Fatalf("var95 %v outside expected tail", v)
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{1, 2, 3, 4})
	if mean != 2.5 {
		t.Fatalf("mean %v", mean)
	}
	want := math.Sqrt((2.25 + 0.25 + 0.25 + 2.25) / 3)
	if math.Abs(std-want) > 1e-12 {
		t.Fatalf("std %v, want %v", std, want)
	}
}
