package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/core"
)

func syntheticCandles(n int, start float64, drift float64) []models.Candle {
	out := make([]models.Candle, n)
	price := start
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		open := price
		price = price * (1 + drift + 0.002*math.Sin(float64(i)))
		high := math.Max(open, price) * 1.003
		low := math.Min(open, price) * 0.997
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Minute),
			Symbol: "BTCUSDT",
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 100 + float64(i),
		}
	}
	return out
}

func TestExtractAllRejectsShortWindow(t *testing.T) {
	_, err := ExtractAll(syntheticCandles(MinWindow-1, 100, 0.001))
	if err == nil {
		t.Fatal("expected error for short window")
	}
	var ide *core.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %T", err)
	}
	if ide.Need != MinWindow {
		t.Fatalf("expected need=%d, got %d", MinWindow, ide.Need)
	}
}

func TestExtractAllVectorShapeAndFiniteness(t *testing.T) {
	for _, n := range []int{MinWindow, 50, 120} {
		vec, err := ExtractAll(syntheticCandles(n, 50000, 0.001))
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(vec) != FeatureCount {
			t.Fatalf("n=%d: expected %d features, got %d", n, FeatureCount, len(vec))
		}
		for i, v := range vec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("n=%d: feature %d not finite: %v", n, i, v)
			}
		}
	}
}

func TestExtractAllBoundedFeatures(t *testing.T) {
	vec, err := ExtractAll(syntheticCandles(80, 50000, 0.001))
	if err != nil {
		t.Fatal(err)
	}
	if vec[IdxRSI] < 0 || vec[IdxRSI] > 1 {
		t.Fatalf("rsi feature out of [0,1]: %v", vec[IdxRSI])
	}
	if vec[IdxClosePosition] < 0 || vec[IdxClosePosition] > 1 {
		t.Fatalf("close position out of [0,1]: %v", vec[IdxClosePosition])
	}
	if vec[IdxRangePosition] < 0 || vec[IdxRangePosition] > 1 {
		t.Fatalf("range position out of [0,1]: %v", vec[IdxRangePosition])
	}
	if vec[IdxMACD] < -1 || vec[IdxMACD] > 1 {
		t.Fatalf("macd feature out of [-1,1]: %v", vec[IdxMACD])
	}
}

func TestExtractAllUptrendSignals(t *testing.T) {
	vec, err := ExtractAll(syntheticCandles(100, 50000, 0.004))
	if err != nil {
		t.Fatal(err)
	}
	if vec[IdxSMA20Ratio] <= 0 {
		t.Fatalf("expected close above SMA20 in an uptrend, got ratio %v", vec[IdxSMA20Ratio])
	}
	if vec[IdxStructure] != 1 {
		t.Fatalf("expected higher-high higher-low structure, got %v", vec[IdxStructure])
	}
	if vec[IdxReturn5] <= 0 {
		t.Fatalf("expected positive 5-bar return, got %v", vec[IdxReturn5])
	}
}

func TestExtractAllDeterministic(t *testing.T) {
	cs := syntheticCandles(60, 50000, 0.001)
	a, err := ExtractAll(cs)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ExtractAll(cs)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("feature %d differs across runs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestComputeLogReturns(t *testing.T) {
	cs := []models.Candle{
		{Close: 100}, {Close: 110}, {Close: 99},
	}
	rets := ComputeLogReturns(cs)
	if len(rets) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(rets))
	}
	if math.Abs(rets[0]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("unexpected first return %v", rets[0])
	}
	if rets[1] >= 0 {
		t.Fatalf("expected negative second return, got %v", rets[1])
	}
	if got := ComputeLogReturns(cs[:1]); got != nil {
		t.Fatalf("expected nil for single candle, got %v", got)
	}
}

func TestRollingVolatility(t *testing.T) {
	flat := []float64{0.01, 0.01, 0.01, 0.01, 0.01}
	if v := RollingVolatility(flat, 5); v != 0 {
		t.Fatalf("expected zero volatility for constant returns, got %v", v)
	}
	mixed := []float64{0.02, -0.02, 0.02, -0.02, 0.02}
	if v := RollingVolatility(mixed, 5); v <= 0 {
		t.Fatalf("expected positive volatility, got %v", v)
	}
	if v := RollingVolatility(mixed, 10); v != 0 {
		t.Fatalf("expected zero when window exceeds data, got %v", v)
	}
}
