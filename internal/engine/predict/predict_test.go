package predict

import (
	"context"
	"math"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/features"
	"SignalPull/internal/engine/network"
	"SignalPull/pkg/logger"
)

type stubMetrics struct {
	predictions int
	lastSource  string
}

func (m *stubMetrics) RecordTrainingStep(string, float64, float64) {}
func (m *stubMetrics) RecordPrediction(_, _, source string, _ float64) {
	m.predictions++
	m.lastSource = source
}
func (m *stubMetrics) RecordSchedulerCycle(string)             {}
func (m *stubMetrics) RecordBacktest(string, float64, float64) {}
func (m *stubMetrics) RecordLastPrice(string, float64)         {}
func (m *stubMetrics) RecordError(string)                      {}
func (m *stubMetrics) RecordLatency(string, float64)           {}

type stubSource struct {
	params *network.Parameters
	state  models.TrainingState
	steps  int
}

func (s *stubSource) Parameters() *network.Parameters { return s.params }
func (s *stubSource) State() models.TrainingState     { return s.state }
func (s *stubSource) Summary() models.TrainingSummary {
	return models.TrainingSummary{Steps: s.steps}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func neutralVector() []float64 {
	vec := make([]float64, features.FeatureCount)
	vec[features.IdxRSI] = 0.5
	vec[features.IdxBBPosition] = 0.5
	vec[features.IdxClosePosition] = 0.5
	vec[features.IdxRangePosition] = 0.5
	return vec
}

func TestHeuristicOversoldLeansBull(t *testing.T) {
	vec := neutralVector()
	vec[features.IdxRSI] = 0.25 // RSI 25, oversold
	p := Heuristic{}.Predict(vec)
	if !p.Valid() {
		t.Fatalf("invalid simplex %+v", p)
	}
	if p.Bull <= p.Bear {
		t.Fatalf("expected bull bias on oversold RSI: %+v", p)
	}
}

func TestHeuristicOverboughtLeansBear(t *testing.T) {
	vec := neutralVector()
	vec[features.IdxRSI] = 0.75 // RSI 75, overbought
	p := Heuristic{}.Predict(vec)
	if p.Bear <= p.Bull {
		t.Fatalf("expected bear bias on overbought RSI: %+v", p)
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	vec := neutralVector()
	vec[features.IdxRSI] = 0.25
	vec[features.IdxMACD] = 0.2
	a := Heuristic{}.Predict(vec)
	b := Heuristic{}.Predict(vec)
	if a != b {
		t.Fatalf("heuristic not deterministic: %+v vs %+v", a, b)
	}
}

func TestHeuristicNoZeroProbabilities(t *testing.T) {
	vec := neutralVector()
	vec[features.IdxRSI] = 0.1
	vec[features.IdxMACD] = 0.9
	vec[features.IdxBBPosition] = 0.05
	vec[features.IdxSMA20Ratio] = 0.1
	vec[features.IdxSMA50Ratio] = 0.1
	vec[features.IdxStructure] = 1
	p := Heuristic{}.Predict(vec)
	if p.Bull <= 0 || p.Bear <= 0 || p.Neutral <= 0 {
		t.Fatalf("zero probability class: %+v", p)
	}
}

func TestAgentFallsBackWithoutWeights(t *testing.T) {
	m := &stubMetrics{}
	a := NewAgent(&stubSource{state: models.StateUninitialized}, testLogger(t), m, "v1")
	res := a.PredictFeatures("BTCUSDT", neutralVector())
	if res.Source != "heuristic" {
		t.Fatalf("expected heuristic source, got %s", res.Source)
	}
	if !res.Prediction.Valid() {
		t.Fatalf("invalid prediction %+v", res.Prediction)
	}
	if m.predictions != 1 || m.lastSource != "heuristic" {
		t.Fatalf("metrics not recorded: %+v", m)
	}
}

func TestAgentUsesNetworkWhenAvailable(t *testing.T) {
	params, err := network.Build(models.NetworkConfig{
		Architecture: models.ArchDense,
		InputSize:    features.FeatureCount,
		HiddenSizes:  []int{16},
	}, 3)
	if err != nil {
		t.Fatal(err)
	}
	src := &stubSource{params: params, state: models.StateIdle, steps: 1000}
	m := &stubMetrics{}
	a := NewAgent(src, testLogger(t), m, "v1")

	res := a.PredictFeatures("BTCUSDT", neutralVector())
	if res.Source != "network" {
		t.Fatalf("expected network source, got %s", res.Source)
	}
	if !res.Prediction.Valid() {
		t.Fatalf("invalid prediction %+v", res.Prediction)
	}
	if res.Confidence != res.Prediction.Confidence() {
		t.Fatalf("confidence mismatch: %+v", res)
	}
	if math.Abs(res.RiskScore-(1-res.Confidence)) > 1e-12 {
		t.Fatalf("risk score mismatch: %+v", res)
	}
	if res.ModelVersion != "v1" {
		t.Fatalf("model version %s", res.ModelVersion)
	}
}

func TestAgentFallsBackOnFailedState(t *testing.T) {
	params, _ := network.Build(models.NetworkConfig{
		Architecture: models.ArchDense,
		InputSize:    features.FeatureCount,
		HiddenSizes:  []int{16},
	}, 3)
	src := &stubSource{params: params, state: models.StateFailed}
	a := NewAgent(src, testLogger(t), &stubMetrics{}, "v1")
	res := a.PredictFeatures("BTCUSDT", neutralVector())
	if res.Source != "heuristic" {
		t.Fatalf("expected heuristic fallback in FAILED state, got %s", res.Source)
	}
}

func TestTrustDampening(t *testing.T) {
	sharp := models.Prediction{Bull: 0.9, Bear: 0.05, Neutral: 0.05}

	cold := dampen(sharp, 10)
	warm := dampen(sharp, 100)
	trained := dampen(sharp, 500)

	if trained != sharp {
		t.Fatalf("trained model should not be dampened: %+v", trained)
	}
	if !(cold.Bull < warm.Bull && warm.Bull < sharp.Bull) {
		t.Fatalf("dampening not monotone: cold=%v warm=%v sharp=%v", cold.Bull, warm.Bull, sharp.Bull)
	}
	for _, p := range []models.Prediction{cold, warm} {
		if !p.Valid() {
			t.Fatalf("dampened prediction invalid: %+v", p)
		}
	}
}

func TestPredictWindowShortHistory(t *testing.T) {
	a := NewAgent(&stubSource{}, testLogger(t), &stubMetrics{}, "v1")
	window := []models.Candle{{Bucket: time.Now(), Close: 100, Open: 100, High: 101, Low: 99, Volume: 1}}
	if _, err := a.PredictWindow(context.Background(), "BTCUSDT", window); err == nil {
		t.Fatal("expected insufficient data error")
	}
}
