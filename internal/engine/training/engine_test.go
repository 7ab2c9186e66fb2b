package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/backprop"
	"SignalPull/internal/engine/core"
	"SignalPull/internal/engine/replay"
	"SignalPull/pkg/logger"
)

type stubMetrics struct {
	trainingSteps int
	errors        []string
}

func (m *stubMetrics) RecordTrainingStep(string, float64, float64) { m.trainingSteps++ }
func (m *stubMetrics) RecordPrediction(string, string, string, float64) {}
func (m *stubMetrics) RecordSchedulerCycle(string)                 {}
func (m *stubMetrics) RecordBacktest(string, float64, float64)     {}
func (m *stubMetrics) RecordLastPrice(string, float64)             {}
func (m *stubMetrics) RecordError(kind string)                     { m.errors = append(m.errors, kind) }
func (m *stubMetrics) RecordLatency(string, float64)               {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func testEngine(t *testing.T, buf *replay.Buffer) (*Engine, *stubMetrics) {
	t.Helper()
	m := &stubMetrics{}
	e := NewEngine(Config{
		Symbol: "BTCUSDT",
		Network: models.NetworkConfig{
			Architecture: models.ArchDense,
			InputSize:    4,
			OutputSize:   3,
			HiddenSizes:  []int{8},
		},
		BatchSize: 4,
		Seed:      21,
	}, buf, testLogger(t), m)
	return e, m
}

func fillBuffer(buf *replay.Buffer, n int) {
	for i := 0; i < n; i++ {
		reward := 0.01
		action := models.ActionBuy
		if i%2 == 1 {
			reward = -0.01
			action = models.ActionSell
		}
		buf.Add(&models.Experience{
			ID:        fmt.Sprintf("e%d", i),
			State:     []float64{0.1 * float64(i%5), -0.2, 0.3, 0.05 * float64(i%3)},
			Action:    action,
			Reward:    reward,
			Priority:  1,
			Timestamp: time.Now(),
			Symbol:    "BTCUSDT",
		})
	}
}

func TestTargetForMapping(t *testing.T) {
	cases := []struct {
		action models.Action
		reward float64
		class  int
	}{
		{models.ActionBuy, 0.02, ClassBull},
		{models.ActionBuy, -0.02, ClassBear},
		{models.ActionSell, 0.02, ClassBear},
		{models.ActionSell, -0.02, ClassBull},
		{models.ActionHold, 0.5, ClassNeutral},
		{models.ActionBuy, 0.0005, ClassNeutral},
		{models.ActionBuy, math.NaN(), ClassNeutral},
	}
	for _, c := range cases {
		got := TargetFor(&models.Experience{Action: c.action, Reward: c.reward})
		if targetClass(got) != c.class {
			t.Fatalf("action=%s reward=%v: target %v, want class %d", c.action, c.reward, got, c.class)
		}
		sum := got[0] + got[1] + got[2]
		if sum != 1 {
			t.Fatalf("target not one-hot: %v", got)
		}
	}
}

func TestLifecycleStates(t *testing.T) {
	buf := replay.NewBuffer(64, replay.WithSeed(1))
	e, _ := testEngine(t, buf)

	if e.State() != models.StateUninitialized {
		t.Fatalf("fresh engine state %s", e.State())
	}
	if _, err := e.TrainStep(context.Background()); err == nil {
		t.Fatal("expected error training an uninitialized engine")
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if e.State() != models.StateInitialized {
		t.Fatalf("state after init %s", e.State())
	}
	if e.Parameters() == nil {
		t.Fatal("no parameters published after init")
	}

	fillBuffer(buf, 16)
	if _, err := e.TrainStep(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e.State() != models.StateIdle {
		t.Fatalf("state after step %s", e.State())
	}
}

func TestInitializeResetsTrainedEngine(t *testing.T) {
	buf := replay.NewBuffer(64, replay.WithSeed(1))
	e, _ := testEngine(t, buf)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	fillBuffer(buf, 16)
	if _, err := e.TrainStep(context.Background()); err != nil {
		t.Fatal(err)
	}
	trained := e.Parameters()

	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if e.Parameters() == trained {
		t.Fatal("re-init kept trained weights")
	}
	if e.State() != models.StateInitialized {
		t.Fatalf("state after re-init %s", e.State())
	}
	if s := e.Summary(); s.Steps != 0 {
		t.Fatalf("re-init kept %d steps of progress", s.Steps)
	}
}

func TestConfigSafeDuringReinitialize(t *testing.T) {
	buf := replay.NewBuffer(64, replay.WithSeed(1))
	e, _ := testEngine(t, buf)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if got := e.Config().BatchSize; got <= 0 {
				t.Errorf("config read returned batch size %d", got)
				return
			}
		}
	}()
	cfg := e.Config().Network
	for i := 0; i < 200; i++ {
		if err := e.Reinitialize(cfg); err != nil {
			t.Fatal(err)
		}
	}
	<-done
}

func TestTrainStepInsufficientData(t *testing.T) {
	buf := replay.NewBuffer(64, replay.WithSeed(1))
	e, _ := testEngine(t, buf)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	fillBuffer(buf, 2)
	_, err := e.TrainStep(context.Background())
	var ide *core.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestTrainStepPublishesNewSnapshot(t *testing.T) {
	buf := replay.NewBuffer(64, replay.WithSeed(1))
	e, m := testEngine(t, buf)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	fillBuffer(buf, 16)

	before := e.Parameters()
	metrics, err := e.TrainStep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	after := e.Parameters()
	if before == after {
		t.Fatal("training step did not swap the weight snapshot")
	}
	if !after.Finite() {
		t.Fatal("published non-finite weights")
	}
	if metrics.Step != 1 || metrics.BatchSize == 0 {
		t.Fatalf("unexpected step metrics %+v", metrics)
	}
	if math.IsNaN(metrics.Loss) || metrics.Loss < 0 {
		t.Fatalf("bad loss %v", metrics.Loss)
	}
	if m.trainingSteps != 1 {
		t.Fatalf("metrics sink saw %d steps", m.trainingSteps)
	}
}

func TestTrainingReducesLossOverSteps(t *testing.T) {
	buf := replay.NewBuffer(256, replay.WithSeed(5))
	e, _ := testEngine(t, buf)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	fillBuffer(buf, 64)

	first, err := e.TrainStep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var last models.StepMetrics
	for i := 0; i < 80; i++ {
		last, err = e.TrainStep(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}
	if last.Loss >= first.Loss {
		t.Fatalf("loss did not improve: first=%v last=%v", first.Loss, last.Loss)
	}
}

func TestTrainEpochBounded(t *testing.T) {
	buf := replay.NewBuffer(256, replay.WithSeed(5))
	m := &stubMetrics{}
	e := NewEngine(Config{
		Symbol: "BTCUSDT",
		Network: models.NetworkConfig{
			Architecture: models.ArchDense,
			InputSize:    4,
			HiddenSizes:  []int{8},
		},
		BatchSize:        4,
		MaxStepsPerEpoch: 3,
		Seed:             9,
	}, buf, testLogger(t), m)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	fillBuffer(buf, 100)

	steps, err := e.TrainEpoch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 3 {
		t.Fatalf("epoch ran %d steps, want 3", len(steps))
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.TrainEpoch(cancelled); err == nil {
		t.Fatal("expected context error")
	}
}

func TestFailedStateRecoversViaReinitialize(t *testing.T) {
	buf := replay.NewBuffer(64, replay.WithSeed(1))
	e, _ := testEngine(t, buf)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	// force a failed session
	e.state.Store(int32(models.StateFailed))
	if _, err := e.TrainStep(context.Background()); err == nil {
		t.Fatal("expected failure in FAILED state")
	}
	if err := e.Reinitialize(models.NetworkConfig{
		Architecture: models.ArchLSTM,
		InputSize:    4,
		HiddenSizes:  []int{8},
	}); err != nil {
		t.Fatal(err)
	}
	if e.State() != models.StateInitialized {
		t.Fatalf("state after reinitialize %s", e.State())
	}
	if e.Parameters().Arch != models.ArchLSTM {
		t.Fatalf("architecture not switched: %s", e.Parameters().Arch)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	buf := replay.NewBuffer(64, replay.WithSeed(1))
	e, _ := testEngine(t, buf)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	fillBuffer(buf, 16)
	if _, err := e.TrainStep(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap, err := e.Snapshot("model-1", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Symbol != "BTCUSDT" || len(snap.Layers) == 0 {
		t.Fatalf("bad snapshot %+v", snap)
	}

	e2, _ := testEngine(t, buf)
	if err := e2.RestoreSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	if e2.State() != models.StateIdle {
		t.Fatalf("restored state %s", e2.State())
	}
	if e2.Summary().Steps != snap.Metrics.Steps {
		t.Fatalf("restored summary %+v", e2.Summary())
	}
}

func TestDefaultsApplied(t *testing.T) {
	cfg := Config{Network: models.NetworkConfig{InputSize: 4}}.withDefaults()
	if cfg.LearningRate != defaultLearningRate || cfg.BatchSize != defaultBatchSize {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Loss != backprop.LossCrossEntropy {
		t.Fatalf("default loss %s", cfg.Loss)
	}
	if cfg.Patience != defaultPatience {
		t.Fatalf("default patience %d", cfg.Patience)
	}
}
