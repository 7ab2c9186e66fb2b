package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/evaluation"
	"SignalPull/pkg/logger"
)

type stubMetrics struct{ cycles []string }

func (m *stubMetrics) RecordTrainingStep(string, float64, float64)      {}
func (m *stubMetrics) RecordPrediction(string, string, string, float64) {}
func (m *stubMetrics) RecordSchedulerCycle(outcome string)             { m.cycles = append(m.cycles, outcome) }
func (m *stubMetrics) RecordBacktest(string, float64, float64)         {}
func (m *stubMetrics) RecordLastPrice(string, float64)                 {}
func (m *stubMetrics) RecordError(string)                              {}
func (m *stubMetrics) RecordLatency(string, float64)                   {}

type stubTrainer struct {
	state  models.TrainingState
	epochs int
	err    error
}

func (t *stubTrainer) TrainEpoch(context.Context) ([]models.StepMetrics, error) {
	t.epochs++
	if t.err != nil {
		return nil, t.err
	}
	return []models.StepMetrics{{Step: 1}, {Step: 2}}, nil
}
func (t *stubTrainer) State() models.TrainingState { return t.state }

type stubSamples struct {
	samples []evaluation.Sample
	err     error
}

func (s *stubSamples) PendingSamples(context.Context, string) ([]evaluation.Sample, error) {
	return s.samples, s.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func accurateSamples(n int) []evaluation.Sample {
	out := make([]evaluation.Sample, n)
	for i := range out {
		out[i] = evaluation.Sample{
			Predicted:   models.Prediction{Bull: 0.8, Bear: 0.1, Neutral: 0.1},
			ActualClass: "BULL",
		}
	}
	return out
}

func TestTickSkipsRetrainWhenAccurate(t *testing.T) {
	trainer := &stubTrainer{state: models.StateIdle}
	s := New(Config{Symbol: "BTCUSDT", MinSamples: 5},
		trainer, &stubSamples{samples: accurateSamples(20)}, testLogger(t), &stubMetrics{})

	rec := s.Tick(context.Background())
	if rec.Accuracy != 1 {
		t.Fatalf("accuracy %v", rec.Accuracy)
	}
	if rec.Retrained || trainer.epochs != 0 {
		t.Fatal("accurate model was retrained")
	}
}

func TestAccuracyWindowedToRecentOutcomes(t *testing.T) {
	// 20 stale misses followed by 10 recent hits; only the window counts
	stale := make([]evaluation.Sample, 20)
	for i := range stale {
		stale[i] = evaluation.Sample{
			Predicted:   models.Prediction{Bull: 0.8, Bear: 0.1, Neutral: 0.1},
			ActualClass: "BEAR",
		}
	}
	samples := append(stale, accurateSamples(10)...)

	trainer := &stubTrainer{state: models.StateIdle}
	s := New(Config{Symbol: "BTCUSDT", MinSamples: 5, HistoryLimit: 10},
		trainer, &stubSamples{samples: samples}, testLogger(t), &stubMetrics{})

	rec := s.Tick(context.Background())
	if rec.Samples != 10 {
		t.Fatalf("evaluated %d samples, want the 10 in the window", rec.Samples)
	}
	if rec.Accuracy != 1 {
		t.Fatalf("windowed accuracy %v, want 1", rec.Accuracy)
	}
	if rec.Retrained {
		t.Fatal("accurate window must not retrain")
	}
}

func TestTickRetrainsOnDrift(t *testing.T) {
	bad := make([]evaluation.Sample, 20)
	for i := range bad {
		bad[i] = evaluation.Sample{
			Predicted:   models.Prediction{Bull: 0.8, Bear: 0.1, Neutral: 0.1},
			ActualClass: "BEAR",
		}
	}
	trainer := &stubTrainer{state: models.StateIdle}
	m := &stubMetrics{}
	s := New(Config{Symbol: "BTCUSDT", MinSamples: 5}, trainer, &stubSamples{samples: bad}, testLogger(t), m)

	rec := s.Tick(context.Background())
	if !rec.Retrained || trainer.epochs != 1 {
		t.Fatalf("drifted model not retrained: %+v", rec)
	}
	if len(m.cycles) != 1 || m.cycles[0] != "retrained" {
		t.Fatalf("cycle outcomes %v", m.cycles)
	}
}

func TestTickNeverRetrainsUninitialized(t *testing.T) {
	trainer := &stubTrainer{state: models.StateUninitialized}
	s := New(Config{Symbol: "BTCUSDT"}, trainer, &stubSamples{}, testLogger(t), &stubMetrics{})
	rec := s.Tick(context.Background())
	if rec.Retrained || trainer.epochs != 0 {
		t.Fatal("uninitialized trainer was driven")
	}
}

func TestMeasureAccuracyAbsorbsFailures(t *testing.T) {
	trainer := &stubTrainer{state: models.StateIdle}
	s := New(Config{Symbol: "BTCUSDT"}, trainer,
		&stubSamples{err: errors.New("store down")}, testLogger(t), &stubMetrics{})

	rec := s.Tick(context.Background())
	if rec.Accuracy != 0 || rec.Samples != 0 {
		t.Fatalf("broken source should read as zero accuracy: %+v", rec)
	}
	// no measurable accuracy yet, a warm trainer still gets an epoch
	if trainer.epochs != 1 {
		t.Fatal("cold-start retrain did not run")
	}
}

func TestTickSurvivesTrainerError(t *testing.T) {
	trainer := &stubTrainer{state: models.StateIdle, err: errors.New("buffer empty")}
	m := &stubMetrics{}
	s := New(Config{Symbol: "BTCUSDT"}, trainer, &stubSamples{}, testLogger(t), m)

	rec := s.Tick(context.Background())
	if rec.Error == "" {
		t.Fatal("trainer error not surfaced in cycle record")
	}
	// loop must keep going
	rec = s.Tick(context.Background())
	if trainer.epochs != 2 {
		t.Fatalf("second tick did not run: %d epochs", trainer.epochs)
	}
	_ = rec
}

func TestHistoryBounded(t *testing.T) {
	trainer := &stubTrainer{state: models.StateIdle}
	s := New(Config{Symbol: "BTCUSDT", HistoryLimit: 3},
		trainer, &stubSamples{samples: accurateSamples(20)}, testLogger(t), &stubMetrics{})
	for i := 0; i < 10; i++ {
		s.Tick(context.Background())
	}
	st := s.Status()
	if len(st.History) != 3 {
		t.Fatalf("history length %d, want 3", len(st.History))
	}
	if st.Cycles != 10 {
		t.Fatalf("cycles %d", st.Cycles)
	}
}

func TestStartStop(t *testing.T) {
	trainer := &stubTrainer{state: models.StateIdle}
	s := New(Config{Symbol: "BTCUSDT", Interval: 10 * time.Millisecond},
		trainer, &stubSamples{samples: accurateSamples(20)}, testLogger(t), &stubMetrics{})

	s.Start(context.Background())
	if !s.Status().Running {
		t.Fatal("not running after start")
	}
	s.Start(context.Background()) // second start is a no-op
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	if s.Status().Running {
		t.Fatal("still running after stop")
	}
	if s.Status().Cycles == 0 {
		t.Fatal("loop never ticked")
	}
	s.Stop() // idempotent
}
