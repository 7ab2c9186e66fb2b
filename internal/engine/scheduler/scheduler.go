// Package scheduler drives continuous learning: on every tick it measures
// live prediction accuracy and retrains when the model has drifted below
// the configured threshold. Cycles never overlap and a failed cycle never
// stops the loop.
package scheduler

import (
	"context"
	"sync"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
	"SignalPull/internal/domain/service"
	"SignalPull/internal/engine/evaluation"
	"SignalPull/pkg/logger"
)

const (
	defaultInterval          = 5 * time.Minute
	defaultAccuracyThreshold = 0.55
	defaultMinSamples        = 10
	defaultHistoryLimit      = 50
)

// SampleSource delivers evaluated prediction outcomes for one symbol.
type SampleSource interface {
	PendingSamples(ctx context.Context, symbol string) ([]evaluation.Sample, error)
}

// Config controls the learning loop.
type Config struct {
	Symbol            string
	Interval          time.Duration
	AccuracyThreshold float64
	MinSamples        int
	HistoryLimit      int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.AccuracyThreshold <= 0 || c.AccuracyThreshold > 1 {
		c.AccuracyThreshold = defaultAccuracyThreshold
	}
	if c.MinSamples <= 0 {
		c.MinSamples = defaultMinSamples
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	return c
}

// CycleRecord is one completed scheduler cycle.
type CycleRecord struct {
	At        time.Time `json:"at"`
	Accuracy  float64   `json:"accuracy"`
	Samples   int       `json:"samples"`
	Retrained bool      `json:"retrained"`
	Steps     int       `json:"steps"`
	Error     string    `json:"error,omitempty"`
}

// Status is the scheduler's externally visible state.
type Status struct {
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"interval"`
	LastAccuracy float64       `json:"last_accuracy"`
	Cycles       int           `json:"cycles"`
	History      []CycleRecord `json:"history"`
}

// Scheduler runs the periodic learn/evaluate loop. The cycle mutex
// guarantees ticks never overlap even when a cycle outlasts the interval.
type Scheduler struct {
	mu      sync.Mutex // serializes cycles
	stateMu sync.Mutex // guards cfg, history, running, cancel

	cfg     Config
	trainer service.Trainer
	samples SampleSource
	log     *logger.Logger
	metrics repository.Metrics

	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	cycles       int
	lastAccuracy float64
	history      []CycleRecord
}

// New builds a stopped scheduler.
func New(cfg Config, trainer service.Trainer, samples SampleSource, log *logger.Logger, metrics repository.Metrics) *Scheduler {
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		trainer: trainer,
		samples: samples,
		log:     log,
		metrics: metrics,
	}
}

// Configure replaces the loop configuration. Takes effect on the next
// Start; a running loop keeps its current interval until restarted.
func (s *Scheduler) Configure(cfg Config) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.cfg = cfg.withDefaults()
}

// Start launches the ticker loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	interval := s.cfg.Interval

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.Tick(loopCtx)
			}
		}
	}()
	s.log.Info("scheduler started",
		logger.String("symbol", s.cfg.Symbol),
		logger.Duration("interval", interval),
	)
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stateMu.Lock()
	if !s.running {
		s.stateMu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.stateMu.Unlock()

	cancel()
	<-done
	s.log.Info("scheduler stopped", logger.String("symbol", s.cfg.Symbol))
}

// Tick runs one learn/evaluate cycle. Every failure mode is absorbed into
// the cycle record; Tick itself never panics or returns an error, so a bad
// cycle cannot take the loop down.
func (s *Scheduler) Tick(ctx context.Context) CycleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.Lock()
	cfg := s.cfg
	s.stateMu.Unlock()

	rec := CycleRecord{At: time.Now().UTC()}
	defer func() {
		if r := recover(); r != nil {
			rec.Error = "cycle panic"
			s.metrics.RecordSchedulerCycle("panic")
			s.log.Error("scheduler cycle panicked", logger.Any("panic", r))
			s.record(rec)
		}
	}()

	accuracy, samples := s.measureCurrentAccuracy(ctx, cfg.Symbol, cfg.HistoryLimit)
	rec.Accuracy = accuracy
	rec.Samples = samples

	if s.shouldRetrain(accuracy, samples, cfg) {
		steps, err := s.trainer.TrainEpoch(ctx)
		rec.Steps = len(steps)
		rec.Retrained = len(steps) > 0
		if err != nil {
			rec.Error = err.Error()
		}
	}

	outcome := "evaluated"
	switch {
	case rec.Error != "":
		outcome = "failed"
	case rec.Retrained:
		outcome = "retrained"
	}
	s.metrics.RecordSchedulerCycle(outcome)
	s.log.Debug("scheduler cycle",
		logger.String("symbol", cfg.Symbol),
		logger.Any("accuracy", rec.Accuracy),
		logger.Bool("retrained", rec.Retrained),
		logger.Int("steps", rec.Steps),
	)
	s.record(rec)
	return rec
}

// measureCurrentAccuracy evaluates a sliding window of the most recent
// outcomes, bounded by the configured window size. It never fails: missing
// or broken sample sources report zero accuracy, which at worst triggers a
// retrain attempt.
func (s *Scheduler) measureCurrentAccuracy(ctx context.Context, symbol string, window int) (float64, int) {
	if s.samples == nil {
		return 0, 0
	}
	samples, err := s.samples.PendingSamples(ctx, symbol)
	if err != nil || len(samples) == 0 {
		return 0, 0
	}
	if window > 0 && len(samples) > window {
		samples = samples[len(samples)-window:]
	}
	report, err := evaluation.MeasureModelAccuracy(symbol, samples)
	if err != nil {
		return 0, 0
	}
	acc := report.ClassificationAccuracy
	if acc < 0 || acc > 1 {
		return 0, len(samples)
	}
	return acc, len(samples)
}

// shouldRetrain triggers on accuracy drift once enough outcomes exist to
// trust the measurement. With no measurable accuracy yet, it retrains so a
// cold model starts learning as soon as experiences arrive.
func (s *Scheduler) shouldRetrain(accuracy float64, samples int, cfg Config) bool {
	if s.trainer.State() == models.StateUninitialized {
		return false
	}
	if samples < cfg.MinSamples {
		return true
	}
	return accuracy < cfg.AccuracyThreshold
}

// record appends to the bounded cycle history.
func (s *Scheduler) record(rec CycleRecord) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.cycles++
	s.lastAccuracy = rec.Accuracy
	s.history = append(s.history, rec)
	if len(s.history) > s.cfg.HistoryLimit {
		s.history = s.history[len(s.history)-s.cfg.HistoryLimit:]
	}
}

// Status reports the loop state and recent cycle history.
func (s *Scheduler) Status() Status {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	hist := append([]CycleRecord(nil), s.history...)
	return Status{
		Running:      s.running,
		Interval:     s.cfg.Interval,
		LastAccuracy: s.lastAccuracy,
		Cycles:       s.cycles,
		History:      hist,
	}
}
