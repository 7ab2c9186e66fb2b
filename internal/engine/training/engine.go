// Package training owns the optimizer loop: it samples prioritized batches
// from the replay buffer, runs forward and backward passes, and publishes
// updated weights through an atomic snapshot swap so readers never block
// on a training step.
package training

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
	"SignalPull/internal/engine/backprop"
	"SignalPull/internal/engine/core"
	"SignalPull/internal/engine/network"
	"SignalPull/internal/engine/replay"
	"SignalPull/pkg/logger"
)

const (
	defaultLearningRate = 0.01
	defaultBatchSize    = 32
	defaultGradientClip = 5.0
	defaultMaxSteps     = 50
	defaultPatience     = 5
)

// Config controls one training session.
type Config struct {
	Symbol           string
	Network          models.NetworkConfig
	LearningRate     float64
	BatchSize        int
	Loss             backprop.LossKind
	GradientClip     float64
	MaxStepsPerEpoch int
	Patience         int
	Seed             int64
}

func (c Config) withDefaults() Config {
	if c.LearningRate <= 0 {
		c.LearningRate = defaultLearningRate
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Loss == "" {
		c.Loss = backprop.LossCrossEntropy
	}
	if c.GradientClip <= 0 {
		c.GradientClip = defaultGradientClip
	}
	if c.MaxStepsPerEpoch <= 0 {
		c.MaxStepsPerEpoch = defaultMaxSteps
	}
	if c.Patience <= 0 {
		c.Patience = defaultPatience
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Engine is the single writer of model weights. All mutation happens under
// mu; published parameters are read lock-free through an atomic pointer.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	buffer  *replay.Buffer
	log     *logger.Logger
	metrics repository.Metrics

	params  atomic.Pointer[network.Parameters]
	state   atomic.Int32
	step    int
	summary models.TrainingSummary
}

// NewEngine wires a training engine to its replay buffer. The engine starts
// uninitialized; Initialize must run before the first step.
func NewEngine(cfg Config, buffer *replay.Buffer, log *logger.Logger, metrics repository.Metrics) *Engine {
	return &Engine{
		cfg:     cfg.withDefaults(),
		buffer:  buffer,
		log:     log,
		metrics: metrics,
	}
}

// Initialize builds and publishes fresh weights for the configured
// architecture. Calling it on an already-initialized session resets it:
// prior weights and step counters are discarded and state returns to
// INITIALIZED. Callers that want to keep learned weights across restarts
// restore a snapshot instead.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := network.Build(e.cfg.Network, e.cfg.Seed)
	if err != nil {
		return err
	}
	e.params.Store(p)
	e.step = 0
	e.summary = models.TrainingSummary{}
	e.state.Store(int32(models.StateInitialized))
	e.log.Info("training engine initialized",
		logger.String("symbol", e.cfg.Symbol),
		logger.String("architecture", string(p.Arch)),
		logger.Int("layers", len(p.Layers)),
	)
	return nil
}

// Reinitialize discards current weights and rebuilds from the given network
// config. Used when the operator switches architectures.
func (e *Engine) Reinitialize(cfg models.NetworkConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := network.Build(cfg, e.cfg.Seed)
	if err != nil {
		return err
	}
	e.cfg.Network = cfg
	e.params.Store(p)
	e.step = 0
	e.summary = models.TrainingSummary{}
	e.state.Store(int32(models.StateInitialized))
	return nil
}

// Parameters returns the currently published weight snapshot. Callers must
// treat it as read-only. Nil until Initialize succeeds.
func (e *Engine) Parameters() *network.Parameters {
	return e.params.Load()
}

// State reports the engine lifecycle state.
func (e *Engine) State() models.TrainingState {
	return models.TrainingState(e.state.Load())
}

// Summary reports aggregate progress for the session.
func (e *Engine) Summary() models.TrainingSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// Config returns the session configuration with defaults applied.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// RestoreSnapshot replaces the published weights with a persisted snapshot.
func (e *Engine) RestoreSnapshot(snap *models.ModelSnapshot) error {
	p, err := network.FromSnapshot(snap.Config.Architecture, snap.Layers)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Network = snap.Config
	e.params.Store(p)
	e.summary = snap.Metrics
	e.step = snap.Metrics.Steps
	e.state.Store(int32(models.StateIdle))
	return nil
}

// Snapshot captures the current weights and progress for persistence.
func (e *Engine) Snapshot(modelID, version string) (*models.ModelSnapshot, error) {
	p := e.params.Load()
	if p == nil {
		return nil, &core.ConfigurationError{Field: "parameters", Reason: "network not initialized"}
	}
	e.mu.Lock()
	summary := e.summary
	cfg := e.cfg.Network
	e.mu.Unlock()
	return &models.ModelSnapshot{
		ModelID: modelID,
		Symbol:  e.cfg.Symbol,
		Version: version,
		SavedAt: time.Now().UTC(),
		Config:  cfg,
		Layers:  p.Snapshot(),
		Metrics: summary,
	}, nil
}

// TrainStep samples one prioritized batch and applies a single optimizer
// update. Weight mutation happens on a private clone; the result is
// published atomically only after passing the finiteness check.
func (e *Engine) TrainStep(ctx context.Context) (models.StepMetrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return models.StepMetrics{}, err
	}
	current := e.params.Load()
	if current == nil || e.State() == models.StateUninitialized {
		return models.StepMetrics{}, &core.ConfigurationError{Field: "state", Reason: "engine not initialized"}
	}
	if e.State() == models.StateFailed {
		return models.StepMetrics{}, &core.NumericInstabilityError{Op: "train_step", Detail: "engine is in FAILED state, reinitialize first"}
	}

	batch, err := e.buffer.Sample(e.cfg.BatchSize)
	if err != nil {
		return models.StepMetrics{}, err
	}

	e.state.Store(int32(models.StateTraining))
	start := time.Now()

	next := current.Clone()
	total := backprop.ZeroGradients(next)
	sumLoss := 0.0
	classHits := 0
	dirHits, dirTotal := 0, 0
	priorities := make(map[string]float64, len(batch))
	used := 0

	for _, exp := range batch {
		if len(exp.State) != next.InputSize() {
			continue
		}
		tr, err := network.ForwardTrace(next, exp.State)
		if err != nil {
			continue
		}
		target := TargetFor(exp)
		loss, err := backprop.CalculateLoss(e.cfg.Loss, tr.Output, target)
		if err != nil || math.IsNaN(loss) || math.IsInf(loss, 0) {
			continue
		}
		total.Accumulate(backprop.CalculateGradients(next, tr, target, e.cfg.Loss))
		sumLoss += loss
		used++
		priorities[exp.ID] = loss

		pred := argmax(tr.Output)
		want := targetClass(target)
		if pred == want {
			classHits++
		}
		if direction(want) != 0 {
			dirTotal++
			if direction(pred) == direction(want) {
				dirHits++
			}
		}
	}

	if used == 0 {
		e.state.Store(int32(models.StateIdle))
		return models.StepMetrics{}, &core.InsufficientDataError{Op: "train_step", Need: 1, Got: 0}
	}

	total.Scale(1 / float64(used))
	total.ClipNorm(e.cfg.GradientClip)
	backprop.Apply(next, total, e.cfg.LearningRate)

	if !next.Finite() {
		e.state.Store(int32(models.StateFailed))
		e.metrics.RecordError("training_numeric_instability")
		return models.StepMetrics{}, &core.NumericInstabilityError{Op: "train_step", Detail: "weights diverged to non-finite values"}
	}

	e.params.Store(next)
	e.buffer.UpdatePriorities(priorities)
	e.step++

	m := models.StepMetrics{
		Step:                   e.step,
		Loss:                   sumLoss / float64(used),
		ClassificationAccuracy: float64(classHits) / float64(used),
		BatchSize:              used,
		LearningRate:           e.cfg.LearningRate,
		Duration:               time.Since(start),
	}
	if dirTotal > 0 {
		m.DirectionalAccuracy = float64(dirHits) / float64(dirTotal)
	} else {
		m.DirectionalAccuracy = m.ClassificationAccuracy
	}

	e.summary = models.TrainingSummary{
		Steps:                  e.step,
		LastLoss:               m.Loss,
		DirectionalAccuracy:    m.DirectionalAccuracy,
		ClassificationAccuracy: m.ClassificationAccuracy,
		UpdatedAt:              time.Now().UTC(),
	}
	e.state.Store(int32(models.StateIdle))
	e.metrics.RecordTrainingStep(e.cfg.Symbol, m.Loss, m.DirectionalAccuracy)
	e.log.Debug("training step",
		logger.String("symbol", e.cfg.Symbol),
		logger.Int("step", m.Step),
		logger.Any("loss", m.Loss),
		logger.Any("directional_accuracy", m.DirectionalAccuracy),
	)
	return m, nil
}

// TrainEpoch runs one pass worth of steps over the buffered experiences,
// bounded by MaxStepsPerEpoch. Stops early on context cancellation, when
// the buffer runs short, or when loss has not improved for Patience
// consecutive steps.
func (e *Engine) TrainEpoch(ctx context.Context) ([]models.StepMetrics, error) {
	size := e.buffer.Size()
	if size < e.cfg.BatchSize {
		return nil, &core.InsufficientDataError{Op: "train_epoch", Need: e.cfg.BatchSize, Got: size}
	}
	steps := (size + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	if steps > e.cfg.MaxStepsPerEpoch {
		steps = e.cfg.MaxStepsPerEpoch
	}

	out := make([]models.StepMetrics, 0, steps)
	bestLoss := math.Inf(1)
	stale := 0
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		m, err := e.TrainStep(ctx)
		if err != nil {
			var ide *core.InsufficientDataError
			if len(out) > 0 && errors.As(err, &ide) {
				break
			}
			return out, err
		}
		out = append(out, m)
		if m.Loss < bestLoss {
			bestLoss = m.Loss
			stale = 0
			continue
		}
		stale++
		if stale >= e.cfg.Patience {
			e.log.Debug("epoch stopped early",
				logger.String("symbol", e.cfg.Symbol),
				logger.Int("steps", len(out)),
				logger.Int("patience", e.cfg.Patience),
			)
			break
		}
	}
	return out, nil
}

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
