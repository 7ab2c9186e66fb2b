package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SignalPull/internal/domain/models"
	domrepo "SignalPull/internal/domain/repository"
	"SignalPull/internal/engine/backprop"
	"SignalPull/internal/engine/backtest"
	"SignalPull/internal/engine/core"
	"SignalPull/internal/engine/evaluation"
	"SignalPull/internal/engine/features"
	"SignalPull/internal/engine/predict"
	"SignalPull/internal/engine/replay"
	"SignalPull/internal/engine/scheduler"
	"SignalPull/internal/engine/training"
	applogger "SignalPull/pkg/logger"
)

// PredictionStore is the prediction log with lookback reads, used to pair
// emitted predictions with realized outcomes.
type PredictionStore interface {
	Store(ctx context.Context, rec *models.PredictionRecord) error
	Recent(ctx context.Context, symbol string, lookback time.Duration, limit int) ([]models.PredictionRecord, error)
	Close() error
}

// EngineConfig carries per-symbol session defaults.
type EngineConfig struct {
	Architecture        models.Architecture
	HiddenSizes         []int
	LearningRate        float64
	BatchSize           int
	BufferCapacity      int
	Loss                backprop.LossKind
	MaxStepsPerEpoch    int
	GradientClip        float64
	ConfidenceThreshold float64
	ModelVersion        string
	Scheduler           scheduler.Config
}

// Session bundles the per-symbol learning state: replay buffer, trainer,
// prediction agent and learning scheduler share one lifecycle.
type Session struct {
	Symbol    string
	Buffer    *replay.Buffer
	Trainer   *training.Engine
	Agent     *predict.Agent
	Scheduler *scheduler.Scheduler
}

// EngineUseCase is the application facade over the learning engine. All
// HTTP handlers, stream consumers and queue jobs go through it.
type EngineUseCase struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg        EngineConfig
	candles    domrepo.CandleStore
	preds      PredictionStore
	modelStore domrepo.ModelStore
	backtester *backtest.Engine
	metrics    domrepo.Metrics
	log        *applogger.Logger
}

// NewEngineUseCase wires the facade. Sessions are created lazily per
// symbol on first use.
func NewEngineUseCase(
	cfg EngineConfig,
	candles domrepo.CandleStore,
	preds PredictionStore,
	modelStore domrepo.ModelStore,
	backtester *backtest.Engine,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *EngineUseCase {
	return &EngineUseCase{
		sessions:   make(map[string]*Session),
		cfg:        cfg,
		candles:    candles,
		preds:      preds,
		modelStore: modelStore,
		backtester: backtester,
		metrics:    metrics,
		log:        log,
	}
}

// Session returns the learning session for a symbol, creating it on first
// use with the configured defaults.
func (uc *EngineUseCase) Session(symbol string) *Session {
	uc.mu.RLock()
	s, ok := uc.sessions[symbol]
	uc.mu.RUnlock()
	if ok {
		return s
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if s, ok = uc.sessions[symbol]; ok {
		return s
	}

	buffer := replay.NewBuffer(uc.cfg.BufferCapacity)
	trainer := training.NewEngine(training.Config{
		Symbol: symbol,
		Network: models.NetworkConfig{
			Architecture: uc.cfg.Architecture,
			InputSize:    features.FeatureCount,
			HiddenSizes:  uc.cfg.HiddenSizes,
		},
		LearningRate:     uc.cfg.LearningRate,
		BatchSize:        uc.cfg.BatchSize,
		Loss:             uc.cfg.Loss,
		GradientClip:     uc.cfg.GradientClip,
		MaxStepsPerEpoch: uc.cfg.MaxStepsPerEpoch,
	}, buffer, uc.log, uc.metrics)
	agent := predict.NewAgent(trainer, uc.log, uc.metrics, uc.cfg.ModelVersion)

	schedCfg := uc.cfg.Scheduler
	schedCfg.Symbol = symbol
	sched := scheduler.New(schedCfg, trainer, &sampleSource{uc: uc}, uc.log, uc.metrics)

	s = &Session{
		Symbol:    symbol,
		Buffer:    buffer,
		Trainer:   trainer,
		Agent:     agent,
		Scheduler: sched,
	}
	uc.sessions[symbol] = s
	return s
}

// Symbols lists symbols with active sessions.
func (uc *EngineUseCase) Symbols() []string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	out := make([]string, 0, len(uc.sessions))
	for sym := range uc.sessions {
		out = append(out, sym)
	}
	return out
}

// Initialize builds network weights for a symbol, resetting any prior
// training progress. An explicit architecture override switches the
// session's network config as well.
func (uc *EngineUseCase) Initialize(ctx context.Context, symbol string, override *models.NetworkConfig) error {
	s := uc.Session(symbol)
	if override != nil {
		cfg := *override
		if cfg.InputSize == 0 {
			cfg.InputSize = features.FeatureCount
		}
		return s.Trainer.Reinitialize(cfg)
	}
	return s.Trainer.Initialize()
}

// Bootstrap prepares a symbol's session at process start: it restores the
// last persisted snapshot when one exists and falls back to fresh weights.
// Restore failures never abort startup.
func (uc *EngineUseCase) Bootstrap(ctx context.Context, symbol string) error {
	err := uc.LoadModel(ctx, symbol)
	if err == nil {
		uc.log.Info("restored persisted model",
			applogger.String("symbol", symbol),
		)
		return nil
	}
	if errors.Is(err, domrepo.ErrModelNotFound) {
		uc.log.Info("no persisted model, starting fresh",
			applogger.String("symbol", symbol),
		)
	} else {
		uc.log.Warn("model restore failed, starting fresh",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
	}
	return uc.Initialize(ctx, symbol, nil)
}

// TrainStep applies one optimizer update for the symbol.
func (uc *EngineUseCase) TrainStep(ctx context.Context, symbol string) (models.StepMetrics, error) {
	return uc.Session(symbol).Trainer.TrainStep(ctx)
}

// TrainEpoch drives a bounded pass over the symbol's replay buffer.
func (uc *EngineUseCase) TrainEpoch(ctx context.Context, symbol string) ([]models.StepMetrics, error) {
	return uc.Session(symbol).Trainer.TrainEpoch(ctx)
}

// TrainingStatus reports lifecycle state, progress and buffer statistics.
func (uc *EngineUseCase) TrainingStatus(symbol string) map[string]interface{} {
	s := uc.Session(symbol)
	return map[string]interface{}{
		"symbol":  symbol,
		"state":   s.Trainer.State().String(),
		"summary": s.Trainer.Summary(),
		"buffer":  s.Buffer.Statistics(),
	}
}

// Predict fetches the latest candle window from storage, forecasts, and
// logs the emitted prediction for later outcome evaluation.
func (uc *EngineUseCase) Predict(ctx context.Context, symbol string, tf domrepo.Timeframe, window int) (*models.PredictionResult, error) {
	if window < features.MinWindow {
		window = features.MinWindow
	}
	candles, err := uc.candles.GetLatestNCandles(ctx, symbol, window, tf)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) < features.MinWindow {
		return nil, &core.InsufficientDataError{Op: "predict", Need: features.MinWindow, Got: len(candles)}
	}

	res, err := uc.Session(symbol).Agent.PredictWindow(ctx, symbol, candles)
	if err != nil {
		return nil, err
	}
	rec := &models.PredictionRecord{
		ID:         fmt.Sprintf("%s-%d", symbol, res.Timestamp.UnixNano()),
		Symbol:     symbol,
		CreatedAt:  res.Timestamp,
		Class:      res.Class,
		Confidence: res.Confidence,
		Price:      candles[len(candles)-1].Close,
		Source:     res.Source,
	}
	if err := uc.preds.Store(ctx, rec); err != nil {
		uc.log.Warn("prediction log store failed",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
	}
	return res, nil
}

// AddExperience feeds one observed outcome into the symbol's replay buffer.
func (uc *EngineUseCase) AddExperience(symbol string, exp *models.Experience) {
	uc.Session(symbol).Buffer.Add(exp)
}

// Accuracy evaluates recent predictions against realized prices.
func (uc *EngineUseCase) Accuracy(ctx context.Context, symbol string, tf domrepo.Timeframe, lookback time.Duration) (*models.AccuracyReport, error) {
	samples, err := uc.pendingSamples(ctx, symbol, tf, lookback)
	if err != nil {
		return nil, err
	}
	return evaluation.MeasureModelAccuracy(symbol, samples)
}

// SaveModel snapshots the symbol's current weights to the model store.
func (uc *EngineUseCase) SaveModel(ctx context.Context, symbol string) (*models.ModelSnapshot, error) {
	s := uc.Session(symbol)
	snap, err := s.Trainer.Snapshot(modelID(symbol), uc.cfg.ModelVersion)
	if err != nil {
		return nil, err
	}
	if err := uc.modelStore.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	uc.log.Info("model snapshot saved",
		applogger.String("symbol", symbol),
		applogger.String("model_id", snap.ModelID),
		applogger.Int("steps", snap.Metrics.Steps),
	)
	return snap, nil
}

// LoadModel restores the most recent snapshot for the symbol.
func (uc *EngineUseCase) LoadModel(ctx context.Context, symbol string) error {
	snap, err := uc.modelStore.Load(ctx, modelID(symbol))
	if err != nil {
		return err
	}
	return uc.Session(symbol).Trainer.RestoreSnapshot(snap)
}

// Backtest runs a walk-forward simulation over stored history.
func (uc *EngineUseCase) Backtest(ctx context.Context, symbol string, tf domrepo.Timeframe, bars int, cfg models.BacktestConfig) (*models.BacktestResult, error) {
	if bars <= backtest.WarmupBars {
		bars = backtest.WarmupBars * 3
	}
	candles, err := uc.candles.GetLatestNCandles(ctx, symbol, bars, tf)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = uc.cfg.ConfidenceThreshold
	}
	return uc.backtester.Run(ctx, symbol, tf, candles, cfg, uc.Session(symbol).Agent)
}

// StartScheduler begins continuous learning for the symbol.
func (uc *EngineUseCase) StartScheduler(ctx context.Context, symbol string) {
	uc.Session(symbol).Scheduler.Start(ctx)
}

// StopScheduler halts continuous learning for the symbol.
func (uc *EngineUseCase) StopScheduler(symbol string) {
	uc.Session(symbol).Scheduler.Stop()
}

// ConfigureScheduler replaces the symbol's learning loop settings.
func (uc *EngineUseCase) ConfigureScheduler(symbol string, cfg scheduler.Config) {
	cfg.Symbol = symbol
	uc.Session(symbol).Scheduler.Configure(cfg)
}

// SchedulerStatus reports the symbol's learning loop state.
func (uc *EngineUseCase) SchedulerStatus(symbol string) scheduler.Status {
	return uc.Session(symbol).Scheduler.Status()
}

// Shutdown stops all schedulers.
func (uc *EngineUseCase) Shutdown() {
	uc.mu.RLock()
	sessions := make([]*Session, 0, len(uc.sessions))
	for _, s := range uc.sessions {
		sessions = append(sessions, s)
	}
	uc.mu.RUnlock()
	for _, s := range sessions {
		s.Scheduler.Stop()
	}
}

// pendingSamples pairs recent logged predictions with the realized price
// at least one bar later.
func (uc *EngineUseCase) pendingSamples(ctx context.Context, symbol string, tf domrepo.Timeframe, lookback time.Duration) ([]evaluation.Sample, error) {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	records, err := uc.preds.Recent(ctx, symbol, lookback, 500)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	candles, err := uc.candles.GetCandles(ctx, symbol, records[0].CreatedAt, time.Now(), tf)
	if err != nil {
		return nil, err
	}

	horizon := tf.Duration()
	samples := make([]evaluation.Sample, 0, len(records))
	for _, rec := range records {
		exit, ok := closeAtOrAfter(candles, rec.CreatedAt.Add(horizon))
		if !ok {
			continue // outcome not realized yet
		}
		samples = append(samples, evaluation.Sample{
			Predicted:   predictionFromClass(rec.Class, rec.Confidence),
			ActualClass: evaluation.OutcomeClass(rec.Price, exit),
		})
	}
	return samples, nil
}

// sampleSource adapts the usecase's outcome pairing to the scheduler.
type sampleSource struct {
	uc *EngineUseCase
}

func (s *sampleSource) PendingSamples(ctx context.Context, symbol string) ([]evaluation.Sample, error) {
	return s.uc.pendingSamples(ctx, symbol, domrepo.DefaultTimeframe(), 24*time.Hour)
}

func closeAtOrAfter(candles []models.Candle, at time.Time) (float64, bool) {
	for _, c := range candles {
		if !c.Bucket.Before(at) {
			return c.Close, true
		}
	}
	return 0, false
}

// predictionFromClass reconstructs a simplex from the logged class label
// and its confidence, spreading the remainder over the other classes.
func predictionFromClass(class string, confidence float64) models.Prediction {
	if confidence < 1.0/3 || confidence > 1 {
		confidence = 1.0 / 3
	}
	rest := (1 - confidence) / 2
	switch class {
	case "BULL":
		return models.Prediction{Bull: confidence, Bear: rest, Neutral: rest}
	case "BEAR":
		return models.Prediction{Bear: confidence, Bull: rest, Neutral: rest}
	default:
		return models.Prediction{Neutral: confidence, Bull: rest, Bear: rest}
	}
}

func modelID(symbol string) string {
	return "engine-" + symbol
}
