package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"SignalPull/internal/domain/models"
	drepo "SignalPull/internal/domain/repository"
	"SignalPull/internal/engine/features"
	applogger "SignalPull/pkg/logger"
)

// windowBars is how much candle history the processor keeps in memory per
// symbol. Enough for feature extraction plus slow indicators.
const windowBars = 120

// pendingForecast holds an emitted prediction until the next bar closes
// and its outcome can be scored.
type pendingForecast struct {
	features   []float64
	prediction models.Prediction
	class      string
	confidence float64
	price      float64
	at         time.Time
}

// ObservationProcessor turns each closed candle into the engine's learning
// cycle: persist the bar, score the previous forecast into an experience,
// then emit a fresh forecast for the next bar.
type ObservationProcessor struct {
	mu      sync.Mutex
	windows map[string][]models.Candle
	pending map[string]*pendingForecast

	engine   *EngineUseCase
	writer   drepo.CandleWriter
	outcomes drepo.OutcomePublisher
	tf       drepo.Timeframe
	metrics  drepo.Metrics
	log      *applogger.Logger
}

// NewObservationProcessor creates the per-candle processor.
func NewObservationProcessor(
	engine *EngineUseCase,
	writer drepo.CandleWriter,
	outcomes drepo.OutcomePublisher,
	tf drepo.Timeframe,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *ObservationProcessor {
	return &ObservationProcessor{
		windows:  make(map[string][]models.Candle),
		pending:  make(map[string]*pendingForecast),
		engine:   engine,
		writer:   writer,
		outcomes: outcomes,
		tf:       tf,
		metrics:  metrics,
		log:      log,
	}
}

// Process handles one closed candle.
func (p *ObservationProcessor) Process(ctx context.Context, c *models.Candle) error {
	if c == nil {
		return fmt.Errorf("candle is nil")
	}
	start := time.Now()

	if p.writer != nil {
		if err := p.writer.StoreBatch(ctx, p.tf, []*models.Candle{c}); err != nil {
			p.metrics.RecordError("candle_store")
			return fmt.Errorf("store candle: %w", err)
		}
	}

	p.mu.Lock()
	window := appendBounded(p.windows[c.Symbol], *c, windowBars)
	p.windows[c.Symbol] = window
	prev := p.pending[c.Symbol]
	delete(p.pending, c.Symbol)
	p.mu.Unlock()

	if prev != nil {
		p.scoreForecast(ctx, c, prev)
	}
	p.emitForecast(ctx, c.Symbol, window)

	p.metrics.RecordLatency("observation_process", time.Since(start).Seconds())
	return nil
}

// scoreForecast converts the previous bar's forecast plus the realized
// close into a replay experience and publishes the outcome.
func (p *ObservationProcessor) scoreForecast(ctx context.Context, c *models.Candle, prev *pendingForecast) {
	if prev.price <= 0 {
		return
	}
	reward := (c.Close - prev.price) / prev.price

	exp := &models.Experience{
		ID:        uuid.NewString(),
		State:     prev.features,
		Action:    actionForClass(prev.class),
		Reward:    reward,
		Terminal:  false,
		Priority:  1,
		Timestamp: c.Bucket,
		Symbol:    c.Symbol,
		Meta: models.ExperienceMeta{
			Price:      c.Close,
			Volume:     c.Volume,
			Confidence: prev.confidence,
		},
	}
	p.engine.AddExperience(c.Symbol, exp)

	if p.outcomes != nil {
		if err := p.outcomes.Publish(ctx, exp); err != nil {
			p.metrics.RecordError("outcome_publish")
			p.log.Warn("outcome publish failed",
				applogger.String("symbol", c.Symbol),
				applogger.Error(err),
			)
		}
	}
}

// emitForecast runs the agent on the in-memory window and parks the result
// until the next bar realizes it.
func (p *ObservationProcessor) emitForecast(ctx context.Context, symbol string, window []models.Candle) {
	if len(window) < features.MinWindow {
		return
	}
	vec, err := features.ExtractAll(window)
	if err != nil {
		p.metrics.RecordError("feature_extract")
		return
	}
	res := p.engine.Session(symbol).Agent.PredictFeatures(symbol, vec)
	last := window[len(window)-1]

	p.mu.Lock()
	p.pending[symbol] = &pendingForecast{
		features:   vec,
		prediction: res.Prediction,
		class:      res.Class,
		confidence: res.Confidence,
		price:      last.Close,
		at:         res.Timestamp,
	}
	p.mu.Unlock()

	rec := &models.PredictionRecord{
		ID:         fmt.Sprintf("%s-%d", symbol, res.Timestamp.UnixNano()),
		Symbol:     symbol,
		CreatedAt:  res.Timestamp,
		Class:      res.Class,
		Confidence: res.Confidence,
		Price:      last.Close,
		Source:     res.Source,
	}
	if err := p.engine.preds.Store(ctx, rec); err != nil {
		p.metrics.RecordError("prediction_log")
	}
}

// Close releases the downstream publisher.
func (p *ObservationProcessor) Close() {
	if p.outcomes != nil {
		_ = p.outcomes.Close()
	}
}

func actionForClass(class string) models.Action {
	switch class {
	case "BULL":
		return models.ActionBuy
	case "BEAR":
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

func appendBounded(window []models.Candle, c models.Candle, max int) []models.Candle {
	window = append(window, c)
	if len(window) > max {
		window = window[len(window)-max:]
	}
	return window
}
