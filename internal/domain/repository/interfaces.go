package repository

import (
	"context"
	"errors"

	"SignalPull/internal/domain/models"
)

// ErrModelNotFound is returned by ModelStore.Load when no snapshot exists
// for the requested model ID.
var ErrModelNotFound = errors.New("model snapshot not found")

// MarketStream delivers live candles from an exchange WebSocket feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// CandleWriter persists live candles as the ingestion path observes them.
type CandleWriter interface {
	StoreBatch(ctx context.Context, tf Timeframe, candles []*models.Candle) error
}

// ModelStore persists trained model snapshots, keyed by model identifier.
// The engine does not define the storage format beyond the snapshot shape.
type ModelStore interface {
	Save(ctx context.Context, snap *models.ModelSnapshot) error
	Load(ctx context.Context, modelID string) (*models.ModelSnapshot, error)
	Close() error
}

// OutcomePublisher fans out evaluated prediction outcomes so other engine
// instances (and offline analysis) can replay them as experiences.
type OutcomePublisher interface {
	Publish(ctx context.Context, exp *models.Experience) error
	Close() error
}

// PredictionLog records emitted predictions for later accuracy accounting.
type PredictionLog interface {
	Store(ctx context.Context, rec *models.PredictionRecord) error
	Close() error
}

// Metrics is the telemetry sink the engine reports through. Implementations
// decide transport; the engine never formats metrics itself.
type Metrics interface {
	RecordTrainingStep(symbol string, loss, directionalAccuracy float64)
	RecordPrediction(symbol, class, source string, confidence float64)
	RecordSchedulerCycle(outcome string)
	RecordBacktest(symbol string, sharpe, winRate float64)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
