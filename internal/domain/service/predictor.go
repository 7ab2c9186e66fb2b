package service

import (
	"context"

	"SignalPull/internal/domain/models"
)

// WindowPredictor emits a directional prediction for an ordered OHLCV window.
// Both the trained network agent and the rule-based heuristic satisfy it.
type WindowPredictor interface {
	PredictWindow(ctx context.Context, symbol string, window []models.Candle) (*models.PredictionResult, error)
}

// Trainer is the subset of the training engine the scheduler drives.
type Trainer interface {
	TrainEpoch(ctx context.Context) ([]models.StepMetrics, error)
	State() models.TrainingState
}
