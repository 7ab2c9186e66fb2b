// Package predict produces direction forecasts from candle windows. It
// prefers the trained network and degrades to a deterministic technical
// analysis heuristic whenever the network cannot serve.
package predict

import (
	"context"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
	"SignalPull/internal/engine/features"
	"SignalPull/pkg/logger"
)

// Agent is the prediction entry point. Safe for concurrent use: weights
// are read through the source's atomic snapshot and the heuristic is
// stateless.
type Agent struct {
	source    WeightSource
	heuristic Heuristic
	log       *logger.Logger
	metrics   repository.Metrics
	version   string
}

// NewAgent builds an agent over a weight source. version tags emitted
// predictions so downstream evaluation can tie outcomes to a model.
func NewAgent(source WeightSource, log *logger.Logger, metrics repository.Metrics, version string) *Agent {
	return &Agent{
		source:  source,
		log:     log,
		metrics: metrics,
		version: version,
	}
}

// PredictWindow forecasts direction from an ordered candle window.
// Feature extraction failures are fatal (there is nothing to predict
// from); network failures fall back to the heuristic.
func (a *Agent) PredictWindow(ctx context.Context, symbol string, window []models.Candle) (*models.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec, err := features.ExtractAll(window)
	if err != nil {
		return nil, err
	}
	return a.PredictFeatures(symbol, vec), nil
}

// PredictFeatures forecasts from an already extracted feature vector.
func (a *Agent) PredictFeatures(symbol string, vec []float64) *models.PredictionResult {
	source := "network"
	pred, err := networkPredict(a.source, vec)
	if err != nil {
		source = "heuristic"
		pred = a.heuristic.Predict(vec)
		a.log.Debug("network unavailable, using heuristic",
			logger.String("symbol", symbol),
			logger.Error(err),
		)
	}

	res := &models.PredictionResult{
		Symbol:       symbol,
		Timestamp:    time.Now().UTC(),
		Prediction:   pred,
		Class:        pred.Class(),
		Confidence:   pred.Confidence(),
		RiskScore:    pred.RiskScore(),
		Source:       source,
		ModelVersion: a.version,
	}
	a.metrics.RecordPrediction(symbol, res.Class, res.Source, res.Confidence)
	return res
}
