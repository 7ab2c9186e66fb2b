package predict

import (
	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/core"
	"SignalPull/internal/engine/network"
)

// WeightSource exposes the published training state the agent reads from.
// *training.Engine satisfies it.
type WeightSource interface {
	Parameters() *network.Parameters
	State() models.TrainingState
	Summary() models.TrainingSummary
}

// Trust stages damp over-confident output from barely trained models by
// blending toward the uniform distribution.
const (
	coldStartSteps = 50
	warmingSteps   = 200

	coldStartBlend = 0.7
	warmingBlend   = 0.3
)

// networkPredict runs the published network over a feature vector and
// applies trust-stage dampening scaled by how many optimizer steps the
// model has seen.
func networkPredict(src WeightSource, vec []float64) (models.Prediction, error) {
	p := src.Parameters()
	if p == nil {
		return models.Prediction{}, &core.PredictionUnavailableError{Reason: "no published weights"}
	}
	switch src.State() {
	case models.StateUninitialized, models.StateFailed:
		return models.Prediction{}, &core.PredictionUnavailableError{Reason: "training engine state " + src.State().String()}
	}

	out, err := network.Forward(p, vec)
	if err != nil {
		return models.Prediction{}, &core.PredictionUnavailableError{Reason: "forward pass failed", Err: err}
	}
	pred := models.PredictionFromVector(out)
	return dampen(pred, src.Summary().Steps), nil
}

// dampen blends the prediction toward uniform while the model is young.
func dampen(p models.Prediction, steps int) models.Prediction {
	var blend float64
	switch {
	case steps < coldStartSteps:
		blend = coldStartBlend
	case steps < warmingSteps:
		blend = warmingBlend
	default:
		return p
	}
	u := 1.0 / 3
	return models.Prediction{
		Bull:    p.Bull*(1-blend) + u*blend,
		Bear:    p.Bear*(1-blend) + u*blend,
		Neutral: p.Neutral*(1-blend) + u*blend,
	}
}
