package predict

import (
	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/features"
)

// Heuristic is the fallback predictor: a deterministic vote over classic
// technical indicators read straight from the extracted feature vector.
// It carries no state, so identical features always produce identical
// output.
type Heuristic struct{}

// vote weights. Oscillator extremes count more than trend confirmation.
const (
	rsiWeight       = 2.0
	macdWeight      = 1.5
	bbWeight        = 1.5
	trendWeight     = 1.0
	structureWeight = 1.0
	baseWeight      = 1.0
)

// Predict scores the three directions from indicator votes and normalizes
// to a probability simplex. Each direction starts with a base weight so no
// class ever reaches probability zero.
func (Heuristic) Predict(vec []float64) models.Prediction {
	if len(vec) < features.FeatureCount {
		return models.Prediction{Bull: 1.0 / 3, Bear: 1.0 / 3, Neutral: 1.0 / 3}
	}

	bull, bear, neutral := baseWeight, baseWeight, baseWeight

	rsi := vec[features.IdxRSI] * 100
	switch {
	case rsi < 30:
		bull += rsiWeight
	case rsi > 70:
		bear += rsiWeight
	default:
		neutral += rsiWeight / 2
	}

	switch macd := vec[features.IdxMACD]; {
	case macd > 0.05:
		bull += macdWeight
	case macd < -0.05:
		bear += macdWeight
	default:
		neutral += macdWeight / 2
	}

	switch bb := vec[features.IdxBBPosition]; {
	case bb < 0.2:
		bull += bbWeight
	case bb > 0.8:
		bear += bbWeight
	default:
		neutral += bbWeight / 2
	}

	sma20 := vec[features.IdxSMA20Ratio]
	sma50 := vec[features.IdxSMA50Ratio]
	switch {
	case sma20 > 0 && sma50 > 0:
		bull += trendWeight
	case sma20 < 0 && sma50 < 0:
		bear += trendWeight
	default:
		neutral += trendWeight / 2
	}

	switch vec[features.IdxStructure] {
	case 1:
		bull += structureWeight
	case -1:
		bear += structureWeight
	default:
		neutral += structureWeight / 2
	}

	return models.PredictionFromVector([]float64{bull, bear, neutral})
}
