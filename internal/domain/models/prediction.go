package models

import (
	"math"
	"time"
)

// Prediction is a probability simplex over the three market directions.
// Components are non-negative and sum to 1 within 1e-6.
type Prediction struct {
	Bull    float64 `json:"bull"`
	Bear    float64 `json:"bear"`
	Neutral float64 `json:"neutral"`
}

// Class returns the dominant direction label.
func (p Prediction) Class() string {
	switch {
	case p.Bull >= p.Bear && p.Bull >= p.Neutral:
		return "BULL"
	case p.Bear >= p.Bull && p.Bear >= p.Neutral:
		return "BEAR"
	default:
		return "NEUTRAL"
	}
}

// Confidence is the probability of the dominant class.
func (p Prediction) Confidence() float64 {
	return math.Max(p.Bull, math.Max(p.Bear, p.Neutral))
}

// RiskScore grows as confidence shrinks.
func (p Prediction) RiskScore() float64 {
	return 1 - p.Confidence()
}

// Direction maps the dominant class to a sign: +1 bull, -1 bear, 0 neutral.
func (p Prediction) Direction() int {
	switch p.Class() {
	case "BULL":
		return 1
	case "BEAR":
		return -1
	default:
		return 0
	}
}

// Vector returns [bull, bear, neutral] for numeric code paths.
func (p Prediction) Vector() []float64 {
	return []float64{p.Bull, p.Bear, p.Neutral}
}

// Valid reports whether the simplex property holds.
func (p Prediction) Valid() bool {
	if p.Bull < 0 || p.Bear < 0 || p.Neutral < 0 {
		return false
	}
	sum := p.Bull + p.Bear + p.Neutral
	return math.Abs(sum-1) <= 1e-6
}

// PredictionFromVector builds a Prediction from a 3-element output vector,
// renormalizing to guard against accumulated floating-point drift.
func PredictionFromVector(v []float64) Prediction {
	if len(v) < 3 {
		return Prediction{Bull: 1.0 / 3, Bear: 1.0 / 3, Neutral: 1.0 / 3}
	}
	sum := v[0] + v[1] + v[2]
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return Prediction{Bull: 1.0 / 3, Bear: 1.0 / 3, Neutral: 1.0 / 3}
	}
	return Prediction{Bull: v[0] / sum, Bear: v[1] / sum, Neutral: v[2] / sum}
}

// PredictionResult is the agent-facing prediction with provenance.
type PredictionResult struct {
	Symbol       string     `json:"symbol"`
	Timestamp    time.Time  `json:"timestamp"`
	Prediction   Prediction `json:"prediction"`
	Class        string     `json:"class"`
	Confidence   float64    `json:"confidence"`
	RiskScore    float64    `json:"risk_score"`
	Source       string     `json:"source"` // "network" or "heuristic"
	ModelVersion string     `json:"model_version"`
}

// PredictionRecord is the persisted form of an emitted prediction, later
// evaluated against realized price action.
type PredictionRecord struct {
	ID         string
	Symbol     string
	CreatedAt  time.Time
	Class      string
	Confidence float64
	Price      float64
	Source     string
}
