package training

import (
	"math"

	"SignalPull/internal/domain/models"
)

// Output vector class indices, matching models.Prediction.Vector() order.
const (
	ClassBull    = 0
	ClassBear    = 1
	ClassNeutral = 2
)

// NeutralBand is the reward magnitude below which an outcome is treated as
// directionless.
const NeutralBand = 0.001

// TargetFor maps an observed experience to a one-hot training target.
// A profitable BUY confirms bull, a profitable SELL confirms bear, and a
// losing trade confirms the opposite direction. HOLD actions and rewards
// inside the neutral band label the sample neutral.
func TargetFor(exp *models.Experience) []float64 {
	t := make([]float64, 3)
	if exp == nil || math.IsNaN(exp.Reward) || math.IsInf(exp.Reward, 0) {
		t[ClassNeutral] = 1
		return t
	}
	if exp.Action == models.ActionHold || math.Abs(exp.Reward) < NeutralBand {
		t[ClassNeutral] = 1
		return t
	}
	up := exp.Reward > 0
	if exp.Action == models.ActionSell {
		up = !up
	}
	if up {
		t[ClassBull] = 1
	} else {
		t[ClassBear] = 1
	}
	return t
}

// targetClass returns the index of the one-hot target.
func targetClass(t []float64) int {
	best := 0
	for i, v := range t {
		if v > t[best] {
			best = i
		}
	}
	return best
}

// direction maps a class index to a sign: bull +1, bear -1, neutral 0.
func direction(class int) int {
	switch class {
	case ClassBull:
		return 1
	case ClassBear:
		return -1
	default:
		return 0
	}
}
