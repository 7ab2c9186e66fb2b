// Package backprop implements loss functions and reverse-mode gradients
// for the layered network. One chain-rule pass covers every architecture
// because all of them evaluate as dense layer stacks.
package backprop

import (
	"math"

	"SignalPull/internal/engine/core"
)

// LossKind names a training objective.
type LossKind string

const (
	LossMSE          LossKind = "mse"
	LossCrossEntropy LossKind = "cross_entropy"
)

// probability floor keeps log() bounded for cross-entropy.
const probFloor = 1e-12

// CalculateLoss evaluates the objective for one prediction/target pair.
func CalculateLoss(kind LossKind, predicted, target []float64) (float64, error) {
	if len(predicted) == 0 || len(predicted) != len(target) {
		return 0, &core.ConfigurationError{Field: "target", Reason: "prediction and target lengths differ"}
	}
	switch kind {
	case LossMSE:
		sum := 0.0
		for i, p := range predicted {
			d := p - target[i]
			sum += d * d
		}
		return sum / float64(len(predicted)), nil
	case LossCrossEntropy:
		sum := 0.0
		for i, p := range predicted {
			if target[i] == 0 {
				continue
			}
			if p < probFloor {
				p = probFloor
			}
			sum -= target[i] * math.Log(p)
		}
		return sum, nil
	default:
		return 0, &core.ConfigurationError{Field: "loss", Reason: "unknown loss kind " + string(kind)}
	}
}
