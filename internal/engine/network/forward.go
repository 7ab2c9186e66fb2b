package network

import (
	"math"

	"SignalPull/internal/engine/core"
)

// Trace records everything the backward pass needs from one forward pass:
// the input to each layer, each layer's pre-activation vector, and the
// final output.
type Trace struct {
	Inputs  [][]float64
	PreActs [][]float64
	Output  []float64
}

// Forward evaluates the network on a single feature vector.
func Forward(p *Parameters, input []float64) ([]float64, error) {
	tr, err := ForwardTrace(p, input)
	if err != nil {
		return nil, err
	}
	return tr.Output, nil
}

// ForwardTrace evaluates the network and keeps per-layer intermediates.
// The input vector length must match the first layer's input width, and
// all inputs must be finite.
func ForwardTrace(p *Parameters, input []float64) (*Trace, error) {
	if p == nil || len(p.Layers) == 0 {
		return nil, &core.ConfigurationError{Field: "parameters", Reason: "network not initialized"}
	}
	if len(input) != p.InputSize() {
		return nil, &core.ConfigurationError{Field: "input", Reason: "feature vector length does not match network input"}
	}
	for _, v := range input {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &core.NumericInstabilityError{Op: "forward", Detail: "non-finite feature input"}
		}
	}

	tr := &Trace{
		Inputs:  make([][]float64, len(p.Layers)),
		PreActs: make([][]float64, len(p.Layers)),
	}
	cur := append([]float64(nil), input...)
	for li := range p.Layers {
		l := &p.Layers[li]
		tr.Inputs[li] = cur

		pre := make([]float64, l.Out())
		copy(pre, l.Bias)
		for i, x := range cur {
			if x == 0 {
				continue
			}
			row := l.Weights[i]
			for j, w := range row {
				pre[j] += x * w
			}
		}
		tr.PreActs[li] = pre

		next := make([]float64, len(pre))
		Activate(l.Activation, pre, next)
		cur = next
	}

	for _, v := range cur {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &core.NumericInstabilityError{Op: "forward", Detail: "non-finite network output"}
		}
	}
	tr.Output = cur
	return tr, nil
}
