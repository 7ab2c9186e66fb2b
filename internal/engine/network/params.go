package network

import (
	"math"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/core"
)

// Layer is one dense layer: Weights[in][out], per-output Bias, and the
// activation applied to the affine result.
type Layer struct {
	Weights    [][]float64
	Bias       []float64
	Activation ActivationKind
}

// In reports the layer's input width.
func (l *Layer) In() int { return len(l.Weights) }

// Out reports the layer's output width.
func (l *Layer) Out() int { return len(l.Bias) }

// Parameters is the complete weight set for one model. Instances are
// treated as immutable once published; training produces a new copy and
// swaps it in atomically.
type Parameters struct {
	Arch   models.Architecture
	Layers []Layer
}

// InputSize reports the expected feature vector length.
func (p *Parameters) InputSize() int {
	if len(p.Layers) == 0 {
		return 0
	}
	return p.Layers[0].In()
}

// OutputSize reports the class count.
func (p *Parameters) OutputSize() int {
	if len(p.Layers) == 0 {
		return 0
	}
	return p.Layers[len(p.Layers)-1].Out()
}

// Clone deep-copies the parameters.
func (p *Parameters) Clone() *Parameters {
	out := &Parameters{Arch: p.Arch, Layers: make([]Layer, len(p.Layers))}
	for i, l := range p.Layers {
		w := make([][]float64, len(l.Weights))
		for j, row := range l.Weights {
			w[j] = append([]float64(nil), row...)
		}
		out.Layers[i] = Layer{
			Weights:    w,
			Bias:       append([]float64(nil), l.Bias...),
			Activation: l.Activation,
		}
	}
	return out
}

// Finite reports whether every weight and bias is a finite number.
func (p *Parameters) Finite() bool {
	for _, l := range p.Layers {
		for _, row := range l.Weights {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
		}
		for _, v := range l.Bias {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Snapshot converts the parameters to the persistence representation.
func (p *Parameters) Snapshot() []models.LayerSnapshot {
	out := make([]models.LayerSnapshot, len(p.Layers))
	for i, l := range p.Layers {
		w := make([][]float64, len(l.Weights))
		for j, row := range l.Weights {
			w[j] = append([]float64(nil), row...)
		}
		out[i] = models.LayerSnapshot{
			Weights:    w,
			Bias:       append([]float64(nil), l.Bias...),
			Activation: string(l.Activation),
		}
	}
	return out
}

// FromSnapshot rebuilds parameters from a persisted snapshot, validating
// shape consistency between adjacent layers.
func FromSnapshot(arch models.Architecture, layers []models.LayerSnapshot) (*Parameters, error) {
	if !models.IsValidArchitecture(arch) {
		return nil, &core.ConfigurationError{Field: "architecture", Reason: "unknown architecture " + string(arch)}
	}
	if len(layers) == 0 {
		return nil, &core.ConfigurationError{Field: "layers", Reason: "snapshot has no layers"}
	}
	p := &Parameters{Arch: arch, Layers: make([]Layer, len(layers))}
	prevOut := -1
	for i, ls := range layers {
		kind := ActivationKind(ls.Activation)
		if !IsValidActivation(kind) {
			return nil, &core.ConfigurationError{Field: "layers", Reason: "unknown activation " + ls.Activation}
		}
		if len(ls.Weights) == 0 || len(ls.Bias) == 0 {
			return nil, &core.ConfigurationError{Field: "layers", Reason: "empty layer in snapshot"}
		}
		width := len(ls.Bias)
		w := make([][]float64, len(ls.Weights))
		for j, row := range ls.Weights {
			if len(row) != width {
				return nil, &core.ConfigurationError{Field: "layers", Reason: "ragged weight matrix in snapshot"}
			}
			w[j] = append([]float64(nil), row...)
		}
		if prevOut >= 0 && len(ls.Weights) != prevOut {
			return nil, &core.ConfigurationError{Field: "layers", Reason: "layer input width does not match previous output"}
		}
		prevOut = width
		p.Layers[i] = Layer{Weights: w, Bias: append([]float64(nil), ls.Bias...), Activation: kind}
	}
	if !p.Finite() {
		return nil, &core.NumericInstabilityError{Op: "load_snapshot", Detail: "snapshot contains non-finite weights"}
	}
	return p, nil
}
