package backprop

import (
	"math"

	"SignalPull/internal/engine/network"
)

// Gradients mirrors the network's layer shapes: Weights[layer][in][out]
// and Biases[layer][out].
type Gradients struct {
	Weights [][][]float64
	Biases  [][]float64
}

// ZeroGradients allocates a zero-valued gradient set shaped like p.
func ZeroGradients(p *network.Parameters) *Gradients {
	g := &Gradients{
		Weights: make([][][]float64, len(p.Layers)),
		Biases:  make([][]float64, len(p.Layers)),
	}
	for li, l := range p.Layers {
		w := make([][]float64, l.In())
		for i := range w {
			w[i] = make([]float64, l.Out())
		}
		g.Weights[li] = w
		g.Biases[li] = make([]float64, l.Out())
	}
	return g
}

// CalculateGradients runs the backward pass over one recorded forward
// trace. Degenerate inputs, a non-finite target or a trace whose shapes do
// not match the network, yield zero gradients rather than an error so a
// single bad sample cannot poison a batch.
func CalculateGradients(p *network.Parameters, tr *network.Trace, target []float64, loss LossKind) *Gradients {
	g := ZeroGradients(p)
	if tr == nil || len(tr.Output) != p.OutputSize() || len(target) != p.OutputSize() {
		return g
	}
	for _, v := range target {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return g
		}
	}

	nl := len(p.Layers)
	delta := outputDelta(&p.Layers[nl-1], tr, target, loss)

	for li := nl - 1; li >= 0; li-- {
		l := &p.Layers[li]
		in := tr.Inputs[li]
		if len(in) != l.In() || len(delta) != l.Out() {
			return ZeroGradients(p)
		}
		for i, x := range in {
			if x == 0 {
				continue
			}
			row := g.Weights[li][i]
			for j, d := range delta {
				row[j] += x * d
			}
		}
		for j, d := range delta {
			g.Biases[li][j] += d
		}

		if li == 0 {
			break
		}
		prev := &p.Layers[li-1]
		next := make([]float64, l.In())
		for i := range next {
			sum := 0.0
			row := l.Weights[i]
			for j, d := range delta {
				sum += row[j] * d
			}
			next[i] = sum * network.Derivative(prev.Activation, tr.PreActs[li-1][i], in[i])
		}
		delta = next
	}

	if !g.Finite() {
		return ZeroGradients(p)
	}
	return g
}

// outputDelta computes dLoss/dPreActivation for the final layer.
// Softmax with cross-entropy collapses to probs minus one-hot target; other
// combinations use the elementwise chain rule.
func outputDelta(last *network.Layer, tr *network.Trace, target []float64, loss LossKind) []float64 {
	out := tr.Output
	n := len(out)
	delta := make([]float64, n)

	if last.Activation == network.ActSoftmax && loss == LossCrossEntropy {
		for i := range delta {
			delta[i] = out[i] - target[i]
		}
		return delta
	}

	scale := 1.0
	if loss == LossMSE {
		scale = 2 / float64(n)
	}
	pre := tr.PreActs[len(tr.PreActs)-1]
	for i := range delta {
		dOut := scale * (out[i] - target[i])
		if last.Activation == network.ActSoftmax {
			// diagonal softmax Jacobian approximation
			delta[i] = dOut * out[i] * (1 - out[i])
			continue
		}
		delta[i] = dOut * network.Derivative(last.Activation, pre[i], out[i])
	}
	return delta
}

// Accumulate adds other into g in place. Shapes must match.
func (g *Gradients) Accumulate(other *Gradients) {
	for li := range g.Weights {
		for i := range g.Weights[li] {
			row := g.Weights[li][i]
			src := other.Weights[li][i]
			for j := range row {
				row[j] += src[j]
			}
		}
		for j := range g.Biases[li] {
			g.Biases[li][j] += other.Biases[li][j]
		}
	}
}

// Scale multiplies every gradient component by f in place.
func (g *Gradients) Scale(f float64) {
	for li := range g.Weights {
		for i := range g.Weights[li] {
			row := g.Weights[li][i]
			for j := range row {
				row[j] *= f
			}
		}
		for j := range g.Biases[li] {
			g.Biases[li][j] *= f
		}
	}
}

// ClipNorm rescales the gradients so their global L2 norm does not exceed
// maxNorm. Returns the pre-clip norm.
func (g *Gradients) ClipNorm(maxNorm float64) float64 {
	sum := 0.0
	for li := range g.Weights {
		for _, row := range g.Weights[li] {
			for _, v := range row {
				sum += v * v
			}
		}
		for _, v := range g.Biases[li] {
			sum += v * v
		}
	}
	norm := math.Sqrt(sum)
	if maxNorm > 0 && norm > maxNorm {
		g.Scale(maxNorm / norm)
	}
	return norm
}

// Finite reports whether every gradient component is a finite number.
func (g *Gradients) Finite() bool {
	for li := range g.Weights {
		for _, row := range g.Weights[li] {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
		}
		for _, v := range g.Biases[li] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Apply subtracts lr-scaled gradients from the parameters in place.
func Apply(p *network.Parameters, g *Gradients, lr float64) {
	for li := range p.Layers {
		l := &p.Layers[li]
		for i := range l.Weights {
			row := l.Weights[i]
			gRow := g.Weights[li][i]
			for j := range row {
				row[j] -= lr * gRow[j]
			}
		}
		for j := range l.Bias {
			l.Bias[j] -= lr * g.Biases[li][j]
		}
	}
}
