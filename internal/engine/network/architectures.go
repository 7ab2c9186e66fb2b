package network

import (
	"math"
	"math/rand"

	"SignalPull/internal/domain/models"
)

// layerSpec is one entry in an architecture's layer plan.
type layerSpec struct {
	out int
	act ActivationKind
}

// builders maps each architecture to its layer plan. Multi-class variants
// end in a softmax head so outputs are a class distribution; a single
// output gets a linear head for regression.
var builders = map[models.Architecture]func(cfg models.NetworkConfig) []layerSpec{
	models.ArchDense:     buildDense,
	models.ArchLSTM:      buildLSTM,
	models.ArchCNN:       buildCNN,
	models.ArchAttention: buildAttention,
	models.ArchHybrid:    buildHybrid,
}

// Build constructs freshly initialized parameters for the configured
// architecture. The seed makes initialization reproducible.
func Build(cfg models.NetworkConfig, seed int64) (*Parameters, error) {
	norm, err := NormalizeConfig(cfg)
	if err != nil {
		return nil, err
	}
	plan := builders[norm.Architecture](norm)
	rng := rand.New(rand.NewSource(seed))

	p := &Parameters{Arch: norm.Architecture, Layers: make([]Layer, len(plan))}
	in := norm.InputSize
	for i, spec := range plan {
		p.Layers[i] = initLayer(rng, in, spec.out, spec.act)
		in = spec.out
	}
	return p, nil
}

// headActivation picks the output activation for a plan.
func headActivation(cfg models.NetworkConfig) ActivationKind {
	if cfg.OutputSize == 1 {
		return ActLinear
	}
	return ActSoftmax
}

// initLayer draws Xavier-uniform weights scaled by fan-in and fan-out.
func initLayer(rng *rand.Rand, in, out int, act ActivationKind) Layer {
	limit := math.Sqrt(6 / float64(in+out))
	w := make([][]float64, in)
	for i := range w {
		row := make([]float64, out)
		for j := range row {
			row[j] = (rng.Float64()*2 - 1) * limit
		}
		w[i] = row
	}
	return Layer{Weights: w, Bias: make([]float64, out), Activation: act}
}

// buildDense stacks the configured hidden widths with leaky ReLU.
func buildDense(cfg models.NetworkConfig) []layerSpec {
	plan := make([]layerSpec, 0, len(cfg.HiddenSizes)+1)
	for _, h := range cfg.HiddenSizes {
		plan = append(plan, layerSpec{out: h, act: ActLeakyReLU})
	}
	return append(plan, layerSpec{out: cfg.OutputSize, act: headActivation(cfg)})
}

// buildLSTM approximates a recurrent cell with gate-flavored layers:
// a tanh candidate transform followed by a sigmoid gate per hidden width.
func buildLSTM(cfg models.NetworkConfig) []layerSpec {
	plan := make([]layerSpec, 0, 2*len(cfg.HiddenSizes)+1)
	for _, h := range cfg.HiddenSizes {
		plan = append(plan,
			layerSpec{out: h, act: ActTanh},
			layerSpec{out: h, act: ActSigmoid},
		)
	}
	return append(plan, layerSpec{out: cfg.OutputSize, act: headActivation(cfg)})
}

// buildCNN widens the first stage to act as a filter bank, then narrows.
func buildCNN(cfg models.NetworkConfig) []layerSpec {
	first := cfg.HiddenSizes[0] * 2
	if first > maxHiddenWidth {
		first = maxHiddenWidth
	}
	plan := []layerSpec{{out: first, act: ActLeakyReLU}}
	for _, h := range cfg.HiddenSizes {
		plan = append(plan, layerSpec{out: h, act: ActLeakyReLU})
	}
	return append(plan, layerSpec{out: cfg.OutputSize, act: headActivation(cfg)})
}

// buildAttention fans out into one tanh block per head, then projects back
// through the configured hidden widths.
func buildAttention(cfg models.NetworkConfig) []layerSpec {
	headWidth := cfg.HiddenSizes[0] * cfg.AttentionHeads
	if headWidth > maxHiddenWidth {
		headWidth = maxHiddenWidth
	}
	plan := []layerSpec{{out: headWidth, act: ActTanh}}
	for _, h := range cfg.HiddenSizes {
		plan = append(plan, layerSpec{out: h, act: ActLeakyReLU})
	}
	return append(plan, layerSpec{out: cfg.OutputSize, act: headActivation(cfg)})
}

// buildHybrid alternates activations through a deeper stack.
func buildHybrid(cfg models.NetworkConfig) []layerSpec {
	acts := []ActivationKind{ActLeakyReLU, ActTanh, ActSigmoid}
	plan := make([]layerSpec, 0, len(cfg.HiddenSizes)+2)
	for i, h := range cfg.HiddenSizes {
		plan = append(plan, layerSpec{out: h, act: acts[i%len(acts)]})
	}
	last := cfg.HiddenSizes[len(cfg.HiddenSizes)-1]
	if last/2 >= cfg.OutputSize {
		plan = append(plan, layerSpec{out: last / 2, act: ActLeakyReLU})
	}
	return append(plan, layerSpec{out: cfg.OutputSize, act: headActivation(cfg)})
}
