package backprop

import (
	"math"
	"testing"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/network"
)

func buildNet(t *testing.T) *network.Parameters {
	t.Helper()
	p, err := network.Build(models.NetworkConfig{
		Architecture: models.ArchDense,
		InputSize:    4,
		OutputSize:   3,
		HiddenSizes:  []int{8},
	}, 11)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCalculateLossMSE(t *testing.T) {
	// mean of squared errors: ((0.1)^2 + (0.1)^2 + 0) / 3
	loss, err := CalculateLoss(LossMSE, []float64{0.5, 0.3, 0.2}, []float64{0.4, 0.4, 0.2})
	if err != nil {
		t.Fatal(err)
	}
	want := (0.01 + 0.01) / 3
	if math.Abs(loss-want) > 1e-12 {
		t.Fatalf("mse %v, want %v", loss, want)
	}
}

func TestCalculateLossCrossEntropy(t *testing.T) {
	loss, err := CalculateLoss(LossCrossEntropy, []float64{0.7, 0.2, 0.1}, []float64{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	want := -math.Log(0.7)
	if math.Abs(loss-want) > 1e-12 {
		t.Fatalf("cross entropy %v, want %v", loss, want)
	}

	// zero predicted probability must stay bounded
	loss, err = CalculateLoss(LossCrossEntropy, []float64{0, 0.5, 0.5}, []float64{1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if math.IsInf(loss, 0) || math.IsNaN(loss) {
		t.Fatalf("unbounded loss %v", loss)
	}
}

func TestCalculateLossMismatch(t *testing.T) {
	if _, err := CalculateLoss(LossMSE, []float64{1, 2}, []float64{1}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestGradientsMatchNetworkShape(t *testing.T) {
	p := buildNet(t)
	tr, err := network.ForwardTrace(p, []float64{0.1, -0.2, 0.3, 0.4})
	if err != nil {
		t.Fatal(err)
	}
	g := CalculateGradients(p, tr, []float64{1, 0, 0}, LossCrossEntropy)
	if len(g.Weights) != len(p.Layers) {
		t.Fatalf("gradient layer count %d, want %d", len(g.Weights), len(p.Layers))
	}
	for li, l := range p.Layers {
		if len(g.Weights[li]) != l.In() || len(g.Weights[li][0]) != l.Out() {
			t.Fatalf("layer %d gradient shape mismatch", li)
		}
		if len(g.Biases[li]) != l.Out() {
			t.Fatalf("layer %d bias gradient length mismatch", li)
		}
	}
	if !g.Finite() {
		t.Fatal("non-finite gradients")
	}
}

func TestGradientDescentReducesLoss(t *testing.T) {
	p := buildNet(t)
	input := []float64{0.1, -0.2, 0.3, 0.4}
	target := []float64{1, 0, 0}

	tr, err := network.ForwardTrace(p, input)
	if err != nil {
		t.Fatal(err)
	}
	before, err := CalculateLoss(LossCrossEntropy, tr.Output, target)
	if err != nil {
		t.Fatal(err)
	}

	for step := 0; step < 50; step++ {
		tr, err = network.ForwardTrace(p, input)
		if err != nil {
			t.Fatal(err)
		}
		g := CalculateGradients(p, tr, target, LossCrossEntropy)
		Apply(p, g, 0.1)
	}

	tr, err = network.ForwardTrace(p, input)
	if err != nil {
		t.Fatal(err)
	}
	after, err := CalculateLoss(LossCrossEntropy, tr.Output, target)
	if err != nil {
		t.Fatal(err)
	}
	if after >= before {
		t.Fatalf("loss did not decrease: before=%v after=%v", before, after)
	}
	if tr.Output[0] < 0.5 {
		t.Fatalf("target class did not dominate after training: %v", tr.Output)
	}
}

func TestDegenerateInputsYieldZeroGradients(t *testing.T) {
	p := buildNet(t)
	tr, err := network.ForwardTrace(p, []float64{0.1, 0.2, 0.3, 0.4})
	if err != nil {
		t.Fatal(err)
	}

	for _, target := range [][]float64{
		{math.NaN(), 0, 0},
		{math.Inf(1), 0, 0},
		{1, 0}, // wrong length
	} {
		g := CalculateGradients(p, tr, target, LossCrossEntropy)
		for li := range g.Biases {
			for _, v := range g.Biases[li] {
				if v != 0 {
					t.Fatalf("expected zero gradients for target %v", target)
				}
			}
		}
	}
	g := CalculateGradients(p, nil, []float64{1, 0, 0}, LossCrossEntropy)
	if g == nil {
		t.Fatal("nil gradients for nil trace")
	}
}

func TestAccumulateAndScale(t *testing.T) {
	p := buildNet(t)
	tr, _ := network.ForwardTrace(p, []float64{0.1, 0.2, 0.3, 0.4})
	a := CalculateGradients(p, tr, []float64{1, 0, 0}, LossCrossEntropy)
	b := CalculateGradients(p, tr, []float64{1, 0, 0}, LossCrossEntropy)

	ref := a.Biases[0][0]
	a.Accumulate(b)
	if math.Abs(a.Biases[0][0]-2*ref) > 1e-12 {
		t.Fatalf("accumulate: got %v, want %v", a.Biases[0][0], 2*ref)
	}
	a.Scale(0.5)
	if math.Abs(a.Biases[0][0]-ref) > 1e-12 {
		t.Fatalf("scale: got %v, want %v", a.Biases[0][0], ref)
	}
}

func TestClipNorm(t *testing.T) {
	p := buildNet(t)
	tr, _ := network.ForwardTrace(p, []float64{0.9, -0.9, 0.9, -0.9})
	g := CalculateGradients(p, tr, []float64{0, 1, 0}, LossCrossEntropy)
	g.Scale(1000)
	norm := g.ClipNorm(1)
	if norm <= 1 {
		t.Fatalf("expected large pre-clip norm, got %v", norm)
	}
	if after := g.ClipNorm(0); after > 1+1e-9 {
		t.Fatalf("norm not clipped: %v", after)
	}
}
