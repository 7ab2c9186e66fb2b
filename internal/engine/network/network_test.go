package network

import (
	"math"
	"testing"

	"SignalPull/internal/domain/models"
)

func testConfig(arch models.Architecture) models.NetworkConfig {
	return models.NetworkConfig{
		Architecture: arch,
		InputSize:    16,
		OutputSize:   3,
		HiddenSizes:  []int{32, 16},
	}
}

func testInput() []float64 {
	in := make([]float64, 16)
	for i := range in {
		in[i] = math.Sin(float64(i)) * 0.5
	}
	return in
}

func TestSelfTest(t *testing.T) {
	if err := SelfTest(); err != nil {
		t.Fatal(err)
	}
}

func TestBuildAllArchitectures(t *testing.T) {
	for _, arch := range []models.Architecture{
		models.ArchDense, models.ArchLSTM, models.ArchCNN,
		models.ArchAttention, models.ArchHybrid,
	} {
		p, err := Build(testConfig(arch), 1)
		if err != nil {
			t.Fatalf("%s: %v", arch, err)
		}
		if p.InputSize() != 16 {
			t.Fatalf("%s: input size %d", arch, p.InputSize())
		}
		if p.OutputSize() != 3 {
			t.Fatalf("%s: output size %d", arch, p.OutputSize())
		}
		if !p.Finite() {
			t.Fatalf("%s: non-finite initial weights", arch)
		}
		if last := p.Layers[len(p.Layers)-1]; last.Activation != ActSoftmax {
			t.Fatalf("%s: final activation %s, want softmax", arch, last.Activation)
		}
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cases := []models.NetworkConfig{
		{Architecture: "transformer", InputSize: 16},
		{Architecture: models.ArchDense, InputSize: 0},
		{Architecture: models.ArchDense, InputSize: 16, HiddenSizes: []int{-1}},
		{Architecture: models.ArchDense, InputSize: 16, OutputSize: -1},
	}
	for i, cfg := range cases {
		if _, err := Build(cfg, 1); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestBuildRegressionHead(t *testing.T) {
	p, err := Build(models.NetworkConfig{
		Architecture: models.ArchDense,
		InputSize:    16,
		OutputSize:   1,
		HiddenSizes:  []int{8},
	}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if p.OutputSize() != 1 {
		t.Fatalf("output size %d, want 1", p.OutputSize())
	}
	head := p.Layers[len(p.Layers)-1]
	if head.Activation != ActLinear {
		t.Fatalf("regression head activation %s, want linear", head.Activation)
	}
	out, err := Forward(p, testInput())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		t.Fatalf("regression output %v", out)
	}
}

func TestForwardProducesDistribution(t *testing.T) {
	for _, arch := range []models.Architecture{
		models.ArchDense, models.ArchLSTM, models.ArchCNN,
		models.ArchAttention, models.ArchHybrid,
	} {
		p, err := Build(testConfig(arch), 42)
		if err != nil {
			t.Fatal(err)
		}
		out, err := Forward(p, testInput())
		if err != nil {
			t.Fatalf("%s: %v", arch, err)
		}
		sum := 0.0
		for _, v := range out {
			if v < 0 || v > 1 {
				t.Fatalf("%s: probability out of range: %v", arch, out)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("%s: probabilities sum to %v", arch, sum)
		}
	}
}

func TestForwardDeterministic(t *testing.T) {
	p, err := Build(testConfig(models.ArchDense), 7)
	if err != nil {
		t.Fatal(err)
	}
	in := testInput()
	a, err := Forward(p, in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Forward(p, in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("output %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestBuildSeedReproducible(t *testing.T) {
	a, _ := Build(testConfig(models.ArchDense), 99)
	b, _ := Build(testConfig(models.ArchDense), 99)
	if a.Layers[0].Weights[0][0] != b.Layers[0].Weights[0][0] {
		t.Fatal("same seed produced different weights")
	}
	c, _ := Build(testConfig(models.ArchDense), 100)
	if a.Layers[0].Weights[0][0] == c.Layers[0].Weights[0][0] {
		t.Fatal("different seeds produced identical weights")
	}
}

func TestForwardRejectsBadInput(t *testing.T) {
	p, err := Build(testConfig(models.ArchDense), 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Forward(p, make([]float64, 5)); err == nil {
		t.Fatal("expected length mismatch error")
	}
	bad := testInput()
	bad[3] = math.NaN()
	if _, err := Forward(p, bad); err == nil {
		t.Fatal("expected non-finite input error")
	}
}

func TestStableSoftmaxExtremes(t *testing.T) {
	pre := []float64{1e308, -1e308, 0}
	dst := make([]float64, 3)
	StableSoftmax(pre, dst)
	sum := 0.0
	for _, v := range dst {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite softmax output: %v", dst)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("softmax sum %v", sum)
	}
	if dst[0] < 0.99 {
		t.Fatalf("expected dominant class, got %v", dst)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	p, err := Build(testConfig(models.ArchHybrid), 5)
	if err != nil {
		t.Fatal(err)
	}
	snap := p.Snapshot()
	restored, err := FromSnapshot(models.ArchHybrid, snap)
	if err != nil {
		t.Fatal(err)
	}
	in := testInput()
	a, err := Forward(p, in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Forward(restored, in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("restored network diverges at output %d", i)
		}
	}
}

func TestFromSnapshotRejectsCorruptShapes(t *testing.T) {
	p, _ := Build(testConfig(models.ArchDense), 1)
	snap := p.Snapshot()
	snap[1].Weights = snap[1].Weights[:len(snap[1].Weights)-1]
	if _, err := FromSnapshot(models.ArchDense, snap); err == nil {
		t.Fatal("expected shape mismatch error")
	}

	snap2 := p.Snapshot()
	snap2[0].Weights[0][0] = math.Inf(1)
	if _, err := FromSnapshot(models.ArchDense, snap2); err == nil {
		t.Fatal("expected non-finite weight error")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p, _ := Build(testConfig(models.ArchDense), 1)
	c := p.Clone()
	c.Layers[0].Weights[0][0] += 1
	if p.Layers[0].Weights[0][0] == c.Layers[0].Weights[0][0] {
		t.Fatal("clone shares weight storage with original")
	}
}
