package network

import (
	"fmt"
	"math"
)

// ActivationKind names a layer activation function.
type ActivationKind string

const (
	ActLinear    ActivationKind = "linear"
	ActLeakyReLU ActivationKind = "leaky_relu"
	ActSigmoid   ActivationKind = "sigmoid"
	ActTanh      ActivationKind = "tanh"
	ActSoftmax   ActivationKind = "softmax"
)

const (
	leakySlope = 0.01
	expClip    = 500.0
)

// IsValidActivation reports whether kind names a known activation.
func IsValidActivation(kind ActivationKind) bool {
	switch kind {
	case ActLinear, ActLeakyReLU, ActSigmoid, ActTanh, ActSoftmax:
		return true
	}
	return false
}

// Activate applies the activation element-wise (softmax over the whole
// vector) into dst. dst and pre must have the same length.
func Activate(kind ActivationKind, pre, dst []float64) {
	switch kind {
	case ActLeakyReLU:
		for i, v := range pre {
			if v >= 0 {
				dst[i] = v
			} else {
				dst[i] = leakySlope * v
			}
		}
	case ActSigmoid:
		for i, v := range pre {
			dst[i] = stableSigmoid(v)
		}
	case ActTanh:
		for i, v := range pre {
			dst[i] = math.Tanh(clip(v, -expClip, expClip))
		}
	case ActSoftmax:
		StableSoftmax(pre, dst)
	default:
		copy(dst, pre)
	}
}

// Derivative evaluates the activation derivative at pre-activation value
// pre with post-activation value post. Softmax is excluded: its Jacobian
// is handled jointly with cross-entropy in the gradient step.
func Derivative(kind ActivationKind, pre, post float64) float64 {
	switch kind {
	case ActLeakyReLU:
		if pre >= 0 {
			return 1
		}
		return leakySlope
	case ActSigmoid:
		return post * (1 - post)
	case ActTanh:
		return 1 - post*post
	default:
		return 1
	}
}

// StableSoftmax writes the softmax of pre into dst using the max-subtraction
// trick. A fully degenerate input yields the uniform distribution.
func StableSoftmax(pre, dst []float64) {
	if len(pre) == 0 {
		return
	}
	max := pre[0]
	for _, v := range pre[1:] {
		if v > max {
			max = v
		}
	}
	if math.IsNaN(max) || math.IsInf(max, 0) {
		uniform(dst)
		return
	}
	sum := 0.0
	for i, v := range pre {
		e := math.Exp(clip(v-max, -expClip, 0))
		dst[i] = e
		sum += e
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		uniform(dst)
		return
	}
	for i := range dst {
		dst[i] /= sum
	}
}

// stableSigmoid avoids overflow in exp for large magnitude inputs.
func stableSigmoid(x float64) float64 {
	if x >= 0 {
		z := math.Exp(-clip(x, 0, expClip))
		return 1 / (1 + z)
	}
	z := math.Exp(clip(x, -expClip, 0))
	return z / (1 + z)
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func uniform(dst []float64) {
	p := 1 / float64(len(dst))
	for i := range dst {
		dst[i] = p
	}
}

// SelfTest probes every activation at extreme inputs and fails if any
// produces a non-finite value. Run once at engine startup.
func SelfTest() error {
	probes := []float64{-1e9, -expClip, -1, 0, 1, expClip, 1e9}
	kinds := []ActivationKind{ActLinear, ActLeakyReLU, ActSigmoid, ActTanh, ActSoftmax}
	for _, kind := range kinds {
		pre := append([]float64(nil), probes...)
		dst := make([]float64, len(pre))
		Activate(kind, pre, dst)
		for i, v := range dst {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("activation %s produced non-finite output %v at input %v", kind, v, pre[i])
			}
			if kind != ActSoftmax {
				if d := Derivative(kind, pre[i], v); math.IsNaN(d) || math.IsInf(d, 0) {
					return fmt.Errorf("activation %s produced non-finite derivative at input %v", kind, pre[i])
				}
			}
		}
	}
	return nil
}
