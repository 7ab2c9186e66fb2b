// Package network holds the trainable model: layered weight matrices built
// per architecture, a numerically stable forward pass, and snapshot
// conversion for persistence. All architectures reduce to stacks of dense
// layers with architecture-specific shapes and activations, so one forward
// pass and one gradient rule cover every variant.
package network

import (
	"SignalPull/internal/domain/models"
	"SignalPull/internal/engine/core"
)

const (
	defaultOutputSize     = 3
	defaultSequenceLength = 10
	defaultAttentionHeads = 4

	maxHiddenWidth = 4096
	maxHiddenDepth = 8
)

var defaultHiddenSizes = []int{64, 32}

// NormalizeConfig fills defaults and validates a network configuration.
// The returned config is a deep copy; the input is not mutated.
func NormalizeConfig(cfg models.NetworkConfig) (models.NetworkConfig, error) {
	out := cfg
	out.HiddenSizes = append([]int(nil), cfg.HiddenSizes...)

	if out.Architecture == "" {
		out.Architecture = models.ArchDense
	}
	if !models.IsValidArchitecture(out.Architecture) {
		return out, &core.ConfigurationError{Field: "architecture", Reason: "unknown architecture " + string(out.Architecture)}
	}
	if out.InputSize <= 0 {
		return out, &core.ConfigurationError{Field: "input_size", Reason: "must be positive"}
	}
	if out.OutputSize == 0 {
		out.OutputSize = defaultOutputSize
	}
	if out.OutputSize < 1 {
		return out, &core.ConfigurationError{Field: "output_size", Reason: "must be positive"}
	}
	if len(out.HiddenSizes) == 0 {
		out.HiddenSizes = append([]int(nil), defaultHiddenSizes...)
	}
	if len(out.HiddenSizes) > maxHiddenDepth {
		return out, &core.ConfigurationError{Field: "hidden_sizes", Reason: "too many hidden layers"}
	}
	for _, h := range out.HiddenSizes {
		if h <= 0 || h > maxHiddenWidth {
			return out, &core.ConfigurationError{Field: "hidden_sizes", Reason: "layer widths must be in (0, 4096]"}
		}
	}
	if out.SequenceLength == 0 {
		out.SequenceLength = defaultSequenceLength
	}
	if out.SequenceLength < 0 {
		return out, &core.ConfigurationError{Field: "sequence_length", Reason: "must be positive"}
	}
	if out.AttentionHeads == 0 {
		out.AttentionHeads = defaultAttentionHeads
	}
	if out.AttentionHeads < 0 || out.AttentionHeads > 16 {
		return out, &core.ConfigurationError{Field: "attention_heads", Reason: "must be in [1, 16]"}
	}
	return out, nil
}
