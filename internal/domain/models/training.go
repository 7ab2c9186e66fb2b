package models

import "time"

// Architecture identifies a network layer graph kind.
type Architecture string

const (
	ArchDense     Architecture = "dense"
	ArchLSTM      Architecture = "lstm"
	ArchCNN       Architecture = "cnn"
	ArchAttention Architecture = "attention"
	ArchHybrid    Architecture = "hybrid"
)

// IsValidArchitecture returns true if a is a supported architecture kind.
func IsValidArchitecture(a Architecture) bool {
	switch a {
	case ArchDense, ArchLSTM, ArchCNN, ArchAttention, ArchHybrid:
		return true
	default:
		return false
	}
}

// ParseArchitecture converts a raw string to an Architecture (or dense).
func ParseArchitecture(s string) Architecture {
	a := Architecture(s)
	if IsValidArchitecture(a) {
		return a
	}
	return ArchDense
}

// NetworkConfig describes the network built for one training session.
// Immutable for the lifetime of the session.
type NetworkConfig struct {
	Architecture   Architecture `json:"architecture"`
	InputSize      int          `json:"input_size"`
	OutputSize     int          `json:"output_size"` // 3 = bull/bear/neutral, 1 = regression
	HiddenSizes    []int        `json:"hidden_sizes,omitempty"`
	SequenceLength int          `json:"sequence_length,omitempty"`
	AttentionHeads int          `json:"attention_heads,omitempty"`
}

// TrainingState is the training engine lifecycle state.
type TrainingState int

const (
	StateUninitialized TrainingState = iota
	StateInitialized
	StateTraining
	StateIdle
	StateFailed
)

func (s TrainingState) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateTraining:
		return "TRAINING"
	case StateIdle:
		return "IDLE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNINITIALIZED"
	}
}

// StepMetrics reports one optimizer step.
type StepMetrics struct {
	Step                   int           `json:"step"`
	Loss                   float64       `json:"loss"`
	DirectionalAccuracy    float64       `json:"directional_accuracy"`
	ClassificationAccuracy float64       `json:"classification_accuracy"`
	BatchSize              int           `json:"batch_size"`
	LearningRate           float64       `json:"learning_rate"`
	Duration               time.Duration `json:"duration"`
}

// TrainingSummary aggregates a training session for persistence and reporting.
type TrainingSummary struct {
	Steps                  int       `json:"steps"`
	LastLoss               float64   `json:"last_loss"`
	DirectionalAccuracy    float64   `json:"directional_accuracy"`
	ClassificationAccuracy float64   `json:"classification_accuracy"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// LayerSnapshot is the serializable form of one network layer.
type LayerSnapshot struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// ModelSnapshot is the persisted form of a trained model, keyed by ModelID.
type ModelSnapshot struct {
	ModelID string          `json:"model_id"`
	Symbol  string          `json:"symbol"`
	Version string          `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Config  NetworkConfig   `json:"config"`
	Layers  []LayerSnapshot `json:"layers"`
	Metrics TrainingSummary `json:"metrics"`
}
