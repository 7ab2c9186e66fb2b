// Package core holds the engine-wide error taxonomy. Components return these
// typed errors so callers can distinguish recoverable data gaps from fatal
// model corruption with errors.As.
package core

import "fmt"

// InsufficientDataError means there is not enough history or replay data for
// the requested operation. Recoverable: retry later or widen the request.
type InsufficientDataError struct {
	Op   string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d, got %d", e.Op, e.Need, e.Got)
}

// NumericInstabilityError means a non-finite loss, gradient or weight was
// detected. Fatal for the current training session; the caller must
// re-initialize the network before training again.
type NumericInstabilityError struct {
	Op     string
	Detail string
}

func (e *NumericInstabilityError) Error() string {
	return fmt.Sprintf("%s: numeric instability: %s", e.Op, e.Detail)
}

// ConfigurationError means an invalid architecture or hyperparameter was
// rejected. Raised at initialization time, never silently coerced.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// PredictionUnavailableError means neither the trained network nor the
// heuristic fallback could produce a prediction. Recoverable: callers fall
// back to a neutral prediction.
type PredictionUnavailableError struct {
	Reason string
	Err    error
}

func (e *PredictionUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("prediction unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("prediction unavailable: %s", e.Reason)
}

func (e *PredictionUnavailableError) Unwrap() error { return e.Err }
