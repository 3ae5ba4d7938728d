package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidConfig indicates parameters that fail validation. Detected
	// before any trajectory starts.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrSchedulerStall indicates the jump scheduler could not advance time.
	ErrSchedulerStall = errors.New("dynamo: jump scheduler stalled")

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrCanceled indicates the trajectory was interrupted by its context.
	ErrCanceled = errors.New("dynamo: simulation canceled by context")
)

// ConfigError names the offending parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// StallError reports where the scheduler stopped making progress. It is
// recoverable: the trajectory may be retried with a different seed.
type StallError struct {
	Time       float64
	Iterations int
}

func (e *StallError) Error() string {
	return fmt.Sprintf("%v at t=%.6f after %d iterations", ErrSchedulerStall, e.Time, e.Iterations)
}

func (e *StallError) Unwrap() error {
	return ErrSchedulerStall
}

// SimulationError wraps a runtime failure with trajectory context.
type SimulationError struct {
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("t=%.6f: %v", e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
