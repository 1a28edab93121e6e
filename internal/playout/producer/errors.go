package producer

import (
	"errors"
	"fmt"
)

// Sentinel errors recognized by the core (spec.md §7).
var (
	// ErrInvalidArgument indicates a construction-time precondition
	// violation (absent dest, duration below one frame).
	// Fatal to the constructor.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotInitialized indicates RenderFrame was called before Initialize.
	ErrNotInitialized = errors.New("producer not initialized")
)

// FailureError wraps a runtime RenderFrame failure with the offending
// producer's name, so the Stage's failure barrier can log which producer
// was detached.
type FailureError struct {
	Producer string
	Err      error
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	return fmt.Sprintf("producer %q render failure: %v", e.Producer, e.Err)
}

// Unwrap returns the underlying error.
func (e *FailureError) Unwrap() error {
	return e.Err
}

// NewFailureError wraps err with the producer name that raised it.
func NewFailureError(producerName string, err error) *FailureError {
	return &FailureError{Producer: producerName, Err: err}
}
