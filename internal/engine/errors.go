package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors for typed error checking.
var (
	ErrPluginNotFound    = errors.New("plugin not found")
	ErrPluginUnavailable = errors.New("plugin not executable")
	ErrInvalidMode       = errors.New("invalid execution mode")
	ErrTimeout           = errors.New("execution timed out")
	ErrCancelled         = errors.New("execution cancelled")
	ErrPoolExhausted     = errors.New("worker pool exhausted")
)

// ExecutionError wraps errors with execution context.
type ExecutionError struct {
	RequestID string
	Op        string // The operation that failed
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("execution %s: %s: %s", e.RequestID, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCancelled returns true if the error is a cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
