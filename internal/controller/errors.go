package controller

import "errors"

var (
	// ErrInvalidConfig indicates controller settings that cannot run.
	ErrInvalidConfig = errors.New("controller: invalid configuration")

	// ErrCanceled indicates the context ended between two iterations.
	ErrCanceled = errors.New("controller: run canceled")

	// ErrShellMismatch indicates estimators for a different number of shells.
	ErrShellMismatch = errors.New("controller: estimators do not match the model's shells")
)

// IterationError attaches the iteration to a failure without changing its
// message.
type IterationError struct {
	Iteration int
	Phase     string
	Wrapped   error
}

func (e *IterationError) Error() string {
	return e.Wrapped.Error()
}

func (e *IterationError) Unwrap() error {
	return e.Wrapped
}
