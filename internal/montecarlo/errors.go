package montecarlo

import "errors"

var (
	// ErrConfig indicates a solver configuration that cannot run.
	ErrConfig = errors.New("montecarlo: invalid configuration")

	// ErrShells indicates a plasma state for a different shell structure.
	ErrShells = errors.New("montecarlo: plasma state does not match the shell structure")
)
