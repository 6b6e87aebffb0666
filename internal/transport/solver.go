package transport

import (
	"context"
	"fmt"

	"github.com/san-kum/radsim/internal/plasma"
)

type Request struct {
	State          plasma.State
	Packets        int
	VirtualPackets int
	Threads        int
	Final          bool
}

func (r Request) Validate() error {
	if r.Packets <= 0 {
		return fmt.Errorf("%w: packets must be positive, got %d", ErrBadRequest, r.Packets)
	}
	if r.VirtualPackets < 0 {
		return fmt.Errorf("%w: virtual packets must be non-negative, got %d", ErrBadRequest, r.VirtualPackets)
	}
	if r.Threads < 1 {
		return fmt.Errorf("%w: threads must be at least 1, got %d", ErrBadRequest, r.Threads)
	}
	return r.State.Validate()
}

// Solver runs one transport iteration. Implementations may use a worker
// pool internally; Run must not return before every worker is done.
type Solver interface {
	Run(ctx context.Context, req Request) (*Estimators, error)
}

// SolverFunc adapts a function to Solver.
type SolverFunc func(ctx context.Context, req Request) (*Estimators, error)

func (f SolverFunc) Run(ctx context.Context, req Request) (*Estimators, error) {
	return f(ctx, req)
}
