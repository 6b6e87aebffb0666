package transport

import (
	"context"

	"github.com/pkg/errors"

	"github.com/san-kum/radsim/internal/logging"
	"github.com/san-kum/radsim/internal/plasma"
)

// Invoker calls the solver once per iteration.
type Invoker struct {
	solver   Solver
	threads  int
	log      *logging.Logger
	noEscape int
	calls    int
}

func NewInvoker(solver Solver, threads int, log *logging.Logger) *Invoker {
	if threads < 1 {
		threads = 1
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Invoker{solver: solver, threads: threads, log: log.WithComponent("transport")}
}

// Run performs one solver call. Solver failures are returned with a stack
// attached and are never retried. A run in which no packet escaped is
// reported but is not an error.
func (inv *Invoker) Run(ctx context.Context, state plasma.State, packets, virtualPackets int, final bool) (*Estimators, error) {
	req := Request{
		State:          state,
		Packets:        packets,
		VirtualPackets: virtualPackets,
		Threads:        inv.threads,
		Final:          final,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv.calls++
	est, err := inv.solver.Run(ctx, req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := est.Validate(); err != nil {
		return nil, errors.Wrap(err, "solver output")
	}

	if est.NoneEscaped() {
		inv.noEscape++
		inv.log.Error("no r-packet escaped through the outer boundary",
			"packets", est.Packets(), "final", final)
	}
	return est, nil
}

// Calls is the number of solver invocations so far.
func (inv *Invoker) Calls() int { return inv.calls }

// NoEscapeCount is the number of runs in which no packet escaped.
func (inv *Invoker) NoEscapeCount() int { return inv.noEscape }

func (inv *Invoker) Threads() int { return inv.threads }
