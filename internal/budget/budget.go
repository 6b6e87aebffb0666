// Package budget tracks how many transport iterations a run still owes and
// whether it is holding after convergence.
//
// The hold window is armed when the run enters convergence. Further
// converged iterations do not re-arm it, so a run that stays converged ends
// HoldIterations iterations after it first converged.
package budget

import "fmt"

type Mode int

const (
	ModeNormal Mode = iota
	ModeHold
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeHold:
		return "converged-hold"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Transition is the effect of one Observe call.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionEnteredHold
	TransitionResumed
)

func (t Transition) String() string {
	switch t {
	case TransitionNone:
		return "none"
	case TransitionEnteredHold:
		return "entered-hold"
	case TransitionResumed:
		return "resumed"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

type Budget struct {
	Remaining        int
	Executed         int
	MaxRequested     int
	HoldIterations   int
	LockTInnerCycles int
	converged        bool
}

func New(iterations, holdIterations, lockTInnerCycles int) *Budget {
	return &Budget{
		Remaining:        iterations,
		MaxRequested:     iterations,
		HoldIterations:   holdIterations,
		LockTInnerCycles: lockTInnerCycles,
	}
}

// Continue reports whether another loop iteration is due. The terminal run
// is not counted here.
func (b *Budget) Continue() bool {
	return b.Remaining > 1
}

// Advance books one executed iteration.
func (b *Budget) Advance() {
	b.Remaining--
	b.Executed++
}

// Observe applies the verdict of the iteration just executed.
//
// Entering convergence arms the hold window; diverging while holding gives
// back whatever is left of the requested iterations. A verdict equal to the
// sticky state changes nothing, so the hold window counts down from the
// latest entry into convergence.
func (b *Budget) Observe(converged bool) Transition {
	switch {
	case converged && !b.converged:
		b.converged = true
		b.Remaining = b.HoldIterations
		return TransitionEnteredHold
	case !converged && b.converged:
		b.converged = false
		b.Remaining = b.MaxRequested - b.Executed
		return TransitionResumed
	default:
		return TransitionNone
	}
}

func (b *Budget) Converged() bool { return b.converged }

func (b *Budget) Mode() Mode {
	if b.converged {
		return ModeHold
	}
	return ModeNormal
}

// TInnerUpdate reports whether the inner boundary temperature is released in
// the iteration just advanced. The first iteration of every
// LockTInnerCycles-long cycle is released.
func (b *Budget) TInnerUpdate() bool {
	if b.LockTInnerCycles <= 1 || b.Executed < 1 {
		return true
	}
	return (b.Executed-1)%b.LockTInnerCycles == 0
}

func (b *Budget) String() string {
	return fmt.Sprintf("remaining=%d executed=%d max=%d mode=%s",
		b.Remaining, b.Executed, b.MaxRequested, b.Mode())
}
