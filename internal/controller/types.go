package controller

import (
	"fmt"
	"time"

	"github.com/san-kum/radsim/internal/budget"
	"github.com/san-kum/radsim/internal/convergence"
	"github.com/san-kum/radsim/internal/plasma"
	"github.com/san-kum/radsim/internal/snapshot"
	"github.com/san-kum/radsim/internal/transport"
)

// TInnerUpdateExponent scales the inner temperature by the luminosity ratio.
const TInnerUpdateExponent = -0.5

// Model is the physical model the controller refines.
type Model interface {
	PlasmaState() plasma.State
	SetPlasmaState(s plasma.State)
	RecomputeDerivedState(applyInnerUpdate bool) error
	RecordFinal(f Final)
	Snapshot(scope snapshot.Scope) snapshot.Snapshot
}

type Config struct {
	Iterations       int
	HoldIterations   int
	LockTInnerCycles int

	Packets        int
	LastPackets    int
	VirtualPackets int

	LuminosityRequested float64
	Band                transport.Band

	SpectrumEdges []float64
	Distance      float64

	LogSampling int

	PersistMode     string
	PersistLastOnly bool
}

func DefaultConfig() Config {
	return Config{
		Iterations:       20,
		HoldIterations:   3,
		LockTInnerCycles: 1,
		Packets:          40000,
		LogSampling:      5,
		PersistMode:      string(snapshot.ScopeFull),
		PersistLastOnly:  true,
	}
}

func (c Config) validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidConfig, c.Iterations)
	}
	if c.HoldIterations < 0 {
		return fmt.Errorf("%w: hold iterations must be non-negative, got %d", ErrInvalidConfig, c.HoldIterations)
	}
	if c.Packets <= 0 {
		return fmt.Errorf("%w: packets must be positive, got %d", ErrInvalidConfig, c.Packets)
	}
	if c.LastPackets < 0 || c.VirtualPackets < 0 {
		return fmt.Errorf("%w: packet counts must be non-negative", ErrInvalidConfig)
	}
	if c.LuminosityRequested <= 0 {
		return fmt.Errorf("%w: requested luminosity must be positive, got %g", ErrInvalidConfig, c.LuminosityRequested)
	}
	return nil
}

// FinalPackets is the packet count of the terminal run.
func (c Config) FinalPackets() int {
	if c.LastPackets > 0 {
		return c.LastPackets
	}
	return c.Packets
}

// IterationReport describes one completed loop iteration.
type IterationReport struct {
	Iteration     int
	Remaining     int
	Mode          budget.Mode
	Transition    budget.Transition
	Converged     bool
	TInnerUpdated bool
	NoEscape      bool

	EmittedLuminosity    float64
	ReabsorbedLuminosity float64
	RequestedLuminosity  float64

	Current   plasma.State
	Estimated plasma.State
	Next      plasma.State
	Deviation convergence.Deviation
}

// Final is recorded on the model after the terminal run.
type Final struct {
	Estimators             *transport.Estimators
	Spectra                *transport.Spectra
	Packets                int
	VirtualPackets         int
	Converged              bool
	IterationsExecuted     int
	IterationsMaxRequested int
}

type Summary struct {
	RunID                  string
	IterationsExecuted     int
	IterationsMaxRequested int
	Converged              bool
	Packets                int
	VirtualPackets         int
	NoEscapeRuns           int
	FinalState             plasma.State
	Spectra                *transport.Spectra
	Metrics                map[string]float64
	Elapsed                time.Duration
}

// Observer is notified after every loop iteration.
type Observer interface {
	OnIteration(r IterationReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r IterationReport)

func (f ObserverFunc) OnIteration(r IterationReport) { f(r) }

// Metric accumulates a scalar over the iterations of a run.
type Metric interface {
	Name() string
	Observe(r IterationReport)
	Value() float64
	Reset()
}
