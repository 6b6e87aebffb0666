package convergence

import (
	"math"

	"github.com/san-kum/radsim/internal/plasma"
)

type Kind string

const (
	KindDamped   Kind = "damped"
	KindSpecific Kind = "specific"
)

// Params configures one quantity (t_rad, w or t_inner).
type Params struct {
	DampingConstant float64 `yaml:"damping_constant" json:"damping_constant"`
	Threshold       float64 `yaml:"threshold" json:"threshold"`
}

type Strategy struct {
	Kind   Kind
	TRad   Params
	W      Params
	TInner Params
}

func New(kind string, tRad, w, tInner Params) Strategy {
	return Strategy{Kind: Kind(kind), TRad: tRad, W: w, TInner: tInner}
}

func (s Strategy) check() error {
	switch s.Kind {
	case KindDamped, KindSpecific:
		return nil
	default:
		return &ConfigError{Kind: string(s.Kind)}
	}
}

// Damp moves value towards estimated by damping.
func Damp(value, estimated, damping float64) float64 {
	return value + damping*(estimated-value)
}

// DampSlice applies Damp element-wise into a new slice.
func DampSlice(values, estimated []float64, damping float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = Damp(values[i], estimated[i], damping)
	}
	return out
}

// Next returns the damped state. It fails for an unrecognized kind.
func (s Strategy) Next(current, estimated plasma.State) (plasma.State, error) {
	if err := s.check(); err != nil {
		return plasma.State{}, err
	}
	return plasma.State{
		TRad:   DampSlice(current.TRad, estimated.TRad, s.TRad.DampingConstant),
		W:      DampSlice(current.W, estimated.W, s.W.DampingConstant),
		TInner: Damp(current.TInner, estimated.TInner, s.TInner.DampingConstant),
	}, nil
}

// RelativeDeviation is |value-estimated|/estimated.
func RelativeDeviation(value, estimated float64) float64 {
	return math.Abs(value-estimated) / estimated
}

// ConvergedFraction is the share of shells whose relative deviation is
// strictly below tol.
func ConvergedFraction(values, estimated []float64, tol float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for i := range values {
		if RelativeDeviation(values[i], estimated[i]) < tol {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

// Converged returns the verdict. Damped strategies never converge. A
// non-finite estimate yields a NaN deviation, which is never within tolerance.
func (s Strategy) Converged(current, estimated plasma.State) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	if s.Kind != KindSpecific {
		return false, nil
	}

	tRadOK := ConvergedFraction(current.TRad, estimated.TRad, s.TRad.Threshold) > s.TRad.Threshold
	wOK := ConvergedFraction(current.W, estimated.W, s.W.Threshold) > s.W.Threshold
	tInnerOK := RelativeDeviation(current.TInner, estimated.TInner) < s.TInner.Threshold

	return tRadOK && wOK && tInnerOK, nil
}

// Evaluate computes the damped next state, then the verdict.
func (s Strategy) Evaluate(current, estimated plasma.State) (plasma.State, bool, error) {
	next, err := s.Next(current, estimated)
	if err != nil {
		return plasma.State{}, false, err
	}
	converged, err := s.Converged(current, estimated)
	if err != nil {
		return plasma.State{}, false, err
	}
	return next, converged, nil
}

// Deviation summarizes how far current is from estimated.
type Deviation struct {
	TRadFraction float64
	WFraction    float64
	TInner       float64
	MaxTRad      float64
	MaxW         float64
}

func (s Strategy) Deviation(current, estimated plasma.State) Deviation {
	d := Deviation{
		TRadFraction: ConvergedFraction(current.TRad, estimated.TRad, s.TRad.Threshold),
		WFraction:    ConvergedFraction(current.W, estimated.W, s.W.Threshold),
		TInner:       RelativeDeviation(current.TInner, estimated.TInner),
	}
	// NaN deviations (no estimate) are left out of the maxima
	for i := range current.TRad {
		if dev := RelativeDeviation(current.TRad[i], estimated.TRad[i]); dev > d.MaxTRad {
			d.MaxTRad = dev
		}
	}
	for i := range current.W {
		if dev := RelativeDeviation(current.W[i], estimated.W[i]); dev > d.MaxW {
			d.MaxW = dev
		}
	}
	return d
}
