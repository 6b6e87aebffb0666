package metrics

import (
	"math"

	"github.com/san-kum/radsim/internal/controller"
)

// LuminosityMismatch is |L_emitted/L_requested - 1| of the latest iteration.
type LuminosityMismatch struct {
	name     string
	mismatch float64
	samples  int
}

func NewLuminosityMismatch() *LuminosityMismatch {
	return &LuminosityMismatch{name: "luminosity_mismatch"}
}

func (l *LuminosityMismatch) Name() string { return l.name }

func (l *LuminosityMismatch) Observe(r controller.IterationReport) {
	if r.RequestedLuminosity <= 0 {
		return
	}
	l.mismatch = math.Abs(r.EmittedLuminosity/r.RequestedLuminosity - 1)
	l.samples++
}

func (l *LuminosityMismatch) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return l.mismatch
}

func (l *LuminosityMismatch) Reset() {
	l.mismatch = 0
	l.samples = 0
}

// TInnerDrift is the relative change of the inner temperature between the
// first and the latest iteration.
type TInnerDrift struct {
	name    string
	initial float64
	current float64
	samples int
}

func NewTInnerDrift() *TInnerDrift {
	return &TInnerDrift{name: "t_inner_drift"}
}

func (d *TInnerDrift) Name() string { return d.name }

func (d *TInnerDrift) Observe(r controller.IterationReport) {
	if d.samples == 0 {
		d.initial = r.Current.TInner
	}
	d.current = r.Next.TInner
	d.samples++
}

func (d *TInnerDrift) Value() float64 {
	if d.initial == 0 {
		return 0
	}
	return (d.current - d.initial) / d.initial
}

func (d *TInnerDrift) Reset() {
	d.initial = 0
	d.current = 0
	d.samples = 0
}
