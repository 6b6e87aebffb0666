package metrics

import (
	"math"

	"github.com/san-kum/radsim/internal/budget"
	"github.com/san-kum/radsim/internal/controller"
)

// MaxDeviation is the largest relative t_rad or w deviation of the latest
// iteration.
type MaxDeviation struct {
	name  string
	value float64
}

func NewMaxDeviation() *MaxDeviation {
	return &MaxDeviation{name: "max_deviation"}
}

func (m *MaxDeviation) Name() string { return m.name }

func (m *MaxDeviation) Observe(r controller.IterationReport) {
	m.value = math.Max(r.Deviation.MaxTRad, r.Deviation.MaxW)
}

func (m *MaxDeviation) Value() float64 { return m.value }
func (m *MaxDeviation) Reset()         { m.value = 0 }

// ConvergedShare is the share of iterations with a converged verdict.
type ConvergedShare struct {
	name      string
	converged int
	samples   int
}

func NewConvergedShare() *ConvergedShare {
	return &ConvergedShare{name: "converged_share"}
}

func (c *ConvergedShare) Name() string { return c.name }

func (c *ConvergedShare) Observe(r controller.IterationReport) {
	c.samples++
	if r.Converged {
		c.converged++
	}
}

func (c *ConvergedShare) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.converged) / float64(c.samples)
}

func (c *ConvergedShare) Reset() {
	c.converged = 0
	c.samples = 0
}

// HoldEntries counts how often the run entered the converged hold.
type HoldEntries struct {
	name    string
	entries int
}

func NewHoldEntries() *HoldEntries {
	return &HoldEntries{name: "hold_entries"}
}

func (h *HoldEntries) Name() string { return h.name }

func (h *HoldEntries) Observe(r controller.IterationReport) {
	if r.Transition == budget.TransitionEnteredHold {
		h.entries++
	}
}

func (h *HoldEntries) Value() float64 { return float64(h.entries) }
func (h *HoldEntries) Reset()         { h.entries = 0 }

// FirstConverged is the first iteration with a converged verdict, or 0.
type FirstConverged struct {
	name      string
	iteration int
}

func NewFirstConverged() *FirstConverged {
	return &FirstConverged{name: "first_converged_iteration"}
}

func (f *FirstConverged) Name() string { return f.name }

func (f *FirstConverged) Observe(r controller.IterationReport) {
	if r.Converged && f.iteration == 0 {
		f.iteration = r.Iteration
	}
}

func (f *FirstConverged) Value() float64 { return float64(f.iteration) }
func (f *FirstConverged) Reset()         { f.iteration = 0 }
