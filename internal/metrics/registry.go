package metrics

import (
	"sort"

	"github.com/san-kum/radsim/internal/controller"
)

var Registry = map[string]func() controller.Metric{
	"luminosity_mismatch":       func() controller.Metric { return NewLuminosityMismatch() },
	"t_inner_drift":             func() controller.Metric { return NewTInnerDrift() },
	"max_deviation":             func() controller.Metric { return NewMaxDeviation() },
	"converged_share":           func() controller.Metric { return NewConvergedShare() },
	"hold_entries":              func() controller.Metric { return NewHoldEntries() },
	"first_converged_iteration": func() controller.Metric { return NewFirstConverged() },
}

// All returns one fresh instance of every registered metric, ordered by
// name.
func All() []controller.Metric {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]controller.Metric, 0, len(names))
	for _, name := range names {
		out = append(out, Registry[name]())
	}
	return out
}
