package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/radsim/internal/config"
	"github.com/san-kum/radsim/internal/logging"
	"github.com/san-kum/radsim/internal/model"
	"github.com/san-kum/radsim/internal/montecarlo"
	"github.com/san-kum/radsim/internal/transport"
)

// SolverFactory builds a transport solver for a model geometry.
type SolverFactory func(cfg *config.Config, geom *model.Geometry, log *logging.Logger) (transport.Solver, error)

type Registry struct {
	solvers map[string]SolverFactory
}

func NewRegistry() *Registry {
	r := &Registry{solvers: make(map[string]SolverFactory)}

	r.solvers["grey"] = func(cfg *config.Config, geom *model.Geometry, log *logging.Logger) (transport.Solver, error) {
		return montecarlo.New(cfg.SolverConfig(geom), log)
	}
	r.solvers["transparent"] = func(cfg *config.Config, geom *model.Geometry, log *logging.Logger) (transport.Solver, error) {
		sc := cfg.SolverConfig(geom)
		for i := range sc.Opacity {
			sc.Opacity[i] = 0
		}
		return montecarlo.New(sc, log)
	}
	return r
}

// Register adds or replaces a solver.
func (r *Registry) Register(name string, f SolverFactory) {
	r.solvers[name] = f
}

func (r *Registry) GetSolver(name string, cfg *config.Config, geom *model.Geometry, log *logging.Logger) (transport.Solver, error) {
	if name == "" {
		name = "grey"
	}
	fn, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s", name)
	}
	return fn(cfg, geom, log)
}

func (r *Registry) ListSolvers() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
