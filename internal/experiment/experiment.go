// Package experiment assembles a complete simulation from a configuration:
// the shell model, the transport solver, the convergence controller, its
// metrics and the snapshot store.
package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/radsim/internal/config"
	"github.com/san-kum/radsim/internal/controller"
	"github.com/san-kum/radsim/internal/logging"
	"github.com/san-kum/radsim/internal/metrics"
	"github.com/san-kum/radsim/internal/model"
	"github.com/san-kum/radsim/internal/snapshot"
	"github.com/san-kum/radsim/internal/storage"
	"github.com/san-kum/radsim/internal/transport"
)

type Experiment struct {
	cfg   *config.Config
	name  string
	runID string
	log   *logging.Logger

	model      *model.Radial1D
	controller *controller.Controller
	store      snapshot.Store
}

func New(cfg *config.Config, name string, log *logging.Logger) *Experiment {
	if log == nil {
		log = logging.Discard()
	}
	id := uuid.New().String()
	return &Experiment{cfg: cfg, name: name, runID: id, log: log.WithRun(id)}
}

func (e *Experiment) RunID() string { return e.runID }

// Setup validates the configuration and builds every collaborator. With
// the "none" backend nothing is persisted.
func (e *Experiment) Setup(registry *Registry) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	m, err := e.cfg.Model()
	if err != nil {
		return err
	}
	solver, err := registry.GetSolver(e.cfg.Solver.Name, e.cfg, m.Geometry, e.log)
	if err != nil {
		return err
	}

	invoker := transport.NewInvoker(solver, e.cfg.MonteCarlo.NThreads, e.log)
	ctrl := controller.New(e.cfg.ControllerConfig(), invoker, e.cfg.Strategy())
	ctrl.SetLogger(e.log)
	ctrl.SetRunID(e.runID)
	for _, mt := range metrics.All() {
		ctrl.AddMetric(mt)
	}

	if backend := e.cfg.Output.Backend; backend != "none" {
		st, err := storage.Open(backend, e.cfg.Output.Path)
		if err != nil {
			return err
		}
		e.store = st
		ctrl.SetPersister(st)
	}

	e.model = m
	e.controller = ctrl
	return nil
}

// Controller is available after Setup for adding observers.
func (e *Experiment) Controller() *controller.Controller { return e.controller }

func (e *Experiment) Model() *model.Radial1D { return e.model }

// Run executes the simulation and records the run in the store.
func (e *Experiment) Run(ctx context.Context) (*controller.Summary, error) {
	if e.controller == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	if e.store != nil {
		defer e.store.Close()
	}

	started := time.Now().UTC()
	summary, err := e.controller.Run(ctx, e.model)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if err := e.store.SaveRun(ctx, e.record(started, summary)); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (e *Experiment) record(started time.Time, s *controller.Summary) snapshot.Run {
	name := e.name
	if name == "" {
		name = "radsim"
	}
	return snapshot.Run{
		ID:          e.runID,
		Name:        name,
		Timestamp:   started,
		Shells:      s.FinalState.Shells(),
		Requested:   s.IterationsMaxRequested,
		Executed:    s.IterationsExecuted,
		Converged:   s.Converged,
		Packets:     s.Packets,
		Virtual:     s.VirtualPackets,
		Strategy:    e.cfg.MonteCarlo.Convergence.Type,
		ElapsedSec:  s.Elapsed.Seconds(),
		Metrics:     s.Metrics,
		FinalTInner: s.FinalState.TInner,
	}
}
