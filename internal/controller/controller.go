package controller

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/san-kum/radsim/internal/budget"
	"github.com/san-kum/radsim/internal/convergence"
	"github.com/san-kum/radsim/internal/logging"
	"github.com/san-kum/radsim/internal/plasma"
	"github.com/san-kum/radsim/internal/snapshot"
	"github.com/san-kum/radsim/internal/transport"
)

type Controller struct {
	cfg       Config
	invoker   *transport.Invoker
	strategy  convergence.Strategy
	persister snapshot.Persister
	log       *logging.Logger
	runID     string
	observers []Observer
	metrics   []Metric
}

func New(cfg Config, invoker *transport.Invoker, strategy convergence.Strategy) *Controller {
	return &Controller{
		cfg:       cfg,
		invoker:   invoker,
		strategy:  strategy,
		log:       logging.Discard(),
		runID:     uuid.New().String(),
		observers: make([]Observer, 0),
		metrics:   make([]Metric, 0),
	}
}

func (c *Controller) SetLogger(l *logging.Logger) { c.log = l.WithComponent("controller") }

// SetPersister enables persistence. A nil persister disables it.
func (c *Controller) SetPersister(p snapshot.Persister) { c.persister = p }
func (c *Controller) SetRunID(id string)                { c.runID = id }
func (c *Controller) RunID() string                     { return c.runID }
func (c *Controller) AddObserver(o Observer)            { c.observers = append(c.observers, o) }
func (c *Controller) AddMetric(m Metric)                { c.metrics = append(c.metrics, m) }

// EstimateTInner scales tInner by the emitted-to-requested luminosity ratio.
func EstimateTInner(tInner, emitted, requested float64) float64 {
	return tInner * math.Pow(emitted/requested, TInnerUpdateExponent)
}

// Run iterates until the budget is spent, performs the terminal transport
// run and records the final output on m. Iterations are never interrupted;
// ctx is only checked between them.
func (c *Controller) Run(ctx context.Context, m Model) (*Summary, error) {
	var scope snapshot.Scope
	if c.persister != nil {
		s, err := snapshot.ParseScope(c.cfg.PersistMode)
		if err != nil {
			return nil, err
		}
		scope = s
	}
	if err := c.cfg.validate(); err != nil {
		return nil, err
	}
	if err := m.PlasmaState().Validate(); err != nil {
		return nil, errors.Wrap(err, "initial plasma state")
	}

	start := time.Now()
	for _, mt := range c.metrics {
		mt.Reset()
	}

	b := budget.New(c.cfg.Iterations, c.cfg.HoldIterations, c.cfg.LockTInnerCycles)
	converged := false

	for b.Continue() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %d iterations: %v", ErrCanceled, b.Executed, ctx.Err())
		default:
		}

		c.log.Info("remaining run", "remaining", b.Remaining)

		report, est, err := c.iterate(ctx, m, b)
		if err != nil {
			return nil, err
		}
		converged = report.Converged

		if c.persister != nil && !c.cfg.PersistLastOnly {
			label := fmt.Sprintf("simulation%d", b.Executed)
			if err := c.persist(ctx, m, est, scope, label, b.Executed, converged); err != nil {
				return nil, &IterationError{Iteration: b.Executed, Phase: "persist", Wrapped: err}
			}
		}

		for _, mt := range c.metrics {
			mt.Observe(report)
		}
		for _, obs := range c.observers {
			obs.OnIteration(report)
		}
	}

	final, err := c.finalize(ctx, m, b, converged)
	if err != nil {
		return nil, err
	}

	// The post-terminal model is stored only in last-only mode.
	if c.persister != nil && c.cfg.PersistLastOnly {
		if err := c.persist(ctx, m, final.Estimators, scope, "simulation", b.Executed, converged); err != nil {
			return nil, err
		}
	}

	elapsed := time.Since(start)
	c.log.Info("finished",
		"iterations", b.Executed,
		"elapsed", fmt.Sprintf("%.2fs", elapsed.Seconds()),
		"converged", converged)

	summary := &Summary{
		RunID:                  c.runID,
		IterationsExecuted:     b.Executed,
		IterationsMaxRequested: b.MaxRequested,
		Converged:              converged,
		Packets:                final.Packets,
		VirtualPackets:         final.VirtualPackets,
		NoEscapeRuns:           c.invoker.NoEscapeCount(),
		FinalState:             m.PlasmaState().Clone(),
		Spectra:                final.Spectra,
		Metrics:                make(map[string]float64, len(c.metrics)),
		Elapsed:                elapsed,
	}
	for _, mt := range c.metrics {
		summary.Metrics[mt.Name()] = mt.Value()
	}
	return summary, nil
}

func (c *Controller) iterate(ctx context.Context, m Model, b *budget.Budget) (IterationReport, *transport.Estimators, error) {
	current := m.PlasmaState().Clone()

	est, err := c.invoker.Run(ctx, current, c.cfg.Packets, 0, false)
	if err != nil {
		return IterationReport{}, nil, &IterationError{Iteration: b.Executed + 1, Phase: "transport", Wrapped: err}
	}

	emitted := est.EmittedLuminosity(c.cfg.Band)
	reabsorbed := est.ReabsorbedLuminosity(c.cfg.Band)
	c.log.Info(fmt.Sprintf("Luminosity emitted = %.5e Luminosity absorbed = %.5e Luminosity requested = %.5e",
		emitted, reabsorbed, c.cfg.LuminosityRequested))

	b.Advance()

	estimated, raw, err := c.estimate(current, est, emitted)
	if err != nil {
		return IterationReport{}, nil, &IterationError{Iteration: b.Executed, Phase: "estimate", Wrapped: err}
	}

	next, err := c.strategy.Next(current, estimated)
	if err != nil {
		return IterationReport{}, nil, &IterationError{Iteration: b.Executed, Phase: "convergence", Wrapped: err}
	}
	// the verdict sees the raw estimates; missing data is never converged
	verdict, err := c.strategy.Converged(current, raw)
	if err != nil {
		return IterationReport{}, nil, &IterationError{Iteration: b.Executed, Phase: "convergence", Wrapped: err}
	}

	c.logPlasmaState(current, next)

	m.SetPlasmaState(next)
	gate := b.TInnerUpdate()
	if err := m.RecomputeDerivedState(gate); err != nil {
		return IterationReport{}, nil, &IterationError{Iteration: b.Executed, Phase: "recompute", Wrapped: err}
	}

	tr := b.Observe(verdict)
	if tr != budget.TransitionNone {
		c.log.Info("convergence mode changed", "transition", tr.String(), "remaining", b.Remaining)
	}

	report := IterationReport{
		Iteration:            b.Executed,
		Remaining:            b.Remaining,
		Mode:                 b.Mode(),
		Transition:           tr,
		Converged:            verdict,
		TInnerUpdated:        gate,
		NoEscape:             est.NoneEscaped(),
		EmittedLuminosity:    emitted,
		ReabsorbedLuminosity: reabsorbed,
		RequestedLuminosity:  c.cfg.LuminosityRequested,
		Current:              current,
		Estimated:            estimated,
		Next:                 next.Clone(),
		Deviation:            c.strategy.Deviation(current, raw),
	}
	return report, est, nil
}

// estimate derives the estimated plasma state used for the damped update
// and the raw estimate used for the verdict. In the former, quantities the
// estimators carry no information about (empty shells, nothing emitted) keep
// their current value; in the latter they stay non-finite.
func (c *Controller) estimate(current plasma.State, est *transport.Estimators, emitted float64) (estimated, raw plasma.State, err error) {
	tRad, w := est.RadiationField()
	if len(tRad) != current.Shells() || len(w) != current.Shells() {
		return plasma.State{}, plasma.State{}, fmt.Errorf("%w: %d estimated, %d in model", ErrShellMismatch, len(tRad), current.Shells())
	}
	raw = plasma.State{
		TRad:   make([]float64, len(tRad)),
		W:      make([]float64, len(w)),
		TInner: math.NaN(),
	}

	fallback := 0
	for i := range tRad {
		raw.TRad[i], raw.W[i] = tRad[i], w[i]
		if !finitePositive(tRad[i]) || !finitePositive(w[i]) {
			raw.TRad[i], raw.W[i] = math.NaN(), math.NaN()
			tRad[i], w[i] = current.TRad[i], current.W[i]
			fallback++
		}
	}
	if fallback > 0 {
		c.log.Warn("shells without radiation field estimate keep their state", "shells", fallback)
	}

	tInner := current.TInner
	if emitted > 0 {
		tInner = EstimateTInner(current.TInner, emitted, c.cfg.LuminosityRequested)
		raw.TInner = tInner
	} else {
		c.log.Warn("no emitted luminosity in band, t_inner estimate unchanged")
	}

	return plasma.State{TRad: tRad, W: w, TInner: tInner}, raw, nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func (c *Controller) finalize(ctx context.Context, m Model, b *budget.Budget, converged bool) (Final, error) {
	packets := c.cfg.FinalPackets()
	virtual := c.cfg.VirtualPackets
	c.log.Info("doing last run", "packets", packets, "virtual_packets", virtual)

	est, err := c.invoker.Run(ctx, m.PlasmaState().Clone(), packets, virtual, true)
	if err != nil {
		return Final{}, &IterationError{Iteration: b.Executed + 1, Phase: "final transport", Wrapped: err}
	}

	var spectra *transport.Spectra
	if len(c.cfg.SpectrumEdges) > 1 {
		spectra, err = est.Spectra(c.cfg.SpectrumEdges, virtual, c.cfg.Distance)
		if err != nil {
			return Final{}, errors.Wrap(err, "final spectrum")
		}
	}

	final := Final{
		Estimators:             est,
		Spectra:                spectra,
		Packets:                packets,
		VirtualPackets:         virtual,
		Converged:              converged,
		IterationsExecuted:     b.Executed,
		IterationsMaxRequested: b.MaxRequested,
	}
	m.RecordFinal(final)
	return final, nil
}

func (c *Controller) persist(ctx context.Context, m Model, est *transport.Estimators, scope snapshot.Scope, label string, iteration int, converged bool) error {
	snap := m.Snapshot(scope)
	snap.ID = uuid.New().String()
	snap.RunID = c.runID
	snap.Label = label
	snap.Iteration = iteration
	snap.Scope = scope
	snap.Converged = converged
	snap.CreatedAt = time.Now().UTC()
	if scope == snapshot.ScopeFull && est != nil {
		snap.Runner = &snapshot.Runner{
			OutputNu:       est.OutputNu,
			OutputEnergy:   est.OutputEnergy,
			JEstimator:     est.JEstimator,
			NuBarEstimator: est.NuBarEstimator,
		}
	}

	if err := c.persister.Persist(ctx, snap.Trim()); err != nil {
		return errors.Wrapf(err, "persist %s", label)
	}
	return nil
}

func (c *Controller) logPlasmaState(current, next plasma.State) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\t%5s %12s %12s %10s %10s\n", "Shell", "t_rad", "next_t_rad", "w", "next_w")
	for _, i := range current.Sample(c.cfg.LogSampling) {
		fmt.Fprintf(&sb, "\t%5d %12.3f %12.3f %10.4f %10.4f\n",
			i, current.TRad[i], next.TRad[i], current.W[i], next.W[i])
	}
	c.log.Info("Plasma stratification:\n" + sb.String())
	c.log.Info(fmt.Sprintf("t_inner %.3f -- next t_inner %.3f", current.TInner, next.TInner))
}
