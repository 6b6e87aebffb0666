package controller_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/radsim/internal/budget"
	"github.com/san-kum/radsim/internal/controller"
	"github.com/san-kum/radsim/internal/convergence"
	"github.com/san-kum/radsim/internal/snapshot"
	"github.com/san-kum/radsim/internal/transport"
)

var errBoom = errors.New("solver exploded")

func strategy(kind string) convergence.Strategy {
	p := convergence.Params{DampingConstant: 0.5, Threshold: 0.05}
	tInner := convergence.Params{DampingConstant: 1, Threshold: 0.05}
	return convergence.New(kind, p, p, tInner)
}

func baseConfig() controller.Config {
	cfg := controller.DefaultConfig()
	cfg.Iterations = 10
	cfg.HoldIterations = 3
	cfg.Packets = 100
	cfg.LuminosityRequested = requested
	cfg.Band = band
	cfg.PersistLastOnly = true
	return cfg
}

var _ = Describe("Controller", func() {
	var (
		cfg     controller.Config
		solver  *scriptedSolver
		model   *fakeModel
		reports []controller.IterationReport
	)

	run := func(kind string, p snapshot.Persister) (*controller.Summary, error) {
		inv := transport.NewInvoker(solver, 2, nil)
		c := controller.New(cfg, inv, strategy(kind))
		if p != nil {
			c.SetPersister(p)
		}
		c.AddObserver(controller.ObserverFunc(func(r controller.IterationReport) {
			reports = append(reports, r)
		}))
		return c.Run(context.Background(), model)
	}

	BeforeEach(func() {
		cfg = baseConfig()
		solver = &scriptedSolver{}
		model = newFakeModel()
		reports = nil
	})

	Context("with a single requested iteration", func() {
		It("skips the loop and performs only the terminal run", func() {
			cfg.Iterations = 1
			summary, err := run("specific", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(solver.calls).To(Equal(1))
			Expect(solver.requests[0].Final).To(BeTrue())
			Expect(summary.IterationsExecuted).To(Equal(0))
			Expect(summary.IterationsMaxRequested).To(Equal(1))
			Expect(model.final).NotTo(BeNil())
		})
	})

	Context("when the estimates converge from the fifth iteration", func() {
		BeforeEach(func() {
			solver.diverge = func(call int) bool { return call < 5 }
		})

		It("holds for the configured number of iterations", func() {
			summary, err := run("specific", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.IterationsExecuted).To(Equal(7))
			Expect(summary.IterationsMaxRequested).To(Equal(10))
			Expect(summary.Converged).To(BeTrue())
			Expect(solver.calls).To(Equal(8))

			Expect(reports).To(HaveLen(7))
			Expect(reports[4].Transition).To(Equal(budget.TransitionEnteredHold))
			Expect(reports[4].Mode).To(Equal(budget.ModeHold))
			Expect(reports[5].Transition).To(Equal(budget.TransitionNone))
			Expect(reports[6].Remaining).To(Equal(1))
		})

		It("never converges with the damped strategy", func() {
			summary, err := run("damped", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Converged).To(BeFalse())
			Expect(summary.IterationsExecuted).To(Equal(9))
			Expect(solver.calls).To(Equal(10))
		})

		It("exits the loop right after converging when hold is zero", func() {
			cfg.HoldIterations = 0
			summary, err := run("specific", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.IterationsExecuted).To(Equal(5))
			Expect(solver.calls).To(Equal(6))
		})
	})

	Context("when convergence is lost during the hold", func() {
		It("gives back the remaining requested iterations", func() {
			solver.diverge = func(call int) bool { return call < 3 || call == 4 }
			summary, err := run("specific", nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(reports[2].Transition).To(Equal(budget.TransitionEnteredHold))
			Expect(reports[3].Transition).To(Equal(budget.TransitionResumed))
			Expect(reports[3].Remaining).To(Equal(6))
			Expect(reports[4].Transition).To(Equal(budget.TransitionEnteredHold))
			Expect(summary.IterationsExecuted).To(Equal(7))
		})
	})

	It("damps the plasma state towards the estimate", func() {
		cfg.Iterations = 2
		solver.diverge = func(int) bool { return true }
		start := model.state.Clone()

		_, err := run("specific", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(reports).To(HaveLen(1))
		for i := range start.TRad {
			Expect(model.state.TRad[i]).To(BeNumerically("~", start.TRad[i]*1.25, 1e-6))
			Expect(model.state.W[i]).To(BeNumerically("~", start.W[i]*1.25, 1e-12))
		}
		Expect(reports[0].Converged).To(BeFalse())
	})

	It("scales t_inner by the inverse square root of the luminosity ratio", func() {
		cfg.Iterations = 2
		solver.emitted = func(int) float64 { return requested / 4 }
		start := model.state.TInner

		_, err := run("specific", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(reports[0].Estimated.TInner).To(BeNumerically("~", 2*start, 1e-9))
		Expect(controller.EstimateTInner(start, requested/4, requested)).To(BeNumerically("~", 2*start, 1e-9))
	})

	It("locks t_inner outside the first iteration of each cycle", func() {
		cfg.Iterations = 7
		cfg.LockTInnerCycles = 3
		solver.diverge = func(int) bool { return true }
		solver.emitted = func(int) float64 { return requested / 4 }
		start := model.state.TInner

		_, err := run("specific", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(model.gates).To(Equal([]bool{true, false, false, true, false, false}))
		Expect(reports[1].Current.TInner).To(BeNumerically("~", 2*start, 1e-6))
		Expect(reports[2].Current.TInner).To(BeNumerically("~", 2*start, 1e-6))
		Expect(reports[3].Current.TInner).To(BeNumerically("~", 2*start, 1e-6))
		Expect(model.state.TInner).To(BeNumerically("~", 4*start, 1e-6))
	})

	It("continues when no packet escapes", func() {
		cfg.Iterations = 3
		solver.mutate = func(call int, est *transport.Estimators) {
			for i := range est.OutputEnergy {
				est.OutputEnergy[i] = -math.Abs(est.OutputEnergy[i])
			}
		}
		start := model.state.TInner

		summary, err := run("specific", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.IterationsExecuted).To(Equal(2))
		Expect(summary.NoEscapeRuns).To(Equal(3))
		Expect(summary.Converged).To(BeFalse())
		Expect(reports[0].NoEscape).To(BeTrue())
		Expect(reports[0].EmittedLuminosity).To(BeZero())
		Expect(reports[0].Estimated.TInner).To(Equal(start))
		Expect(reports[0].Converged).To(BeFalse())
	})

	It("never converges on an iteration without transport information", func() {
		solver.diverge = func(int) bool { return true }
		solver.mutate = func(call int, est *transport.Estimators) {
			for i := range est.JEstimator {
				est.JEstimator[i] = 0
				est.NuBarEstimator[i] = 0
			}
			for i := range est.OutputEnergy {
				est.OutputEnergy[i] = -math.Abs(est.OutputEnergy[i])
			}
		}
		start := model.state.Clone()

		summary, err := run("specific", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Converged).To(BeFalse())
		Expect(summary.IterationsExecuted).To(Equal(9))
		Expect(summary.NoEscapeRuns).To(Equal(10))

		Expect(reports).To(HaveLen(9))
		for i, r := range reports {
			Expect(r.Converged).To(BeFalse())
			Expect(r.Transition).To(Equal(budget.TransitionNone))
			Expect(r.Mode).To(Equal(budget.ModeNormal))
			Expect(r.Remaining).To(Equal(10 - (i + 1)))
		}
		Expect(model.state.TRad).To(Equal(start.TRad))
		Expect(model.state.W).To(Equal(start.W))
	})

	It("does not converge when no shell has a radiation field", func() {
		cfg.Iterations = 3
		solver.mutate = func(call int, est *transport.Estimators) {
			for i := range est.JEstimator {
				est.JEstimator[i] = 0
			}
		}

		summary, err := run("specific", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Converged).To(BeFalse())
		Expect(summary.IterationsExecuted).To(Equal(2))
		Expect(reports[0].Converged).To(BeFalse())
		Expect(reports[0].Deviation.MaxTRad).To(BeZero())
	})

	It("keeps the current state for shells without a radiation field", func() {
		cfg.Iterations = 2
		solver.diverge = func(int) bool { return true }
		solver.mutate = func(call int, est *transport.Estimators) {
			est.JEstimator[1] = 0
		}
		start := model.state.Clone()

		_, err := run("specific", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(reports[0].Estimated.TRad[1]).To(Equal(start.TRad[1]))
		Expect(reports[0].Estimated.W[1]).To(Equal(start.W[1]))
	})

	It("fails on an unknown strategy kind before touching the model", func() {
		before := model.state.Clone()
		_, err := run("bogus", nil)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, convergence.ErrUnknownKind)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("bogus"))
		Expect(model.state).To(Equal(before))
		Expect(model.final).To(BeNil())
	})

	It("propagates solver failures unchanged", func() {
		solver.err = errBoom
		_, err := run("specific", nil)
		Expect(err).To(MatchError(errBoom))
		Expect(err.Error()).To(Equal(errBoom.Error()))

		var iterErr *controller.IterationError
		Expect(errors.As(err, &iterErr)).To(BeTrue())
		Expect(iterErr.Iteration).To(Equal(1))
		Expect(iterErr.Phase).To(Equal("transport"))
		Expect(solver.calls).To(Equal(1))
	})

	It("rejects an invalid configuration", func() {
		cfg.Iterations = 0
		_, err := run("specific", nil)
		Expect(errors.Is(err, controller.ErrInvalidConfig)).To(BeTrue())
		Expect(solver.calls).To(BeZero())
	})

	It("stops between iterations when the context is canceled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := controller.New(cfg, transport.NewInvoker(solver, 1, nil), strategy("specific"))
		_, err := c.Run(ctx, model)
		Expect(errors.Is(err, controller.ErrCanceled)).To(BeTrue())
		Expect(solver.calls).To(BeZero())
	})

	Describe("persistence", func() {
		var p *recordingPersister

		BeforeEach(func() {
			p = &recordingPersister{}
			cfg.Iterations = 4
		})

		It("stores only the final model in last-only mode", func() {
			_, err := run("specific", p)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.labels()).To(Equal([]string{"simulation"}))
			Expect(p.snaps[0].Runner).NotTo(BeNil())
			Expect(p.snaps[0].Iteration).To(Equal(3))
		})

		It("stores every iteration otherwise", func() {
			cfg.PersistLastOnly = false
			solver.diverge = func(int) bool { return true }
			_, err := run("specific", p)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.labels()).To(Equal([]string{"simulation1", "simulation2", "simulation3"}))
		})

		It("strips derived data in input mode", func() {
			cfg.PersistMode = "input"
			_, err := run("specific", p)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.snaps[0].Runner).To(BeNil())
			Expect(p.snaps[0].Scalars).To(BeNil())
			Expect(p.snaps[0].State.Shells()).To(Equal(3))
		})

		It("rejects an unknown mode before running", func() {
			cfg.PersistMode = "partial"
			_, err := run("specific", p)
			Expect(errors.Is(err, snapshot.ErrInvalidScope)).To(BeTrue())
			Expect(solver.calls).To(BeZero())
		})

		It("ignores the mode when persistence is off", func() {
			cfg.PersistMode = "partial"
			_, err := run("specific", nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("treats a storage failure as fatal", func() {
			cfg.PersistLastOnly = false
			p.err = errors.New("disk full")
			_, err := run("specific", p)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("persist simulation1"))
			Expect(solver.calls).To(Equal(1))
		})
	})

	It("builds the final spectra when edges are configured", func() {
		cfg.Iterations = 2
		cfg.SpectrumEdges = transport.LinearEdges(1e14, 1e16, 11)
		summary, err := run("specific", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Spectra).NotTo(BeNil())
		Expect(summary.Spectra.Emitted.Total()).To(BeNumerically("~", requested, requested*1e-9))
		Expect(model.final.Spectra).To(BeIdenticalTo(summary.Spectra))
	})

	It("reports metrics collected over the run", func() {
		cfg.Iterations = 3
		inv := transport.NewInvoker(solver, 1, nil)
		c := controller.New(cfg, inv, strategy("damped"))
		c.AddMetric(&countMetric{})
		summary, err := c.Run(context.Background(), model)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Metrics).To(HaveKeyWithValue("count", 2.0))
	})
})

type countMetric struct{ n int }

func (m *countMetric) Name() string                         { return "count" }
func (m *countMetric) Observe(r controller.IterationReport) { m.n++ }
func (m *countMetric) Value() float64                       { return float64(m.n) }
func (m *countMetric) Reset()                               { m.n = 0 }
