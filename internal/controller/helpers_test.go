package controller_test

import (
	"context"
	"math"

	"github.com/san-kum/radsim/internal/controller"
	"github.com/san-kum/radsim/internal/physics"
	"github.com/san-kum/radsim/internal/plasma"
	"github.com/san-kum/radsim/internal/snapshot"
	"github.com/san-kum/radsim/internal/transport"
)

var band = transport.Band{NuStart: 1e14, NuEnd: 1e16}

const requested = 1e42

// estimatorsFor builds estimators whose radiation field reproduces target
// and whose in-band emitted luminosity is emitted.
func estimatorsFor(target plasma.State, emitted float64) *transport.Estimators {
	n := target.Shells()
	est := &transport.Estimators{
		OutputNu:         []float64{1e15, 1e17},
		OutputEnergy:     []float64{emitted, 5e40},
		JEstimator:       make([]float64, n),
		NuBarEstimator:   make([]float64, n),
		Volume:           make([]float64, n),
		TimeOfSimulation: 1,
	}
	for i := 0; i < n; i++ {
		t := target.TRad[i]
		est.JEstimator[i] = 1
		est.NuBarEstimator[i] = t / physics.TRadEstimatorConstant
		est.Volume[i] = 1 / (4 * physics.SigmaSB * math.Pow(t, 4) * target.W[i])
	}
	return est
}

func initialState() plasma.State {
	return plasma.New([]float64{1.2e4, 1.1e4, 1.0e4}, []float64{0.5, 0.3, 0.2}, 1.3e4)
}

func scaled(s plasma.State, f float64) plasma.State {
	out := s.Clone()
	for i := range out.TRad {
		out.TRad[i] *= f
		out.W[i] *= f
	}
	return out
}

// scriptedSolver returns a far estimate while diverge(call) is true and an
// estimate equal to the request state otherwise.
type scriptedSolver struct {
	calls    int
	requests []transport.Request
	diverge  func(call int) bool
	emitted  func(call int) float64
	mutate   func(call int, est *transport.Estimators)
	err      error
}

func (s *scriptedSolver) Run(ctx context.Context, req transport.Request) (*transport.Estimators, error) {
	s.calls++
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	target := req.State
	if s.diverge != nil && s.diverge(s.calls) {
		target = scaled(req.State, 1.5)
	}
	emitted := requested
	if s.emitted != nil {
		emitted = s.emitted(s.calls)
	}
	est := estimatorsFor(target, emitted)
	if s.mutate != nil {
		s.mutate(s.calls, est)
	}
	return est, nil
}

type fakeModel struct {
	state     plasma.State
	committed float64
	gates     []bool
	final     *controller.Final
}

func newFakeModel() *fakeModel {
	s := initialState()
	return &fakeModel{state: s, committed: s.TInner}
}

func (m *fakeModel) PlasmaState() plasma.State     { return m.state }
func (m *fakeModel) SetPlasmaState(s plasma.State) { m.state = s }

func (m *fakeModel) RecomputeDerivedState(apply bool) error {
	m.gates = append(m.gates, apply)
	if apply {
		m.committed = m.state.TInner
	} else {
		m.state.TInner = m.committed
	}
	return nil
}

func (m *fakeModel) RecordFinal(f controller.Final) { m.final = &f }

func (m *fakeModel) Snapshot(scope snapshot.Scope) snapshot.Snapshot {
	return snapshot.Snapshot{
		State:   m.state.Clone(),
		Scalars: map[string]float64{"t_inner": m.state.TInner},
	}
}

type recordingPersister struct {
	snaps []snapshot.Snapshot
	err   error
}

func (p *recordingPersister) Persist(ctx context.Context, snap snapshot.Snapshot) error {
	if p.err != nil {
		return p.err
	}
	p.snaps = append(p.snaps, snap)
	return nil
}

func (p *recordingPersister) labels() []string {
	out := make([]string, len(p.snaps))
	for i, s := range p.snaps {
		out[i] = s.Label
	}
	return out
}
