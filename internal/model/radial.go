package model

import (
	"math"

	"github.com/san-kum/radsim/internal/controller"
	"github.com/san-kum/radsim/internal/physics"
	"github.com/san-kum/radsim/internal/plasma"
	"github.com/san-kum/radsim/internal/snapshot"
	"github.com/san-kum/radsim/internal/transport"
)

var _ controller.Model = (*Radial1D)(nil)

// Radial1D is a shell model whose plasma state is refined between transport
// iterations.
type Radial1D struct {
	Geometry            *Geometry
	LuminosityRequested float64

	state           plasma.State
	committedTInner float64

	luminosityInner  float64
	timeOfSimulation float64
	energyDensity    []float64

	final *FinalProperties
}

// FinalProperties is what the terminal run leaves on the model.
type FinalProperties struct {
	Packets                int
	VirtualPackets         int
	Converged              bool
	IterationsExecuted     int
	IterationsMaxRequested int

	// Last interaction arrays restricted to packets that interacted.
	LastLineInteractionInID    []int64
	LastLineInteractionOutID   []int64
	LastLineInteractionShellID []int64
	LastInteractionType        []int64

	Spectra *transport.Spectra
}

// NewRadial1D builds a model with the geometric dilution factor and a
// Wien-shifted radiation temperature in every shell. A tInner of zero is
// derived from the requested luminosity.
func NewRadial1D(geom *Geometry, luminosityRequested, tInner float64) (*Radial1D, error) {
	if luminosityRequested <= 0 {
		return nil, ErrLuminosity
	}
	if tInner <= 0 {
		tInner = physics.TInnerForLuminosity(geom.Photosphere(), luminosityRequested)
	}

	n := geom.Shells()
	rMid, vMid := geom.RMiddle(), geom.VMiddle()
	rPh := geom.Photosphere()
	tRad := make([]float64, n)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = physics.GeometricDilution(rMid[i], rPh)
		tRad[i] = physics.WienShiftedTRad(tInner, geom.VInner[0], vMid[i])
	}

	m := &Radial1D{
		Geometry:            geom,
		LuminosityRequested: luminosityRequested,
		state:               plasma.New(tRad, w, tInner),
		committedTInner:     tInner,
	}
	if err := m.RecomputeDerivedState(true); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Radial1D) PlasmaState() plasma.State { return m.state }

func (m *Radial1D) SetPlasmaState(s plasma.State) { m.state = s }

// RecomputeDerivedState refreshes the quantities that depend on the plasma
// state. Without applyInnerUpdate the inner temperature falls back to the
// last committed value.
func (m *Radial1D) RecomputeDerivedState(applyInnerUpdate bool) error {
	if err := m.state.Validate(); err != nil {
		return err
	}
	if m.state.Shells() != m.Geometry.Shells() {
		return plasma.ErrShellMismatch
	}

	if applyInnerUpdate {
		m.committedTInner = m.state.TInner
	} else {
		m.state.TInner = m.committedTInner
	}

	m.luminosityInner = physics.LuminosityInner(m.Geometry.Photosphere(), m.state.TInner)
	m.timeOfSimulation = 1 / m.luminosityInner

	m.energyDensity = make([]float64, m.state.Shells())
	for i := range m.energyDensity {
		m.energyDensity[i] = 4 * physics.SigmaSB / physics.C * m.state.W[i] * math.Pow(m.state.TRad[i], 4)
	}
	return nil
}

func (m *Radial1D) LuminosityInner() float64  { return m.luminosityInner }
func (m *Radial1D) TimeOfSimulation() float64 { return m.timeOfSimulation }

// EnergyDensity is the diluted blackbody energy density per shell.
func (m *Radial1D) EnergyDensity() []float64 {
	out := make([]float64, len(m.energyDensity))
	copy(out, m.energyDensity)
	return out
}

// Final returns the terminal run properties, or nil before the run ended.
func (m *Radial1D) Final() *FinalProperties { return m.final }

func (m *Radial1D) RecordFinal(f controller.Final) {
	fp := &FinalProperties{
		Packets:                f.Packets,
		VirtualPackets:         f.VirtualPackets,
		Converged:              f.Converged,
		IterationsExecuted:     f.IterationsExecuted,
		IterationsMaxRequested: f.IterationsMaxRequested,
		Spectra:                f.Spectra,
	}
	if est := f.Estimators; est != nil {
		idx := est.InteractingPackets()
		fp.LastLineInteractionInID = pick(est.LastLineInteractionInID, idx)
		fp.LastLineInteractionOutID = pick(est.LastLineInteractionOutID, idx)
		fp.LastLineInteractionShellID = pick(est.LastLineInteractionShellID, idx)
		fp.LastInteractionType = pick(est.LastInteractionType, idx)
	}
	m.final = fp
}

func pick(values []int64, idx []int) []int64 {
	out := make([]int64, 0, len(idx))
	for _, i := range idx {
		if i < len(values) {
			out = append(out, values[i])
		}
	}
	return out
}

// Snapshot captures the model. Input scope carries the plasma state only.
func (m *Radial1D) Snapshot(scope snapshot.Scope) snapshot.Snapshot {
	snap := snapshot.Snapshot{Scope: scope, State: m.state.Clone()}
	if scope != snapshot.ScopeFull {
		return snap
	}

	snap.Scalars = map[string]float64{
		"t_inner":              m.state.TInner,
		"luminosity_inner":     m.luminosityInner,
		"luminosity_requested": m.LuminosityRequested,
		"time_of_simulation":   m.timeOfSimulation,
		"time_explosion":       m.Geometry.TimeExplosion,
	}
	snap.Arrays = map[string][]float64{
		"v_inner":        append([]float64(nil), m.Geometry.VInner...),
		"v_outer":        append([]float64(nil), m.Geometry.VOuter...),
		"volume":         m.Geometry.Volume(),
		"energy_density": m.EnergyDensity(),
	}

	if m.final != nil {
		snap.Scalars["packets"] = float64(m.final.Packets)
		snap.Scalars["virtual_packets"] = float64(m.final.VirtualPackets)
		snap.Scalars["iterations_executed"] = float64(m.final.IterationsExecuted)
		snap.Scalars["iterations_max_requested"] = float64(m.final.IterationsMaxRequested)
		if m.final.Spectra != nil {
			sp := m.final.Spectra
			snap.Arrays["spectrum_edges"] = append([]float64(nil), sp.Emitted.Edges...)
			snap.Arrays["spectrum_luminosity"] = sp.Emitted.Luminosity
			snap.Arrays["spectrum_luminosity_density_lambda"] = sp.Emitted.LuminosityDensityLambda
			if sp.Reabsorbed != nil {
				snap.Arrays["spectrum_reabsorbed_luminosity"] = sp.Reabsorbed.Luminosity
			}
			if sp.Virtual != nil {
				snap.Arrays["spectrum_virtual_luminosity"] = sp.Virtual.Luminosity
			}
			snap.Scalars["distance"] = sp.Emitted.Distance
		}
	}
	return snap
}
