package transport

import (
	"fmt"
	"math"

	"github.com/san-kum/radsim/internal/physics"
)

// Interaction types recorded per packet.
const (
	InteractionNone     int64 = -1
	InteractionElectron int64 = 1
	InteractionLine     int64 = 2
)

// Band is an open frequency interval (NuStart, NuEnd) in Hz.
type Band struct {
	NuStart float64 `yaml:"nu_start" json:"nu_start"`
	NuEnd   float64 `yaml:"nu_end" json:"nu_end"`
}

func (b Band) Contains(nu float64) bool {
	return nu > b.NuStart && nu < b.NuEnd
}

// Estimators is what a solver hands back after one iteration. Packet arrays
// are indexed by packet, estimator arrays by shell.
type Estimators struct {
	OutputNu     []float64 `json:"output_nu"`
	OutputEnergy []float64 `json:"output_energy"`

	JEstimator      []float64 `json:"j_estimator"`
	NuBarEstimator  []float64 `json:"nu_bar_estimator"`
	JBlueEstimator  []float64 `json:"j_blue_estimator,omitempty"`
	EdotLuEstimator []float64 `json:"edotlu_estimator,omitempty"`

	LastLineInteractionInID    []int64 `json:"last_line_interaction_in_id"`
	LastLineInteractionOutID   []int64 `json:"last_line_interaction_out_id"`
	LastInteractionType        []int64 `json:"last_interaction_type"`
	LastLineInteractionShellID []int64 `json:"last_line_interaction_shell_id"`

	// VirtualEnergy is binned on the spectrum grid when virtual packets ran.
	VirtualEnergy []float64 `json:"virtual_energy,omitempty"`

	TimeOfSimulation float64   `json:"time_of_simulation"`
	Volume           []float64 `json:"volume"`
}

func (e *Estimators) Validate() error {
	n := len(e.OutputNu)
	if len(e.OutputEnergy) != n {
		return fmt.Errorf("%w: %d frequencies, %d energies", ErrEstimatorShape, n, len(e.OutputEnergy))
	}
	shells := len(e.JEstimator)
	if len(e.NuBarEstimator) != shells || len(e.Volume) != shells {
		return fmt.Errorf("%w: j=%d nubar=%d volume=%d", ErrEstimatorShape, shells, len(e.NuBarEstimator), len(e.Volume))
	}
	return nil
}

func (e *Estimators) Packets() int { return len(e.OutputEnergy) }

// NoneEscaped reports whether every packet ended with a non-positive energy.
func (e *Estimators) NoneEscaped() bool {
	for _, en := range e.OutputEnergy {
		if en > 0 {
			return false
		}
	}
	return true
}

func (e *Estimators) PacketLuminosity() []float64 {
	out := make([]float64, len(e.OutputEnergy))
	for i, en := range e.OutputEnergy {
		out[i] = en / e.TimeOfSimulation
	}
	return out
}

// EmittedLuminosity sums packets with non-negative energy inside band.
func (e *Estimators) EmittedLuminosity(band Band) float64 {
	sum := 0.0
	for i, en := range e.OutputEnergy {
		if en >= 0 && band.Contains(e.OutputNu[i]) {
			sum += en / e.TimeOfSimulation
		}
	}
	return sum
}

// ReabsorbedLuminosity sums packets with negative energy inside band, as a
// positive number.
func (e *Estimators) ReabsorbedLuminosity(band Band) float64 {
	sum := 0.0
	for i, en := range e.OutputEnergy {
		if en < 0 && band.Contains(e.OutputNu[i]) {
			sum -= en / e.TimeOfSimulation
		}
	}
	return sum
}

// RadiationField derives t_rad and w per shell from the J and nubar
// estimators.
func (e *Estimators) RadiationField() (tRad, w []float64) {
	tRad = make([]float64, len(e.JEstimator))
	w = make([]float64, len(e.JEstimator))
	for i := range e.JEstimator {
		tRad[i] = physics.TRadEstimatorConstant * e.NuBarEstimator[i] / e.JEstimator[i]
		w[i] = e.JEstimator[i] / (4 * physics.SigmaSB * math.Pow(tRad[i], 4) *
			e.TimeOfSimulation * e.Volume[i])
	}
	return tRad, w
}

// InteractingPackets returns the packet indices whose last line interaction
// is recorded.
func (e *Estimators) InteractingPackets() []int {
	idx := make([]int, 0)
	for i, id := range e.LastLineInteractionInID {
		if id != InteractionNone {
			idx = append(idx, i)
		}
	}
	return idx
}
