package transport

import (
	"math"
	"sort"

	"github.com/san-kum/radsim/internal/physics"
)

// Spectrum is a binned luminosity spectrum. Edges holds n+1 frequencies for
// n bins.
type Spectrum struct {
	Edges                   []float64 `json:"edges"`
	Luminosity              []float64 `json:"luminosity"`
	LuminosityDensityNu     []float64 `json:"luminosity_density_nu"`
	LuminosityDensityLambda []float64 `json:"luminosity_density_lambda"`
	Distance                float64   `json:"distance,omitempty"`
}

func checkEdges(edges []float64) error {
	if len(edges) < 2 {
		return ErrBins
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return ErrBins
		}
	}
	return nil
}

// Histogram bins values weighted by weights. The last bin includes its right
// edge; values outside the edges are dropped.
func Histogram(values, weights, edges []float64) []float64 {
	out := make([]float64, len(edges)-1)
	last := edges[len(edges)-1]
	for i, v := range values {
		if v < edges[0] || v > last || math.IsNaN(v) {
			continue
		}
		bin := sort.SearchFloat64s(edges, v)
		if bin < len(edges) && edges[bin] == v {
			bin++
		}
		bin--
		if bin >= len(out) {
			bin = len(out) - 1
		}
		out[bin] += weights[i]
	}
	return out
}

// NewSpectrum derives densities from binned luminosity. A zero distance
// leaves flux undefined.
func NewSpectrum(edges, luminosity []float64, distance float64) (*Spectrum, error) {
	if err := checkEdges(edges); err != nil {
		return nil, err
	}
	s := &Spectrum{
		Edges:                   edges,
		Luminosity:              luminosity,
		LuminosityDensityNu:     make([]float64, len(luminosity)),
		LuminosityDensityLambda: make([]float64, len(luminosity)),
		Distance:                distance,
	}
	dnu := edges[1] - edges[0]
	for i, l := range luminosity {
		s.LuminosityDensityNu[i] = l / dnu
		s.LuminosityDensityLambda[i] = fNuToFLambda(s.LuminosityDensityNu[i], edges[i])
	}
	return s, nil
}

func fNuToFLambda(fNu, nu float64) float64 {
	return fNu * nu * nu / physics.C / physics.AngstromPerCm
}

func (s *Spectrum) Frequency() []float64 {
	return s.Edges[:len(s.Edges)-1]
}

func (s *Spectrum) Wavelength() []float64 {
	nu := s.Frequency()
	out := make([]float64, len(nu))
	for i, v := range nu {
		out[i] = physics.NuToAngstrom(v)
	}
	return out
}

// FluxLambda is the flux density at Distance. ok is false without distance.
func (s *Spectrum) FluxLambda() (flux []float64, ok bool) {
	if s.Distance <= 0 {
		return nil, false
	}
	area := 4 * math.Pi * s.Distance * s.Distance
	flux = make([]float64, len(s.LuminosityDensityLambda))
	for i, l := range s.LuminosityDensityLambda {
		flux[i] = l / area
	}
	return flux, true
}

func (s *Spectrum) Total() float64 {
	sum := 0.0
	for _, l := range s.Luminosity {
		sum += l
	}
	return sum
}

// Spectra is the set produced by the terminal run.
type Spectra struct {
	Emitted    *Spectrum `json:"emitted"`
	Reabsorbed *Spectrum `json:"reabsorbed"`
	Virtual    *Spectrum `json:"virtual,omitempty"`
}

// Spectra bins emitted and reabsorbed packet luminosity on edges. The
// virtual spectrum is built only when virtual packets ran.
func (e *Estimators) Spectra(edges []float64, virtualPackets int, distance float64) (*Spectra, error) {
	if err := checkEdges(edges); err != nil {
		return nil, err
	}
	lum := e.PacketLuminosity()

	var emNu, emL, reNu, reL []float64
	for i, l := range lum {
		if e.OutputEnergy[i] >= 0 {
			emNu = append(emNu, e.OutputNu[i])
			emL = append(emL, l)
		} else {
			reNu = append(reNu, e.OutputNu[i])
			reL = append(reL, -l)
		}
	}

	out := &Spectra{}
	var err error
	if out.Emitted, err = NewSpectrum(edges, Histogram(emNu, emL, edges), distance); err != nil {
		return nil, err
	}
	if out.Reabsorbed, err = NewSpectrum(edges, Histogram(reNu, reL, edges), distance); err != nil {
		return nil, err
	}

	if virtualPackets > 0 && len(e.VirtualEnergy) == len(edges)-1 {
		vl := make([]float64, len(e.VirtualEnergy))
		for i, en := range e.VirtualEnergy {
			vl[i] = en / e.TimeOfSimulation
		}
		if out.Virtual, err = NewSpectrum(edges, vl, distance); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LinearEdges returns n+1 evenly spaced edges between start and stop.
func LinearEdges(start, stop float64, n int) []float64 {
	edges := make([]float64, n+1)
	step := (stop - start) / float64(n)
	for i := range edges {
		edges[i] = start + float64(i)*step
	}
	return edges
}
