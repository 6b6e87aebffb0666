package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/san-kum/radsim/internal/logging"
	"github.com/san-kum/radsim/internal/physics"
	"github.com/san-kum/radsim/internal/transport"
)

const (
	// DefaultBlockSize is the number of packets sharing one random stream.
	DefaultBlockSize = 1000

	// maxInteractions bounds a single packet history.
	maxInteractions = 100000

	// Pseudo line ids are frequency bins on this logarithmic grid.
	lineGridStart = 1e13
	lineGridStop  = 1e17
	lineGridBins  = 4096
)

type Config struct {
	RInner []float64 // cm
	ROuter []float64 // cm

	// Opacity is the grey extinction coefficient per shell in 1/cm.
	Opacity []float64

	// Albedo is the probability that an interaction is a scattering.
	// Otherwise the packet is re-emitted at the local radiation temperature.
	Albedo float64

	Seed      int64
	BlockSize int

	// SpectrumEdges bins virtual packet energy in the final run.
	SpectrumEdges []float64
}

func (c Config) validate() error {
	n := len(c.RInner)
	if n == 0 {
		return fmt.Errorf("%w: no shells", ErrConfig)
	}
	if len(c.ROuter) != n || len(c.Opacity) != n {
		return fmt.Errorf("%w: %d inner radii, %d outer radii, %d opacities", ErrConfig, n, len(c.ROuter), len(c.Opacity))
	}
	for i := 0; i < n; i++ {
		if c.RInner[i] <= 0 || c.ROuter[i] <= c.RInner[i] {
			return fmt.Errorf("%w: shell %d has radii [%g, %g]", ErrConfig, i, c.RInner[i], c.ROuter[i])
		}
		if i > 0 && c.RInner[i] != c.ROuter[i-1] {
			return fmt.Errorf("%w: shells %d and %d are not adjacent", ErrConfig, i-1, i)
		}
		if c.Opacity[i] < 0 {
			return fmt.Errorf("%w: negative opacity in shell %d", ErrConfig, i)
		}
	}
	if c.Albedo < 0 || c.Albedo > 1 {
		return fmt.Errorf("%w: albedo %g outside [0, 1]", ErrConfig, c.Albedo)
	}
	return nil
}

// Solver implements transport.Solver.
type Solver struct {
	cfg    Config
	volume []float64
	log    *logging.Logger
}

var _ transport.Solver = (*Solver)(nil)

func New(cfg Config, log *logging.Logger) (*Solver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if log == nil {
		log = logging.Discard()
	}

	volume := make([]float64, len(cfg.RInner))
	for i := range volume {
		volume[i] = 4.0 / 3.0 * math.Pi * (math.Pow(cfg.ROuter[i], 3) - math.Pow(cfg.RInner[i], 3))
	}
	return &Solver{cfg: cfg, volume: volume, log: log.WithComponent("montecarlo")}, nil
}

func (s *Solver) Shells() int { return len(s.cfg.RInner) }

// block holds the estimators accumulated by one packet block.
type block struct {
	j       []float64
	nuBar   []float64
	virtual []float64
	err     error
}

func (s *Solver) Run(ctx context.Context, req transport.Request) (*transport.Estimators, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	shells := s.Shells()
	if req.State.Shells() != shells {
		return nil, fmt.Errorf("%w: %d shells in state, %d in solver", ErrShells, req.State.Shells(), shells)
	}

	lInner := physics.LuminosityInner(s.cfg.RInner[0], req.State.TInner)
	n := req.Packets
	est := &transport.Estimators{
		OutputNu:                   make([]float64, n),
		OutputEnergy:               make([]float64, n),
		JEstimator:                 make([]float64, shells),
		NuBarEstimator:             make([]float64, shells),
		LastLineInteractionInID:    make([]int64, n),
		LastLineInteractionOutID:   make([]int64, n),
		LastInteractionType:        make([]int64, n),
		LastLineInteractionShellID: make([]int64, n),
		TimeOfSimulation:           1 / lInner,
		Volume:                     append([]float64(nil), s.volume...),
	}

	virtual := 0
	if req.Final && req.VirtualPackets > 0 && len(s.cfg.SpectrumEdges) > 1 {
		virtual = req.VirtualPackets
		est.VirtualEnergy = make([]float64, len(s.cfg.SpectrumEdges)-1)
	}

	numBlocks := (n + s.cfg.BlockSize - 1) / s.cfg.BlockSize
	blocks := make([]block, numBlocks)
	energy := 1 / float64(n)

	parallelFor(numBlocks, req.Threads, func(start, end int) {
		for b := start; b < end; b++ {
			blocks[b] = s.runBlock(ctx, req, est, b, energy, virtual)
			if blocks[b].err != nil {
				return
			}
		}
	})

	for _, b := range blocks {
		if b.err != nil {
			return nil, b.err
		}
		for i := range b.j {
			est.JEstimator[i] += b.j[i]
			est.NuBarEstimator[i] += b.nuBar[i]
		}
		for i := range b.virtual {
			est.VirtualEnergy[i] += b.virtual[i]
		}
	}
	return est, nil
}

// runBlock transports the packets of block b. Per-packet outputs are written
// straight into est; shell estimators are returned for an ordered merge.
func (s *Solver) runBlock(ctx context.Context, req transport.Request, est *transport.Estimators, b int, energy float64, virtual int) block {
	shells := s.Shells()
	out := block{j: make([]float64, shells), nuBar: make([]float64, shells)}
	if virtual > 0 {
		out.virtual = make([]float64, len(s.cfg.SpectrumEdges)-1)
	}
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed + int64(b)))
	start := b * s.cfg.BlockSize
	end := start + s.cfg.BlockSize
	if end > req.Packets {
		end = req.Packets
	}
	for p := start; p < end; p++ {
		s.transportPacket(rng, req, est, &out, p, energy, virtual)
	}
	return out
}

func (s *Solver) transportPacket(rng *rand.Rand, req transport.Request, est *transport.Estimators, acc *block, p int, energy float64, virtual int) {
	rPh := s.cfg.RInner[0]
	r := rPh
	mu := photosphereMu(rng)
	nu := sampleBlackbody(rng, req.State.TInner)
	shell := 0

	est.LastInteractionType[p] = transport.InteractionNone
	est.LastLineInteractionInID[p] = transport.InteractionNone
	est.LastLineInteractionOutID[p] = transport.InteractionNone
	est.LastLineInteractionShellID[p] = transport.InteractionNone

	if virtual > 0 {
		s.spawnVirtual(rng, acc.virtual, r, shell, nu, energy, virtual, true)
	}

	for step := 0; step < maxInteractions; {
		dBoundary, delta := distanceToBoundary(r, mu, s.cfg.RInner[shell], s.cfg.ROuter[shell])
		dInteraction := math.Inf(1)
		if op := s.cfg.Opacity[shell]; op > 0 {
			dInteraction = sampleOpticalDepth(rng) / op
		}

		if dInteraction < dBoundary {
			acc.j[shell] += energy * dInteraction
			acc.nuBar[shell] += energy * dInteraction * nu
			r, mu = move(r, mu, dInteraction)
			step++

			mu = isotropicMu(rng)
			if rng.Float64() < s.cfg.Albedo {
				est.LastInteractionType[p] = transport.InteractionElectron
			} else {
				nuIn := nu
				nu = sampleBlackbody(rng, req.State.TRad[shell])
				est.LastInteractionType[p] = transport.InteractionLine
				est.LastLineInteractionInID[p] = lineID(nuIn)
				est.LastLineInteractionOutID[p] = lineID(nu)
				est.LastLineInteractionShellID[p] = int64(shell)
			}
			if virtual > 0 {
				s.spawnVirtual(rng, acc.virtual, r, shell, nu, energy, virtual, false)
			}
			continue
		}

		acc.j[shell] += energy * dBoundary
		acc.nuBar[shell] += energy * dBoundary * nu
		r, mu = move(r, mu, dBoundary)
		shell += delta

		switch {
		case shell < 0:
			est.OutputNu[p] = nu
			est.OutputEnergy[p] = -energy
			return
		case shell >= len(s.cfg.RInner):
			est.OutputNu[p] = nu
			est.OutputEnergy[p] = energy
			return
		}
	}

	// Trapped packets count as reabsorbed.
	est.OutputNu[p] = nu
	est.OutputEnergy[p] = -energy
}

// spawnVirtual sends virtual packets from r towards the observer and bins
// the energy that survives the optical depth to the outer boundary.
func (s *Solver) spawnVirtual(rng *rand.Rand, bins []float64, r float64, shell int, nu, energy float64, n int, photosphere bool) {
	bin := binIndex(s.cfg.SpectrumEdges, nu)
	if bin < 0 {
		return
	}
	lo := muMin(r, s.cfg.RInner[0])
	if photosphere {
		lo = 0
	}
	width := (1 - lo) / float64(n)

	for k := 0; k < n; k++ {
		mu := lo + (float64(k)+rng.Float64())*width
		var weight float64
		if photosphere {
			weight = 2 * mu / float64(n)
		} else {
			weight = (1 - lo) / (2 * float64(n))
		}
		tau, ok := s.opticalDepthToEscape(r, mu, shell)
		if !ok {
			continue
		}
		bins[bin] += energy * weight * math.Exp(-tau)
	}
}

func (s *Solver) opticalDepthToEscape(r, mu float64, shell int) (float64, bool) {
	tau := 0.0
	for shell < len(s.cfg.RInner) {
		d, delta := distanceToBoundary(r, mu, s.cfg.RInner[shell], s.cfg.ROuter[shell])
		tau += s.cfg.Opacity[shell] * d
		r, mu = move(r, mu, d)
		shell += delta
		if shell < 0 {
			return 0, false
		}
	}
	return tau, true
}

func binIndex(edges []float64, x float64) int {
	if len(edges) < 2 || x < edges[0] || x > edges[len(edges)-1] {
		return -1
	}
	i := sort.SearchFloat64s(edges, x)
	if i == len(edges) || edges[i] != x {
		i--
	}
	if i >= len(edges)-1 {
		i = len(edges) - 2
	}
	return i
}

func lineID(nu float64) int64 {
	if nu <= lineGridStart {
		return 0
	}
	if nu >= lineGridStop {
		return lineGridBins - 1
	}
	f := math.Log(nu/lineGridStart) / math.Log(lineGridStop/lineGridStart)
	return int64(f * lineGridBins)
}
