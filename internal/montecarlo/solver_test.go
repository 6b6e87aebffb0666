package montecarlo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/san-kum/radsim/internal/physics"
	"github.com/san-kum/radsim/internal/plasma"
	"github.com/san-kum/radsim/internal/transport"
)

const rPh = 1e15

var allFrequencies = transport.Band{NuStart: 0, NuEnd: math.Inf(1)}

func shells(factors []float64, opacity float64) Config {
	cfg := Config{Seed: 42, Albedo: 1}
	for i := 0; i+1 < len(factors); i++ {
		cfg.RInner = append(cfg.RInner, factors[i]*rPh)
		cfg.ROuter = append(cfg.ROuter, factors[i+1]*rPh)
		cfg.Opacity = append(cfg.Opacity, opacity)
	}
	return cfg
}

func uniformState(n int, t, w float64) plasma.State {
	tRad := make([]float64, n)
	ws := make([]float64, n)
	for i := range tRad {
		tRad[i], ws[i] = t, w
	}
	return plasma.New(tRad, ws, t)
}

func request(state plasma.State, packets, threads int) transport.Request {
	return transport.Request{State: state, Packets: packets, Threads: threads}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no shells", func(c *Config) { c.RInner, c.ROuter, c.Opacity = nil, nil, nil }},
		{"length mismatch", func(c *Config) { c.Opacity = c.Opacity[:1] }},
		{"gap", func(c *Config) { c.RInner[1] *= 1.01 }},
		{"inverted", func(c *Config) { c.ROuter[0] = c.RInner[0] / 2 }},
		{"negative opacity", func(c *Config) { c.Opacity[0] = -1 }},
		{"albedo", func(c *Config) { c.Albedo = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := shells([]float64{1, 1.5, 2}, 0)
			tt.modify(&cfg)
			if _, err := New(cfg, nil); !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestSolver_ShellMismatch(t *testing.T) {
	s, err := New(shells([]float64{1, 1.5, 2}, 0), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = s.Run(context.Background(), request(uniformState(3, 1e4, 0.3), 10, 1))
	if !errors.Is(err, ErrShells) {
		t.Errorf("expected ErrShells, got %v", err)
	}
}

func TestSolver_TransparentEjecta(t *testing.T) {
	factors := []float64{2, 2.2, 2.4, 2.6}
	s, _ := New(shells(factors, 0), nil)
	const tInner = 1e4

	est, err := s.Run(context.Background(), request(uniformState(3, tInner, 0.1), 40000, 4))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lInner := physics.LuminosityInner(s.cfg.RInner[0], tInner)
	if got := est.EmittedLuminosity(allFrequencies); math.Abs(got-lInner)/lInner > 1e-9 {
		t.Errorf("emitted luminosity %e, want every packet (%e)", got, lInner)
	}
	if est.ReabsorbedLuminosity(allFrequencies) != 0 {
		t.Error("transparent ejecta reabsorbed packets")
	}
	for _, typ := range est.LastInteractionType {
		if typ != transport.InteractionNone {
			t.Fatal("packet interacted in transparent ejecta")
		}
	}

	tRad, w := est.RadiationField()
	for i := range tRad {
		if rel := math.Abs(tRad[i]-tInner) / tInner; rel > 0.03 {
			t.Errorf("shell %d: t_rad %.0f deviates %.1f%% from the photosphere", i, tRad[i], 100*rel)
		}
		want := meanDilution(factors[i]*rPh, factors[i+1]*rPh, s.cfg.RInner[0])
		if rel := math.Abs(w[i]-want) / want; rel > 0.06 {
			t.Errorf("shell %d: w %.4f, geometric dilution %.4f", i, w[i], want)
		}
	}
}

// meanDilution is the volume average of the geometric dilution factor
// over [r0, r1].
func meanDilution(r0, r1, rIn float64) float64 {
	const steps = 2000
	h := (r1 - r0) / steps
	num, den := 0.0, 0.0
	for k := 0; k <= steps; k++ {
		r := r0 + float64(k)*h
		c := 2.0
		if k == 0 || k == steps {
			c = 1
		} else if k%2 == 1 {
			c = 4
		}
		num += c * physics.GeometricDilution(r, rIn) * r * r
		den += c * r * r
	}
	return num / den
}

func TestSolver_ThreadCountDoesNotChangeResult(t *testing.T) {
	cfg := shells([]float64{1, 1.2, 1.5, 2}, 3/rPh)
	cfg.Albedo = 0.5
	cfg.BlockSize = 100
	s, _ := New(cfg, nil)
	req := request(uniformState(3, 1.2e4, 0.3), 1500, 1)

	single, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	req.Threads = 6
	multi, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual(single, multi) {
		t.Error("estimators differ between 1 and 6 threads")
	}
}

func TestSolver_OpaqueEjecta(t *testing.T) {
	cfg := shells([]float64{1, 1.1, 1.2}, 50/rPh)
	cfg.Albedo = 0.3
	s, _ := New(cfg, nil)

	est, err := s.Run(context.Background(), request(uniformState(2, 1e4, 0.4), 2000, 2))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if est.ReabsorbedLuminosity(allFrequencies) <= 0 {
		t.Error("expected reabsorbed packets in opaque ejecta")
	}
	if len(est.InteractingPackets()) == 0 {
		t.Error("expected line interactions")
	}
	for _, p := range est.InteractingPackets() {
		if sh := est.LastLineInteractionShellID[p]; sh < 0 || sh > 1 {
			t.Fatalf("packet %d interacted in shell %d", p, sh)
		}
	}
	total := est.EmittedLuminosity(allFrequencies) + est.ReabsorbedLuminosity(allFrequencies)
	lInner := 1 / est.TimeOfSimulation
	if math.Abs(total-lInner)/lInner > 1e-9 {
		t.Errorf("emitted+reabsorbed %e, want inner luminosity %e", total, lInner)
	}
}

func TestSolver_VirtualPacketsOnlyInFinalRun(t *testing.T) {
	cfg := shells([]float64{2, 2.5, 3}, 0.2/rPh)
	cfg.SpectrumEdges = transport.LinearEdges(1e13, 5e15, 50)
	s, _ := New(cfg, nil)
	req := request(uniformState(2, 1e4, 0.1), 4000, 2)
	req.VirtualPackets = 3

	est, _ := s.Run(context.Background(), req)
	if est.VirtualEnergy != nil {
		t.Error("virtual packets ran outside the final run")
	}

	req.Final = true
	est, err := s.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(est.VirtualEnergy) != 50 {
		t.Fatalf("virtual bins %d, want 50", len(est.VirtualEnergy))
	}

	spectra, err := est.Spectra(cfg.SpectrumEdges, req.VirtualPackets, 0)
	if err != nil {
		t.Fatalf("Spectra failed: %v", err)
	}
	emitted, virt := spectra.Emitted.Total(), spectra.Virtual.Total()
	if rel := math.Abs(emitted-virt) / emitted; rel > 0.1 {
		t.Errorf("virtual spectrum total %e differs %.1f%% from real %e", virt, 100*rel, emitted)
	}
}

func TestSolver_Canceled(t *testing.T) {
	s, _ := New(shells([]float64{1, 2}, 0), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Run(ctx, request(uniformState(1, 1e4, 0.3), 100, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSampleBlackbody_MeanFrequency(t *testing.T) {
	const temp = 8000.0
	rng := rand.New(rand.NewSource(7))
	sum := 0.0
	const n = 200000
	for i := 0; i < n; i++ {
		sum += sampleBlackbody(rng, temp)
	}
	mean := sum / n
	want := temp / physics.TRadEstimatorConstant
	if rel := math.Abs(mean-want) / want; rel > 0.01 {
		t.Errorf("mean frequency %e, want %e", mean, want)
	}
}

func TestDistanceToBoundary(t *testing.T) {
	tests := []struct {
		name      string
		r, mu     float64
		wantD     float64
		wantDelta int
	}{
		{"radial outwards", 1, 1, 1, 1},
		{"radial inwards", 1.5, -1, 0.5, -1},
		{"tangent", 1, 0, math.Sqrt(3), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, delta := distanceToBoundary(tt.r, tt.mu, 1, 2)
			if math.Abs(d-tt.wantD) > 1e-12 || delta != tt.wantDelta {
				t.Errorf("got (%v, %d), want (%v, %d)", d, delta, tt.wantD, tt.wantDelta)
			}
		})
	}
}

func TestBinIndex(t *testing.T) {
	edges := []float64{0, 1, 2, 3}
	cases := map[float64]int{-1: -1, 0: 0, 0.5: 0, 1: 1, 2.9: 2, 3: 2, 4: -1}
	for x, want := range cases {
		if got := binIndex(edges, x); got != want {
			t.Errorf("binIndex(%v) = %d, want %d", x, got, want)
		}
	}
}

func TestParallelFor_CoversRange(t *testing.T) {
	for _, workers := range []int{1, 3, 8, 50} {
		seen := make([]int, 17)
		parallelFor(17, workers, func(start, end int) {
			for i := start; i < end; i++ {
				seen[i]++
			}
		})
		for i, c := range seen {
			if c != 1 {
				t.Errorf("workers=%d: index %d visited %d times", workers, i, c)
			}
		}
	}
}
