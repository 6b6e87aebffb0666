package convergence

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/radsim/internal/plasma"
)

func specific(threshold float64) Strategy {
	p := Params{DampingConstant: 0.5, Threshold: threshold}
	return New("specific", p, p, p)
}

func TestDamp_BetweenEndpoints(t *testing.T) {
	pairs := [][2]float64{{1e4, 1.2e4}, {0.5, 0.1}, {-3, 7}, {9000, 8999.5}}
	dampings := []float64{0.05, 0.3, 0.5, 0.7, 0.99}

	for _, p := range pairs {
		lo, hi := math.Min(p[0], p[1]), math.Max(p[0], p[1])
		for _, d := range dampings {
			got := Damp(p[0], p[1], d)
			if got <= lo || got >= hi {
				t.Errorf("Damp(%v, %v, %v) = %v, not strictly inside (%v, %v)", p[0], p[1], d, got, lo, hi)
			}
		}
	}
}

func TestDamp_Endpoints(t *testing.T) {
	if got := Damp(10, 20, 0); got != 10 {
		t.Errorf("damping 0 should keep current, got %v", got)
	}
	if got := Damp(10, 20, 1); got != 20 {
		t.Errorf("damping 1 should jump to estimate, got %v", got)
	}
}

func TestDamp_Idempotent(t *testing.T) {
	for _, d := range []float64{0, 0.1, 0.5, 1, 2} {
		if got := Damp(1234.5, 1234.5, d); got != 1234.5 {
			t.Errorf("Damp(x, x, %v) = %v, want x", d, got)
		}
	}
}

func TestStrategy_Next(t *testing.T) {
	s := New("damped",
		Params{DampingConstant: 0.5},
		Params{DampingConstant: 0.25},
		Params{DampingConstant: 1},
	)
	cur := plasma.New([]float64{100, 200}, []float64{0.4, 0.8}, 1000)
	est := plasma.New([]float64{200, 200}, []float64{0.8, 0.0}, 2000)

	next, err := s.Next(cur, est)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	if next.TRad[0] != 150 || next.TRad[1] != 200 {
		t.Errorf("unexpected t_rad %v", next.TRad)
	}
	if math.Abs(next.W[0]-0.5) > 1e-12 || math.Abs(next.W[1]-0.6) > 1e-12 {
		t.Errorf("unexpected w %v", next.W)
	}
	if next.TInner != 2000 {
		t.Errorf("unexpected t_inner %v", next.TInner)
	}
	if cur.TRad[0] != 100 {
		t.Error("Next must not mutate the current state")
	}
}

func TestStrategy_UnknownKind(t *testing.T) {
	s := New("bogus", Params{}, Params{}, Params{})
	st := plasma.New([]float64{1}, []float64{1}, 1)

	_, err := s.Next(st, st)
	if err == nil {
		t.Fatal("expected configuration error")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Kind != "bogus" {
		t.Errorf("expected ConfigError naming bogus, got %v", err)
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error message should name the kind: %q", err.Error())
	}
	if !errors.Is(err, ErrUnknownKind) {
		t.Error("ConfigError should match ErrUnknownKind")
	}

	if _, err := s.Converged(st, st); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Converged should fail as well, got %v", err)
	}
	if _, _, err := s.Evaluate(st, st); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Evaluate should fail as well, got %v", err)
	}
}

func TestStrategy_DampedNeverConverges(t *testing.T) {
	s := New("damped", Params{Threshold: 0.5}, Params{Threshold: 0.5}, Params{Threshold: 0.5})
	st := plasma.New([]float64{1, 1}, []float64{1, 1}, 1)

	ok, err := s.Converged(st, st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("damped strategy must not report convergence")
	}
}

func TestStrategy_SpecificVerdict(t *testing.T) {
	est := plasma.New([]float64{100, 100, 100, 100}, []float64{1, 1, 1, 1}, 100)

	tests := []struct {
		name string
		cur  plasma.State
		want bool
	}{
		{
			"all shells within",
			plasma.New([]float64{101, 99, 100, 102}, []float64{1, 1.01, 0.99, 1}, 101),
			true,
		},
		{
			"exactly half of t_rad within is not enough",
			plasma.New([]float64{101, 99, 300, 300}, []float64{1, 1, 1, 1}, 100),
			false,
		},
		{
			"three of four t_rad within",
			plasma.New([]float64{101, 99, 100, 300}, []float64{1, 1, 1, 1}, 100),
			true,
		},
		{
			"w fails",
			plasma.New([]float64{100, 100, 100, 100}, []float64{3, 3, 3, 1}, 100),
			false,
		},
		{
			"t_inner fails",
			plasma.New([]float64{100, 100, 100, 100}, []float64{1, 1, 1, 1}, 200),
			false,
		},
		{
			"t_inner deviation equal to threshold fails",
			plasma.New([]float64{100, 100, 100, 100}, []float64{1, 1, 1, 1}, 150),
			false,
		},
	}

	s := specific(0.5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Converged(tt.cur, est)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Converged() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvergedFraction_MonotoneInTolerance(t *testing.T) {
	values := []float64{100, 105, 110, 130, 160, 90, 70}
	estimated := []float64{100, 100, 100, 100, 100, 100, 100}

	prev := -1.0
	for tol := 0.0; tol <= 1.0; tol += 0.01 {
		f := ConvergedFraction(values, estimated, tol)
		if f < prev {
			t.Fatalf("fraction decreased from %v to %v at tol=%v", prev, f, tol)
		}
		prev = f
	}
	if prev != 1 {
		t.Errorf("expected every shell within tol=1, got fraction %v", prev)
	}
}

func TestConvergedFraction_Empty(t *testing.T) {
	if f := ConvergedFraction(nil, nil, 0.5); f != 0 {
		t.Errorf("empty fraction = %v, want 0", f)
	}
}

func TestStrategy_Deviation(t *testing.T) {
	s := specific(0.05)
	cur := plasma.New([]float64{110, 100}, []float64{0.5, 0.4}, 90)
	est := plasma.New([]float64{100, 100}, []float64{0.5, 0.5}, 100)

	d := s.Deviation(cur, est)
	if math.Abs(d.MaxTRad-0.1) > 1e-12 {
		t.Errorf("MaxTRad = %v, want 0.1", d.MaxTRad)
	}
	if math.Abs(d.MaxW-0.2) > 1e-12 {
		t.Errorf("MaxW = %v, want 0.2", d.MaxW)
	}
	if d.TRadFraction != 0.5 || d.WFraction != 0.5 {
		t.Errorf("fractions = %v/%v, want 0.5/0.5", d.TRadFraction, d.WFraction)
	}
	if math.Abs(d.TInner-0.1) > 1e-12 {
		t.Errorf("TInner deviation = %v, want 0.1", d.TInner)
	}
}

func TestStrategy_MissingEstimatesNeverConverge(t *testing.T) {
	cur := plasma.New([]float64{100, 100}, []float64{1, 1}, 100)
	nan := math.NaN()

	tests := []struct {
		name string
		est  plasma.State
	}{
		{"t_rad and w missing", plasma.New([]float64{nan, nan}, []float64{nan, nan}, 100)},
		{"t_inner missing", plasma.New([]float64{100, 100}, []float64{1, 1}, nan)},
		{"t_inner infinite", plasma.New([]float64{100, 100}, []float64{1, 1}, math.Inf(1))},
		{"zero w estimate", plasma.New([]float64{100, 100}, []float64{0, 0}, 100)},
	}

	s := specific(0.5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Converged(cur, tt.est)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got {
				t.Error("Converged() = true on a missing estimate")
			}
		})
	}

	d := s.Deviation(cur, plasma.New([]float64{nan, 110}, []float64{nan, 1}, 100))
	if math.IsNaN(d.MaxTRad) || math.Abs(d.MaxTRad-1.0/11) > 1e-12 {
		t.Errorf("MaxTRad = %v, want 1/11 with the missing shell left out", d.MaxTRad)
	}
}
