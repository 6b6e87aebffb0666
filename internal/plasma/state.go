package plasma

import (
	"fmt"
	"math"
)

type State struct {
	TRad   []float64 `json:"t_rad"`
	W      []float64 `json:"w"`
	TInner float64   `json:"t_inner"`
}

func New(tRad, w []float64, tInner float64) State {
	return State{TRad: tRad, W: w, TInner: tInner}
}

func (s State) Shells() int { return len(s.TRad) }

func (s State) Clone() State {
	c := State{
		TRad:   make([]float64, len(s.TRad)),
		W:      make([]float64, len(s.W)),
		TInner: s.TInner,
	}
	copy(c.TRad, s.TRad)
	copy(c.W, s.W)
	return c
}

func (s State) IsValid() bool {
	if math.IsNaN(s.TInner) || math.IsInf(s.TInner, 0) {
		return false
	}
	for _, v := range s.TRad {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range s.W {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Validate checks the shell-count invariant and rejects NaN/Inf values.
func (s State) Validate() error {
	if len(s.TRad) == 0 {
		return ErrEmpty
	}
	if len(s.TRad) != len(s.W) {
		return fmt.Errorf("%w: %d vs %d", ErrShellMismatch, len(s.TRad), len(s.W))
	}
	if !s.IsValid() {
		return ErrInvalidValue
	}
	return nil
}

// SameShape reports whether other describes the same number of shells.
func (s State) SameShape(other State) bool {
	return len(s.TRad) == len(other.TRad) && len(s.W) == len(other.W)
}

// Sample returns the indices of every n-th shell, always including shell 0.
func (s State) Sample(n int) []int {
	if n < 1 {
		n = 1
	}
	idx := make([]int, 0, len(s.TRad)/n+1)
	for i := 0; i < len(s.TRad); i += n {
		idx = append(idx, i)
	}
	return idx
}
