package model

import (
	"fmt"
	"math"
)

// Geometry holds homologous shells. Radii are velocities times the time
// since explosion.
type Geometry struct {
	VInner        []float64 `json:"v_inner"`
	VOuter        []float64 `json:"v_outer"`
	TimeExplosion float64   `json:"time_explosion"`
}

// NewGeometry splits [vStart, vStop] (cm/s) into shells of equal width.
func NewGeometry(vStart, vStop float64, shells int, timeExplosion float64) (*Geometry, error) {
	if shells < 1 {
		return nil, fmt.Errorf("%w: need at least one shell, got %d", ErrGeometry, shells)
	}
	if vStart <= 0 || vStop <= vStart {
		return nil, fmt.Errorf("%w: velocity range [%g, %g]", ErrGeometry, vStart, vStop)
	}
	if timeExplosion <= 0 {
		return nil, fmt.Errorf("%w: time of explosion must be positive", ErrGeometry)
	}

	g := &Geometry{
		VInner:        make([]float64, shells),
		VOuter:        make([]float64, shells),
		TimeExplosion: timeExplosion,
	}
	dv := (vStop - vStart) / float64(shells)
	for i := 0; i < shells; i++ {
		g.VInner[i] = vStart + float64(i)*dv
		g.VOuter[i] = vStart + float64(i+1)*dv
	}
	g.VOuter[shells-1] = vStop
	return g, nil
}

func (g *Geometry) Shells() int { return len(g.VInner) }

func (g *Geometry) RInner() []float64 { return scale(g.VInner, g.TimeExplosion) }
func (g *Geometry) ROuter() []float64 { return scale(g.VOuter, g.TimeExplosion) }

func (g *Geometry) VMiddle() []float64 {
	out := make([]float64, len(g.VInner))
	for i := range out {
		out[i] = 0.5 * (g.VInner[i] + g.VOuter[i])
	}
	return out
}

func (g *Geometry) RMiddle() []float64 { return scale(g.VMiddle(), g.TimeExplosion) }

// Volume returns the shell volumes in cm^3.
func (g *Geometry) Volume() []float64 {
	rIn, rOut := g.RInner(), g.ROuter()
	out := make([]float64, len(rIn))
	for i := range out {
		out[i] = 4.0 / 3.0 * math.Pi * (math.Pow(rOut[i], 3) - math.Pow(rIn[i], 3))
	}
	return out
}

// Photosphere is the radius of the inner boundary.
func (g *Geometry) Photosphere() float64 { return g.VInner[0] * g.TimeExplosion }

func scale(v []float64, f float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * f
	}
	return out
}
