package montecarlo

import (
	"math"
	"math/rand"

	"github.com/san-kum/radsim/internal/physics"
)

const blackbodyNorm = math.Pi * math.Pi * math.Pi * math.Pi / 90

// sampleBlackbody draws a frequency from a Planck distribution at t.
func sampleBlackbody(rng *rand.Rand, t float64) float64 {
	target := rng.Float64() * blackbodyNorm
	l := 1.0
	sum := 1.0
	for sum < target {
		l++
		sum += 1 / (l * l * l * l)
	}
	prod := (1 - rng.Float64()) * (1 - rng.Float64()) * (1 - rng.Float64()) * (1 - rng.Float64())
	x := -math.Log(prod) / l
	return x * physics.KB * t / physics.H
}

func sampleOpticalDepth(rng *rand.Rand) float64 {
	return -math.Log(1 - rng.Float64())
}

func isotropicMu(rng *rand.Rand) float64 {
	return 2*rng.Float64() - 1
}

// photosphereMu draws an outward direction for a packet leaving a
// blackbody surface.
func photosphereMu(rng *rand.Rand) float64 {
	return math.Sqrt(rng.Float64())
}
