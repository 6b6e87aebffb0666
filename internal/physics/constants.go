package physics

import "math"

const (
	C       = 2.99792458e10    // speed of light, cm/s
	H       = 6.62607015e-27   // Planck constant, erg s
	KB      = 1.380649e-16     // Boltzmann constant, erg/K
	SigmaSB = 5.670374419e-5   // Stefan-Boltzmann constant, erg/(cm^2 s K^4)
	BWien   = 0.28977719551851 // Wien displacement constant, cm K
	Zeta5   = 1.0369277551433699

	AngstromPerCm = 1e8
)

// TRadEstimatorConstant converts nubar/J into a radiation temperature.
var TRadEstimatorConstant = math.Pow(math.Pi, 4) / (15 * 24 * Zeta5) * (H / KB)

func BlackBodyIntensity(nu, t float64) float64 {
	return 2 * H * nu * nu * nu / (C * C) / math.Expm1(H*nu/(KB*t))
}

func LuminosityInner(rInner, tInner float64) float64 {
	return 4 * math.Pi * SigmaSB * rInner * rInner * math.Pow(tInner, 4)
}

// TInnerForLuminosity inverts LuminosityInner.
func TInnerForLuminosity(rInner, luminosity float64) float64 {
	return math.Pow(luminosity/(4*math.Pi*SigmaSB*rInner*rInner), 0.25)
}

func GeometricDilution(r, rInner float64) float64 {
	return 0.5 * (1 - math.Sqrt(1-(rInner*rInner)/(r*r)))
}

func WienShiftedTRad(tInner, vBoundary, vMiddle float64) float64 {
	lambdaInner := BWien / tInner
	return BWien / (lambdaInner * (1 + (vMiddle-vBoundary)/C))
}

// NuToAngstrom converts a frequency to a wavelength.
func NuToAngstrom(nu float64) float64 {
	return C / nu * AngstromPerCm
}
