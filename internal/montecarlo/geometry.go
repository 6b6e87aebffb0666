package montecarlo

import "math"

// distanceToBoundary returns the path length to the next shell boundary and
// the shell step (+1 outwards, -1 inwards).
func distanceToBoundary(r, mu, rInner, rOuter float64) (float64, int) {
	muSq := mu * mu
	if mu < 0 {
		check := rInner*rInner + r*r*(muSq-1)
		if check >= 0 {
			return -r*mu - math.Sqrt(check), -1
		}
	}
	d := math.Sqrt(rOuter*rOuter+(muSq-1)*r*r) - r*mu
	if d < 0 {
		d = 0
	}
	return d, 1
}

// move advances a packet by d along mu and returns the new radius and
// direction cosine.
func move(r, mu, d float64) (float64, float64) {
	rNew := math.Sqrt(r*r + d*d + 2*r*d*mu)
	return rNew, (mu*r + d) / rNew
}

// muMin is the smallest direction cosine at r that misses the photosphere.
func muMin(r, rPhotosphere float64) float64 {
	if r <= rPhotosphere {
		return 0
	}
	x := rPhotosphere / r
	return -math.Sqrt(1 - x*x)
}
