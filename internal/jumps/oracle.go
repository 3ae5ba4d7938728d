package jumps

import "github.com/san-kum/jumpsim/internal/dynamo"

// Rate returns the instantaneous jump intensity of particle i. A
// homogeneous population (max == min) has zero intensity everywhere.
func Rate(x dynamo.State, i int, rhoMax float64) float64 {
	lo, hi := x.Extremes()
	return intensity(x[i], lo, hi, rhoMax)
}

// Rates writes every particle's intensity into dst and returns their sum.
// dst must have the same length as x.
func Rates(dst []float64, x dynamo.State, rhoMax float64) float64 {
	lo, hi := x.Extremes()
	total := 0.0
	for i, v := range x {
		dst[i] = intensity(v, lo, hi, rhoMax)
		total += dst[i]
	}
	return total
}

func intensity(v, lo, hi, rhoMax float64) float64 {
	span := hi - lo
	if span <= 0 || rhoMax == 0 {
		return 0
	}
	d := v - hi
	return rhoMax * d * d / span
}
