package jumps

import "github.com/san-kum/jumpsim/internal/dynamo"

// Apply moves particle i up to a uniformly drawn particle j when x[j] is
// larger, and returns j. Drawing i itself leaves the state unchanged.
func Apply(x dynamo.State, i int, r dynamo.Source) int {
	j := r.Intn(len(x))
	if x[j] > x[i] {
		x[i] = x[j]
	}
	return j
}

// pick draws an index with probability proportional to its weight.
func pick(weights []float64, total float64, r dynamo.Source) int {
	u := r.Float64() * total
	acc := 0.0
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if u < acc {
			return i
		}
	}
	return last
}
