package jumps

import (
	"context"
	"math"

	"github.com/san-kum/jumpsim/internal/dynamo"
)

// Diffuser advances x in place from t over a horizon h. A non-nil error
// aborts the scheduler with x part way through the horizon.
type Diffuser func(x dynamo.State, t, h float64) error

// Stats counts scheduler activity for one trajectory.
type Stats struct {
	Iterations      int
	Candidates      int
	Jumps           int
	Rejections      int
	BoundViolations int
}

// Scheduler samples catch-up jumps by thinning against a windowed bound.
// It keeps a scratch buffer and belongs to a single trajectory.
type Scheduler struct {
	RhoMax        float64
	Sigma         float64
	Lookahead     float64
	Safety        float64
	MaxIterations int

	rates []float64
}

func NewScheduler(p *dynamo.Params) *Scheduler {
	return &Scheduler{
		RhoMax:        p.RhoMax,
		Sigma:         p.Sigma,
		Lookahead:     p.Lookahead,
		Safety:        p.BoundSafety,
		MaxIterations: p.MaxIterations,
		rates:         make([]float64, p.N),
	}
}

// Bound returns the upper bound on the total intensity over the next
// lookahead window. Zero means no jump can occur for any horizon.
func (s *Scheduler) Bound(x dynamo.State) float64 {
	n := len(x)
	if n < 2 || s.RhoMax == 0 {
		return 0
	}
	lo, hi := x.Extremes()
	spread := (hi - lo) + 2*s.Safety*s.Sigma*math.Sqrt(s.Lookahead)
	if spread <= 0 {
		return 0
	}
	return s.RhoMax * float64(n-1) * spread
}

// RunUntil advances x from t to until, interleaving diffusion with accepted
// jumps. onJump, when non-nil, sees every accepted event. It returns the
// time reached, which equals until unless an error is returned.
func (s *Scheduler) RunUntil(ctx context.Context, x dynamo.State, t, until float64, diffuse Diffuser, r dynamo.Source, stats *Stats, onJump func(dynamo.JumpEvent)) (float64, error) {
	if len(s.rates) != len(x) {
		s.rates = make([]float64, len(x))
	}

	iter := 0
	for t < until {
		if iter >= s.MaxIterations {
			return t, &dynamo.StallError{Time: t, Iterations: iter}
		}
		iter++
		stats.Iterations++
		if iter&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return t, err
			}
		}

		b := s.Bound(x)
		if b <= 0 {
			if err := diffuse(x, t, until-t); err != nil {
				return t, err
			}
			t = until
			continue
		}

		end := math.Min(t+s.Lookahead, until)
		tau := r.ExpFloat64() / b
		if t+tau >= end {
			if err := diffuse(x, t, end-t); err != nil {
				return t, err
			}
			t = end
			continue
		}

		if err := diffuse(x, t, tau); err != nil {
			return t, err
		}
		t += tau
		stats.Candidates++

		total := Rates(s.rates, x, s.RhoMax)
		if total > b {
			stats.BoundViolations++
		}
		if r.Float64()*b >= total {
			stats.Rejections++
			continue
		}

		i := pick(s.rates, total, r)
		before := x[i]
		j := Apply(x, i, r)
		stats.Jumps++
		if onJump != nil {
			onJump(dynamo.JumpEvent{Time: t, Particle: i, Target: j, Before: before, After: x[i]})
		}
	}
	return t, nil
}
