package integrators

import (
	"math"

	"github.com/san-kum/jumpsim/internal/dynamo"
)

// Heun is the stochastic Heun predictor-corrector. Strong order 1 for
// additive noise.
type Heun struct {
	f1, g1  dynamo.State
	f2, g2  dynamo.State
	dw      dynamo.State
	scratch dynamo.State
}

func NewHeun() *Heun {
	return &Heun{}
}

func (h *Heun) Name() string { return "heun" }

func (h *Heun) ensureScratch(n int) {
	if len(h.f1) != n {
		h.f1 = make(dynamo.State, n)
		h.g1 = make(dynamo.State, n)
		h.f2 = make(dynamo.State, n)
		h.g2 = make(dynamo.State, n)
		h.dw = make(dynamo.State, n)
		h.scratch = make(dynamo.State, n)
	}
}

func (h *Heun) Step(sys dynamo.System, x dynamo.State, t, dt float64, r dynamo.Source) {
	n := len(x)
	h.ensureScratch(n)

	sys.Drift(h.f1, x, t)
	sys.Volatility(h.g1, x, t)

	sq := math.Sqrt(dt)
	for i := 0; i < n; i++ {
		h.dw[i] = sq * r.NormFloat64()
		h.scratch[i] = x[i] + h.f1[i]*dt + h.g1[i]*h.dw[i]
	}

	sys.Drift(h.f2, h.scratch, t+dt)
	sys.Volatility(h.g2, h.scratch, t+dt)

	for i := 0; i < n; i++ {
		x[i] += 0.5*(h.f1[i]+h.f2[i])*dt + 0.5*(h.g1[i]+h.g2[i])*h.dw[i]
	}
}
