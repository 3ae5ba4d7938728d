package integrators

import (
	"math"

	"github.com/san-kum/jumpsim/internal/dynamo"
)

// EulerMaruyama is the strong order 0.5 scheme. It is exact in law for
// constant drift and volatility.
type EulerMaruyama struct {
	f, g dynamo.State
}

func NewEulerMaruyama() *EulerMaruyama {
	return &EulerMaruyama{}
}

func (e *EulerMaruyama) Name() string { return "euler_maruyama" }

func (e *EulerMaruyama) ensureScratch(n int) {
	if len(e.f) != n {
		e.f = make(dynamo.State, n)
		e.g = make(dynamo.State, n)
	}
}

func (e *EulerMaruyama) Step(sys dynamo.System, x dynamo.State, t, dt float64, r dynamo.Source) {
	e.ensureScratch(len(x))
	sys.Drift(e.f, x, t)
	sys.Volatility(e.g, x, t)

	sq := math.Sqrt(dt)
	for i := range x {
		x[i] += e.f[i]*dt + e.g[i]*sq*r.NormFloat64()
	}
}
