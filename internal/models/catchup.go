package models

import "github.com/san-kum/jumpsim/internal/dynamo"

// CatchUp is the continuous part of the catch-up particle model: every
// particle follows dX = mu dt + sigma dW independently.
type CatchUp struct {
	Mu    float64
	Sigma float64
	N     int
}

func NewCatchUp(mu, sigma float64, n int) *CatchUp {
	return &CatchUp{Mu: mu, Sigma: sigma, N: n}
}

// FromParams builds the model described by validated parameters.
func FromParams(p *dynamo.Params) *CatchUp {
	return NewCatchUp(p.Mu, p.Sigma, p.N)
}

func (c *CatchUp) Dim() int { return c.N }

func (c *CatchUp) Drift(dst, x dynamo.State, t float64) {
	for i := range dst {
		dst[i] = c.Mu
	}
}

func (c *CatchUp) Volatility(dst, x dynamo.State, t float64) {
	for i := range dst {
		dst[i] = c.Sigma
	}
}

func (c *CatchUp) GetParams() map[string]float64 {
	return map[string]float64{
		"mu":    c.Mu,
		"sigma": c.Sigma,
	}
}
