package stochastic

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/jumpsim/internal/dynamo"
)

// DistParams carries the parameters of every supported family. Only the
// fields of the selected family are read.
type DistParams struct {
	Rate   float64
	Value  float64
	Low    float64
	High   float64
	Mean   float64
	StdDev float64
}

var families = map[string]func(DistParams) dynamo.Distribution{
	"exponential": func(p DistParams) dynamo.Distribution { return Exponential{Rate: p.Rate} },
	"fixed":       func(p DistParams) dynamo.Distribution { return Fixed{Value: p.Value} },
	"uniform":     func(p DistParams) dynamo.Distribution { return Uniform{Low: p.Low, High: p.High} },
	"normal":      func(p DistParams) dynamo.Distribution { return Normal{Mean: p.Mean, StdDev: p.StdDev} },
}

// NewDistribution builds and validates a distribution of the named family.
func NewDistribution(family string, p DistParams) (dynamo.Distribution, error) {
	fn, ok := families[strings.ToLower(family)]
	if !ok {
		return nil, fmt.Errorf("unknown distribution family: %q (available: %v)", family, Families())
	}
	d := fn(p)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func Families() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exponential has density rate*exp(-rate*x) on x >= 0.
type Exponential struct {
	Rate float64
}

func (e Exponential) Name() string { return "exponential" }

func (e Exponential) Sample(r dynamo.Source) float64 {
	return r.ExpFloat64() / e.Rate
}

func (e Exponential) Validate() error {
	if !(e.Rate > 0) || math.IsInf(e.Rate, 0) {
		return fmt.Errorf("exponential rate must be positive and finite, got %g", e.Rate)
	}
	return nil
}

// Fixed puts every particle at the same value.
type Fixed struct {
	Value float64
}

func (f Fixed) Name() string                  { return "fixed" }
func (f Fixed) Sample(dynamo.Source) float64 { return f.Value }

func (f Fixed) Validate() error {
	if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
		return fmt.Errorf("fixed value must be finite, got %g", f.Value)
	}
	return nil
}

type Uniform struct {
	Low, High float64
}

func (u Uniform) Name() string { return "uniform" }

func (u Uniform) Sample(r dynamo.Source) float64 {
	return u.Low + (u.High-u.Low)*r.Float64()
}

func (u Uniform) Validate() error {
	if math.IsNaN(u.Low) || math.IsNaN(u.High) || math.IsInf(u.Low, 0) || math.IsInf(u.High, 0) {
		return fmt.Errorf("uniform bounds must be finite, got [%g, %g]", u.Low, u.High)
	}
	if u.High < u.Low {
		return fmt.Errorf("uniform high (%g) below low (%g)", u.High, u.Low)
	}
	return nil
}

type Normal struct {
	Mean, StdDev float64
}

func (n Normal) Name() string { return "normal" }

func (n Normal) Sample(r dynamo.Source) float64 {
	return n.Mean + n.StdDev*r.NormFloat64()
}

func (n Normal) Validate() error {
	if math.IsNaN(n.Mean) || math.IsInf(n.Mean, 0) {
		return fmt.Errorf("normal mean must be finite, got %g", n.Mean)
	}
	if n.StdDev < 0 || math.IsNaN(n.StdDev) || math.IsInf(n.StdDev, 0) {
		return fmt.Errorf("normal stddev must be non-negative and finite, got %g", n.StdDev)
	}
	return nil
}

// Draw fills a fresh state of n particles from d.
func Draw(d dynamo.Distribution, n int, r dynamo.Source) dynamo.State {
	x := make(dynamo.State, n)
	for i := range x {
		x[i] = d.Sample(r)
	}
	return x
}
