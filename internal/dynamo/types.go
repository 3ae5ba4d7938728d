package dynamo

import (
	"fmt"
	"math"
)

// State holds one value per particle. Its length never changes during a
// trajectory.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Extremes returns the smallest and largest particle values.
func (s State) Extremes() (lo, hi float64) {
	if len(s) == 0 {
		return 0, 0
	}
	lo, hi = s[0], s[0]
	for _, v := range s[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Source is the random stream owned by one trajectory.
type Source interface {
	Float64() float64
	NormFloat64() float64
	ExpFloat64() float64
	Intn(n int) int
}

// Distribution draws initial particle values.
type Distribution interface {
	Name() string
	Sample(r Source) float64
	Validate() error
}

// System describes dX = f(X, t) dt + g(X, t) dW componentwise, with no
// cross terms between particles.
type System interface {
	Drift(dst, x State, t float64)
	Volatility(dst, x State, t float64)
	Dim() int
}

// Stepper advances x in place over a single step of length dt.
type Stepper interface {
	Name() string
	Step(sys System, x State, t, dt float64, r Source)
}

// Observer is called exactly once per save time, in increasing time order.
// Reset is called before the first save of every trajectory.
type Observer interface {
	Reset()
	OnSave(t float64, x State)
}

// Params is the validated, immutable configuration shared read-only by all
// trajectories of an ensemble.
type Params struct {
	Mu            float64
	Sigma         float64
	N             int
	RhoMax        float64
	SaveTimes     []float64
	Initial       Distribution
	Trajectories  int
	Algorithm     string
	Dt            float64
	Lookahead     float64
	BoundSafety   float64
	Seed          int64
	MaxIterations int
	RecordJumps   bool
}

// Horizon is the last save time.
func (p *Params) Horizon() float64 {
	if len(p.SaveTimes) == 0 {
		return 0
	}
	return p.SaveTimes[len(p.SaveTimes)-1]
}

// Validate checks every parameter and returns a *ConfigError for the first
// violation.
func (p *Params) Validate() error {
	switch {
	case p.N < 1:
		return &ConfigError{Field: "particles", Reason: fmt.Sprintf("must be >= 1, got %d", p.N)}
	case p.Sigma < 0 || math.IsNaN(p.Sigma):
		return &ConfigError{Field: "sigma", Reason: fmt.Sprintf("must be non-negative, got %g", p.Sigma)}
	case p.RhoMax < 0 || math.IsNaN(p.RhoMax):
		return &ConfigError{Field: "rho_max", Reason: fmt.Sprintf("must be non-negative, got %g", p.RhoMax)}
	case math.IsNaN(p.Mu) || math.IsInf(p.Mu, 0):
		return &ConfigError{Field: "mu", Reason: "must be finite"}
	case p.Trajectories < 1:
		return &ConfigError{Field: "trajectories", Reason: fmt.Sprintf("must be >= 1, got %d", p.Trajectories)}
	case p.Dt <= 0:
		return &ConfigError{Field: "dt", Reason: fmt.Sprintf("must be positive, got %g", p.Dt)}
	case p.Lookahead <= 0:
		return &ConfigError{Field: "lookahead", Reason: fmt.Sprintf("must be positive, got %g", p.Lookahead)}
	case p.BoundSafety < 1:
		return &ConfigError{Field: "bound_safety", Reason: fmt.Sprintf("must be >= 1, got %g", p.BoundSafety)}
	case p.MaxIterations < 1:
		return &ConfigError{Field: "max_iterations", Reason: fmt.Sprintf("must be >= 1, got %d", p.MaxIterations)}
	case p.Initial == nil:
		return &ConfigError{Field: "initial", Reason: "distribution is required"}
	}
	if err := p.Initial.Validate(); err != nil {
		return &ConfigError{Field: "initial", Reason: err.Error()}
	}
	return ValidateSaveTimes(p.SaveTimes)
}

// ValidateSaveTimes requires a non-empty, finite, non-negative and strictly
// increasing grid.
func ValidateSaveTimes(ts []float64) error {
	if len(ts) == 0 {
		return &ConfigError{Field: "save_times", Reason: "must not be empty"}
	}
	for i, t := range ts {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
			return &ConfigError{Field: "save_times", Reason: fmt.Sprintf("entry %d (%g) must be finite and non-negative", i, t)}
		}
		if i > 0 && t <= ts[i-1] {
			return &ConfigError{Field: "save_times", Reason: fmt.Sprintf("not strictly increasing at entry %d (%g <= %g)", i, t, ts[i-1])}
		}
	}
	return nil
}

// Moment channel indices.
const (
	ChannelMin = iota
	ChannelMean
	ChannelMedian
	ChannelMax
	ChannelGrowth
	NumMomentChannels
)

// MomentChannels names the MomentRecord fields in channel order.
var MomentChannels = []string{"min", "mean", "median", "max", "growth"}

// MomentRecord summarizes the population at one save time.
type MomentRecord struct {
	Time   float64 `json:"time"`
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
	Growth float64 `json:"growth"`
}

// Channel returns the value of the channel with the given index.
func (m MomentRecord) Channel(c int) float64 {
	switch c {
	case ChannelMin:
		return m.Min
	case ChannelMean:
		return m.Mean
	case ChannelMedian:
		return m.Median
	case ChannelMax:
		return m.Max
	case ChannelGrowth:
		return m.Growth
	}
	return math.NaN()
}

// MomentLog is the append-only per-trajectory sequence of records.
type MomentLog []MomentRecord

// JumpEvent is one accepted catch-up jump.
type JumpEvent struct {
	Time     float64
	Particle int
	Target   int
	Before   float64
	After    float64
}

// Result is the output of a single trajectory.
type Result struct {
	Seed            uint64
	Times           []float64
	States          []State
	Final           State
	Events          []JumpEvent
	Iterations      int
	Candidates      int
	Jumps           int
	Rejections      int
	BoundViolations int
}
