package dynamo

import (
	"errors"
	"math"
	"strings"
	"testing"
)

type constDist struct {
	v   float64
	err error
}

func (d constDist) Name() string            { return "const" }
func (d constDist) Sample(r Source) float64 { return d.v }
func (d constDist) Validate() error         { return d.err }

func validParams() *Params {
	return &Params{
		Mu:            0.1,
		Sigma:         0.2,
		N:             4,
		RhoMax:        1,
		SaveTimes:     []float64{0, 1, 2},
		Initial:       constDist{v: 1},
		Trajectories:  10,
		Algorithm:     "euler_maruyama",
		Dt:            0.01,
		Lookahead:     0.1,
		BoundSafety:   5,
		MaxIterations: 1000,
	}
}

func TestStateClone(t *testing.T) {
	s := State{1, 2, 3}
	c := s.Clone()
	c[0] = 99
	if s[0] != 1 {
		t.Error("clone shares memory with the original")
	}
	if len(c) != 3 {
		t.Errorf("expected length 3, got %d", len(c))
	}
}

func TestStateIsValid(t *testing.T) {
	if !(State{0, -1, 1e300}).IsValid() {
		t.Error("finite state reported invalid")
	}
	if (State{0, math.NaN()}).IsValid() {
		t.Error("NaN not detected")
	}
	if (State{math.Inf(-1)}).IsValid() {
		t.Error("Inf not detected")
	}
}

func TestStateExtremes(t *testing.T) {
	lo, hi := State{3, -2, 7, 0}.Extremes()
	if lo != -2 || hi != 7 {
		t.Errorf("expected (-2, 7), got (%g, %g)", lo, hi)
	}
	lo, hi = State{}.Extremes()
	if lo != 0 || hi != 0 {
		t.Errorf("expected (0, 0) for empty state, got (%g, %g)", lo, hi)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	tests := []struct {
		name  string
		mod   func(p *Params)
		field string
	}{
		{"zero particles", func(p *Params) { p.N = 0 }, "particles"},
		{"negative sigma", func(p *Params) { p.Sigma = -0.1 }, "sigma"},
		{"NaN sigma", func(p *Params) { p.Sigma = math.NaN() }, "sigma"},
		{"negative rho", func(p *Params) { p.RhoMax = -1 }, "rho_max"},
		{"infinite mu", func(p *Params) { p.Mu = math.Inf(1) }, "mu"},
		{"zero trajectories", func(p *Params) { p.Trajectories = 0 }, "trajectories"},
		{"zero dt", func(p *Params) { p.Dt = 0 }, "dt"},
		{"zero lookahead", func(p *Params) { p.Lookahead = 0 }, "lookahead"},
		{"small safety", func(p *Params) { p.BoundSafety = 0.5 }, "bound_safety"},
		{"zero iterations", func(p *Params) { p.MaxIterations = 0 }, "max_iterations"},
		{"no distribution", func(p *Params) { p.Initial = nil }, "initial"},
		{"bad distribution", func(p *Params) { p.Initial = constDist{err: errors.New("rate must be positive")} }, "initial"},
		{"empty save times", func(p *Params) { p.SaveTimes = nil }, "save_times"},
		{"negative save time", func(p *Params) { p.SaveTimes = []float64{-1, 0} }, "save_times"},
		{"repeated save time", func(p *Params) { p.SaveTimes = []float64{0, 1, 1} }, "save_times"},
		{"decreasing save times", func(p *Params) { p.SaveTimes = []float64{2, 1} }, "save_times"},
		{"NaN save time", func(p *Params) { p.SaveTimes = []float64{0, math.NaN()} }, "save_times"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mod(p)
			err := p.Validate()

			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, cerr.Field)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Error("ConfigError does not unwrap to ErrInvalidConfig")
			}
		})
	}
}

func TestParamsEdgeCasesAccepted(t *testing.T) {
	p := validParams()
	p.N = 1
	p.Sigma = 0
	p.RhoMax = 0
	p.SaveTimes = []float64{3}
	if err := p.Validate(); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	if p.Horizon() != 3 {
		t.Errorf("expected horizon 3, got %g", p.Horizon())
	}
}

func TestMomentRecordChannel(t *testing.T) {
	m := MomentRecord{Time: 1, Min: 2, Mean: 3, Median: 4, Max: 5, Growth: 6}
	want := []float64{2, 3, 4, 5, 6}
	for c := 0; c < NumMomentChannels; c++ {
		if got := m.Channel(c); got != want[c] {
			t.Errorf("channel %d (%s): got %g, want %g", c, MomentChannels[c], got, want[c])
		}
	}
	if !math.IsNaN(m.Channel(NumMomentChannels)) {
		t.Error("out-of-range channel should be NaN")
	}
	if len(MomentChannels) != NumMomentChannels {
		t.Errorf("%d channel names for %d channels", len(MomentChannels), NumMomentChannels)
	}
}

func TestErrorWrapping(t *testing.T) {
	stall := &StallError{Time: 1.5, Iterations: 100}
	if !errors.Is(stall, ErrSchedulerStall) {
		t.Error("StallError does not unwrap to ErrSchedulerStall")
	}
	if !strings.Contains(stall.Error(), "100 iterations") {
		t.Errorf("unexpected message %q", stall.Error())
	}

	simErr := &SimulationError{Time: 2, State: State{1}, Wrapped: stall}
	if !errors.Is(simErr, ErrSchedulerStall) {
		t.Error("SimulationError does not unwrap its cause")
	}
	var got *StallError
	if !errors.As(simErr, &got) || got.Iterations != 100 {
		t.Error("errors.As could not recover the StallError")
	}
	if errors.Is(simErr, ErrInvalidState) {
		t.Error("unrelated sentinel matched")
	}
}
