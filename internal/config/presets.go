package config

// Presets are complete configurations for well-known regimes.
var Presets = map[string]*Config{
	"frozen": {
		Mu: 0, Sigma: 0, Particles: 1, RhoMax: 0,
		SaveGrid:     GridConfig{Start: 0, Stop: 5, Step: 1},
		Initial:      InitialConfig{Family: "fixed", Value: 5},
		Trajectories: 10, Algorithm: "euler_maruyama", Dt: 0.1, Lookahead: 0.1,
		BoundSafety: DefaultBoundSafety, MaxIterations: DefaultMaxIterations, Mode: "trajectory",
	},
	"diffusion": {
		Mu: 0.01, Sigma: 0.1, Particles: 2, RhoMax: 0,
		SaveTimes:    []float64{0, 1, 2},
		Initial:      InitialConfig{Family: "fixed", Value: 0},
		Trajectories: 1000, Algorithm: "euler_maruyama", Dt: 0.01, Lookahead: 0.1,
		BoundSafety: DefaultBoundSafety, MaxIterations: DefaultMaxIterations, Mode: "moments",
	},
	"catchup": {
		Mu: 0, Sigma: 0, Particles: 3, RhoMax: 100,
		SaveGrid:     GridConfig{Start: 0, Stop: 2, Step: 0.25},
		Initial:      InitialConfig{Family: "uniform", Low: 0, High: 10},
		Trajectories: 50, Algorithm: "euler_maruyama", Dt: 0.01, Lookahead: 0.05,
		BoundSafety: DefaultBoundSafety, MaxIterations: DefaultMaxIterations, Mode: "trajectory",
		RecordJumps: true,
	},
	"herding": {
		Mu: 0.02, Sigma: 0.2, Particles: 50, RhoMax: 1,
		SaveGrid:     GridConfig{Start: 0, Stop: 20, Step: 0.5},
		Initial:      InitialConfig{Family: "exponential", Rate: 1},
		Trajectories: 200, Algorithm: "heun", Dt: 0.01, Lookahead: 0.1,
		BoundSafety: DefaultBoundSafety, Retries: DefaultRetries, MaxIterations: DefaultMaxIterations, Mode: "moments",
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
