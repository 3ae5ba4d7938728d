package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/jumpsim/internal/dynamo"
	"github.com/san-kum/jumpsim/internal/stochastic"
)

const (
	DefaultMu            = 0.01
	DefaultSigma         = 0.1
	DefaultParticles     = 10
	DefaultRhoMax        = 1.0
	DefaultRate          = 1.0
	DefaultHorizon       = 10.0
	DefaultStep          = 1.0
	DefaultTrajectories  = 100
	DefaultAlgorithm     = "euler_maruyama"
	DefaultDt            = 0.01
	DefaultLookahead     = 0.1
	DefaultBoundSafety   = 5.0
	DefaultMaxIterations = 10_000_000
	DefaultRetries       = 1
	DefaultMode          = "moments"
)

type Config struct {
	Mu                float64       `yaml:"mu"`
	Sigma             float64       `yaml:"sigma"`
	Particles         int           `yaml:"particles"`
	RhoMax            float64       `yaml:"rho_max"`
	SaveTimes         []float64     `yaml:"save_times,omitempty"`
	SaveGrid          GridConfig    `yaml:"save_grid"`
	Initial           InitialConfig `yaml:"initial"`
	Trajectories      int           `yaml:"trajectories"`
	Algorithm         string        `yaml:"algorithm"`
	Dt                float64       `yaml:"dt"`
	Lookahead         float64       `yaml:"lookahead"`
	BoundSafety       float64       `yaml:"bound_safety"`
	Seed              int64         `yaml:"seed"`
	Workers           int           `yaml:"workers"`
	Retries           int           `yaml:"retries"`
	MaxIterations     int           `yaml:"max_iterations"`
	TrajectoryTimeout time.Duration `yaml:"trajectory_timeout"`
	RecordJumps       bool          `yaml:"record_jumps"`
	Mode              string        `yaml:"mode"`
}

// GridConfig describes an evenly spaced save grid including both ends.
type GridConfig struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

type InitialConfig struct {
	Family string  `yaml:"family"`
	Rate   float64 `yaml:"rate,omitempty"`
	Value  float64 `yaml:"value,omitempty"`
	Low    float64 `yaml:"low,omitempty"`
	High   float64 `yaml:"high,omitempty"`
	Mean   float64 `yaml:"mean,omitempty"`
	StdDev float64 `yaml:"stddev,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Mu:        DefaultMu,
		Sigma:     DefaultSigma,
		Particles: DefaultParticles,
		RhoMax:    DefaultRhoMax,
		SaveGrid: GridConfig{
			Start: 0,
			Stop:  DefaultHorizon,
			Step:  DefaultStep,
		},
		Initial: InitialConfig{
			Family: "exponential",
			Rate:   DefaultRate,
		},
		Trajectories:  DefaultTrajectories,
		Algorithm:     DefaultAlgorithm,
		Dt:            DefaultDt,
		Lookahead:     DefaultLookahead,
		BoundSafety:   DefaultBoundSafety,
		Retries:       DefaultRetries,
		MaxIterations: DefaultMaxIterations,
		Mode:          DefaultMode,
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads the file at path on top of a copy of base, so keys missing
// from the file keep the base values.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg := base.Clone()
	if err := cfg.Overlay(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Clone returns a copy that shares no slices with c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.SaveTimes = append([]float64(nil), c.SaveTimes...)
	return &cp
}

// Overlay decodes a YAML mapping over c. A save_grid key without
// save_times switches c to the grid.
func (c *Config) Overlay(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	if node.IsZero() {
		return nil
	}
	if hasKey(node, "save_grid") && !hasKey(node, "save_times") {
		c.UseGrid()
	}
	return node.Decode(c)
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// UseGrid drops explicit save times in favor of the save grid, filling a
// zero step with DefaultStep.
func (c *Config) UseGrid() {
	c.SaveTimes = nil
	if c.SaveGrid.Step == 0 {
		c.SaveGrid.Step = DefaultStep
	}
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Times returns the explicit save times if present, otherwise the expanded
// grid.
func (c *Config) Times() ([]float64, error) {
	if len(c.SaveTimes) > 0 {
		return append([]float64(nil), c.SaveTimes...), nil
	}
	return c.SaveGrid.Expand()
}

// Expand lists Start, Start+Step, ... up to and including Stop.
func (g GridConfig) Expand() ([]float64, error) {
	if !(g.Step > 0) {
		return nil, &dynamo.ConfigError{Field: "save_grid.step", Reason: fmt.Sprintf("must be positive, got %g", g.Step)}
	}
	if g.Stop < g.Start {
		return nil, &dynamo.ConfigError{Field: "save_grid.stop", Reason: fmt.Sprintf("%g is before start %g", g.Stop, g.Start)}
	}
	n := int(math.Floor((g.Stop-g.Start)/g.Step+1e-9)) + 1
	times := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		times = append(times, g.Start+float64(i)*g.Step)
	}
	if last := times[len(times)-1]; g.Stop-last > 1e-9*math.Max(1, math.Abs(g.Stop)) {
		times = append(times, g.Stop)
	} else {
		times[len(times)-1] = g.Stop
	}
	return times, nil
}

// Params converts the file configuration into validated simulation
// parameters. Every violation is reported as a *dynamo.ConfigError.
func (c *Config) Params() (*dynamo.Params, error) {
	times, err := c.Times()
	if err != nil {
		return nil, err
	}

	dist, err := stochastic.NewDistribution(c.Initial.Family, stochastic.DistParams{
		Rate:   c.Initial.Rate,
		Value:  c.Initial.Value,
		Low:    c.Initial.Low,
		High:   c.Initial.High,
		Mean:   c.Initial.Mean,
		StdDev: c.Initial.StdDev,
	})
	if err != nil {
		return nil, &dynamo.ConfigError{Field: "initial", Reason: err.Error()}
	}

	if c.Workers < 0 {
		return nil, &dynamo.ConfigError{Field: "workers", Reason: fmt.Sprintf("must be >= 0, got %d", c.Workers)}
	}
	if c.Retries < 0 {
		return nil, &dynamo.ConfigError{Field: "retries", Reason: fmt.Sprintf("must be >= 0, got %d", c.Retries)}
	}
	if c.TrajectoryTimeout < 0 {
		return nil, &dynamo.ConfigError{Field: "trajectory_timeout", Reason: "must not be negative"}
	}

	p := &dynamo.Params{
		Mu:            c.Mu,
		Sigma:         c.Sigma,
		N:             c.Particles,
		RhoMax:        c.RhoMax,
		SaveTimes:     times,
		Initial:       dist,
		Trajectories:  c.Trajectories,
		Algorithm:     c.Algorithm,
		Dt:            c.Dt,
		Lookahead:     c.Lookahead,
		BoundSafety:   c.BoundSafety,
		Seed:          c.Seed,
		MaxIterations: c.MaxIterations,
		RecordJumps:   c.RecordJumps,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
