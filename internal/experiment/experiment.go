package experiment

import (
	"context"
	"log/slog"

	"github.com/san-kum/jumpsim/internal/config"
	"github.com/san-kum/jumpsim/internal/dynamo"
	"github.com/san-kum/jumpsim/internal/ensemble"
	"github.com/san-kum/jumpsim/internal/metrics"
	"github.com/san-kum/jumpsim/internal/models"
	"github.com/san-kum/jumpsim/internal/sim"
	"github.com/san-kum/jumpsim/internal/stochastic"
)

// Experiment binds validated parameters to a stepper and an ensemble runner.
type Experiment struct {
	params   *dynamo.Params
	registry *Registry
	opts     []ensemble.Option
	mode     ensemble.Mode
	logger   *slog.Logger
}

// New validates p and checks that its algorithm is registered.
func New(p *dynamo.Params, logger *slog.Logger, opts ...ensemble.Option) (*Experiment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	registry := NewRegistry()
	if _, err := registry.GetStepper(p.Algorithm); err != nil {
		return nil, &dynamo.ConfigError{Field: "algorithm", Reason: err.Error()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Experiment{
		params:   p,
		registry: registry,
		opts:     opts,
		logger:   logger,
	}, nil
}

// FromConfig converts a file configuration, including the ensemble options
// it carries.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Experiment, error) {
	p, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	mode, err := ensemble.ParseMode(cfg.Mode)
	if err != nil {
		return nil, &dynamo.ConfigError{Field: "mode", Reason: err.Error()}
	}
	e, err := New(p, logger,
		ensemble.WithMode(mode),
		ensemble.WithRetries(cfg.Retries),
		ensemble.WithTimeout(cfg.TrajectoryTimeout),
		ensemble.WithExecutor(ensemble.Pool{Workers: cfg.Workers}),
	)
	if err != nil {
		return nil, err
	}
	e.mode = mode
	return e, nil
}

func (e *Experiment) Params() *dynamo.Params { return e.params }

func (e *Experiment) Mode() ensemble.Mode { return e.mode }

// NewSimulator returns a fresh single-trajectory simulator.
func (e *Experiment) NewSimulator() *sim.Simulator {
	stepper, _ := e.registry.GetStepper(e.params.Algorithm)
	s := sim.New(e.params, models.FromParams(e.params), stepper)
	s.SetLogger(e.logger)
	return s
}

// Run executes the ensemble.
func (e *Experiment) Run(ctx context.Context) (*ensemble.Report, error) {
	opts := append([]ensemble.Option{ensemble.WithLogger(e.logger)}, e.opts...)
	runner := ensemble.NewRunner(e.params, func() ensemble.Trajectory { return e.NewSimulator() }, opts...)
	return runner.Run(ctx)
}

// RunSingle simulates ensemble member index on its own, keeping states and
// moments, with the same seed the ensemble would use for its first attempt.
func (e *Experiment) RunSingle(ctx context.Context, index int) (*dynamo.Result, dynamo.MomentLog, error) {
	s := e.NewSimulator()
	s.KeepStates(true)
	m := metrics.NewMoments(len(e.params.SaveTimes))
	s.AddObserver(m)

	res, err := s.Run(ctx, stochastic.SeedFor(e.params.Seed, index, 0))
	if err != nil {
		return res, m.Log(), err
	}
	return res, m.Log(), m.Err()
}
