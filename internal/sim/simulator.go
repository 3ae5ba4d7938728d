package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/jumpsim/internal/dynamo"
	"github.com/san-kum/jumpsim/internal/integrators"
	"github.com/san-kum/jumpsim/internal/jumps"
	"github.com/san-kum/jumpsim/internal/logging"
	"github.com/san-kum/jumpsim/internal/stochastic"
)

// Simulator runs single trajectories of the catch-up process. It owns
// scratch buffers through its stepper and scheduler, so each goroutine
// needs its own Simulator. Params is shared read-only.
type Simulator struct {
	params     *dynamo.Params
	sys        dynamo.System
	stepper    dynamo.Stepper
	scheduler  *jumps.Scheduler
	observers  []dynamo.Observer
	keepStates bool
	logger     *slog.Logger
}

func New(p *dynamo.Params, sys dynamo.System, stepper dynamo.Stepper) *Simulator {
	return &Simulator{
		params:    p,
		sys:       sys,
		stepper:   stepper,
		scheduler: jumps.NewScheduler(p),
		observers: make([]dynamo.Observer, 0),
		logger:    logging.Discard(),
	}
}

// SetLogger sets the logger that receives one trace record per accepted jump.
func (s *Simulator) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// AddObserver registers o for every save time. Observers see the live state
// and must copy anything they keep.
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// KeepStates makes Run store a copy of the state at every save time.
func (s *Simulator) KeepStates(keep bool) { s.keepStates = keep }

// Run simulates one trajectory over [0, horizon] from the given seed. The
// same seed and parameters always produce the same trajectory. On error the
// partial result is returned together with the error.
func (s *Simulator) Run(ctx context.Context, seed uint64) (*dynamo.Result, error) {
	p := s.params
	r := stochastic.NewStream(seed)
	x := stochastic.Draw(p.Initial, p.N, r)

	for _, o := range s.observers {
		o.Reset()
	}

	result := &dynamo.Result{
		Seed:  seed,
		Times: make([]float64, 0, len(p.SaveTimes)),
	}
	if s.keepStates {
		result.States = make([]dynamo.State, 0, len(p.SaveTimes))
	}

	trace := s.logger.Enabled(ctx, logging.LevelTrace)
	var onJump func(dynamo.JumpEvent)
	if p.RecordJumps || trace {
		onJump = func(ev dynamo.JumpEvent) {
			if p.RecordJumps {
				result.Events = append(result.Events, ev)
			}
			if trace {
				s.logger.Log(ctx, logging.LevelTrace, "jump accepted",
					"seed", seed,
					"t", ev.Time,
					"particle", ev.Particle,
					"target", ev.Target,
					"before", ev.Before,
					"after", ev.After,
				)
			}
		}
	}

	diffuse := func(x dynamo.State, t, h float64) error {
		_, err := integrators.AdvanceContext(ctx, s.stepper, s.sys, x, t, h, p.Dt, r)
		return err
	}

	var stats jumps.Stats
	defer func() {
		result.Final = x.Clone()
		result.Iterations = stats.Iterations
		result.Candidates = stats.Candidates
		result.Jumps = stats.Jumps
		result.Rejections = stats.Rejections
		result.BoundViolations = stats.BoundViolations
	}()

	t := 0.0
	for _, ts := range p.SaveTimes {
		select {
		case <-ctx.Done():
			return result, &dynamo.SimulationError{Time: t, State: x.Clone(), Wrapped: fmt.Errorf("%w: %w", dynamo.ErrCanceled, ctx.Err())}
		default:
		}

		if ts > t {
			var err error
			t, err = s.scheduler.RunUntil(ctx, x, t, ts, diffuse, r, &stats, onJump)
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					err = fmt.Errorf("%w: %w", dynamo.ErrCanceled, err)
				}
				return result, &dynamo.SimulationError{Time: t, State: x.Clone(), Wrapped: err}
			}
		}

		if !x.IsValid() {
			return result, &dynamo.SimulationError{Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}

		s.save(ts, x, result)
	}

	return result, nil
}

func (s *Simulator) save(t float64, x dynamo.State, result *dynamo.Result) {
	result.Times = append(result.Times, t)
	if s.keepStates {
		result.States = append(result.States, x.Clone())
	}
	for _, o := range s.observers {
		o.OnSave(t, x)
	}
}
