package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/jumpsim/internal/dynamo"
	"github.com/san-kum/jumpsim/internal/metrics"
	"github.com/san-kum/jumpsim/internal/stochastic"
)

// ErrNotRun marks trajectories skipped because the ensemble was canceled.
var ErrNotRun = errors.New("ensemble: trajectory not run")

type Mode int

const (
	// ModeMoments keeps one MomentLog per trajectory.
	ModeMoments Mode = iota
	// ModeTrajectory keeps the full state at every save time.
	ModeTrajectory
)

func (m Mode) String() string {
	switch m {
	case ModeMoments:
		return "moments"
	case ModeTrajectory:
		return "trajectory"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts "moments" and "trajectory".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "moments", "":
		return ModeMoments, nil
	case "trajectory":
		return ModeTrajectory, nil
	}
	return 0, fmt.Errorf("unknown ensemble mode: %q", s)
}

// Trajectory is a single-trajectory simulator such as *sim.Simulator.
type Trajectory interface {
	AddObserver(o dynamo.Observer)
	KeepStates(keep bool)
	Run(ctx context.Context, seed uint64) (*dynamo.Result, error)
}

// Outcome is the result of one trajectory of the ensemble.
type Outcome struct {
	Index    int
	Seed     uint64
	Attempts int
	Result   *dynamo.Result
	Moments  dynamo.MomentLog
	Err      error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Report holds every outcome in index order.
type Report struct {
	Mode      Mode
	Times     []float64
	Particles int
	Outcomes  []Outcome
	Elapsed   time.Duration
}

// Succeeded returns the outcomes without error.
func (r *Report) Succeeded() []Outcome {
	out := make([]Outcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

func (r *Report) Failed() []Outcome {
	out := make([]Outcome, 0)
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

type Option func(*Runner)

func WithMode(m Mode) Option { return func(r *Runner) { r.mode = m } }

// WithRetries allows n extra attempts, each with a fresh seed, for
// trajectories that stall or diverge.
func WithRetries(n int) Option { return func(r *Runner) { r.retries = n } }

// WithTimeout bounds the wall time of every single trajectory.
func WithTimeout(d time.Duration) Option { return func(r *Runner) { r.timeout = d } }

func WithExecutor(e Executor) Option { return func(r *Runner) { r.exec = e } }

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// Runner executes Params.Trajectories independent trajectories.
type Runner struct {
	params  *dynamo.Params
	build   func() Trajectory
	mode    Mode
	retries int
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// NewRunner returns a runner that calls build for every attempt, so no
// simulator state is shared between trajectories.
func NewRunner(p *dynamo.Params, build func() Trajectory, opts ...Option) *Runner {
	r := &Runner{
		params: p,
		build:  build,
		mode:   ModeMoments,
		exec:   Pool{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run validates the parameters and executes the ensemble. Configuration
// errors abort before any trajectory starts. Trajectory failures are kept on
// their outcomes; the returned error is non-nil only for configuration
// errors or cancellation of ctx, in which case the partial report is
// returned as well.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if err := r.params.Validate(); err != nil {
		return nil, err
	}

	p := r.params
	rep := &Report{
		Mode:      r.mode,
		Times:     append([]float64(nil), p.SaveTimes...),
		Particles: p.N,
		Outcomes:  make([]Outcome, p.Trajectories),
	}
	for i := range rep.Outcomes {
		rep.Outcomes[i] = Outcome{Index: i, Err: ErrNotRun}
	}

	r.logger.Info("ensemble started",
		"trajectories", p.Trajectories,
		"particles", p.N,
		"mode", r.mode.String(),
		"algorithm", p.Algorithm,
		"seed", p.Seed,
	)
	start := time.Now()

	err := r.exec.Execute(ctx, p.Trajectories, func(ctx context.Context, i int) {
		rep.Outcomes[i] = r.runOne(ctx, i)
	})
	rep.Elapsed = time.Since(start)

	failed := len(rep.Failed())
	r.logger.Info("ensemble finished",
		"elapsed", rep.Elapsed,
		"succeeded", p.Trajectories-failed,
		"failed", failed,
	)
	return rep, err
}

func (r *Runner) runOne(ctx context.Context, i int) Outcome {
	var out Outcome
	for attempt := 0; attempt <= r.retries; attempt++ {
		out = r.attempt(ctx, i, attempt)
		if out.OK() || ctx.Err() != nil || !retryable(out.Err) {
			break
		}
		r.logger.Warn("trajectory failed, retrying",
			"index", i,
			"attempt", attempt+1,
			"err", out.Err,
		)
	}
	if !out.OK() {
		r.logger.Error("trajectory failed", "index", i, "attempts", out.Attempts, "err", out.Err)
	} else {
		r.logger.Debug("trajectory done", "index", i, "jumps", out.Result.Jumps, "candidates", out.Result.Candidates)
	}
	return out
}

func (r *Runner) attempt(ctx context.Context, i, attempt int) Outcome {
	seed := stochastic.SeedFor(r.params.Seed, i, attempt)
	traj := r.build()

	var m *metrics.Moments
	switch r.mode {
	case ModeMoments:
		m = metrics.NewMoments(len(r.params.SaveTimes))
		traj.AddObserver(m)
	case ModeTrajectory:
		traj.KeepStates(true)
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := traj.Run(runCtx, seed)
	if err == nil && m != nil {
		err = m.Err()
	}

	out := Outcome{Index: i, Seed: seed, Attempts: attempt + 1, Result: res, Err: err}
	if m != nil {
		out.Moments = m.Log()
	}
	return out
}

func retryable(err error) bool {
	return errors.Is(err, dynamo.ErrSchedulerStall) || errors.Is(err, dynamo.ErrInvalidState)
}
