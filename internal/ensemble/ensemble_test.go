package ensemble_test

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/jumpsim/internal/dynamo"
	"github.com/san-kum/jumpsim/internal/ensemble"
	"github.com/san-kum/jumpsim/internal/integrators"
	"github.com/san-kum/jumpsim/internal/models"
	"github.com/san-kum/jumpsim/internal/sim"
	"github.com/san-kum/jumpsim/internal/stochastic"
)

func baseParams() *dynamo.Params {
	return &dynamo.Params{
		Mu:            0,
		Sigma:         0,
		N:             1,
		RhoMax:        0,
		SaveTimes:     []float64{0, 1, 2},
		Initial:       stochastic.Fixed{Value: 5},
		Trajectories:  20,
		Algorithm:     "euler_maruyama",
		Dt:            0.1,
		Lookahead:     0.1,
		BoundSafety:   4,
		Seed:          2024,
		MaxIterations: 1_000_000,
	}
}

func builder(p *dynamo.Params) func() ensemble.Trajectory {
	return func() ensemble.Trajectory {
		return sim.New(p, models.FromParams(p), integrators.NewEulerMaruyama())
	}
}

// flaky fails selected seeds and delegates the rest.
type flaky struct {
	inner ensemble.Trajectory
	fail  map[uint64]error
}

func (f *flaky) AddObserver(o dynamo.Observer) { f.inner.AddObserver(o) }
func (f *flaky) KeepStates(keep bool)          { f.inner.KeepStates(keep) }

func (f *flaky) Run(ctx context.Context, seed uint64) (*dynamo.Result, error) {
	if err, ok := f.fail[seed]; ok {
		return &dynamo.Result{Seed: seed}, err
	}
	return f.inner.Run(ctx, seed)
}

var _ = Describe("Runner", func() {
	var (
		ctx context.Context
		p   *dynamo.Params
	)

	BeforeEach(func() {
		ctx = context.Background()
		p = baseParams()
	})

	Context("frozen population", func() {
		It("keeps the initial value at every save time in trajectory mode", func() {
			rep, err := ensemble.NewRunner(p, builder(p), ensemble.WithMode(ensemble.ModeTrajectory)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Outcomes).To(HaveLen(20))

			for _, o := range rep.Outcomes {
				Expect(o.Err).NotTo(HaveOccurred())
				Expect(o.Result.Times).To(Equal([]float64{0, 1, 2}))
				for _, x := range o.Result.States {
					Expect(x).To(Equal(dynamo.State{5}))
				}
			}
		})

		It("reduces to the deterministic value with zero variance", func() {
			rep, err := ensemble.NewRunner(p, builder(p)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			s, err := ensemble.Reduce(rep)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Count).To(Equal(20))
			Expect(s.Channels).To(Equal(dynamo.MomentChannels))

			for _, name := range []string{"min", "mean", "median", "max"} {
				c := s.Channel(name)
				Expect(c).To(BeNumerically(">=", 0))
				Expect(s.Mean[c]).To(Equal([]float64{5, 5, 5}))
				Expect(s.Variance[c]).To(Equal([]float64{0, 0, 0}))
			}
			growth := s.Channel("growth")
			Expect(s.Mean[growth]).To(Equal([]float64{0, 0, 0}))
		})
	})

	Context("diffusion only", func() {
		It("tracks mu*t on average", func() {
			p.N = 2
			p.Mu = 0.01
			p.Sigma = 0.1
			p.Initial = stochastic.Fixed{Value: 0}
			p.Trajectories = 2000

			rep, err := ensemble.NewRunner(p, builder(p)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			s, err := ensemble.Reduce(rep)
			Expect(err).NotTo(HaveOccurred())

			mean := s.Mean[s.Channel("mean")]
			for k, t := range s.Times {
				Expect(mean[k]).To(BeNumerically("~", p.Mu*t, 0.01))
			}
			variance := s.Variance[s.Channel("mean")]
			Expect(variance[2]).To(BeNumerically("~", p.Sigma*p.Sigma*2/2, 0.003))
		})
	})

	Context("strong catch-up without diffusion", func() {
		It("ratchets every particle up to the initial maximum", func() {
			p.N = 3
			p.RhoMax = 1e4
			p.Initial = stochastic.Uniform{Low: 0, High: 10}
			p.SaveTimes = []float64{0, 1, 5, 20}
			p.Trajectories = 50

			rep, err := ensemble.NewRunner(p, builder(p), ensemble.WithMode(ensemble.ModeTrajectory)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			for _, o := range rep.Outcomes {
				Expect(o.Err).NotTo(HaveOccurred())
				states := o.Result.States
				_, top := states[0].Extremes()
				for k := 1; k < len(states); k++ {
					Expect(states[k]).To(HaveLen(3))
					for i := range states[k] {
						Expect(states[k][i]).To(BeNumerically(">=", states[k-1][i]))
						Expect(states[k][i]).To(BeNumerically("<=", top))
					}
				}
				Expect(o.Result.Final).To(Equal(dynamo.State{top, top, top}))
			}
		})
	})

	It("produces identical summaries regardless of the worker count", func() {
		p.N = 5
		p.Mu = 0.02
		p.Sigma = 0.2
		p.RhoMax = 1
		p.Initial = stochastic.Exponential{Rate: 1}

		one, err := ensemble.NewRunner(p, builder(p), ensemble.WithExecutor(ensemble.Pool{Workers: 1})).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		many, err := ensemble.NewRunner(p, builder(p), ensemble.WithExecutor(ensemble.Pool{Workers: 8})).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		seq, err := ensemble.NewRunner(p, builder(p), ensemble.WithExecutor(ensemble.Sequential{})).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		a, _ := ensemble.Reduce(one)
		b, _ := ensemble.Reduce(many)
		c, _ := ensemble.Reduce(seq)
		Expect(b).To(Equal(a))
		Expect(c).To(Equal(a))
	})

	It("rejects invalid parameters before running anything", func() {
		p.N = 0
		calls := 0
		build := func() ensemble.Trajectory {
			calls++
			return builder(p)()
		}

		rep, err := ensemble.NewRunner(p, build).Run(ctx)
		Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
		Expect(rep).To(BeNil())
		Expect(calls).To(BeZero())
	})

	Context("partial failures", func() {
		stall := &dynamo.StallError{Time: 0.5, Iterations: 10}

		It("retries a stalled trajectory with a fresh seed", func() {
			fail := map[uint64]error{stochastic.SeedFor(p.Seed, 2, 0): stall}
			build := func() ensemble.Trajectory { return &flaky{inner: builder(p)(), fail: fail} }

			rep, err := ensemble.NewRunner(p, build, ensemble.WithRetries(1)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Failed()).To(BeEmpty())
			Expect(rep.Outcomes[2].Attempts).To(Equal(2))
			Expect(rep.Outcomes[2].Seed).To(Equal(stochastic.SeedFor(p.Seed, 2, 1)))
			Expect(rep.Outcomes[3].Attempts).To(Equal(1))
		})

		It("reports exhausted trajectories next to the successful ones", func() {
			fail := map[uint64]error{
				stochastic.SeedFor(p.Seed, 4, 0): stall,
				stochastic.SeedFor(p.Seed, 4, 1): stall,
			}
			build := func() ensemble.Trajectory { return &flaky{inner: builder(p)(), fail: fail} }

			rep, err := ensemble.NewRunner(p, build, ensemble.WithRetries(1)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			failed := rep.Failed()
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Index).To(Equal(4))
			Expect(errors.Is(failed[0].Err, dynamo.ErrSchedulerStall)).To(BeTrue())

			s, err := ensemble.Reduce(rep)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Count).To(Equal(19))
			Expect(s.Failed).To(Equal(1))
			Expect(s.Failures).To(HaveLen(1))
			Expect(s.Mean[s.Channel("mean")]).To(Equal([]float64{5, 5, 5}))
		})

		It("does not retry errors that a new seed cannot fix", func() {
			boom := errors.New("boom")
			fail := map[uint64]error{stochastic.SeedFor(p.Seed, 0, 0): boom}
			build := func() ensemble.Trajectory { return &flaky{inner: builder(p)(), fail: fail} }

			rep, err := ensemble.NewRunner(p, build, ensemble.WithRetries(3)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Outcomes[0].Attempts).To(Equal(1))
			Expect(rep.Outcomes[0].Err).To(MatchError(boom))
		})

		It("fails reduction when nothing succeeded", func() {
			p.Trajectories = 1
			fail := map[uint64]error{stochastic.SeedFor(p.Seed, 0, 0): stall}
			build := func() ensemble.Trajectory { return &flaky{inner: builder(p)(), fail: fail} }

			rep, err := ensemble.NewRunner(p, build).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = ensemble.Reduce(rep)
			Expect(err).To(MatchError(ensemble.ErrNoTrajectories))
		})
	})

	Context("cancellation", func() {
		It("marks unstarted trajectories and returns the context error", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			rep, err := ensemble.NewRunner(p, builder(p), ensemble.WithExecutor(ensemble.Sequential{})).Run(cctx)
			Expect(err).To(MatchError(context.Canceled))
			Expect(rep.Succeeded()).To(BeEmpty())
			for _, o := range rep.Outcomes {
				Expect(o.Err).To(MatchError(ensemble.ErrNotRun))
			}
		})

		It("aborts a trajectory that exceeds its deadline", func() {
			p.N = 50
			p.Sigma = 1
			p.RhoMax = 5
			p.Initial = stochastic.Exponential{Rate: 1}
			p.SaveTimes = []float64{0, 1e6}
			p.Trajectories = 2
			p.Dt = 1e-3

			rep, err := ensemble.NewRunner(p, builder(p), ensemble.WithTimeout(20*time.Millisecond)).Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, o := range rep.Outcomes {
				Expect(o.Err).To(MatchError(dynamo.ErrCanceled))
				Expect(errors.Is(o.Err, context.DeadlineExceeded)).To(BeTrue())
			}
		})
	})
})

var _ = Describe("Report", func() {
	It("names one channel per particle in trajectory mode", func() {
		rep := &ensemble.Report{Mode: ensemble.ModeTrajectory, Particles: 3}
		Expect(rep.Channels()).To(Equal([]string{"u1", "u2", "u3"}))
	})

	It("returns the raw K×T samples of a channel", func() {
		p := baseParams()
		p.Trajectories = 4
		rep, err := ensemble.NewRunner(p, builder(p)).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		samples, err := rep.Samples(dynamo.ChannelMax)
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(HaveLen(4))
		for _, row := range samples {
			Expect(row).To(Equal([]float64{5, 5, 5}))
		}

		_, err = rep.Samples(99)
		Expect(err).To(HaveOccurred())
	})

	It("uses the sample variance", func() {
		rep := &ensemble.Report{
			Mode:  ensemble.ModeMoments,
			Times: []float64{0},
			Outcomes: []ensemble.Outcome{
				{Index: 0, Moments: dynamo.MomentLog{{Mean: 1}}},
				{Index: 1, Moments: dynamo.MomentLog{{Mean: 3}}},
			},
		}
		s, err := ensemble.Reduce(rep)
		Expect(err).NotTo(HaveOccurred())
		c := s.Channel("mean")
		Expect(s.Mean[c][0]).To(Equal(2.0))
		Expect(s.Variance[c][0]).To(BeNumerically("~", 2.0, 1e-12))
		Expect(math.IsNaN(s.Variance[s.Channel("min")][0])).To(BeFalse())
	})
})

var _ = Describe("ParseMode", func() {
	DescribeTable("mode names",
		func(in string, want ensemble.Mode, ok bool) {
			got, err := ensemble.ParseMode(in)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
			Expect(got.String()).NotTo(BeEmpty())
		},
		Entry("moments", "moments", ensemble.ModeMoments, true),
		Entry("default", "", ensemble.ModeMoments, true),
		Entry("trajectory", "trajectory", ensemble.ModeTrajectory, true),
		Entry("unknown", "raw", ensemble.Mode(0), false),
	)
})
