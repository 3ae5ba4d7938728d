package ensemble

import (
	"errors"
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/san-kum/jumpsim/internal/dynamo"
)

// ErrNoTrajectories is returned when no trajectory succeeded.
var ErrNoTrajectories = errors.New("ensemble: no successful trajectories")

// Summary holds the cross-trajectory mean and sample variance of every
// channel at every save time, indexed [channel][time].
type Summary struct {
	Mode      string      `json:"mode"`
	Times     []float64   `json:"times"`
	Channels  []string    `json:"channels"`
	Mean      [][]float64 `json:"mean"`
	Variance  [][]float64 `json:"variance"`
	Count     int         `json:"count"`
	Failed    int         `json:"failed"`
	Failures  []string    `json:"failures,omitempty"`
	Particles int         `json:"particles"`
}

// Channels lists the channel names of a report: the moment fields in
// moments mode, one "uK" per particle in trajectory mode.
func (r *Report) Channels() []string {
	if r.Mode == ModeMoments {
		return append([]string(nil), dynamo.MomentChannels...)
	}
	names := make([]string, r.Particles)
	for i := range names {
		names[i] = fmt.Sprintf("u%d", i+1)
	}
	return names
}

// Samples returns the K×T matrix of one channel over the successful
// trajectories, K in index order.
func (r *Report) Samples(channel int) ([][]float64, error) {
	if channel < 0 || channel >= len(r.Channels()) {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", channel, len(r.Channels()))
	}

	ok := r.Succeeded()
	out := make([][]float64, 0, len(ok))
	for _, o := range ok {
		row := make([]float64, len(r.Times))
		for k := range r.Times {
			v, err := r.value(o, channel, k)
			if err != nil {
				return nil, fmt.Errorf("trajectory %d: %w", o.Index, err)
			}
			row[k] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *Report) value(o Outcome, channel, k int) (float64, error) {
	switch r.Mode {
	case ModeMoments:
		if k >= len(o.Moments) {
			return 0, fmt.Errorf("moment log has %d records, need %d", len(o.Moments), len(r.Times))
		}
		return o.Moments[k].Channel(channel), nil
	case ModeTrajectory:
		if o.Result == nil || k >= len(o.Result.States) {
			return 0, fmt.Errorf("trajectory missing state %d", k)
		}
		return o.Result.States[k][channel], nil
	}
	return 0, fmt.Errorf("unknown mode %v", r.Mode)
}

// Reduce computes the Summary of a report. Failed trajectories are counted
// and listed, never mixed into the statistics.
func Reduce(r *Report) (*Summary, error) {
	ok := r.Succeeded()
	if len(ok) == 0 {
		return nil, ErrNoTrajectories
	}

	channels := r.Channels()
	s := &Summary{
		Mode:      r.Mode.String(),
		Times:     append([]float64(nil), r.Times...),
		Channels:  channels,
		Mean:      make([][]float64, len(channels)),
		Variance:  make([][]float64, len(channels)),
		Count:     len(ok),
		Particles: r.Particles,
	}
	for _, o := range r.Failed() {
		s.Failed++
		s.Failures = append(s.Failures, fmt.Sprintf("trajectory %d (seed %d, %d attempts): %v", o.Index, o.Seed, o.Attempts, o.Err))
	}

	for c := range channels {
		samples, err := r.Samples(c)
		if err != nil {
			return nil, err
		}
		s.Mean[c] = make([]float64, len(r.Times))
		s.Variance[c] = make([]float64, len(r.Times))

		column := make(stats.Float64Data, len(samples))
		for k := range r.Times {
			for j, row := range samples {
				column[j] = row[k]
			}
			mean, variance, err := meanVariance(column)
			if err != nil {
				return nil, fmt.Errorf("channel %s at t=%g: %w", channels[c], r.Times[k], err)
			}
			s.Mean[c][k] = mean
			s.Variance[c][k] = variance
		}
	}
	return s, nil
}

func meanVariance(data stats.Float64Data) (float64, float64, error) {
	mean, err := stats.Mean(data)
	if err != nil {
		return 0, 0, err
	}
	if data.Len() < 2 {
		return mean, 0, nil
	}
	variance, err := stats.SampleVariance(data)
	if err != nil {
		return 0, 0, err
	}
	return mean, variance, nil
}

// Channel returns the index of a named channel or -1.
func (s *Summary) Channel(name string) int {
	for i, c := range s.Channels {
		if c == name {
			return i
		}
	}
	return -1
}
