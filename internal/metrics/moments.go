package metrics

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/san-kum/jumpsim/internal/dynamo"
)

// Moments records min, mean, median, max and growth of the population at
// every save time. One instance serves one trajectory at a time; Reset
// starts a fresh log and never touches a log returned earlier.
type Moments struct {
	log      dynamo.MomentLog
	capacity int
	err      error
}

func NewMoments(capacity int) *Moments {
	m := &Moments{capacity: capacity}
	m.Reset()
	return m
}

func (m *Moments) Name() string { return "moments" }

func (m *Moments) Reset() {
	m.log = make(dynamo.MomentLog, 0, m.capacity)
	m.err = nil
}

func (m *Moments) OnSave(t float64, x dynamo.State) {
	rec, err := Compute(t, x)
	if err != nil {
		if m.err == nil {
			m.err = err
		}
		return
	}
	if n := len(m.log); n > 0 {
		prev := m.log[n-1]
		if dt := t - prev.Time; dt > 0 {
			rec.Growth = (rec.Mean - prev.Mean) / dt
		}
	}
	m.log = append(m.log, rec)
}

// Log returns the records of the current trajectory.
func (m *Moments) Log() dynamo.MomentLog {
	return m.log
}

// Err reports the first record that could not be computed.
func (m *Moments) Err() error {
	return m.err
}

// Compute summarizes x at time t. Growth is left at zero.
func Compute(t float64, x dynamo.State) (dynamo.MomentRecord, error) {
	data := stats.Float64Data(x)
	rec := dynamo.MomentRecord{Time: t}

	var err error
	if rec.Min, err = stats.Min(data); err != nil {
		return rec, fmt.Errorf("moments at t=%g: %w", t, err)
	}
	if rec.Max, err = stats.Max(data); err != nil {
		return rec, fmt.Errorf("moments at t=%g: %w", t, err)
	}
	if rec.Mean, err = stats.Mean(data); err != nil {
		return rec, fmt.Errorf("moments at t=%g: %w", t, err)
	}
	if rec.Median, err = stats.Median(data); err != nil {
		return rec, fmt.Errorf("moments at t=%g: %w", t, err)
	}
	return rec, nil
}
