package stochastic

import (
	"math"
	"testing"
)

func TestStreamDeterministic(t *testing.T) {
	a := NewStream(42)
	b := NewStream(42)
	for i := 0; i < 100; i++ {
		if a.NormFloat64() != b.NormFloat64() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
	if a.Origin() != 42 {
		t.Errorf("Origin() = %d, want 42", a.Origin())
	}
}

func TestSeedFor(t *testing.T) {
	seen := make(map[uint64]bool)
	for idx := 0; idx < 100; idx++ {
		for attempt := 0; attempt < 3; attempt++ {
			s := SeedFor(7, idx, attempt)
			if seen[s] {
				t.Fatalf("duplicate seed for index %d attempt %d", idx, attempt)
			}
			seen[s] = true
		}
	}
	if SeedFor(7, 3, 0) != SeedFor(7, 3, 0) {
		t.Error("SeedFor is not deterministic")
	}
	if SeedFor(7, 3, 0) == SeedFor(8, 3, 0) {
		t.Error("base seed ignored")
	}
}

func TestNewDistribution(t *testing.T) {
	tests := []struct {
		name    string
		family  string
		params  DistParams
		wantErr bool
	}{
		{"exponential", "exponential", DistParams{Rate: 2}, false},
		{"exponential upper case", "Exponential", DistParams{Rate: 2}, false},
		{"exponential zero rate", "exponential", DistParams{}, true},
		{"exponential negative rate", "exponential", DistParams{Rate: -1}, true},
		{"fixed", "fixed", DistParams{Value: 5}, false},
		{"fixed nan", "fixed", DistParams{Value: math.NaN()}, true},
		{"uniform", "uniform", DistParams{Low: -1, High: 1}, false},
		{"uniform inverted", "uniform", DistParams{Low: 1, High: -1}, true},
		{"normal", "normal", DistParams{Mean: 0, StdDev: 1}, false},
		{"normal negative stddev", "normal", DistParams{StdDev: -1}, true},
		{"unknown", "cauchy", DistParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDistribution(tt.family, tt.params)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDistribution(%q) error = %v, wantErr %v", tt.family, err, tt.wantErr)
			}
		})
	}
}

func TestExponentialMean(t *testing.T) {
	d := Exponential{Rate: 2}
	r := NewStream(1)
	x := Draw(d, 20000, r)

	sum := 0.0
	for _, v := range x {
		if v < 0 {
			t.Fatalf("negative exponential draw %f", v)
		}
		sum += v
	}
	mean := sum / float64(len(x))
	if math.Abs(mean-0.5) > 0.02 {
		t.Errorf("sample mean %.4f, want ~0.5", mean)
	}
}

func TestFixedDraw(t *testing.T) {
	x := Draw(Fixed{Value: 5}, 4, NewStream(3))
	for i, v := range x {
		if v != 5 {
			t.Errorf("x[%d] = %f, want 5", i, v)
		}
	}
}

func TestUniformRange(t *testing.T) {
	d := Uniform{Low: 2, High: 3}
	r := NewStream(9)
	for i := 0; i < 1000; i++ {
		v := d.Sample(r)
		if v < 2 || v > 3 {
			t.Fatalf("uniform draw %f outside [2, 3]", v)
		}
	}
}

func TestFamilies(t *testing.T) {
	got := Families()
	if len(got) != 4 {
		t.Fatalf("expected 4 families, got %v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Errorf("families not sorted: %v", got)
		}
	}
}
