package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/jumpsim/internal/dynamo"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		x    dynamo.State
		want dynamo.MomentRecord
	}{
		{"odd", dynamo.State{3, 1, 2}, dynamo.MomentRecord{Min: 1, Mean: 2, Median: 2, Max: 3}},
		{"even", dynamo.State{4, 1, 2, 9}, dynamo.MomentRecord{Min: 1, Mean: 4, Median: 3, Max: 9}},
		{"single", dynamo.State{5}, dynamo.MomentRecord{Min: 5, Mean: 5, Median: 5, Max: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(0, tt.x)
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compute(%v) = %+v, want %+v", tt.x, got, tt.want)
			}
		})
	}
}

func TestComputeDoesNotReorder(t *testing.T) {
	x := dynamo.State{3, 1, 2}
	if _, err := Compute(0, x); err != nil {
		t.Fatal(err)
	}
	if x[0] != 3 || x[1] != 1 || x[2] != 2 {
		t.Errorf("state was modified: %v", x)
	}
}

func TestComputeEmpty(t *testing.T) {
	if _, err := Compute(0, dynamo.State{}); err == nil {
		t.Error("expected error for empty state")
	}
}

func TestMomentsGrowth(t *testing.T) {
	m := NewMoments(3)
	m.OnSave(0, dynamo.State{1, 1})
	m.OnSave(0.5, dynamo.State{2, 2})
	m.OnSave(2.5, dynamo.State{2, 4})

	log := m.Log()
	if len(log) != 3 {
		t.Fatalf("expected 3 records, got %d", len(log))
	}
	if log[0].Growth != 0 {
		t.Errorf("first growth %f, want 0", log[0].Growth)
	}
	if math.Abs(log[1].Growth-2) > 1e-12 {
		t.Errorf("second growth %f, want 2", log[1].Growth)
	}
	if math.Abs(log[2].Growth-0.5) > 1e-12 {
		t.Errorf("third growth %f, want 0.5", log[2].Growth)
	}
}

func TestMomentsReset(t *testing.T) {
	m := NewMoments(2)
	m.OnSave(0, dynamo.State{1})
	m.OnSave(1, dynamo.State{3})
	first := m.Log()

	m.Reset()
	if len(m.Log()) != 0 {
		t.Fatalf("expected empty log after reset, got %d records", len(m.Log()))
	}

	m.OnSave(0, dynamo.State{10})
	if m.Log()[0].Growth != 0 {
		t.Error("growth leaked across reset")
	}
	if first[0].Mean != 1 || first[1].Mean != 3 {
		t.Errorf("earlier log was overwritten: %+v", first)
	}
}

func TestMomentsEmptyState(t *testing.T) {
	m := NewMoments(1)
	m.OnSave(0, dynamo.State{})
	if m.Err() == nil {
		t.Error("expected error for empty state")
	}
	if len(m.Log()) != 0 {
		t.Error("record appended for empty state")
	}
	m.Reset()
	if m.Err() != nil {
		t.Error("error survived reset")
	}
}
