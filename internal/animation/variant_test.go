package animation

import (
	gomath "math"
	"testing"
)

func approxEqual(a, b float64) bool {
	return gomath.Abs(a-b) < 1e-9
}

func TestChooseClosest(t *testing.T) {
	tests := []struct {
		name      string
		desired   float64
		index     int
		remainder float64
	}{
		{"exact full", 1.0, 0, 1},
		{"between full and three quarters", 0.8, 0, 0.8},
		{"exact three quarters", 0.75, 1, 1},
		{"rounds up to half", 0.3, 2, 0.6},
		{"below smallest", 0.05, 4, 0.5},
		{"above largest", 2.0, 0, 2},
		{"zero maps to smallest", 0, 4, 1},
		{"nan maps to full", gomath.NaN(), 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ChooseClosest(DefaultSteps, tt.desired)
			if c.Index != tt.index {
				t.Errorf("expected index %d, got %d", tt.index, c.Index)
			}
			if !approxEqual(c.Remainder, tt.remainder) {
				t.Errorf("expected remainder %v, got %v", tt.remainder, c.Remainder)
			}
		})
	}
}

func TestChooseClosestEmptySteps(t *testing.T) {
	c := ChooseClosest(nil, 0.5)
	if c.Index != 0 || c.Stored != 1 || c.Remainder != 0.5 {
		t.Errorf("expected {0 1 0.5}, got {%d %v %v}", c.Index, c.Stored, c.Remainder)
	}
}

func TestBounds(t *testing.T) {
	lo, hi := Bounds(DefaultSteps, 0, DefaultHysteresisMargin)
	if !approxEqual(lo, 0.825) {
		t.Errorf("expected lo 0.825, got %v", lo)
	}
	if hi != gomath.MaxFloat64 {
		t.Errorf("expected open upper bound, got %v", hi)
	}

	lo, hi = Bounds(DefaultSteps, 4, DefaultHysteresisMargin)
	if lo != 0 {
		t.Errorf("expected lo 0, got %v", lo)
	}
	if !approxEqual(hi, 0.225) {
		t.Errorf("expected hi 0.225, got %v", hi)
	}
}

func TestVariantSelectorHysteresis(t *testing.T) {
	sel := NewVariantSelector(nil)

	steps := []struct {
		scale float64
		want  int
	}{
		{0.8, 0},
		{0.74, 1},
		// Closest would be 0, but 0.86 is still inside the widened window of 1.
		{0.86, 1},
		{0.95, 0},
		{0.2, 3},
	}
	for i, s := range steps {
		c := sel.Choose(s.scale, s.scale)
		if c.Index != s.want {
			t.Fatalf("step %d: expected index %d, got %d", i, s.want, c.Index)
		}
		if !approxEqual(c.Remainder, s.scale/DefaultSteps[c.Index]) {
			t.Errorf("step %d: unexpected remainder %v", i, c.Remainder)
		}
	}

	sel.Reset()
	if c := sel.Choose(0.86, 0.86); c.Index != 0 {
		t.Errorf("expected index 0 after reset, got %d", c.Index)
	}
}

func TestPercent(t *testing.T) {
	want := []int{100, 75, 50, 25, 10}
	for i, s := range DefaultSteps {
		if got := Percent(s); got != want[i] {
			t.Errorf("Percent(%v) = %d, want %d", s, got, want[i])
		}
	}
}
