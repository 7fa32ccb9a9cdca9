package animation

import (
	gomath "math"
	"sync"
)

// Hysteresis defaults used by VariantSelector.
const (
	DefaultHysteresisMargin = 0.05
	DefaultPreloadMargin    = 0.02

	stepTolerance = 1e-4
)

// DefaultSteps lists the pre-baked variant scales, largest first.
var DefaultSteps = []float64{1.0, 0.75, 0.5, 0.25, 0.10}

// Percent returns the folder percentage of a step, e.g. 75 for 0.75.
func Percent(step float64) int {
	return int(gomath.Round(step * 100))
}

// Choice is the variant picked for a requested scale.
type Choice struct {
	Index     int
	Requested float64
	Stored    float64
	// Remainder is the extra scale applied on top of the stored variant.
	Remainder float64
	// Preload is the neighboring variant worth warming up, or -1.
	Preload int

	Min, Max float64
}

// ChooseClosest picks the smallest step that still covers desired. When no
// step is large enough the largest one is used.
func ChooseClosest(steps []float64, desired float64) Choice {
	if len(steps) == 0 {
		if !finite(desired) || desired <= 0 {
			desired = 1
		}
		return Choice{Requested: desired, Stored: 1, Remainder: desired, Preload: -1}
	}
	if !finite(desired) {
		desired = 1
	}
	if desired <= 0 {
		desired = steps[len(steps)-1]
	}

	chosen, chosenScale := -1, gomath.MaxFloat64
	largest, largestScale := 0, -gomath.MaxFloat64
	for i, s := range steps {
		if s+stepTolerance >= desired && s < chosenScale-1e-6 {
			chosen, chosenScale = i, s
		}
		if s > largestScale+1e-6 {
			largest, largestScale = i, s
		}
	}
	if chosen < 0 {
		chosen, chosenScale = largest, largestScale
	}
	c := Choice{Index: chosen, Requested: desired, Stored: chosenScale, Preload: -1}
	if c.Stored <= 0 {
		c.Stored = 1
	}
	c.Remainder = desired / c.Stored
	return c
}

// Bounds returns the scale window within which variant index stays
// selected, widened by margin on both sides.
func Bounds(steps []float64, index int, margin float64) (lo, hi float64) {
	hi = gomath.MaxFloat64
	if len(steps) == 0 {
		return 0, hi
	}
	if !finite(margin) || margin < 0 {
		margin = 0
	}
	index = clampIndex(index, len(steps))
	cur := steps[index]
	if index+1 < len(steps) {
		lo = gomath.Max(0, 0.5*(cur+steps[index+1])-margin)
	}
	if index > 0 {
		hi = 0.5*(cur+steps[index-1]) + margin
	}
	if lo > hi {
		mid := 0.5 * (lo + hi)
		lo, hi = gomath.Min(lo, mid), gomath.Max(hi, mid)
	}
	return lo, hi
}

// VariantSelector keeps the last choice per consumer so small scale changes
// around a boundary do not flip variants every frame.
type VariantSelector struct {
	Steps         []float64
	Margin        float64
	PreloadMargin float64

	mu      sync.Mutex
	started bool
	last    int
	min     float64
	max     float64
}

// NewVariantSelector returns a selector over steps with the default margins.
func NewVariantSelector(steps []float64) *VariantSelector {
	if len(steps) == 0 {
		steps = DefaultSteps
	}
	return &VariantSelector{
		Steps:         steps,
		Margin:        DefaultHysteresisMargin,
		PreloadMargin: DefaultPreloadMargin,
	}
}

// Choose returns the variant for desired, using smoothed to decide whether
// the current selection may change. A non-positive smoothed value falls back
// to desired.
func (s *VariantSelector) Choose(desired, smoothed float64) Choice {
	base := ChooseClosest(s.Steps, desired)
	if len(s.Steps) == 0 {
		return base
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	margin := s.Margin
	if !finite(margin) || margin < 0 {
		margin = DefaultHysteresisMargin
	}
	preload := s.PreloadMargin
	if !finite(preload) || preload < 0 {
		preload = DefaultPreloadMargin
	}
	if !finite(smoothed) || smoothed <= 0 {
		smoothed = base.Requested
	}

	maxIndex := len(s.Steps) - 1
	candidate := base.Index
	if s.started {
		candidate = clampIndex(s.last, len(s.Steps))
		switch {
		case smoothed >= s.min && smoothed <= s.max:
		case smoothed < s.min && candidate < maxIndex:
			for {
				candidate++
				lo, _ := Bounds(s.Steps, candidate, margin)
				if smoothed >= lo || candidate >= maxIndex {
					break
				}
			}
		case smoothed > s.max && candidate > 0:
			for {
				candidate--
				_, hi := Bounds(s.Steps, candidate, margin)
				if smoothed <= hi || candidate <= 0 {
					break
				}
			}
		default:
			candidate = base.Index
		}
	}

	c := base
	c.Index = candidate
	c.Stored = s.Steps[candidate]
	if c.Stored <= 0 {
		c.Stored = 1
	}
	c.Remainder = c.Requested / c.Stored
	c.Min, c.Max = Bounds(s.Steps, candidate, margin)
	c.Preload = preloadIndex(s.Steps, candidate, base.Index, smoothed, preload)

	s.started = true
	s.last = candidate
	s.min, s.max = c.Min, c.Max
	return c
}

// Reset forgets the previous selection.
func (s *VariantSelector) Reset() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func preloadIndex(steps []float64, candidate, base int, smoothed, margin float64) int {
	idx := -1
	best := gomath.MaxFloat64
	if candidate+1 < len(steps) {
		d := gomath.Abs(smoothed - 0.5*(steps[candidate]+steps[candidate+1]))
		if d <= margin {
			idx, best = candidate+1, d
		}
	}
	if candidate > 0 {
		d := gomath.Abs(smoothed - 0.5*(steps[candidate]+steps[candidate-1]))
		if d <= margin && d < best && candidate-1 >= base {
			idx = candidate - 1
		}
	}
	return idx
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func finite(v float64) bool {
	return !gomath.IsNaN(v) && !gomath.IsInf(v, 0)
}
