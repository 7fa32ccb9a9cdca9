package spawn

import (
	gomath "math"

	"github.com/Faultbox/vibble/pkg/math"
)

// RelativeSize rescales values authored against one room size to the size
// of the room being spawned.
type RelativeSize struct {
	Width  int
	Height int
}

func (r RelativeSize) valid() bool { return r.Width > 0 && r.Height > 0 }

func ratio(cur, orig int) float64 {
	if cur <= 0 || orig <= 0 {
		return 1
	}
	return float64(cur) / float64(orig)
}

// Factor returns the mean of the width and height ratios between the
// current size and an origW x origH original.
func (r RelativeSize) Factor(origW, origH int) float64 {
	if !r.valid() {
		return 1
	}
	return (ratio(r.Width, origW) + ratio(r.Height, origH)) / 2
}

// ScaleOffset scales an offset per axis.
func (r RelativeSize) ScaleOffset(p math.Point, origW, origH int) math.Point {
	if !r.valid() {
		return p
	}
	return math.Point{
		X: int(gomath.Round(float64(p.X) * ratio(r.Width, origW))),
		Y: int(gomath.Round(float64(p.Y) * ratio(r.Height, origH))),
	}
}

// ScaleCount scales n by f. A positive n never scales to zero.
func ScaleCount(n int, f float64) int {
	if n <= 0 || f <= 0 || gomath.IsNaN(f) || gomath.IsInf(f, 0) {
		return max(n, 0)
	}
	return max(1, int(gomath.Round(float64(n)*f)))
}
