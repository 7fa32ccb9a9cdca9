package spawn

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/vibble/pkg/math"
)

// Outline measures distance along a closed polygon.
type Outline struct {
	pts []math.Point
	cum []float64
}

// NewOutline builds the closed outline through pts.
func NewOutline(pts []math.Point) Outline {
	o := Outline{pts: pts}
	if len(pts) < 2 {
		return o
	}
	o.cum = make([]float64, len(pts)+1)
	for i := range pts {
		next := pts[(i+1)%len(pts)]
		o.cum[i+1] = o.cum[i] + pts[i].Distance(next)
	}
	return o
}

// Length returns the perimeter length.
func (o Outline) Length() float64 {
	if len(o.cum) == 0 {
		return 0
	}
	return o.cum[len(o.cum)-1]
}

// At returns the point at distance d along the outline, wrapping around.
func (o Outline) At(d float64) math.Point {
	total := o.Length()
	if total <= 0 {
		if len(o.pts) > 0 {
			return o.pts[0]
		}
		return math.Point{}
	}
	d = gomath.Mod(d, total)
	if d < 0 {
		d += total
	}
	i := sort.SearchFloat64s(o.cum, d)
	if i > 0 && (i >= len(o.cum) || o.cum[i] > d) {
		i--
	}
	i = min(i, len(o.pts)-1)
	seg := o.cum[i+1] - o.cum[i]
	if seg <= 0 {
		return o.pts[i]
	}
	a, b := o.pts[i].Vec(), o.pts[(i+1)%len(o.pts)].Vec()
	return a.Lerp(b, (d-o.cum[i])/seg).Round()
}
