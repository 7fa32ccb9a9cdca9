package mapgen

import (
	gomath "math"
	"math/rand"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/pkg/math"
)

// Trail shape constants.
const (
	trailOvershoot        = 100.0
	trailMinInteriorDepth = 40.0
	trailAreaResolution   = 3
	edgeSearchSteps       = 2000
	edgeSearchDistance    = 10000.0
	interiorFixSteps      = 1024
)

// BuildCenterline returns start, curvyness jittered control points and end.
// Each control point is pushed off the straight segment along its normal by
// up to a quarter of the segment length scaled by curvyness/8.
func BuildCenterline(start, end math.Point, curvyness int, rng *rand.Rand) []math.Point {
	line := make([]math.Point, 0, max(0, curvyness)+2)
	line = append(line, start)
	if curvyness > 0 {
		dx, dy := float64(end.X-start.X), float64(end.Y-start.Y)
		l := gomath.Hypot(dx, dy)
		if l <= 0 {
			l = 1
		}
		maxOffset := l * 0.25 * (float64(curvyness) / 8)
		nx, ny := -dy/l, dx/l
		for i := 1; i <= curvyness; i++ {
			t := float64(i) / float64(curvyness+1)
			off := -maxOffset + rng.Float64()*2*maxOffset
			p := math.Vec2{X: float64(start.X) + t*dx + nx*off, Y: float64(start.Y) + t*dy + ny*off}
			line = append(line, p.Round())
		}
	}
	return append(line, end)
}

// ExtrudeCenterline widens line into a closed ribbon polygon: the left side
// in order followed by the right side reversed.
func ExtrudeCenterline(line []math.Point, width float64) []math.Point {
	if len(line) < 2 {
		return nil
	}
	half := width / 2
	left := make([]math.Point, 0, len(line))
	right := make([]math.Point, 0, len(line))
	for i, c := range line {
		var from, to math.Point
		switch i {
		case 0:
			from, to = line[0], line[1]
		case len(line) - 1:
			from, to = line[i-1], line[i]
		default:
			from, to = line[i-1], line[i+1]
		}
		dx, dy := float64(to.X-from.X), float64(to.Y-from.Y)
		l := gomath.Hypot(dx, dy)
		if l <= 0 {
			l = 1
		}
		n := math.Vec2{X: -dy / l * half, Y: dx / l * half}
		cv := c.Vec()
		left = append(left, cv.Add(n).Round())
		right = append(right, cv.Sub(n).Round())
	}
	poly := make([]math.Point, 0, 2*len(line))
	poly = append(poly, left...)
	for i := len(right) - 1; i >= 0; i-- {
		poly = append(poly, right[i])
	}
	return poly
}

// EdgePoint walks from center toward toward in unit steps and returns the
// last point still inside area.
func EdgePoint(center, toward math.Point, area *geom.Area) math.Point {
	if area == nil {
		return center
	}
	dx, dy := float64(toward.X-center.X), float64(toward.Y-center.Y)
	l := gomath.Hypot(dx, dy)
	if l <= 0 {
		return center
	}
	dir := math.Vec2{X: dx / l, Y: dy / l}
	edge := center
	dist := 0.0
	for i := 1; i <= edgeSearchSteps && dist < edgeSearchDistance; i++ {
		dist++
		p := center.Vec().Add(dir.Scale(dist)).Round()
		if !area.ContainsPoint(p) {
			break
		}
		edge = p
	}
	return edge
}

// anchor is where a trail meets a room: a point inside the room, the point
// on its edge and a point past the edge.
type anchor struct {
	interior, edge, outside math.Point
}

func trailAnchor(center, toward math.Point, area *geom.Area, width float64) anchor {
	edge := EdgePoint(center, toward, area)
	d := math.Vec2{X: float64(edge.X - center.X), Y: float64(edge.Y - center.Y)}
	l := d.Length()
	if l <= 0 {
		l = 1
	}
	u := d.Scale(1 / l)
	depth := max(trailMinInteriorDepth, width*0.75)
	out := anchor{
		edge:     edge,
		outside:  edge.Vec().Add(u.Scale(trailOvershoot)).Round(),
		interior: edge.Vec().Sub(u.Scale(depth)).Round(),
	}
	if area.ContainsPoint(out.interior) {
		return out
	}
	p := out.interior.Vec()
	for i := 0; i < interiorFixSteps; i++ {
		test := p.Round()
		if area.ContainsPoint(test) {
			out.interior = test
			return out
		}
		p = p.Sub(u.Scale(2))
		if p.Distance(center.Vec()) > l+2 {
			break
		}
	}
	out.interior = center
	return out
}

// TrailShape is the ribbon template of a trail.
type TrailShape struct {
	Width     float64
	Curvyness int
}

// TrailPolygon builds one candidate ribbon joining areas a and b.
func TrailPolygon(a, b *geom.Area, shape TrailShape, rng *rand.Rand) []math.Point {
	ac, bc := a.Center(), b.Center()
	aa := trailAnchor(ac, bc, a, shape.Width)
	ba := trailAnchor(bc, ac, b, shape.Width)
	line := make([]math.Point, 0, shape.Curvyness+6)
	line = append(line, aa.interior, aa.edge)
	line = append(line, BuildCenterline(aa.outside, ba.outside, shape.Curvyness, rng)...)
	line = append(line, ba.edge, ba.interior)
	return ExtrudeCenterline(line, shape.Width)
}

// countBlocking returns 1 when candidate overlaps any area other than the
// two it joins, else 0. Endpoint areas are recognized by their bounds.
func countBlocking(candidate *geom.Area, areas []*geom.Area, a, b *geom.Area) int {
	ab, bb := a.Bounds(), b.Bounds()
	for _, o := range areas {
		ob := o.Bounds()
		if ob == ab || ob == bb {
			continue
		}
		if candidate.Intersects(o) {
			return 1
		}
	}
	return 0
}
