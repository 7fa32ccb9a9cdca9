// Package geom provides the polygon areas, grid lattice math and grid
// occupancy used by map generation and spawning.
package geom

import (
	gomath "math"

	"github.com/Faultbox/vibble/pkg/math"
)

// MaxResolution is the largest grid resolution. A resolution r has a
// vertex spacing of 1<<r world units.
const MaxResolution = 30

// ClampResolution limits r to [0, MaxResolution].
func ClampResolution(r int) int {
	return math.ClampInt(r, 0, MaxResolution)
}

// Delta returns the vertex spacing at resolution r.
func Delta(r int) int {
	return 1 << ClampResolution(r)
}

// Grid is a lattice with an origin. The zero value is anchored at (0,0).
type Grid struct {
	Origin math.Point
}

// IndexToWorld converts lattice indices to a world vertex.
func (g Grid) IndexToWorld(ij math.Point, r int) math.Point {
	step := int64(Delta(r))
	return math.Point{
		X: clampInt64(int64(ij.X)*step + int64(g.Origin.X)),
		Y: clampInt64(int64(ij.Y)*step + int64(g.Origin.Y)),
	}
}

// SnapToVertex rounds a world position to the nearest lattice vertex.
func (g Grid) SnapToVertex(p math.Point, r int) math.Point {
	step := int64(Delta(r))
	i := roundDiv(int64(p.X)-int64(g.Origin.X), step)
	j := roundDiv(int64(p.Y)-int64(g.Origin.Y), step)
	return g.IndexToWorld(math.Point{X: i, Y: j}, r)
}

// WorldToIndex returns the lattice cell containing p.
func (g Grid) WorldToIndex(p math.Point, r int) math.Point {
	step := float64(Delta(r))
	gx := gomath.Floor((float64(p.X) - float64(g.Origin.X)) / step)
	gy := gomath.Floor((float64(p.Y) - float64(g.Origin.Y)) / step)
	return math.Point{X: math.SaturateInt32(gx), Y: math.SaturateInt32(gy)}
}

// IsVertex reports whether p lies on the lattice.
func (g Grid) IsVertex(p math.Point, r int) bool {
	step := Delta(r)
	return (p.X-g.Origin.X)%step == 0 && (p.Y-g.Origin.Y)%step == 0
}

// ChangeResolution re-expresses indices from one resolution in another.
func ChangeResolution(ij math.Point, from, to int) math.Point {
	if from == to {
		return ij
	}
	diff := from - to
	if diff > 0 {
		f := int64(Delta(diff))
		return math.Point{X: clampInt64(int64(ij.X) * f), Y: clampInt64(int64(ij.Y) * f)}
	}
	d := int64(Delta(-diff))
	return math.Point{X: roundDiv(int64(ij.X), d), Y: roundDiv(int64(ij.Y), d)}
}

// SnapWorldToVertex snaps p on the origin-anchored lattice.
func SnapWorldToVertex(p math.Point, r int) math.Point {
	return Grid{}.SnapToVertex(p, r)
}

// WorldToIndex is Grid.WorldToIndex on the origin-anchored lattice.
func WorldToIndex(p math.Point, r int) math.Point {
	return Grid{}.WorldToIndex(p, r)
}

// IndexToWorld is Grid.IndexToWorld on the origin-anchored lattice.
func IndexToWorld(ij math.Point, r int) math.Point {
	return Grid{}.IndexToWorld(ij, r)
}

func clampInt64(v int64) int {
	if v > gomath.MaxInt32 {
		return gomath.MaxInt32
	}
	if v < gomath.MinInt32 {
		return gomath.MinInt32
	}
	return int(v)
}

func roundDiv(num, den int64) int {
	if den == 0 {
		return 0
	}
	return math.SaturateInt32(gomath.Round(float64(num) / float64(den)))
}
