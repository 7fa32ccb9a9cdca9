// Package math provides the 2D vector and point types shared by the world,
// map generation and camera code.
package math

import "math"

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X, Y float64
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{v.X + other.X, v.Y + other.Y}
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{v.X - other.X, v.Y - other.Y}
}

// Scale returns v * scalar.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Dot returns the dot product.
func (v Vec2) Dot(other Vec2) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Length returns the magnitude.
func (v Vec2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize returns a unit vector.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Perp returns v rotated by +90 degrees.
func (v Vec2) Perp() Vec2 {
	return Vec2{-v.Y, v.X}
}

// Distance returns the distance to another point.
func (v Vec2) Distance(other Vec2) float64 {
	return v.Sub(other).Length()
}

// Lerp interpolates between v and other.
func (v Vec2) Lerp(other Vec2, t float64) Vec2 {
	return Vec2{v.X + (other.X-v.X)*t, v.Y + (other.Y-v.Y)*t}
}

// Round converts v to the nearest integer point.
func (v Vec2) Round() Point {
	return Point{X: SaturateInt32(math.Round(v.X)), Y: SaturateInt32(math.Round(v.Y))}
}

// IsFinite reports whether both components are finite.
func (v Vec2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// Point is an integer world position.
type Point struct {
	X, Y int
}

// Vec returns p as a float vector.
func (p Point) Vec() Vec2 {
	return Vec2{float64(p.X), float64(p.Y)}
}

// Add returns p + other.
func (p Point) Add(other Point) Point {
	return Point{p.X + other.X, p.Y + other.Y}
}

// DistanceSq returns the squared distance to other.
func (p Point) DistanceSq(other Point) float64 {
	dx := float64(p.X - other.X)
	dy := float64(p.Y - other.Y)
	return dx*dx + dy*dy
}

// Distance returns the distance to other.
func (p Point) Distance(other Point) float64 {
	return math.Sqrt(p.DistanceSq(other))
}

// SaturateInt32 rounds toward the value and clamps it into the int32 range.
// NaN maps to zero.
func SaturateInt32(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt limits v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SegmentDistanceSq returns the squared distance from p to the segment a-b.
func SegmentDistanceSq(p, a, b Vec2) float64 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq <= 0 {
		d := p.Sub(a)
		return d.Dot(d)
	}
	t := Clamp(p.Sub(a).Dot(ab)/lenSq, 0, 1)
	d := p.Sub(a.Add(ab.Scale(t)))
	return d.Dot(d)
}

// SegmentsIntersect reports whether segments p1-p2 and q1-q2 cross or touch.
func SegmentsIntersect(p1, p2, q1, q2 Vec2) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(q1, q2, p1) {
		return true
	}
	if d2 == 0 && onSegment(q1, q2, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, q2) {
		return true
	}
	return false
}

func orient(a, b, c Vec2) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p Vec2) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}
