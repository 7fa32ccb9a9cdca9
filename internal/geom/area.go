package geom

import (
	"errors"
	"fmt"
	gomath "math"
	"math/rand"
	"os"
	"sort"

	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// Geometry kinds accepted by NewAreaFromGeometry.
const (
	GeometryCircle = "Circle"
	GeometrySquare = "Square"
	GeometryPoint  = "Point"
)

// DefaultFileResolution is the resolution of areas read from JSON without one.
const DefaultFileResolution = 2

var (
	// ErrInvalidDimensions is returned for non-positive area or map sizes.
	ErrInvalidDimensions = errors.New("invalid area dimensions")
	// ErrUnknownGeometry is returned for an unrecognized geometry name.
	ErrUnknownGeometry = errors.New("unknown geometry")
	// ErrNoPoints is returned when an area definition has no points.
	ErrNoPoints = errors.New("area has no points")
)

// Bounds is an inclusive axis-aligned box.
type Bounds struct {
	MinX, MinY, MaxX, MaxY int
}

// Width returns MaxX - MinX.
func (b Bounds) Width() int { return b.MaxX - b.MinX }

// Height returns MaxY - MinY.
func (b Bounds) Height() int { return b.MaxY - b.MinY }

// Overlaps reports whether b and o share any point.
func (b Bounds) Overlaps(o Bounds) bool {
	return !(b.MaxX < o.MinX || o.MaxX < b.MinX || b.MaxY < o.MinY || o.MaxY < b.MinY)
}

// Contains reports whether p is inside b.
func (b Bounds) Contains(p math.Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Pad grows b by d on every side.
func (b Bounds) Pad(d int) Bounds {
	return Bounds{b.MinX - d, b.MinY - d, b.MaxX + d, b.MaxY + d}
}

// Area is a named polygon snapped to a grid resolution. Pos is the
// bottom-center anchor used by Align.
type Area struct {
	Name string
	Type string
	Pos  math.Point

	points     []math.Point
	resolution int

	bounds      Bounds
	boundsValid bool
	center      math.Point
	size        float64
}

// NewArea creates an empty area.
func NewArea(name string, resolution int) *Area {
	return &Area{Name: name, Type: "other", resolution: ClampResolution(resolution), boundsValid: true}
}

// NewAreaFromPoints creates an area from a point list.
func NewAreaFromPoints(name string, pts []math.Point, resolution int) *Area {
	a := NewArea(name, resolution)
	a.points = append([]math.Point(nil), pts...)
	a.snap()
	a.update()
	a.resetPos()
	return a
}

// NewAreaFromGeometry generates a Circle, Square or Point area around
// center with jittered edges. smoothness runs from 0 (rough) to 100
// (regular). Points are clamped to the map rectangle.
func NewAreaFromGeometry(name string, center math.Point, w, h int, geometry string, smoothness, mapW, mapH, resolution int, rng *rand.Rand) (*Area, error) {
	if w <= 0 || h <= 0 || mapW <= 0 || mapH <= 0 {
		return nil, fmt.Errorf("area %s: %w", name, ErrInvalidDimensions)
	}
	a := NewArea(name, resolution)
	switch geometry {
	case GeometryCircle:
		a.generateCircle(center, w/2, smoothness, mapW, mapH, rng)
	case GeometrySquare:
		a.generateSquare(center, w, h, smoothness, mapW, mapH, rng)
	case GeometryPoint:
		a.points = []math.Point{{X: math.ClampInt(center.X, 0, mapW), Y: math.ClampInt(center.Y, 0, mapH)}}
	default:
		return nil, fmt.Errorf("area %s: %w: %s", name, ErrUnknownGeometry, geometry)
	}
	a.snap()
	a.update()
	a.resetPos()
	return a, nil
}

// AreaFromJSON builds an area from {anchor, points, resolution}. Points are
// relative to the anchor.
func AreaFromJSON(name string, obj jsonutil.Object) (*Area, error) {
	raw, ok := jsonutil.GetArray(obj, "points")
	if !ok {
		return nil, fmt.Errorf("area %s: missing points array", name)
	}
	res := DefaultFileResolution
	if r, ok := jsonutil.Integer(obj, "resolution"); ok {
		res = r
	}
	a := NewArea(name, res)

	var anchor math.Point
	if an, ok := jsonutil.GetObject(obj, "anchor"); ok {
		anchor = math.Point{X: jsonutil.Int(an, "x", 0), Y: jsonutil.Int(an, "y", 0)}
	}
	for _, v := range raw {
		p, ok := v.(map[string]any)
		if !ok {
			continue
		}
		a.points = append(a.points, math.Point{
			X: anchor.X + jsonutil.Int(p, "x", 0),
			Y: anchor.Y + jsonutil.Int(p, "y", 0),
		})
	}
	if len(a.points) == 0 {
		return nil, fmt.Errorf("area %s: %w", name, ErrNoPoints)
	}
	a.Pos = SnapWorldToVertex(anchor, a.resolution)
	a.snap()
	a.update()
	return a, nil
}

// LoadAreaFile reads an area JSON file.
func LoadAreaFile(name, path string) (*Area, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("area %s: %w", name, err)
	}
	obj, err := jsonutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("area %s: %w", name, err)
	}
	return AreaFromJSON(name, obj)
}

func (a *Area) generateCircle(center math.Point, radius, smoothness, mapW, mapH int, rng *rand.Rand) {
	s := math.ClampInt(smoothness, 0, 100)
	count := max(12, 6+s*2)
	dev := 0.20 * float64(100-s) / 100.0
	a.points = make([]math.Point, 0, count)
	for i := 0; i < count; i++ {
		theta := 2 * gomath.Pi * float64(i) / float64(count)
		rx := float64(radius) * uniform(rng, 1-dev, 1+dev)
		ry := float64(radius) * uniform(rng, 1-dev, 1+dev)
		x := float64(center.X) + rx*gomath.Cos(theta)
		y := float64(center.Y) + ry*gomath.Sin(theta)
		a.points = append(a.points, math.Point{
			X: int(gomath.Round(math.Clamp(x, 0, float64(mapW)))),
			Y: int(gomath.Round(math.Clamp(y, 0, float64(mapH)))),
		})
	}
}

func (a *Area) generateSquare(center math.Point, w, h, smoothness, mapW, mapH int, rng *rand.Rand) {
	s := math.ClampInt(smoothness, 0, 100)
	dev := 0.25 * float64(100-s) / 100.0
	hw, hh := w/2, h/2
	corners := [4]math.Point{
		{X: center.X - hw, Y: center.Y - hh},
		{X: center.X + hw, Y: center.Y - hh},
		{X: center.X + hw, Y: center.Y + hh},
		{X: center.X - hw, Y: center.Y + hh},
	}
	a.points = make([]math.Point, 0, 4)
	for _, c := range corners {
		x := int(gomath.Round(float64(c.X) + uniform(rng, -dev*float64(w), dev*float64(w))))
		y := int(gomath.Round(float64(c.Y) + uniform(rng, -dev*float64(h), dev*float64(h))))
		a.points = append(a.points, math.Point{X: math.ClampInt(x, 0, mapW), Y: math.ClampInt(y, 0, mapH)})
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// Points returns the polygon vertices. The slice must not be modified.
func (a *Area) Points() []math.Point { return a.points }

// Resolution returns the snapping resolution.
func (a *Area) Resolution() int { return a.resolution }

// SetResolution changes the snapping resolution and re-snaps the points.
func (a *Area) SetResolution(r int) {
	a.resolution = ClampResolution(r)
	if a.snap() {
		a.update()
	}
}

// Bounds returns the cached bounding box.
func (a *Area) Bounds() Bounds {
	if !a.boundsValid {
		a.update()
	}
	return a.bounds
}

// Width returns the bounding-box width.
func (a *Area) Width() int { return a.Bounds().Width() }

// Height returns the bounding-box height.
func (a *Area) Height() int { return a.Bounds().Height() }

// Center returns the bounding-box center.
func (a *Area) Center() math.Point {
	if !a.boundsValid {
		a.update()
	}
	return a.center
}

// Size returns the polygon surface computed with the shoelace formula.
func (a *Area) Size() float64 {
	if !a.boundsValid {
		a.update()
	}
	return a.size
}

// Empty reports whether the area has no points.
func (a *Area) Empty() bool { return len(a.points) == 0 }

// Clone returns a deep copy.
func (a *Area) Clone() *Area {
	c := *a
	c.points = append([]math.Point(nil), a.points...)
	return &c
}

// ApplyOffset translates the area.
func (a *Area) ApplyOffset(dx, dy int) {
	for i := range a.points {
		a.points[i].X += dx
		a.points[i].Y += dy
	}
	a.Pos.X += dx
	a.Pos.Y += dy
	a.snap()
	a.update()
}

// Align moves the area so its anchor lands on target.
func (a *Area) Align(target math.Point) {
	a.ApplyOffset(target.X-a.Pos.X, target.Y-a.Pos.Y)
}

// FlipHorizontal mirrors the area around its center column.
func (a *Area) FlipHorizontal() {
	a.FlipAround(a.Center().X)
}

// FlipAround mirrors the area around the vertical line x = axis.
func (a *Area) FlipAround(axis int) {
	if len(a.points) == 0 {
		return
	}
	for i := range a.points {
		a.points[i].X = 2*axis - a.points[i].X
	}
	a.Pos.X = 2*axis - a.Pos.X
	a.snap()
	a.update()
}

// Scale scales the area around its center.
func (a *Area) Scale(factor float64) {
	if len(a.points) == 0 || factor <= 0 {
		return
	}
	pivot := a.Center()
	for i, p := range a.points {
		a.points[i] = math.Point{
			X: pivot.X + int(gomath.Round(float64(p.X-pivot.X)*factor)),
			Y: pivot.Y + int(gomath.Round(float64(p.Y-pivot.Y)*factor)),
		}
	}
	a.snap()
	a.update()
	a.resetPos()
}

// Contract moves every point inset units toward the center, never past it.
func (a *Area) Contract(inset int) {
	if inset <= 0 || len(a.points) == 0 {
		return
	}
	c := a.Center().Vec()
	for i, p := range a.points {
		d := c.Sub(p.Vec())
		l := d.Length()
		if l <= float64(inset) {
			a.points[i] = c.Round()
			continue
		}
		a.points[i] = p.Vec().Add(d.Scale(float64(inset) / l)).Round()
	}
	a.snap()
	a.update()
}

// UnionWith replaces the polygon with the convex hull of both areas.
func (a *Area) UnionWith(other *Area) {
	if other == nil || len(other.points) == 0 {
		return
	}
	a.points = convexHull(append(append([]math.Point(nil), a.points...), other.points...))
	a.snap()
	a.update()
}

// ContainsPoint reports whether p is inside the polygon (ray casting).
// A single-point area contains only that point.
func (a *Area) ContainsPoint(p math.Point) bool {
	n := len(a.points)
	if n == 1 {
		return p == a.points[0]
	}
	if n < 3 || !a.Bounds().Contains(p) {
		return false
	}
	x, y := float64(p.X), float64(p.Y)
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := float64(a.points[i].X), float64(a.points[i].Y)
		xj, yj := float64(a.points[j].X), float64(a.points[j].Y)
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi+1e-12)+xi {
			inside = !inside
		}
	}
	return inside
}

// Intersects reports whether the two polygons overlap: any pair of edges
// crosses or one contains a vertex of the other.
func (a *Area) Intersects(other *Area) bool {
	if other == nil || len(a.points) == 0 || len(other.points) == 0 {
		return false
	}
	if !a.Bounds().Overlaps(other.Bounds()) {
		return false
	}
	if len(a.points) == 1 {
		return other.ContainsPoint(a.points[0])
	}
	if len(other.points) == 1 {
		return a.ContainsPoint(other.points[0])
	}
	if a.edgesCross(other) {
		return true
	}
	return a.ContainsPoint(other.points[0]) || other.ContainsPoint(a.points[0])
}

// IntersectionCount returns how many edge pairs of a and other cross.
func (a *Area) IntersectionCount(other *Area) int {
	if other == nil || !a.Bounds().Overlaps(other.Bounds()) {
		return 0
	}
	count := 0
	a.eachEdge(func(p1, p2 math.Vec2) {
		other.eachEdge(func(q1, q2 math.Vec2) {
			if math.SegmentsIntersect(p1, p2, q1, q2) {
				count++
			}
		})
	})
	return count
}

func (a *Area) edgesCross(other *Area) bool {
	found := false
	a.eachEdge(func(p1, p2 math.Vec2) {
		if found {
			return
		}
		other.eachEdge(func(q1, q2 math.Vec2) {
			if !found && math.SegmentsIntersect(p1, p2, q1, q2) {
				found = true
			}
		})
	})
	return found
}

func (a *Area) eachEdge(fn func(p1, p2 math.Vec2)) {
	n := len(a.points)
	if n < 2 {
		return
	}
	for i := 0; i < n; i++ {
		fn(a.points[i].Vec(), a.points[(i+1)%n].Vec())
	}
}

// DistanceTo returns the shortest distance from p to the polygon outline,
// or 0 when p is inside.
func (a *Area) DistanceTo(p math.Point) float64 {
	if len(a.points) == 0 {
		return gomath.Inf(1)
	}
	if a.ContainsPoint(p) {
		return 0
	}
	if len(a.points) == 1 {
		return p.Distance(a.points[0])
	}
	best := gomath.Inf(1)
	v := p.Vec()
	a.eachEdge(func(p1, p2 math.Vec2) {
		best = gomath.Min(best, math.SegmentDistanceSq(v, p1, p2))
	})
	return gomath.Sqrt(best)
}

// RandomPointWithin samples up to 100 bounding-box points and returns the
// first inside the polygon.
func (a *Area) RandomPointWithin(rng *rand.Rand) (math.Point, bool) {
	if len(a.points) == 0 {
		return math.Point{}, false
	}
	if len(a.points) == 1 {
		return a.points[0], true
	}
	b := a.Bounds()
	for i := 0; i < 100; i++ {
		p := math.Point{
			X: b.MinX + rng.Intn(b.Width()+1),
			Y: b.MinY + rng.Intn(b.Height()+1),
		}
		if a.ContainsPoint(p) {
			return p, true
		}
	}
	return math.Point{}, false
}

// ToJSON encodes the area as {name, type, resolution, points} in world
// coordinates.
func (a *Area) ToJSON() jsonutil.Object {
	pts := make([]any, len(a.points))
	for i, p := range a.points {
		pts[i] = map[string]any{"x": p.X, "y": p.Y}
	}
	return jsonutil.Object{
		"name":       a.Name,
		"type":       a.Type,
		"resolution": a.resolution,
		"points":     pts,
	}
}

func (a *Area) resetPos() {
	if len(a.points) == 0 {
		return
	}
	b := a.Bounds()
	a.Pos = math.Point{X: (b.MinX + b.MaxX) / 2, Y: b.MaxY}
}

func (a *Area) snap() bool {
	changed := false
	for i, p := range a.points {
		s := SnapWorldToVertex(p, a.resolution)
		if s != p {
			a.points[i] = s
			changed = true
		}
	}
	if s := SnapWorldToVertex(a.Pos, a.resolution); s != a.Pos {
		a.Pos = s
		changed = true
	}
	if changed {
		a.boundsValid = false
	}
	return changed
}

func (a *Area) update() {
	a.boundsValid = true
	if len(a.points) == 0 {
		a.bounds = Bounds{}
		a.center = math.Point{}
		a.size = 0
		return
	}
	b := Bounds{a.points[0].X, a.points[0].Y, a.points[0].X, a.points[0].Y}
	var twice int64
	n := len(a.points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := a.points[i], a.points[j]
		b.MinX = min(b.MinX, pi.X)
		b.MaxX = max(b.MaxX, pi.X)
		b.MinY = min(b.MinY, pi.Y)
		b.MaxY = max(b.MaxY, pi.Y)
		twice += int64(pj.X)*int64(pi.Y) - int64(pi.X)*int64(pj.Y)
	}
	a.bounds = b
	a.center = math.Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
	a.size = gomath.Abs(float64(twice)) * 0.5
}

func convexHull(pts []math.Point) []math.Point {
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	cross := func(o, a, b math.Point) int64 {
		return int64(a.X-o.X)*int64(b.Y-o.Y) - int64(a.Y-o.Y)*int64(b.X-o.X)
	}
	hull := make([]math.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
