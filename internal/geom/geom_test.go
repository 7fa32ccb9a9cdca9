package geom

import (
	gomath "math"
	"math/rand"
	"testing"

	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

func square(x0, y0, x1, y1 int) *Area {
	return NewAreaFromPoints("sq", []math.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}, 0)
}

func TestSnapWorldToVertex(t *testing.T) {
	tests := []struct {
		p    math.Point
		r    int
		want math.Point
	}{
		{math.Point{X: 5, Y: 6}, 0, math.Point{X: 5, Y: 6}},
		{math.Point{X: 5, Y: 6}, 2, math.Point{X: 4, Y: 8}},
		{math.Point{X: -6, Y: 3}, 2, math.Point{X: -8, Y: 4}},
		{math.Point{X: 13, Y: 0}, 3, math.Point{X: 16, Y: 0}},
	}
	for _, tt := range tests {
		if got := SnapWorldToVertex(tt.p, tt.r); got != tt.want {
			t.Errorf("SnapWorldToVertex(%v, %d) = %v, want %v", tt.p, tt.r, got, tt.want)
		}
	}
}

func TestGridIndexRoundTrip(t *testing.T) {
	g := Grid{Origin: math.Point{X: 10, Y: -10}}
	idx := g.WorldToIndex(math.Point{X: 27, Y: -1}, 3)
	if idx != (math.Point{X: 2, Y: 1}) {
		t.Fatalf("expected index {2 1}, got %v", idx)
	}
	if w := g.IndexToWorld(idx, 3); w != (math.Point{X: 26, Y: -2}) {
		t.Errorf("expected world {26 -2}, got %v", w)
	}
	if !g.IsVertex(math.Point{X: 26, Y: -2}, 3) {
		t.Error("expected vertex on lattice")
	}
}

func TestClampResolutionAndDelta(t *testing.T) {
	if ClampResolution(-3) != 0 || ClampResolution(99) != MaxResolution {
		t.Error("resolution not clamped")
	}
	if Delta(4) != 16 {
		t.Errorf("expected delta 16, got %d", Delta(4))
	}
}

func TestChangeResolution(t *testing.T) {
	if got := ChangeResolution(math.Point{X: 3, Y: -2}, 2, 0); got != (math.Point{X: 12, Y: -8}) {
		t.Errorf("expected {12 -8}, got %v", got)
	}
	if got := ChangeResolution(math.Point{X: 12, Y: 6}, 0, 2); got != (math.Point{X: 3, Y: 2}) {
		t.Errorf("expected {3 2}, got %v", got)
	}
}

func TestIndexToWorldSaturates(t *testing.T) {
	got := IndexToWorld(math.Point{X: gomath.MaxInt32, Y: gomath.MinInt32}, 4)
	if got.X != gomath.MaxInt32 || got.Y != gomath.MinInt32 {
		t.Errorf("expected saturated point, got %v", got)
	}
}

func TestAreaContainsPoint(t *testing.T) {
	a := square(0, 0, 100, 100)
	tests := []struct {
		p    math.Point
		want bool
	}{
		{math.Point{X: 50, Y: 50}, true},
		{math.Point{X: 150, Y: 50}, false},
		{math.Point{X: -1, Y: 50}, false},
	}
	for _, tt := range tests {
		if got := a.ContainsPoint(tt.p); got != tt.want {
			t.Errorf("ContainsPoint(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	pt := NewAreaFromPoints("pt", []math.Point{{X: 3, Y: 4}}, 0)
	if !pt.ContainsPoint(math.Point{X: 3, Y: 4}) || pt.ContainsPoint(math.Point{X: 3, Y: 5}) {
		t.Error("single-point area containment wrong")
	}
	line := NewAreaFromPoints("line", []math.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, 0)
	if line.ContainsPoint(math.Point{X: 5, Y: 0}) {
		t.Error("two-point area should contain nothing")
	}
}

func TestAreaGeometryData(t *testing.T) {
	a := square(0, 0, 100, 50)
	if a.Size() != 5000 {
		t.Errorf("expected size 5000, got %v", a.Size())
	}
	if a.Center() != (math.Point{X: 50, Y: 25}) {
		t.Errorf("expected center {50 25}, got %v", a.Center())
	}
	if a.Pos != (math.Point{X: 50, Y: 50}) {
		t.Errorf("expected bottom-center anchor {50 50}, got %v", a.Pos)
	}
	if a.Width() != 100 || a.Height() != 50 {
		t.Errorf("expected 100x50, got %dx%d", a.Width(), a.Height())
	}
}

func TestAreaIntersects(t *testing.T) {
	a := square(0, 0, 100, 100)
	tests := []struct {
		name  string
		other *Area
		want  bool
	}{
		{"overlapping", square(50, 50, 150, 150), true},
		{"contained", square(10, 10, 20, 20), true},
		{"disjoint", square(200, 200, 300, 300), false},
		{"bbox overlap only", NewAreaFromPoints("tri", []math.Point{{X: 90, Y: -50}, {X: 200, Y: -50}, {X: 200, Y: 60}}, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Intersects(tt.other); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAreaTransforms(t *testing.T) {
	a := square(0, 0, 100, 100)
	a.ApplyOffset(10, 20)
	if b := a.Bounds(); b != (Bounds{10, 20, 110, 120}) {
		t.Errorf("ApplyOffset bounds = %v", b)
	}
	a.Align(math.Point{X: 0, Y: 0})
	if a.Pos != (math.Point{}) {
		t.Errorf("Align pos = %v, want origin", a.Pos)
	}
	if b := a.Bounds(); b != (Bounds{-50, -100, 50, 0}) {
		t.Errorf("Align bounds = %v", b)
	}

	a.Scale(2)
	if a.Width() != 200 || a.Height() != 200 {
		t.Errorf("Scale(2) size = %dx%d, want 200x200", a.Width(), a.Height())
	}

	tri := NewAreaFromPoints("tri", []math.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}, 0)
	tri.FlipAround(0)
	if !tri.ContainsPoint(math.Point{X: -2, Y: 2}) {
		t.Error("expected flipped triangle to cover negative x")
	}

	c := square(0, 0, 100, 100)
	c.Contract(10)
	if c.Width() >= 100 {
		t.Errorf("expected contracted width < 100, got %d", c.Width())
	}
}

func TestAreaUnionWith(t *testing.T) {
	a := square(0, 0, 10, 10)
	a.UnionWith(square(20, 0, 30, 10))
	if b := a.Bounds(); b != (Bounds{0, 0, 30, 10}) {
		t.Errorf("union bounds = %v", b)
	}
	if !a.ContainsPoint(math.Point{X: 15, Y: 5}) {
		t.Error("expected union hull to cover the gap")
	}
	if len(a.Points()) != 4 {
		t.Errorf("expected hull of 4 points, got %d", len(a.Points()))
	}
}

func TestGeometryCircleDeterministic(t *testing.T) {
	mk := func() *Area {
		a, err := NewAreaFromGeometry("c", math.Point{X: 1500, Y: 1500}, 3000, 3000, GeometryCircle, 2, 3000, 3000, 3, rand.New(rand.NewSource(7)))
		if err != nil {
			t.Fatal(err)
		}
		return a
	}
	a, b := mk(), mk()
	if len(a.Points()) != 12 {
		t.Errorf("expected 12 points for smoothness 2, got %d", len(a.Points()))
	}
	for i := range a.Points() {
		if a.Points()[i] != b.Points()[i] {
			t.Fatalf("point %d differs between runs", i)
		}
		p := a.Points()[i]
		if p.X < 0 || p.X > 3000 || p.Y < 0 || p.Y > 3000 {
			t.Errorf("point %v outside the map", p)
		}
		if p.X%8 != 0 || p.Y%8 != 0 {
			t.Errorf("point %v not snapped to resolution 3", p)
		}
	}
	if !a.ContainsPoint(math.Point{X: 1500, Y: 1500}) {
		t.Error("expected circle to contain its center")
	}
}

func TestGeometryErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := NewAreaFromGeometry("x", math.Point{}, 0, 10, GeometrySquare, 0, 10, 10, 0, rng); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := NewAreaFromGeometry("x", math.Point{}, 10, 10, "Hexagon", 0, 10, 10, 0, rng); err == nil {
		t.Error("expected error for unknown geometry")
	}
}

func TestAreaFromJSON(t *testing.T) {
	obj := jsonutil.Object{
		"anchor": map[string]any{"x": 100, "y": 200},
		"points": []any{
			map[string]any{"x": -10, "y": 0},
			map[string]any{"x": 10, "y": 0},
			map[string]any{"x": 0, "y": -20},
		},
	}
	a, err := AreaFromJSON("json", obj)
	if err != nil {
		t.Fatalf("AreaFromJSON() error = %v", err)
	}
	if a.Resolution() != DefaultFileResolution {
		t.Errorf("expected default resolution %d, got %d", DefaultFileResolution, a.Resolution())
	}
	if a.Pos != (math.Point{X: 100, Y: 200}) {
		t.Errorf("expected pos {100 200}, got %v", a.Pos)
	}
	if _, err := AreaFromJSON("empty", jsonutil.Object{"points": []any{}}); err == nil {
		t.Error("expected error for empty points")
	}
}

func TestDistanceTo(t *testing.T) {
	a := square(0, 0, 100, 100)
	if d := a.DistanceTo(math.Point{X: 50, Y: 50}); d != 0 {
		t.Errorf("inside distance = %v, want 0", d)
	}
	if d := a.DistanceTo(math.Point{X: 130, Y: 50}); d != 30 {
		t.Errorf("outside distance = %v, want 30", d)
	}
}

func TestRandomPointWithin(t *testing.T) {
	a := square(0, 0, 100, 100)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		p, ok := a.RandomPointWithin(rng)
		if !ok || !a.ContainsPoint(p) {
			t.Fatalf("expected point inside, got %v ok=%v", p, ok)
		}
	}
}

func TestOccupancy(t *testing.T) {
	a := square(0, 0, 64, 64)
	o := NewOccupancy(a, 4, Grid{}, false)
	if o.Len() == 0 {
		t.Fatal("expected vertices")
	}
	before := o.FreeCount()

	v := o.NearestVertex(math.Point{X: 33, Y: 33})
	if v == nil || v.World != (math.Point{X: 32, Y: 32}) {
		t.Fatalf("expected nearest vertex {32 32}, got %+v", v)
	}
	o.SetOccupied(v, true)
	o.SetOccupied(v, true)
	if o.FreeCount() != before-1 {
		t.Errorf("expected free count %d, got %d", before-1, o.FreeCount())
	}

	next := o.NearestVertex(math.Point{X: 33, Y: 33})
	if next == nil || next == v {
		t.Fatal("expected a different free vertex")
	}
	if dx, dy := next.Index.X-v.Index.X, next.Index.Y-v.Index.Y; abs(dx) > 1 || abs(dy) > 1 {
		t.Errorf("expected neighbour of %v, got %v", v.Index, next.Index)
	}

	rv := o.RandomVertexIn(a, rand.New(rand.NewSource(5)))
	if rv == nil || rv.Occupied {
		t.Errorf("expected free random vertex, got %+v", rv)
	}
}

func TestMapGridSettings(t *testing.T) {
	s := ParseMapGridSettings(jsonutil.Object{"spacing": 16, "jitter": 100, "chunk_size": 1024})
	if s.Resolution != 4 {
		t.Errorf("expected resolution 4, got %d", s.Resolution)
	}
	if s.Jitter != 8 {
		t.Errorf("expected jitter clamped to 8, got %d", s.Jitter)
	}
	if s.RChunk != 10 || s.ChunkSize() != 1024 {
		t.Errorf("expected r_chunk 10, got %d (%d)", s.RChunk, s.ChunkSize())
	}

	m := jsonutil.Object{}
	EnsureMapGridSettings(m)
	sec, ok := jsonutil.GetObject(m, "map_grid_settings")
	if !ok {
		t.Fatal("expected section to be created")
	}
	if sec["spacing"] != 1 || sec["chunk_size"] != 1 {
		t.Errorf("unexpected defaults %v", sec)
	}
}

func TestJitterPointStaysInside(t *testing.T) {
	a := square(0, 0, 100, 100)
	s := MapGridSettings{Resolution: 4, Jitter: 5}
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 20; i++ {
		p := s.JitterPoint(math.Point{X: 50, Y: 50}, rng, a)
		if !a.ContainsPoint(p) {
			t.Fatalf("jittered point %v left the area", p)
		}
	}
}
