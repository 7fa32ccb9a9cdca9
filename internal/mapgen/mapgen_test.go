package mapgen

import (
	gomath "math"
	"math/rand"
	"testing"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/internal/spawn"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

func TestClampMinEdge(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-5, 0},
		{150, 150},
		{20000, MaxMinEdgeDistance},
		{gomath.NaN(), DefaultMinEdgeDistance},
		{gomath.Inf(1), DefaultMinEdgeDistance},
	}
	for _, tt := range tests {
		if got := ClampMinEdge(tt.in); got != tt.want {
			t.Errorf("ClampMinEdge(%v) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

func TestRoomExtent(t *testing.T) {
	rooms := jsonutil.Object{
		"pond":  jsonutil.Object{"geometry": "Circle", "radius": 50},
		"ring":  jsonutil.Object{"geometry": "circle", "max_width": 300},
		"hall":  jsonutil.Object{"geometry": "Square", "max_width": 300, "max_height": 400},
		"tall":  jsonutil.Object{"max_height": 300},
		"blank": jsonutil.Object{},
	}
	tests := []struct {
		name string
		want float64
	}{
		{"pond", 50},
		{"ring", 150},
		{"hall", 250},
		{"tall", gomath.Hypot(300, 300) / 2},
		{"blank", gomath.Hypot(100, 100) / 2},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := RoomExtent(rooms, tt.name); gomath.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RoomExtent(%s) = %v, expected %v", tt.name, got, tt.want)
		}
	}
}

func TestEnsureRadiusFitsRing(t *testing.T) {
	extents := []float64{300, 300, 300, 300, 300, 300}
	r := EnsureRadius(10, extents, 200)
	if r < MinimalRadius(extents, 200) {
		t.Fatalf("expected radius at least the minimal radius, got %v", r)
	}
	if got := TotalRequiredAngle(r, extents, 200); got > tau+1e-9 {
		t.Errorf("expected required angle within a full turn, got %v", got)
	}
	if TotalRequiredAngle(100, extents, 200) != gomath.Inf(1) {
		t.Error("expected an impossible ring to need infinite angle")
	}
	if EnsureRadius(42, nil, 200) != 42 {
		t.Error("expected an empty ring to keep its base radius")
	}
}

func TestRadialLayoutSeparation(t *testing.T) {
	extents := []float64{120, 200, 80, 150, 100}
	const edge = 200.0
	layout := RadialLayout(900, extents, edge, 5.5)
	if len(layout.Angles) != len(extents) {
		t.Fatalf("expected %d angles, got %d", len(extents), len(layout.Angles))
	}
	if layout.Radius < 900 {
		t.Errorf("expected radius at least the base, got %v", layout.Radius)
	}
	for i := range extents {
		j := (i + 1) % len(extents)
		gap := layout.Angles[j] - layout.Angles[i]
		if j == 0 {
			gap = tau - (layout.Angles[i] - layout.Angles[0])
		}
		if i > 0 && layout.Angles[i] <= layout.Angles[i-1] {
			t.Errorf("expected increasing angles, got %v", layout.Angles)
		}
		chord := 2 * layout.Radius * gomath.Sin(gap/2)
		if need := extents[i] + extents[j] + edge; chord+1e-6 < need {
			t.Errorf("rooms %d and %d are %v apart, expected at least %v", i, j, chord, need)
		}
	}
	if layout.Angles[0] < 0 || layout.Angles[0] >= tau {
		t.Errorf("expected first angle normalized, got %v", layout.Angles[0])
	}
}

func testLayers() []any {
	return []any{
		jsonutil.Object{"rooms": []any{jsonutil.Object{"name": "spawn", "max_instances": 1}}},
		jsonutil.Object{"max_rooms": 3, "rooms": []any{jsonutil.Object{"name": "glade", "max_instances": 5}}},
	}
}

func TestComputeLayerRadii(t *testing.T) {
	rooms := jsonutil.Object{
		"spawn": jsonutil.Object{"geometry": "Circle", "radius": 1500},
		"glade": jsonutil.Object{"geometry": "Square", "max_width": 200, "max_height": 200},
	}
	res := ComputeLayerRadii(testLayers(), rooms, 200)
	glade := gomath.Hypot(200, 200) / 2
	if res.Radii[0] != 0 {
		t.Errorf("expected layer 0 at the center, got %v", res.Radii[0])
	}
	if want := gomath.Ceil(1500 + glade + 200); res.Radii[1] != want {
		t.Errorf("expected layer 1 radius %v, got %v", want, res.Radii[1])
	}
	if res.Extents[0] != 1500 || gomath.Abs(res.Extents[1]-glade) > 1e-9 {
		t.Errorf("unexpected extents %v", res.Extents)
	}
	if want := res.Radii[1] + glade + MapRadiusOuterPadding; gomath.Abs(res.MapRadius-want) > 1e-9 {
		t.Errorf("expected map radius %v, got %v", want, res.MapRadius)
	}
	if res.MinEdge != 200 {
		t.Errorf("expected min edge 200, got %v", res.MinEdge)
	}
}

func TestParseLayers(t *testing.T) {
	layers := ParseLayers([]any{
		jsonutil.Object{"level": 0, "rooms": []any{jsonutil.Object{"name": "spawn"}}},
		"junk",
		jsonutil.Object{"max_rooms": 2, "rooms": []any{
			jsonutil.Object{"name": "camp", "max_instances": 2, "required_children": []any{"boss"}},
			jsonutil.Object{"max_instances": 3},
		}},
	})
	if len(layers) != 3 || layers[1].Level != 1 || len(layers[1].Rooms) != 0 {
		t.Fatalf("unexpected layers %+v", layers)
	}
	camp := layers[2].Rooms
	if len(camp) != 1 || camp[0].MaxInstances != 2 || len(camp[0].RequiredChildren) != 1 || camp[0].RequiredChildren[0] != "boss" {
		t.Errorf("unexpected layer 2 rooms %+v", camp)
	}
	if layers[0].Rooms[0].MaxInstances != 1 {
		t.Errorf("expected max_instances to default to 1, got %d", layers[0].Rooms[0].MaxInstances)
	}
}

func components(n int, edges []Edge) int {
	d := newDisjointSet(n)
	for _, e := range edges {
		d.union(e.A, e.B)
	}
	return len(d.components())
}

func TestPlanMazeConnections(t *testing.T) {
	centers := []math.Point{{X: 0, Y: 0}, {X: 300, Y: 0}, {X: 0, Y: 300}, {X: 300, Y: 300}, {X: 600, Y: 0}}
	plan := func() []Edge { return PlanMazeConnections(centers, nil, rand.New(rand.NewSource(42))) }
	edges := plan()
	loops := len(edges) - (len(centers) - 1)
	if loops < 0 || loops > 2 {
		t.Fatalf("expected rooms-1 edges plus at most 2 loops, got %d edges", len(edges))
	}
	if got := components(len(centers), edges); got != 1 {
		t.Errorf("expected 1 component, got %d", got)
	}
	seen := map[Edge]bool{}
	for _, e := range edges {
		if seen[e.key()] || e.A == e.B {
			t.Errorf("unexpected edge %v in %v", e, edges)
		}
		seen[e.key()] = true
	}
	again := plan()
	if len(again) != len(edges) {
		t.Fatalf("expected reproducible plan, got %d and %d edges", len(edges), len(again))
	}
	for i := range edges {
		if edges[i] != again[i] {
			t.Errorf("edge %d differs: %v vs %v", i, edges[i], again[i])
		}
	}
}

func TestPlanMazeConnectionsKeepsForced(t *testing.T) {
	centers := []math.Point{{X: 0, Y: 0}, {X: 5000, Y: 0}, {X: 10, Y: 10}}
	forced := []Edge{{0, 1}, {1, 0}, {0, 7}}
	edges := PlanMazeConnections(centers, forced, rand.New(rand.NewSource(3)))
	if len(edges) == 0 || edges[0] != (Edge{0, 1}) {
		t.Fatalf("expected the forced edge first, got %v", edges)
	}
	for _, e := range edges[1:] {
		if e.key() == (Edge{0, 1}) {
			t.Errorf("expected forced edge once, got %v", edges)
		}
	}
	if components(len(centers), edges) != 1 {
		t.Errorf("expected a connected plan, got %v", edges)
	}
	if PlanMazeConnections(centers[:1], nil, rand.New(rand.NewSource(3))) != nil {
		t.Error("expected no edges for a single room")
	}
}

func TestBuildCenterline(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	start, end := math.Point{X: 0, Y: 0}, math.Point{X: 800, Y: 0}
	if got := BuildCenterline(start, end, 0, rng); len(got) != 2 {
		t.Fatalf("expected a straight line, got %v", got)
	}
	line := BuildCenterline(start, end, 3, rng)
	if len(line) != 5 || line[0] != start || line[4] != end {
		t.Fatalf("unexpected centerline %v", line)
	}
	limit := 800 * 0.25 * 3.0 / 8
	for i, p := range line[1:4] {
		if gomath.Abs(float64(p.Y)) > limit+1 {
			t.Errorf("point %d offset %d exceeds %v", i+1, p.Y, limit)
		}
		if want := 200 * (i + 1); p.X != want {
			t.Errorf("point %d at x=%d, expected %d", i+1, p.X, want)
		}
	}
}

func TestExtrudeCenterline(t *testing.T) {
	poly := ExtrudeCenterline([]math.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}, 40)
	want := []math.Point{{X: 0, Y: 20}, {X: 100, Y: 20}, {X: 100, Y: -20}, {X: 0, Y: -20}}
	if len(poly) != len(want) {
		t.Fatalf("expected %v, got %v", want, poly)
	}
	for i := range want {
		if poly[i] != want[i] {
			t.Errorf("vertex %d = %v, expected %v", i, poly[i], want[i])
		}
	}
}

func TestEdgePoint(t *testing.T) {
	sq := geom.NewAreaFromPoints("sq", []math.Point{{X: 0, Y: 0}, {X: 200, Y: 0}, {X: 200, Y: 200}, {X: 0, Y: 200}}, 0)
	p := EdgePoint(math.Point{X: 100, Y: 100}, math.Point{X: 1000, Y: 100}, sq)
	if p.Y != 100 || p.X < 195 || p.X > 200 {
		t.Errorf("expected the right edge, got %v", p)
	}
	c := math.Point{X: 100, Y: 100}
	if EdgePoint(c, c, sq) != c || EdgePoint(c, math.Point{X: 5}, nil) != c {
		t.Error("expected the center for a degenerate direction or missing area")
	}
}

func testMap() jsonutil.Object {
	return jsonutil.Object{
		KeyMapLayers: []any{
			jsonutil.Object{"rooms": []any{jsonutil.Object{"name": "spawn"}}},
			jsonutil.Object{"max_rooms": 4, "rooms": []any{jsonutil.Object{"name": "glade", "max_instances": 4}}},
		},
		room.SectionRooms: jsonutil.Object{
			"glade": jsonutil.Object{
				"geometry": "Square", "min_width": 400, "max_width": 400, "min_height": 400, "max_height": 400,
				"spawn_groups": []any{jsonutil.Object{"name": "pine", "min_number": 2, "max_number": 2}},
			},
		},
		room.SectionTrails: jsonutil.Object{
			"path": jsonutil.Object{"min_width": 40, "max_width": 60, "curvyness": 2},
		},
	}
}

func TestGeneratorLayout(t *testing.T) {
	m := testMap()
	persisted := 0
	g := NewGenerator(Options{MapID: "forest", Map: m, RNG: rand.New(rand.NewSource(5)), Persist: func() { persisted++ }})
	res, err := g.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(res.Rooms) != 5 {
		t.Fatalf("expected 5 rooms, got %d", len(res.Rooms))
	}
	spawnEntry, ok := jsonutil.GetObject(m[room.SectionRooms].(jsonutil.Object), "spawn")
	if !ok || !jsonutil.Bool(spawnEntry, "is_spawn", false) || jsonutil.Int(spawnEntry, "radius", 0) != SpawnRoomRadius {
		t.Errorf("expected a generated spawn entry, got %v", spawnEntry)
	}
	if persisted == 0 {
		t.Error("expected map write-back to be persisted")
	}
	root := res.Rooms[0]
	if root.Layer != 0 || root.Origin != res.Center {
		t.Errorf("expected root at the center on layer 0, got %v layer %d", root.Origin, root.Layer)
	}
	for i, r := range res.Rooms[1:] {
		if r.Layer != 1 || r.Parent != root.ID {
			t.Errorf("room %d: expected layer 1 child of root, got layer %d parent %d", i+1, r.Layer, r.Parent)
		}
		if d := r.Origin.Distance(res.Center); d < res.Radii.Radii[1]-1 {
			t.Errorf("room %d at %v from center, expected at least %v", i+1, d, res.Radii.Radii[1])
		}
		if i > 0 && res.Rooms[i].Right != r.ID {
			t.Errorf("expected room %d linked to its left sibling", i+1)
		}
	}
	if len(res.Trails) < 4 {
		t.Errorf("expected at least 4 trails, got %d", len(res.Trails))
	}
	for _, tr := range res.Trails {
		if tr.Type != room.TypeTrail || len(tr.Connected) != 2 {
			t.Errorf("expected trail joining two rooms, got %s with %d links", tr.Type, len(tr.Connected))
		}
	}
	if n := res.Graph.Components(""); n != 1 {
		t.Errorf("expected a connected map, got %d components", n)
	}
}

func TestGeneratorNoLayers(t *testing.T) {
	if _, err := NewGenerator(Options{Map: jsonutil.Object{}}).Build(); err != ErrNoLayers {
		t.Errorf("expected ErrNoLayers, got %v", err)
	}
}

func TestGeneratorSpawns(t *testing.T) {
	lib := asset.NewLibrary(nil)
	for name, entry := range map[string]jsonutil.Object{"pine": {}, "wall": {"asset_type": "boundary"}} {
		info, err := asset.NewInfo(name, entry, nil)
		if err != nil {
			t.Fatal(err)
		}
		lib.Add(info)
	}
	m := testMap()
	m[KeyMapBoundary] = jsonutil.Object{"spawn_groups": []any{
		jsonutil.Object{"name": "wall", "min_number": 12, "max_number": 12},
	}}
	rng := rand.New(rand.NewSource(11))
	sp := spawn.NewSpawner(spawn.Options{Library: lib, RNG: rng})
	res, err := NewGenerator(Options{MapID: "forest", Map: m, RNG: rng, Spawner: sp}).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, r := range res.Rooms[1:] {
		pines := 0
		for _, a := range r.Assets {
			if a.Name() == "pine" {
				pines++
			}
		}
		if pines != 2 {
			t.Errorf("expected 2 pines in %s, got %d", r.Name, pines)
		}
	}
	if len(res.Boundary) != 12 {
		t.Fatalf("expected 12 boundary walls, got %d", len(res.Boundary))
	}
	for _, a := range res.Boundary {
		if a.Room == "" {
			t.Errorf("expected wall at %v to have an owner", a.Pos)
		}
		if res.Graph.At(a.Pos) != nil {
			t.Errorf("expected wall at %v outside every room", a.Pos)
		}
	}
}
