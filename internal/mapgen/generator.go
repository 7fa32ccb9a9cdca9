// Package mapgen lays out a map's rooms on concentric rings, joins them with
// trails and drives the spawner over the result.
package mapgen

import (
	"errors"
	"fmt"
	"image/color"
	gomath "math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/internal/spawn"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// Map manifest sections.
const (
	KeyMapLayers   = "map_layers"
	KeyMapAssets   = "map_assets_data"
	KeyMapBoundary = "map_boundary_data"
)

// Fallback spawn room dimensions.
const (
	SpawnRoomRadius = 1500
	defaultSpawn    = "spawn"
)

const boundaryAreaName = "Map"

// ErrNoLayers is returned when a map has no map_layers.
var ErrNoLayers = errors.New("map has no layers")

// RoomSpec is one room candidate of a layer.
type RoomSpec struct {
	Name             string
	MaxInstances     int
	RequiredChildren []string
}

// LayerSpec is one ring of the layout.
type LayerSpec struct {
	Level    int
	MaxRooms int
	Rooms    []RoomSpec
}

// ParseLayers reads map_layers. Entries that are not objects keep their
// index as level and hold no rooms.
func ParseLayers(raw []any) []LayerSpec {
	out := make([]LayerSpec, 0, len(raw))
	for i, v := range raw {
		spec := LayerSpec{Level: i}
		obj, ok := v.(map[string]any)
		if ok {
			spec.Level = jsonutil.Int(obj, "level", i)
			spec.MaxRooms = jsonutil.Int(obj, "max_rooms", 0)
			rooms, _ := jsonutil.GetArray(obj, "rooms")
			for _, rv := range rooms {
				ro, ok := rv.(map[string]any)
				if !ok {
					continue
				}
				name := jsonutil.String(ro, "name", "")
				if name == "" {
					continue
				}
				spec.Rooms = append(spec.Rooms, RoomSpec{
					Name:             name,
					MaxInstances:     jsonutil.Int(ro, "max_instances", 1),
					RequiredChildren: jsonutil.Strings(ro, "required_children"),
				})
			}
		}
		out = append(out, spec)
	}
	return out
}

// Options configures a Generator.
type Options struct {
	MapID string
	// Map is the map manifest entry. Generated fields are written into it.
	Map     jsonutil.Object
	Spawner *spawn.Spawner
	RNG     *rand.Rand
	Writer  room.Writer
	// Persist saves Map after map-level write-back.
	Persist func()
	// TrailAttempts bounds the placements tried per planned trail.
	TrailAttempts int
	// IsolatedPasses bounds the passes joining unreachable rooms.
	IsolatedPasses int
}

// Result is a generated map.
type Result struct {
	Graph    *room.Graph
	Rooms    []*room.Room
	Trails   []*room.Room
	Radii    LayerRadii
	Center   math.Point
	Boundary []*world.Asset
	MapWide  []*world.Asset
}

// Generator builds one map.
type Generator struct {
	opts Options
	rng  *rand.Rand

	layers     []LayerSpec
	roomsData  jsonutil.Object
	trailsData jsonutil.Object
	grid       geom.MapGridSettings
	radii      LayerRadii
	center     math.Point

	graph     *room.Graph
	areas     []*geom.Area
	colors    []color.NRGBA
	templates []trailTemplate
	dirty     bool
}

// NewGenerator prepares a generator over opts.Map. Layer radii are computed
// here so callers can write them back before Build.
func NewGenerator(opts Options) *Generator {
	if opts.Map == nil {
		opts.Map = jsonutil.Object{}
	}
	if opts.RNG == nil {
		opts.RNG = rand.New(rand.NewSource(1))
	}
	if opts.TrailAttempts <= 0 {
		opts.TrailAttempts = trailAttempts
	}
	if opts.IsolatedPasses <= 0 {
		opts.IsolatedPasses = isolatedMaxPasses
	}
	g := &Generator{opts: opts, rng: opts.RNG, graph: room.NewGraph()}
	g.roomsData, _ = jsonutil.EnsureObject(opts.Map, room.SectionRooms)
	g.trailsData, _ = jsonutil.EnsureObject(opts.Map, room.SectionTrails)
	gs, _ := jsonutil.GetObject(opts.Map, "map_grid_settings")
	g.grid = geom.ParseMapGridSettings(gs)
	raw, _ := jsonutil.GetArray(opts.Map, KeyMapLayers)
	if len(raw) > 0 {
		g.ensureRoot(raw)
	}
	g.layers = ParseLayers(raw)
	g.radii = ComputeLayerRadii(raw, g.roomsData, MinEdgeDistance(opts.Map))
	r := int(gomath.Round(g.radii.MapRadius))
	g.center = math.Point{X: r, Y: r}
	return g
}

// Radii returns the ring geometry of the map.
func (g *Generator) Radii() LayerRadii { return g.radii }

// Center returns the map center.
func (g *Generator) Center() math.Point { return g.center }

// Build lays out every layer, places trails and runs the spawner over rooms,
// trails, the map-wide lattice and the boundary ring.
func (g *Generator) Build() (*Result, error) {
	res := &Result{Graph: g.graph, Radii: g.radii, Center: g.center}
	if len(g.layers) == 0 {
		return res, ErrNoLayers
	}
	g.colors = append(room.CollectColors(g.roomsData), room.CollectColors(g.trailsData)...)

	rootSpec := g.layers[0].Rooms[0]
	root, err := g.newRoom(rootSpec.Name, g.center, room.NoRoom, 0)
	if err != nil {
		return res, fmt.Errorf("root room: %w", err)
	}
	rooms := []*room.Room{root}
	var forced []Edge
	index := map[room.ID]int{root.ID: 0}

	parents := []*room.Room{root}
	for li := 1; li < len(g.layers); li++ {
		children := g.childrenOf(g.layers[li])
		var specs []RoomSpec
		var owners []*room.Room
		if li == 1 {
			specs = children
			for range specs {
				owners = append(owners, root)
			}
		} else {
			specs, owners = g.assignParents(parents, g.layers[li-1], children)
		}
		if len(specs) == 0 {
			parents = nil
			continue
		}
		extents := make([]float64, len(specs))
		for i, s := range specs {
			extents[i] = sanitizeExtent(RoomExtent(g.roomsData, s.Name))
		}
		layout := RadialLayout(g.radii.Radii[li], extents, g.radii.MinEdge, g.rng.Float64()*tau)
		angles := layout.Angles
		if len(angles) != len(specs) {
			angles = make([]float64, len(specs))
			for i := range angles {
				angles[i] = tau / float64(len(specs)) * float64(i)
			}
		}

		var next []*room.Room
		for i, s := range specs {
			pos := math.Vec2{
				X: float64(g.center.X) + gomath.Cos(angles[i])*layout.Radius,
				Y: float64(g.center.Y) + gomath.Sin(angles[i])*layout.Radius,
			}.Round()
			child, err := g.newRoom(s.Name, pos, owners[i].ID, g.layers[li].Level)
			if err != nil {
				logger.Warn("room skipped", zap.String("room", s.Name), zap.Error(err))
				continue
			}
			if len(next) > 0 {
				g.graph.LinkSiblings(next[len(next)-1].ID, child.ID)
			}
			index[child.ID] = len(rooms)
			forced = append(forced, Edge{index[owners[i].ID], len(rooms)})
			rooms = append(rooms, child)
			next = append(next, child)
		}
		parents = next
		logger.Debug("layer placed", zap.Int("layer", li), zap.Int("rooms", len(next)), zap.Float64("radius", layout.Radius))
	}
	res.Rooms = rooms

	if len(rooms) > 1 {
		trails, err := g.buildTrails(rooms, forced)
		if err != nil {
			return res, err
		}
		res.Trails = trails
	}
	g.persistIfDirty()
	g.spawn(res)
	return res, nil
}

func (g *Generator) persistIfDirty() {
	if g.dirty && g.opts.Persist != nil {
		g.opts.Persist()
	}
	g.dirty = false
}

// ensureRoot makes sure layer 0 names a room and that the room has a
// rooms_data entry, adding a default spawn room where either is missing.
func (g *Generator) ensureRoot(raw []any) {
	layer0, ok := raw[0].(map[string]any)
	if !ok {
		layer0 = jsonutil.Object{"level": 0}
		raw[0] = layer0
		g.dirty = true
	}
	rooms, _ := jsonutil.GetArray(layer0, "rooms")
	name := ""
	if len(rooms) > 0 {
		if first, ok := rooms[0].(map[string]any); ok {
			name = jsonutil.String(first, "name", "")
		}
	}
	if name == "" {
		name = defaultSpawn
		for _, k := range sortedKeys(g.roomsData) {
			if e, ok := jsonutil.GetObject(g.roomsData, k); ok && jsonutil.Bool(e, "is_spawn", false) {
				name = k
				break
			}
		}
		layer0["max_rooms"] = 1
		layer0["rooms"] = []any{jsonutil.Object{"name": name, "max_instances": 1, "required_children": []any{}}}
		g.dirty = true
	}
	if _, ok := jsonutil.GetObject(g.roomsData, name); !ok {
		g.roomsData[name] = DefaultSpawnEntry(name)
		g.dirty = true
	}
}

// DefaultSpawnEntry returns the rooms_data entry of a generated spawn room.
func DefaultSpawnEntry(name string) jsonutil.Object {
	d := SpawnRoomRadius * 2
	return jsonutil.Object{
		"name":                name,
		"geometry":            geom.GeometryCircle,
		"radius":              SpawnRoomRadius,
		"min_radius":          SpawnRoomRadius,
		"max_radius":          SpawnRoomRadius,
		"min_width":           d,
		"max_width":           d,
		"min_height":          d,
		"max_height":          d,
		"edge_smoothness":     2,
		"is_spawn":            true,
		"is_boss":             false,
		"inherits_map_assets": false,
		"spawn_groups":        []any{},
	}
}

// childrenOf expands a layer's candidates by max_instances, shuffles them
// and keeps at most max_rooms.
func (g *Generator) childrenOf(layer LayerSpec) []RoomSpec {
	target := max(0, layer.MaxRooms)
	if target == 0 {
		return nil
	}
	var out []RoomSpec
	for _, r := range layer.Rooms {
		for i := 0; i < max(0, r.MaxInstances); i++ {
			out = append(out, r)
		}
	}
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > target {
		out = out[:target]
	}
	return out
}

// assignParents gives every parent its required children first, then deals
// the layer's children to the parent holding the fewest. The result is
// grouped by parent in ring order with each group shuffled.
func (g *Generator) assignParents(parents []*room.Room, prev LayerSpec, children []RoomSpec) ([]RoomSpec, []*room.Room) {
	if len(parents) == 0 {
		return nil, nil
	}
	assigned := make([][]RoomSpec, len(parents))
	for i, p := range parents {
		for _, rs := range prev.Rooms {
			if rs.Name != p.Name {
				continue
			}
			for _, c := range rs.RequiredChildren {
				assigned[i] = append(assigned[i], RoomSpec{Name: c, MaxInstances: 1})
			}
		}
	}
	counts := make([]int, len(parents))
	for _, c := range children {
		idx := 0
		for i := range counts {
			if counts[i] < counts[idx] {
				idx = i
			}
		}
		assigned[idx] = append(assigned[idx], c)
		counts[idx]++
	}
	var specs []RoomSpec
	var owners []*room.Room
	for i, p := range parents {
		kids := assigned[i]
		g.rng.Shuffle(len(kids), func(a, b int) { kids[a], kids[b] = kids[b], kids[a] })
		for _, k := range kids {
			specs = append(specs, k)
			owners = append(owners, p)
		}
	}
	return specs, owners
}

func (g *Generator) newRoom(name string, origin math.Point, parent room.ID, layer int) (*room.Room, error) {
	data, ok := jsonutil.GetObject(g.roomsData, name)
	if !ok {
		logger.Warn("room has no rooms_data entry", zap.String("room", name))
	} else if _, changed := room.EnsureColor(data, &g.colors); changed {
		g.dirty = true
	}
	r, err := room.New(room.Spec{
		Name:      name,
		Type:      room.TypeRoom,
		Origin:    origin,
		Parent:    parent,
		Context:   g.opts.MapID,
		Section:   room.SectionRooms,
		Data:      data,
		Grid:      g.grid,
		MapRadius: g.radii.MapRadius,
		Writer:    g.opts.Writer,
		RNG:       g.rng,
	})
	if err != nil {
		return nil, err
	}
	r.Layer = layer
	g.graph.Add(r)
	g.areas = append(g.areas, r.Area)
	return r, nil
}

// spawn populates rooms and trails, then sweeps the map-wide lattice and the
// boundary ring.
func (g *Generator) spawn(res *Result) {
	sp := g.opts.Spawner
	if sp == nil {
		return
	}
	trailAreas := make([]*geom.Area, 0, len(res.Trails))
	for _, t := range res.Trails {
		trailAreas = append(trailAreas, t.Area)
	}
	sp.SetTrails(trailAreas)

	all := g.graph.Rooms()
	var existing []*world.Asset
	for _, r := range all {
		existing = append(existing, sp.SpawnRoom(r)...)
	}

	if data, ok := jsonutil.GetObject(g.opts.Map, KeyMapAssets); ok {
		res.MapWide = sp.MapWide(g.opts.MapID, data, all, existing, g.opts.Persist)
	}

	data, ok := jsonutil.GetObject(g.opts.Map, KeyMapBoundary)
	if !ok || len(data) == 0 {
		return
	}
	d := 2 * g.center.X
	mapArea, err := geom.NewAreaFromGeometry(boundaryAreaName, g.center, d, d, geom.GeometryCircle, 1, d, d, trailAreaResolution, g.rng)
	if err != nil {
		logger.Warn("boundary area rejected", zap.String("map", g.opts.MapID), zap.Error(err))
		return
	}
	res.Boundary = sp.SpawnBoundary(data, mapArea, all, g.opts.Persist)
}

func sortedKeys(m jsonutil.Object) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
