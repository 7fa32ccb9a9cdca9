// Package loader turns a map entry into a finalized world: it resolves the
// map, generates rooms and trails, finalizes every spawned asset, hides
// distant boundary decoration and indexes the rest in a world grid.
package loader

import (
	"context"
	"errors"
	"fmt"
	gomath "math"
	"math/rand"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/audio"
	"github.com/Faultbox/vibble/internal/config"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/manifest"
	"github.com/Faultbox/vibble/internal/mapgen"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/internal/spawn"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// Default distances, in world units, past which boundary assets freeze and
// disappear.
const (
	DefaultLockThreshold   = 150
	DefaultRemoveThreshold = 800
)

// defaultChunkResolution is used when the map sets no r_chunk.
const defaultChunkResolution = 10

// ErrNoLibrary is returned when Load runs without an asset library.
var ErrNoLibrary = errors.New("loader: no asset library")

// Options configures Load.
type Options struct {
	MapID string
	// Map, when set, is used in place of the store entry. Generated fields
	// are written into it.
	Map     jsonutil.Object
	Store   *manifest.Store
	Library *asset.Library
	// Audio is optional; its failures never abort loading.
	Audio    audio.Player
	Renderer render.Renderer
	World    config.WorldConfig
	// Status receives loading screen messages.
	Status func(msg string)
}

// World is a loaded map.
type World struct {
	MapID  string
	Map    jsonutil.Object
	Seed   int64
	Graph  *room.Graph
	Rooms  []*room.Room
	Trails []*room.Room
	Radii  mapgen.LayerRadii
	Center math.Point

	// Assets holds every spawned instance, hidden ones included.
	Assets []*world.Asset
	Grid   *world.Grid

	Skipped int
	Locked  int
	Removed int
}

// Visible returns the assets registered in the grid.
func (w *World) Visible() []*world.Asset { return w.Grid.Assets() }

type loader struct {
	opts  Options
	w     *World
	rng   *rand.Rand
	dirty bool
}

// Load builds the world for opts.MapID.
func Load(ctx context.Context, opts Options) (*World, error) {
	if opts.Library == nil {
		return nil, ErrNoLibrary
	}
	if opts.World.LockThreshold <= 0 {
		opts.World.LockThreshold = DefaultLockThreshold
	}
	if opts.World.RemoveThreshold <= 0 {
		opts.World.RemoveThreshold = DefaultRemoveThreshold
	}
	start := time.Now()
	l := &loader{opts: opts, w: &World{}}

	l.status("Loading map data")
	l.resolveMap()
	l.w.Seed = int64(opts.World.Seed)
	if l.w.Seed == 0 {
		l.w.Seed = time.Now().UnixNano()
	}
	l.rng = rand.New(rand.NewSource(l.w.Seed))
	logger.Info("loading map", zap.String("map", l.w.MapID), zap.Int64("seed", l.w.Seed))

	l.initAudio()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.status("Creating map")
	if err := l.buildRooms(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.status("Loading assets")
	l.warmAnimations()
	l.finalizeAssets()
	l.collectDistantAssets(opts.World.LockThreshold, opts.World.RemoveThreshold)
	l.extract()
	l.persist()

	logger.Info("map loaded",
		zap.String("map", l.w.MapID),
		zap.Int("rooms", len(l.w.Rooms)),
		zap.Int("trails", len(l.w.Trails)),
		zap.Int("assets", len(l.w.Assets)),
		zap.Int("visible", l.w.Grid.Len()),
		zap.Int("skipped", l.w.Skipped),
		zap.Duration("elapsed", time.Since(start)))
	return l.w, nil
}

func (l *loader) status(msg string) {
	if l.opts.Status != nil {
		l.opts.Status(msg)
	}
	logger.Debug("loading status", zap.String("status", msg))
}

// resolveMap picks the map entry: the caller's descriptor, the store entry
// or a generated default holding only a spawn room.
func (l *loader) resolveMap() {
	id := l.opts.MapID
	store := l.opts.Store
	if id == "" && store != nil {
		if ids := store.MapIDs(); len(ids) > 0 {
			id = ids[0]
		}
	}
	l.w.MapID = id

	switch {
	case l.opts.Map != nil:
		l.w.Map = l.opts.Map
	case store != nil && id != "":
		if m, ok := store.FindMap(id); ok {
			l.w.Map = m
			return
		}
		fallthrough
	default:
		logger.Warn("map not found, generating a default", zap.String("map", id))
		l.w.Map = DefaultMap()
		l.dirty = true
	}
}

// DefaultMap returns a map entry with a single spawn layer.
func DefaultMap() jsonutil.Object {
	return jsonutil.Object{
		mapgen.KeyMapLayers: []any{jsonutil.Object{"level": 0}},
		room.SectionRooms:   jsonutil.Object{},
		room.SectionTrails:  jsonutil.Object{},
	}
}

func (l *loader) initAudio() {
	a := l.opts.Audio
	if a == nil {
		return
	}
	if err := a.Init(); err != nil {
		logger.Error("audio init failed", zap.Error(err))
		return
	}
	path, volume, ok := audio.MapMusic(l.w.Map)
	if !ok {
		return
	}
	if err := a.PlayMapMusic(l.contentPath(path), volume); err != nil {
		logger.Warn("map music unavailable", zap.String("music", path), zap.Error(err))
	}
}

// contentPath resolves a map-relative file against content_root, then the
// store's source root.
func (l *loader) contentPath(p string) string {
	root := jsonutil.String(l.w.Map, "content_root", "")
	if root == "" && l.opts.Store != nil {
		root = l.opts.Store.SrcRoot()
	}
	if root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func (l *loader) markDirty() { l.dirty = true }

// persist writes the map entry back through a map transaction.
func (l *loader) persist() {
	if !l.dirty || l.opts.Store == nil || l.w.MapID == "" || l.opts.Map != nil {
		return
	}
	tx, err := l.opts.Store.BeginMapTransaction(l.w.MapID, true)
	if err != nil {
		logger.Warn("map write-back skipped", zap.String("map", l.w.MapID), zap.Error(err))
		return
	}
	draft := tx.Draft()
	for k := range draft {
		delete(draft, k)
	}
	for k, v := range jsonutil.CloneObject(l.w.Map) {
		draft[k] = v
	}
	if !tx.Finalize() {
		tx.Cancel()
		return
	}
	l.dirty = false
}

func (l *loader) buildRooms() error {
	m := l.w.Map
	lib := l.opts.Library
	grid := geom.EnsureMapGridSettings(m)
	sp := spawn.NewSpawner(spawn.Options{
		Library: lib,
		IDs:     world.NewIDs(l.w.Seed),
		RNG:     l.rng,
		Grid:    grid,
	})
	gen := mapgen.NewGenerator(mapgen.Options{
		MapID:          l.w.MapID,
		Map:            m,
		Spawner:        sp,
		RNG:            l.rng,
		Writer:         func(string, string, jsonutil.Object) { l.markDirty() },
		Persist:        l.markDirty,
		TrailAttempts:  l.opts.World.TrailAttempts,
		IsolatedPasses: l.opts.World.IsolatedPassLimit,
	})
	l.w.Radii = gen.Radii()
	l.w.Center = gen.Center()
	l.writeRadii()
	l.persist()

	res, err := gen.Build()
	switch {
	case errors.Is(err, mapgen.ErrNoLayers):
		logger.Warn("map has no layers", zap.String("map", l.w.MapID))
	case err != nil:
		logger.Error("room generation failed", zap.String("map", l.w.MapID), zap.Error(err))
	}
	if res == nil {
		res = &mapgen.Result{Graph: room.NewGraph(), Center: l.w.Center, Radii: l.w.Radii}
	}
	l.w.Graph = res.Graph
	l.w.Rooms = res.Rooms
	l.w.Trails = res.Trails

	if len(l.w.Rooms) == 0 {
		r, err := l.fallbackSpawn(sp)
		if err != nil {
			return fmt.Errorf("fallback spawn room: %w", err)
		}
		l.w.Rooms = []*room.Room{r}
	}
	for _, r := range l.w.Graph.Rooms() {
		l.w.Assets = append(l.w.Assets, r.Assets...)
	}
	return nil
}

// writeRadii stores ring_radius and bounding_extent on every layer object
// and the effective minimum edge distance in map_layers_settings.
func (l *loader) writeRadii() {
	layers, _ := jsonutil.GetArray(l.w.Map, mapgen.KeyMapLayers)
	for i, v := range layers {
		obj, ok := v.(map[string]any)
		if !ok || i >= len(l.w.Radii.Radii) {
			continue
		}
		obj["ring_radius"] = l.w.Radii.Radii[i]
		obj["bounding_extent"] = l.w.Radii.Extents[i]
	}
	settings, _ := jsonutil.EnsureObject(l.w.Map, "map_layers_settings")
	settings["min_edge_distance"] = l.w.Radii.MinEdge
	l.dirty = true
}

// fallbackResolution is the lattice resolution of the fallback outline.
const fallbackResolution = 3

// fallbackSpawn builds a single spawn room in the middle of the map when
// generation produced nothing.
func (l *loader) fallbackSpawn(sp *spawn.Spawner) (*room.Room, error) {
	logger.Warn("no rooms generated, adding a default spawn room", zap.String("map", l.w.MapID))
	d := mapgen.SpawnRoomRadius * 2
	mr := d
	if l.w.Radii.MapRadius > 0 {
		mr = max(d, 2*int(gomath.Round(l.w.Radii.MapRadius)))
	}
	center := math.Point{X: mr / 2, Y: mr / 2}

	rooms, _ := jsonutil.EnsureObject(l.w.Map, room.SectionRooms)
	const name = "spawn"
	data, ok := jsonutil.GetObject(rooms, name)
	if !ok {
		data = mapgen.DefaultSpawnEntry(name)
		rooms[name] = data
		l.dirty = true
	}
	// A fully smooth circle keeps the outline at the exact diameter.
	outline, err := geom.NewAreaFromGeometry(name, center, d, d, geom.GeometryCircle, 100, mr, mr, fallbackResolution, l.rng)
	if err != nil {
		return nil, err
	}
	r, err := room.New(room.Spec{
		Name:      name,
		Type:      room.TypeRoom,
		Origin:    center,
		Area:      outline,
		Parent:    room.NoRoom,
		Context:   l.w.MapID,
		Section:   room.SectionRooms,
		Data:      data,
		Grid:      geom.ParseMapGridSettings(mapGridSection(l.w.Map)),
		MapRadius: float64(mr) / 2,
		Writer:    func(string, string, jsonutil.Object) { l.markDirty() },
		RNG:       l.rng,
	})
	if err != nil {
		return nil, err
	}
	r.Layer = 0
	l.w.Graph.Add(r)
	l.w.Center = center
	sp.SpawnRoom(r)
	return r, nil
}

func mapGridSection(m jsonutil.Object) jsonutil.Object {
	gs, _ := jsonutil.GetObject(m, "map_grid_settings")
	return gs
}

func (l *loader) warmAnimations() {
	if l.opts.Renderer == nil {
		logger.Warn("renderer unavailable, skipping animation warmup")
		return
	}
	if err := l.opts.Library.LoadAllAnimations(l.opts.Renderer); err != nil {
		logger.Warn("animation warmup incomplete",
			zap.Int("failed", len(multierr.Errors(err))), zap.Error(err))
	}
}

// finalizeAssets finalizes every asset. A failing asset is marked dead and
// hidden; the rest of the map is unaffected.
func (l *loader) finalizeAssets() {
	var errs error
	for _, a := range l.w.Assets {
		if err := a.Finalize(l.rng); err != nil {
			a.Dead = true
			a.SetHidden(true)
			l.w.Skipped++
			errs = multierr.Append(errs, fmt.Errorf("%s at %v: %w", a.Name(), a.Pos, err))
		}
	}
	if errs != nil {
		logger.Warn("assets skipped during finalize", zap.Int("count", l.w.Skipped), zap.Error(errs))
	}
}

// collectDistantAssets freezes boundary assets farther than lock from every
// room and trail and hides those at least remove away. Assets inside their
// owning room or any zone are left alone.
func (l *loader) collectDistantAssets(lock, remove float64) {
	var zones []*geom.Area
	byName := map[string]*room.Room{}
	for _, r := range l.w.Graph.Rooms() {
		if r.Area != nil && !r.Area.Empty() {
			zones = append(zones, r.Area)
		}
		if _, ok := byName[r.Name]; !ok {
			byName[r.Name] = r
		}
	}
	considered := 0
	for _, r := range l.w.Graph.Rooms() {
		for _, a := range r.Assets {
			if a.Type() != asset.TypeBoundary || a.Dead {
				continue
			}
			considered++
			owner := r
			if o, ok := byName[a.Room]; ok {
				owner = o
			}
			if owner.Contains(a.Pos) {
				continue
			}
			d := DistanceToZones(a.Pos, zones)
			if d == 0 {
				continue
			}
			locked := d > lock
			a.StaticFrame = locked
			if locked {
				l.w.Locked++
			}
			if d >= remove {
				a.SetHidden(true)
				l.w.Removed++
			}
		}
	}
	logger.Debug("distant boundary assets",
		zap.Int("considered", considered), zap.Int("locked", l.w.Locked), zap.Int("removed", l.w.Removed))
}

// DistanceToZones returns the distance from p to the nearest zone outline,
// 0 inside a zone and +Inf without zones.
func DistanceToZones(p math.Point, zones []*geom.Area) float64 {
	best := gomath.Inf(1)
	for _, z := range zones {
		b := z.Bounds()
		// Bounding boxes farther than the best hit cannot win.
		dx := max(b.MinX-p.X, 0, p.X-b.MaxX)
		dy := max(b.MinY-p.Y, 0, p.Y-b.MaxY)
		if gomath.Hypot(float64(dx), float64(dy)) > best {
			continue
		}
		if d := z.DistanceTo(p); d < best {
			best = d
			if d == 0 {
				return 0
			}
		}
	}
	return best
}

// extract indexes every visible asset in a grid chunked at the map's
// r_chunk.
func (l *loader) extract() {
	gs := geom.ParseMapGridSettings(mapGridSection(l.w.Map))
	r := gs.RChunk
	if r == 0 {
		r = defaultChunkResolution
	}
	g := world.NewGrid(math.Point{}, r)
	g.SetGridResolution(gs.Resolution)
	for _, a := range l.w.Assets {
		if a.Hidden() || a.Dead {
			continue
		}
		g.Register(a)
	}
	l.w.Grid = g
}
