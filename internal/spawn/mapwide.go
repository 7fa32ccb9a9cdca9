package spawn

import (
	"hash/fnv"
	"math/rand"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

const minMapWideResolution = 5

// Mix folds v into seed.
func Mix(seed, v uint64) uint64 {
	return seed ^ (v + 0x9e3779b97f4a7c15 + (seed << 6) + (seed >> 2))
}

// CellSeed returns the PRNG seed of the map-wide cell at (x, y).
func CellSeed(mapID string, x, y int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(mapID))
	return Mix(Mix(h.Sum64(), uint64(int64(x))), uint64(int64(y)))
}

// MapWide sweeps the bounding box of rooms on a lattice and spawns the
// map_assets_data groups into rooms that inherit map assets. Each cell draws
// from its own PRNG seeded by map id and position, so the result of a cell
// does not depend on the rest of the map. Cells holding an existing
// instance are skipped.
func (s *Spawner) MapWide(mapID string, data jsonutil.Object, rooms []*room.Room, existing []*world.Asset, persist func()) []*world.Asset {
	if data == nil || len(rooms) == 0 {
		return nil
	}
	groups, _ := jsonutil.EnsureArray(data, "spawn_groups")
	if len(groups) == 0 {
		return nil
	}

	var bounds geom.Bounds
	first := true
	for _, r := range rooms {
		if r.Area == nil || r.Area.Empty() {
			continue
		}
		b := r.Area.Bounds()
		if first {
			bounds, first = b, false
			continue
		}
		bounds.MinX, bounds.MinY = min(bounds.MinX, b.MinX), min(bounds.MinY, b.MinY)
		bounds.MaxX, bounds.MaxY = max(bounds.MaxX, b.MaxX), max(bounds.MaxY, b.MaxY)
	}
	if first {
		return nil
	}

	p := NewPlanner(s.opts.Library, s.opts.IDs, s.opts.RNG, nil, Source{Name: "map_assets_data", Groups: groups, Persist: persist})
	queue := p.Queue()
	res := max(minMapWideResolution, s.opts.Grid.Resolution)
	occupied := make(map[math.Point]bool, len(existing))
	for _, a := range existing {
		occupied[geom.WorldToIndex(a.Pos, res)] = true
	}

	lo := geom.WorldToIndex(math.Point{X: bounds.MinX, Y: bounds.MinY}, res)
	hi := geom.WorldToIndex(math.Point{X: bounds.MaxX, Y: bounds.MaxY}, res)
	// Cells are visited row by row.
	type cell struct {
		world math.Point
		owner *room.Room
	}
	var cells []cell
	for j := lo.Y; j <= hi.Y; j++ {
		for i := lo.X; i <= hi.X; i++ {
			idx := math.Point{X: i, Y: j}
			if occupied[idx] {
				continue
			}
			w := geom.IndexToWorld(idx, res)
			if owner := mapWideOwner(rooms, w); owner != nil {
				cells = append(cells, cell{w, owner})
			}
		}
	}

	grid := s.opts.Grid
	grid.Resolution = res
	grid.Clamp()
	var out []*world.Asset
	for _, c := range cells {
		if !c.owner.InheritsMapAssets() {
			continue
		}
		rng := rand.New(rand.NewSource(int64(CellSeed(mapID, c.world.X, c.world.Y))))
		for _, g := range queue {
			info := g.SelectCandidate(rng)
			if info == nil {
				continue
			}
			pos := grid.JitterPoint(c.world, rng, c.owner.Area)
			if g.Checks && s.opts.Checker.Reject(info, pos, CheckOptions{EnforceSpacing: g.EnforceSpacing, ExemptMapAssets: true}) {
				continue
			}
			a := world.NewAsset(s.opts.IDs.Next(), info, c.owner.Area, pos, 0, nil, g.ID, PositionMapWide, res)
			s.opts.Checker.Track(a, g.EnforceSpacing)
			c.owner.AddAssets(a)
			out = append(out, a)
			break
		}
	}
	logger.Debug("map-wide spawn finished", zap.String("map", mapID), zap.Int("cells", len(cells)), zap.Int("spawned", len(out)))
	return out
}

// mapWideOwner returns the first containing room that inherits map assets,
// else the first containing room.
func mapWideOwner(rooms []*room.Room, p math.Point) *room.Room {
	var fallback *room.Room
	for _, r := range rooms {
		if !r.Contains(p) {
			continue
		}
		if r.InheritsMapAssets() {
			return r
		}
		if fallback == nil {
			fallback = r
		}
	}
	return fallback
}
