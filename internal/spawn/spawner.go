package spawn

import (
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Spawner populates the rooms of one map. Every context it creates shares
// the spawner's checker, id source and PRNG.
type Spawner struct {
	opts Options
}

// NewSpawner creates a spawner. Defaults are filled as for NewContext.
func NewSpawner(opts Options) *Spawner {
	c := NewContext(opts)
	return &Spawner{opts: c.opts}
}

// Checker returns the shared spacing checker.
func (s *Spawner) Checker() *Checker { return s.opts.Checker }

// SetTrails sets the trail outlines edge placement avoids.
func (s *Spawner) SetTrails(trails []*geom.Area) { s.opts.Trails = trails }

func (s *Spawner) context(zones []*geom.Area, partial bool) *Context {
	o := s.opts
	o.Zones = zones
	o.PartialOverlap = partial
	return NewContext(o)
}

// SpawnRoom runs the room's spawn groups inside its outline and hands the
// placed instances to the room. Groups with a link spawn inside the named
// room area instead.
func (s *Spawner) SpawnRoom(r *room.Room) []*world.Asset {
	if r == nil || r.Area == nil || r.Area.Empty() {
		return nil
	}
	p := NewPlanner(s.opts.Library, s.opts.IDs, s.opts.RNG, r.Area,
		Source{Name: r.Name, Groups: r.SpawnGroups(), Persist: r.Save})
	ctx := s.context(nil, false)
	occ := geom.NewOccupancy(r.Area, ctx.resolution(nil), geom.Grid{}, false)
	for _, g := range p.Queue() {
		target, o := r.Area, occ
		if g.Link != "" {
			la := r.FindArea(g.Link)
			if la == nil {
				logger.Warn("spawn group links unknown area",
					zap.String("room", r.Name), zap.String("group", g.DisplayName), zap.String("link", g.Link))
				continue
			}
			target, o = la, nil
		}
		ctx.Run(g, target, o)
	}
	out := ctx.TakeSpawned()
	r.AddAssets(out...)
	return out
}

// SpawnGroups runs raw spawn_groups from data inside area while avoiding
// zones. It is used for the boundary ring, whose groups default to batch
// placement so large counts stay linear in the lattice size.
func (s *Spawner) SpawnGroups(name string, data jsonutil.Object, area *geom.Area, zones []*geom.Area, persist func()) []*world.Asset {
	if data == nil || area == nil || area.Empty() {
		return nil
	}
	groups, _ := jsonutil.EnsureArray(data, "spawn_groups")
	p := NewPlanner(s.opts.Library, s.opts.IDs, s.opts.RNG, area, Source{Name: name, Groups: groups, Persist: persist})
	ctx := s.context(zones, true)
	occ := geom.NewOccupancy(area, ctx.resolution(nil), geom.Grid{}, false)
	for _, g := range p.Queue() {
		if g.Position == PositionRandom {
			g.Position = PositionMapWide
		}
		ctx.Run(g, area, occ)
	}
	return ctx.TakeSpawned()
}

// SpawnBoundary fills the map circle outside every room with the
// map_boundary_data groups and gives each instance to the room that owns
// its position.
func (s *Spawner) SpawnBoundary(data jsonutil.Object, mapArea *geom.Area, rooms []*room.Room, persist func()) []*world.Asset {
	zones := make([]*geom.Area, 0, len(rooms))
	for _, r := range rooms {
		if r.Area != nil {
			zones = append(zones, r.Area)
		}
	}
	out := s.SpawnGroups("map_boundary_data", data, mapArea, zones, persist)
	owners := NewOwnerIndex(rooms)
	for _, a := range out {
		if r := owners.Owner(a.Pos); r != nil {
			a.Room = r.Name
			r.AddAssets(a)
		}
	}
	return out
}
