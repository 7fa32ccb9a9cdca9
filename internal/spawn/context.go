package spawn

import (
	gomath "math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

const (
	randomAttemptsPerAsset = 20
	childAttemptsPerAsset  = 50
	maxChildDepth          = 4
	// minSpawnResolution bounds the occupancy lattice of large areas.
	minSpawnResolution = 4
)

// Options configure a Context.
type Options struct {
	Library Library
	IDs     *world.IDs
	RNG     *rand.Rand
	// Checker is shared between contexts so spacing holds across rooms. A
	// nil Checker gets a fresh one.
	Checker *Checker
	Grid    geom.MapGridSettings
	// Zones are exclusion areas candidate positions must avoid.
	Zones []*geom.Area
	// Trails are skipped by edge placement.
	Trails []*geom.Area
	// PartialOverlap admits positions whose lattice cell touches the clip
	// area.
	PartialOverlap bool
}

// Context places the instances of groups inside one spawn area.
type Context struct {
	opts    Options
	rng     *rand.Rand
	checker *Checker
	planner *Planner

	spawned []*world.Asset
	tiles   map[string]map[math.Point]bool
	depth   int
}

// NewContext creates a placement context.
func NewContext(opts Options) *Context {
	if opts.RNG == nil {
		opts.RNG = rand.New(rand.NewSource(1))
	}
	if opts.IDs == nil {
		opts.IDs = world.NewIDs(opts.RNG.Int63())
	}
	if opts.Checker == nil {
		opts.Checker = NewChecker()
	}
	return &Context{
		opts:    opts,
		rng:     opts.RNG,
		checker: opts.Checker,
		planner: &Planner{lib: opts.Library, ids: opts.IDs, rng: opts.RNG},
		tiles:   make(map[string]map[math.Point]bool),
	}
}

// Spawned returns the top-level instances placed so far.
func (c *Context) Spawned() []*world.Asset { return c.spawned }

// TakeSpawned hands the placed instances to the caller and clears the list.
func (c *Context) TakeSpawned() []*world.Asset {
	out := c.spawned
	c.spawned = nil
	return out
}

func (c *Context) resolution(g *Group) int {
	r := c.opts.Grid.Resolution
	if g != nil && g.GridResolution > 0 {
		r = g.GridResolution
	}
	return geom.ClampResolution(max(r, minSpawnResolution))
}

// Run places g inside area with the group's method and returns the new
// top-level instances. occ may be nil, in which case one is built for area.
func (c *Context) Run(g *Group, area *geom.Area, occ *geom.Occupancy) []*world.Asset {
	if g == nil || area == nil || area.Empty() || g.Quantity <= 0 {
		return nil
	}
	if occ == nil {
		occ = geom.NewOccupancy(area, c.resolution(g), geom.Grid{}, c.opts.PartialOverlap)
	}
	before := len(c.spawned)
	switch g.Position {
	case PositionExact:
		c.Exact(g, area, occ)
	case PositionCenter:
		c.Center(g, area, occ)
	case PositionPerimeter:
		c.Perimeter(g, area, occ)
	case PositionPercent:
		c.Percent(g, area, occ)
	case PositionEdge:
		c.Edge(g, area, occ)
	case PositionChildRandom:
		c.ChildRandom(g, area)
	case PositionMapWide:
		c.BatchMapAssets(g, area, occ)
	default:
		c.Random(g, area, occ)
	}
	placed := c.spawned[before:]
	if len(placed) < g.Quantity {
		logger.Debug("spawn group under-filled",
			zap.String("group", g.DisplayName), zap.String("area", area.Name),
			zap.Int("want", g.Quantity), zap.Int("placed", len(placed)))
	}
	return placed
}

func (c *Context) checkOptions(g *Group) CheckOptions {
	return CheckOptions{Zones: c.opts.Zones, EnforceSpacing: g.EnforceSpacing}
}

// allowed reports whether p may hold an instance of area.
func (c *Context) allowed(area *geom.Area, occ *geom.Occupancy, p math.Point) bool {
	if area.ContainsPoint(p) {
		return true
	}
	return c.opts.PartialOverlap && occ != nil && occ.CellOverlaps(area, p)
}

// try places info at p when the checks pass. It returns nil on rejection.
func (c *Context) try(g *Group, info *asset.Info, area *geom.Area, occ *geom.Occupancy, p math.Point, method string, opts CheckOptions) *world.Asset {
	if info.Tillable {
		p = tileAlign(info, p)
		if c.tileTaken(info, p) {
			return nil
		}
	}
	if g.Checks && c.checker.Reject(info, p, opts) {
		return nil
	}
	a := c.place(g, info, area, p, method, nil)
	if occ != nil {
		occ.SetOccupiedAt(p, true)
	}
	return a
}

// Exact places one instance at the group offset from the area center,
// snapped to the nearest free lattice vertex.
func (c *Context) Exact(g *Group, area *geom.Area, occ *geom.Occupancy) {
	info := g.SelectCandidate(c.rng)
	if info == nil {
		return
	}
	p := area.Center().Add(g.ExactOffset)
	if v := occ.NearestVertex(p); v != nil {
		p = v.World
	}
	c.try(g, info, area, occ, p, PositionExact, c.checkOptions(g))
}

// Center places the group's instances at the free vertices nearest to the
// area center.
func (c *Context) Center(g *Group, area *geom.Area, occ *geom.Occupancy) {
	center := area.Center()
	for n := 0; n < g.Quantity; n++ {
		info := g.SelectCandidate(c.rng)
		if info == nil {
			continue
		}
		p := center
		v := occ.NearestVertex(center)
		if v != nil {
			p = v.World
		}
		if c.try(g, info, area, occ, p, PositionCenter, c.checkOptions(g)) == nil && v != nil {
			occ.SetOccupied(v, true)
		}
	}
}

// Random scatters the group over free vertices of area, falling back to
// polygon sampling once the lattice is exhausted.
func (c *Context) Random(g *Group, area *geom.Area, occ *geom.Occupancy) {
	placed := 0
	for attempt := 0; placed < g.Quantity && attempt < g.Quantity*randomAttemptsPerAsset; attempt++ {
		info := g.SelectCandidate(c.rng)
		if info == nil {
			placed++
			continue
		}
		var p math.Point
		if v := occ.RandomVertexIn(area, c.rng); v != nil {
			p = c.opts.Grid.JitterPoint(v.World, c.rng, area)
		} else if rp, ok := area.RandomPointWithin(c.rng); ok {
			p = rp
		} else {
			return
		}
		if !c.allowed(area, occ, p) {
			continue
		}
		if c.try(g, info, area, occ, p, PositionRandom, c.checkOptions(g)) != nil {
			placed++
		}
	}
}

// Perimeter spaces the instances evenly on a circle around the area
// center, starting at a random phase.
func (c *Context) Perimeter(g *Group, area *geom.Area, occ *geom.Occupancy) {
	radius := g.PerimeterRadius
	if radius <= 0 {
		radius = min(area.Width(), area.Height()) / 2
	}
	center := area.Center().Add(g.ExactOffset)
	phase := c.rng.Float64() * 2 * gomath.Pi
	step := 2 * gomath.Pi / float64(g.Quantity)
	for n := 0; n < g.Quantity; n++ {
		info := g.SelectCandidate(c.rng)
		if info == nil {
			continue
		}
		t := phase + float64(n)*step
		p := math.Point{
			X: center.X + int(gomath.Round(float64(radius)*gomath.Cos(t))),
			Y: center.Y + int(gomath.Round(float64(radius)*gomath.Sin(t))),
		}
		if !c.allowed(area, occ, p) {
			continue
		}
		c.try(g, info, area, occ, p, PositionPerimeter, c.checkOptions(g))
	}
}

// Percent places instances at random offsets of up to half the area size
// from its center, snapped to the lattice.
func (c *Context) Percent(g *Group, area *geom.Area, occ *geom.Occupancy) {
	center := area.Center()
	hw, hh := float64(area.Width())/2, float64(area.Height())/2
	placed := 0
	for attempt := 0; placed < g.Quantity && attempt < g.Quantity*randomAttemptsPerAsset; attempt++ {
		info := g.SelectCandidate(c.rng)
		if info == nil {
			placed++
			continue
		}
		px := (c.rng.Float64()*2 - 1) * hw
		py := (c.rng.Float64()*2 - 1) * hh
		p := math.Point{X: center.X + int(gomath.Round(px)), Y: center.Y + int(gomath.Round(py))}
		if v := occ.NearestVertex(p); v != nil {
			p = v.World
		}
		if !c.allowed(area, occ, p) {
			continue
		}
		if c.try(g, info, area, occ, p, PositionPercent, c.checkOptions(g)) != nil {
			placed++
		}
	}
}

// Edge spaces instances evenly along the area outline from a random start.
// Each point is moved toward the center to EdgeInsetPercent of its radius
// and snapped to the lattice. Points over a trail are skipped.
func (c *Context) Edge(g *Group, area *geom.Area, occ *geom.Occupancy) {
	outline := NewOutline(area.Points())
	if outline.Length() <= 0 {
		return
	}
	center := area.Center()
	step := outline.Length() / float64(g.Quantity)
	start := c.rng.Float64() * step
	res := c.resolution(g)
	f := float64(g.EdgeInsetPercent) / 100
	opts := c.checkOptions(g)
	opts.Exempt = true
	for n := 0; n < g.Quantity; n++ {
		info := g.SelectCandidate(c.rng)
		if info == nil {
			continue
		}
		e := outline.At(start + float64(n)*step)
		p := math.Point{
			X: center.X + int(gomath.Round(float64(e.X-center.X)*f)),
			Y: center.Y + int(gomath.Round(float64(e.Y-center.Y)*f)),
		}
		p = geom.SnapWorldToVertex(p, res)
		if InZone(p, c.opts.Trails) {
			continue
		}
		c.try(g, info, area, occ, p, PositionEdge, opts)
	}
}

// ChildRandom places instances at random points inside area without
// spacing checks.
func (c *Context) ChildRandom(g *Group, area *geom.Area) {
	c.childRandom(g, area, nil, 0, false)
}

func (c *Context) childRandom(g *Group, area *geom.Area, parent *world.Asset, zOffset int, onTop bool) {
	placed := 0
	for attempt := 0; placed < g.Quantity && attempt < g.Quantity*childAttemptsPerAsset; attempt++ {
		info := g.SelectCandidate(c.rng)
		if info == nil {
			placed++
			continue
		}
		p, ok := area.RandomPointWithin(c.rng)
		if !ok {
			return
		}
		if info.Tillable {
			p = tileAlign(info, p)
		}
		a := c.place(g, info, area, p, PositionChildRandom, parent)
		if parent != nil {
			z := zOffset
			if onTop && z < 1 {
				z = 1
			}
			a.SetZOffset(z)
		}
		placed++
	}
}

// BatchMapAssets walks the free vertices of area in random order and tries
// the candidates from most to least likely at each, rolling each chance as
// a percentage.
func (c *Context) BatchMapAssets(g *Group, area *geom.Area, occ *geom.Occupancy) {
	verts := occ.VerticesIn(area)
	c.rng.Shuffle(len(verts), func(i, j int) { verts[i], verts[j] = verts[j], verts[i] })
	cands := g.ByWeight()
	opts := c.checkOptions(g)
	opts.ExemptMapAssets = true
	placed := 0
	for _, v := range verts {
		if placed >= g.Quantity {
			return
		}
		if v.Occupied {
			continue
		}
		p := c.opts.Grid.JitterPoint(v.World, c.rng, area)
		for _, cand := range cands {
			if c.rng.Float64()*100 >= cand.Chance {
				continue
			}
			info := cand.resolve(c.rng)
			if info == nil {
				continue
			}
			if c.try(g, info, area, occ, p, PositionMapWide, opts) != nil {
				occ.SetOccupied(v, true)
				placed++
				break
			}
		}
	}
}

// place creates the instance, tracks it for spacing and spawns its
// attachment children. Without a parent the instance is top-level.
func (c *Context) place(g *Group, info *asset.Info, area *geom.Area, p math.Point, method string, parent *world.Asset) *world.Asset {
	depth := 0
	if parent != nil {
		depth = parent.Depth + 1
	}
	a := world.NewAsset(c.opts.IDs.Next(), info, area, p, depth, parent, g.ID, method, c.resolution(g))
	if parent != nil {
		parent.AddChild(a)
	} else {
		c.spawned = append(c.spawned, a)
	}
	if info.Tillable {
		c.markTile(info, p)
	}
	c.checker.Track(a, g.EnforceSpacing)
	c.spawnChildren(a)
	return a
}

// spawnChildren fills the attachment areas of a with their candidates.
func (c *Context) spawnChildren(a *world.Asset) {
	if a.Info == nil || len(a.Info.Children) == 0 || c.depth >= maxChildDepth {
		return
	}
	c.depth++
	defer func() { c.depth-- }()
	for _, ch := range a.Info.Children {
		if len(ch.Candidates) == 0 {
			continue
		}
		area := a.WorldArea(ch.AreaName)
		if area == nil {
			continue
		}
		g := &Group{ID: a.SpawnID, DisplayName: a.Name() + "/" + ch.AreaName, Quantity: 1, Position: PositionChildRandom}
		c.planner.parseCandidates(g, jsonutil.Object{"candidates": ch.Candidates})
		c.childRandom(g, area, a, ch.ZOffset, ch.PlacedOnTopParent)
	}
}

func tileSize(info *asset.Info) (int, int) {
	s := info.ScaleFactor
	if s <= 0 {
		s = 1
	}
	w := int(gomath.Round(float64(info.CanvasWidth) * s))
	h := int(gomath.Round(float64(info.CanvasHeight) * s))
	return max(w, 1), max(h, 1)
}

// tileAlign moves p to the bottom-center anchor of the tile containing it.
func tileAlign(info *asset.Info, p math.Point) math.Point {
	w, h := tileSize(info)
	if w <= 1 || h <= 1 {
		return p
	}
	return math.Point{X: floorDiv(p.X, w)*w + w/2, Y: floorDiv(p.Y, h)*h + h}
}

func (c *Context) tileTaken(info *asset.Info, p math.Point) bool {
	return c.tiles[info.Name][p]
}

func (c *Context) markTile(info *asset.Info, p math.Point) {
	m, ok := c.tiles[info.Name]
	if !ok {
		m = make(map[math.Point]bool)
		c.tiles[info.Name] = m
	}
	m[p] = true
}
