package world

import (
	gomath "math"
	"sort"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/pkg/math"
)

// GridID packs the (i, j) lattice index of a grid point.
type GridID uint64

// MakeGridID packs i and j.
func MakeGridID(i, j int) GridID {
	return GridID(uint64(uint32(i))<<32 | uint64(uint32(j)))
}

// Index unpacks the lattice index.
func (id GridID) Index() math.Point {
	return math.Point{X: int(int32(uint32(id >> 32))), Y: int(int32(uint32(id)))}
}

// GridPoint is one occupied lattice vertex plus the per-frame screen data
// the camera computes for it. World is the vertex itself, shared by every
// occupant of the cell.
type GridPoint struct {
	ID         GridID
	World      math.Point
	Index      math.Point
	ChunkIndex math.Point
	Chunk      *Chunk

	Screen           math.Vec2
	VerticalScale    float64
	HorizonFadeAlpha float64
	PerspectiveScale float64
	DistanceToCamera float64
	OnScreen         bool

	Occupants []*Asset

	frame uint64
	valid bool
}

// Invalidate drops the cached screen data.
func (p *GridPoint) Invalidate() { p.valid = false }

// MarkUpdated records that screen data was computed for frame.
func (p *GridPoint) MarkUpdated(frame uint64) {
	p.frame = frame
	p.valid = true
}

// Valid reports whether screen data is current for frame.
func (p *GridPoint) Valid(frame uint64) bool { return p.valid && p.frame == frame }

// Chunk is a square block of the world holding the assets inside it.
type Chunk struct {
	I, J   int
	R      int
	Bounds geom.Bounds
	Assets []*Asset
}

// Grid is the chunked spatial index of a finalized map.
type Grid struct {
	origin     math.Point
	rChunk     int
	resolution int

	chunks map[math.Point]*Chunk
	order  []*Chunk
	active []*Chunk

	points    map[GridID]*GridPoint
	residency map[*Asset]*Chunk
	byID      map[ulid.ULID]*Asset

	cached     bool
	lastRect   geom.Bounds
	lastMargin int
	lastR      int
}

// NewGrid creates an empty grid. Chunks are 1<<rChunk world units wide and
// grid points use the same resolution until SetGridResolution.
func NewGrid(origin math.Point, rChunk int) *Grid {
	r := geom.ClampResolution(rChunk)
	return &Grid{
		origin:     origin,
		rChunk:     r,
		resolution: r,
		chunks:     make(map[math.Point]*Chunk),
		points:     make(map[GridID]*GridPoint),
		residency:  make(map[*Asset]*Chunk),
		byID:       make(map[ulid.ULID]*Asset),
	}
}

// Origin returns the grid origin.
func (g *Grid) Origin() math.Point { return g.origin }

// ChunkResolution returns r_chunk.
func (g *Grid) ChunkResolution() int { return g.rChunk }

// GridResolution returns the grid point resolution.
func (g *Grid) GridResolution() int { return g.resolution }

// SetChunkResolution changes the chunk size. Call Rebuild afterwards to
// re-bucket existing assets.
func (g *Grid) SetChunkResolution(r int) {
	clamped := geom.ClampResolution(r)
	if clamped != r {
		logger.Warn("chunk resolution clamped", zap.Int("requested", r), zap.Int("max", geom.MaxResolution))
	}
	if clamped == g.rChunk {
		return
	}
	g.rChunk = clamped
	g.active = nil
	g.cached = false
}

// SetGridResolution changes the grid point resolution.
func (g *Grid) SetGridResolution(r int) {
	g.resolution = geom.ClampResolution(r)
}

// Len returns the number of registered assets.
func (g *Grid) Len() int { return len(g.residency) }

func floorDiv(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(gomath.Floor(float64(n) / float64(d)))
}

func (g *Grid) chunkIndex(p math.Point) math.Point {
	step := geom.Delta(g.rChunk)
	return math.Point{X: floorDiv(p.X-g.origin.X, step), Y: floorDiv(p.Y-g.origin.Y, step)}
}

// IndexFromWorld returns the grid point index of a world position.
func (g *Grid) IndexFromWorld(p math.Point) math.Point {
	return geom.Grid{Origin: g.origin}.WorldToIndex(p, g.resolution)
}

// IDFromWorld returns the id of the grid point covering p.
func (g *Grid) IDFromWorld(p math.Point) GridID {
	idx := g.IndexFromWorld(p)
	return MakeGridID(idx.X, idx.Y)
}

func (g *Grid) ensureChunk(ij math.Point) *Chunk {
	if c, ok := g.chunks[ij]; ok {
		return c
	}
	step := geom.Delta(g.rChunk)
	x := g.origin.X + ij.X*step
	y := g.origin.Y + ij.Y*step
	c := &Chunk{
		I: ij.X, J: ij.Y, R: g.rChunk,
		Bounds: geom.Bounds{MinX: x, MinY: y, MaxX: x + step - 1, MaxY: y + step - 1},
	}
	g.chunks[ij] = c
	g.order = append(g.order, c)
	return c
}

// EnsureChunkFromWorld returns the chunk covering p, creating it.
func (g *Grid) EnsureChunkFromWorld(p math.Point) *Chunk {
	return g.ensureChunk(g.chunkIndex(p))
}

// ChunkFromWorld returns the chunk covering p, or nil.
func (g *Grid) ChunkFromWorld(p math.Point) *Chunk {
	return g.chunks[g.chunkIndex(p)]
}

// Chunks returns every chunk in creation order.
func (g *Grid) Chunks() []*Chunk { return g.order }

func (g *Grid) ensurePoint(idx math.Point) *GridPoint {
	id := MakeGridID(idx.X, idx.Y)
	p, ok := g.points[id]
	if !ok {
		p = &GridPoint{ID: id, VerticalScale: 1, HorizonFadeAlpha: 1, PerspectiveScale: 1}
		g.points[id] = p
	}
	p.Index = idx
	p.World = geom.Grid{Origin: g.origin}.IndexToWorld(idx, g.resolution)
	return p
}

func removeAsset(list []*Asset, a *Asset) ([]*Asset, bool) {
	for i, v := range list {
		if v == a {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

func containsAsset(list []*Asset, a *Asset) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}

func (g *Grid) detachFromPoint(a *Asset) {
	id, ok := a.GridID()
	if !ok {
		return
	}
	if p, ok := g.points[id]; ok {
		p.Occupants, _ = removeAsset(p.Occupants, a)
		if len(p.Occupants) == 0 {
			delete(g.points, id)
		}
	}
	a.clearGridID()
}

// Register adds a to the grid at its current position. Registering an
// asset again re-buckets it.
func (g *Grid) Register(a *Asset) *Asset {
	if a == nil {
		return nil
	}
	idx := g.IndexFromWorld(a.Pos)
	id := MakeGridID(idx.X, idx.Y)
	if cur, ok := a.GridID(); ok && cur != id {
		g.detachFromPoint(a)
	}

	ij := g.chunkIndex(a.Pos)
	chunk := g.ensureChunk(ij)
	if prev, ok := g.residency[a]; ok && prev != chunk {
		prev.Assets, _ = removeAsset(prev.Assets, a)
	}
	g.residency[a] = chunk
	if !containsAsset(chunk.Assets, a) {
		chunk.Assets = append(chunk.Assets, a)
	}
	g.byID[a.ID] = a

	p := g.ensurePoint(idx)
	p.Chunk = chunk
	p.ChunkIndex = ij
	if !containsAsset(p.Occupants, a) {
		p.Occupants = append(p.Occupants, a)
	}
	a.setGridID(id)
	return a
}

// Move relocates a to pos, updating its chunk and grid point.
func (g *Grid) Move(a *Asset, pos math.Point) *Asset {
	if a == nil {
		return nil
	}
	if _, ok := g.residency[a]; !ok {
		a.SetPosition(pos)
		return g.Register(a)
	}
	old, had := a.GridID()
	a.SetPosition(pos)
	g.Register(a)
	if cur, _ := a.GridID(); had && cur == old {
		if p := g.points[cur]; p != nil {
			p.Invalidate()
		}
	}
	return a
}

// Remove drops a from the grid. It reports whether a was registered.
func (g *Grid) Remove(a *Asset) bool {
	if a == nil {
		return false
	}
	chunk, ok := g.residency[a]
	if !ok {
		return false
	}
	chunk.Assets, _ = removeAsset(chunk.Assets, a)
	delete(g.residency, a)
	delete(g.byID, a.ID)
	g.detachFromPoint(a)
	return true
}

// Lookup returns the registered asset with id.
func (g *Grid) Lookup(id ulid.ULID) (*Asset, bool) {
	a, ok := g.byID[id]
	return a, ok
}

// Assets returns every registered asset ordered by id.
func (g *Grid) Assets() []*Asset {
	out := make([]*Asset, 0, len(g.residency))
	for a := range g.residency {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out
}

// Points returns the occupied grid points.
func (g *Grid) Points() map[GridID]*GridPoint { return g.points }

// PointForID returns the grid point with id.
func (g *Grid) PointForID(id GridID) *GridPoint { return g.points[id] }

// PointForAsset returns the grid point a is bound to.
func (g *Grid) PointForAsset(a *Asset) *GridPoint {
	if a == nil {
		return nil
	}
	id, ok := a.GridID()
	if !ok {
		return nil
	}
	return g.points[id]
}

// Rebuild re-buckets every asset, e.g. after a chunk resolution change.
func (g *Grid) Rebuild() {
	assets := g.Assets()
	for _, a := range assets {
		a.clearGridID()
	}
	g.chunks = make(map[math.Point]*Chunk)
	g.order = nil
	g.active = nil
	g.cached = false
	g.points = make(map[GridID]*GridPoint)
	g.residency = make(map[*Asset]*Chunk)
	g.byID = make(map[ulid.ULID]*Asset)
	for _, a := range assets {
		g.Register(a)
	}
}

// UpdateActiveChunks selects the chunks overlapping view grown by margin.
// The selection is cached until the rectangle, margin or chunk size change.
func (g *Grid) UpdateActiveChunks(view geom.Bounds, margin int) {
	m := max(0, margin)
	expanded := view.Pad(m)
	if g.cached && g.lastRect == expanded && g.lastMargin == margin && g.lastR == g.rChunk {
		return
	}
	g.active = g.active[:0]
	for _, c := range g.order {
		if c.Bounds.Overlaps(expanded) {
			g.active = append(g.active, c)
		}
	}
	g.lastRect = expanded
	g.lastMargin = margin
	g.lastR = g.rChunk
	g.cached = true
}

// ActiveChunks returns the chunks chosen by the last UpdateActiveChunks.
func (g *Grid) ActiveChunks() []*Chunk { return g.active }
