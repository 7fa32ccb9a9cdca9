package geom

import (
	"math/rand"

	"github.com/Faultbox/vibble/pkg/math"
)

const maxSearchRadius = 4096

// Vertex is one lattice vertex tracked by an Occupancy.
type Vertex struct {
	Index    math.Point
	World    math.Point
	Occupied bool
}

// Occupancy tracks which lattice vertices inside an area are taken.
type Occupancy struct {
	grid           Grid
	resolution     int
	partialOverlap bool

	vertices []Vertex
	lookup   map[math.Point]int
	free     int
	minIndex math.Point
	maxIndex math.Point
}

// NewOccupancy builds the lattice of area at resolution. With
// partialOverlap, vertices whose cell touches the area's bounding box are
// included even when the vertex itself lies outside the polygon.
func NewOccupancy(area *Area, resolution int, grid Grid, partialOverlap bool) *Occupancy {
	o := &Occupancy{
		grid:           grid,
		resolution:     ClampResolution(resolution),
		partialOverlap: partialOverlap,
		lookup:         make(map[math.Point]int),
	}
	o.populate(area)
	return o
}

func (o *Occupancy) populate(area *Area) {
	if area == nil || area.Empty() {
		return
	}
	b := area.Bounds()
	lo := o.grid.WorldToIndex(math.Point{X: b.MinX, Y: b.MinY}, o.resolution)
	hi := o.grid.WorldToIndex(math.Point{X: b.MaxX, Y: b.MaxY}, o.resolution)
	o.minIndex, o.maxIndex = lo, hi
	cell := Delta(o.resolution)

	for j := lo.Y; j <= hi.Y; j++ {
		for i := lo.X; i <= hi.X; i++ {
			idx := math.Point{X: i, Y: j}
			world := o.grid.IndexToWorld(idx, o.resolution)
			inside := area.ContainsPoint(world)
			if !inside && o.partialOverlap {
				inside = b.Overlaps(Bounds{world.X, world.Y, world.X + cell, world.Y + cell})
			}
			if !inside {
				continue
			}
			o.lookup[idx] = len(o.vertices)
			o.vertices = append(o.vertices, Vertex{Index: idx, World: world})
		}
	}
	o.free = len(o.vertices)
}

// Resolution returns the lattice resolution.
func (o *Occupancy) Resolution() int { return o.resolution }

// FreeCount returns the number of unoccupied vertices.
func (o *Occupancy) FreeCount() int { return o.free }

// Len returns the number of tracked vertices.
func (o *Occupancy) Len() int { return len(o.vertices) }

// VertexAtIndex returns the vertex with lattice index idx.
func (o *Occupancy) VertexAtIndex(idx math.Point) *Vertex {
	i, ok := o.lookup[idx]
	if !ok {
		return nil
	}
	return &o.vertices[i]
}

// VertexAtWorld returns the vertex of the cell containing p.
func (o *Occupancy) VertexAtWorld(p math.Point) *Vertex {
	return o.VertexAtIndex(o.grid.WorldToIndex(p, o.resolution))
}

// NearestVertex searches outward in square rings for the closest free vertex.
func (o *Occupancy) NearestVertex(p math.Point) *Vertex {
	if len(o.vertices) == 0 {
		return nil
	}
	origin := o.grid.WorldToIndex(p, o.resolution)
	free := func(x, y int) *Vertex {
		v := o.VertexAtIndex(math.Point{X: x, Y: y})
		if v != nil && !v.Occupied {
			return v
		}
		return nil
	}
	if v := free(origin.X, origin.Y); v != nil {
		return v
	}

	maxDX := max(abs(origin.X-o.minIndex.X), abs(origin.X-o.maxIndex.X))
	maxDY := max(abs(origin.Y-o.minIndex.Y), abs(origin.Y-o.maxIndex.Y))
	limit := min(maxSearchRadius, max(maxDX, maxDY))
	for r := 1; r <= limit; r++ {
		for dx := -r; dx <= r; dx++ {
			if v := free(origin.X+dx, origin.Y-r); v != nil {
				return v
			}
			if v := free(origin.X+dx, origin.Y+r); v != nil {
				return v
			}
		}
		for dy := -r + 1; dy <= r-1; dy++ {
			if v := free(origin.X-r, origin.Y+dy); v != nil {
				return v
			}
			if v := free(origin.X+r, origin.Y+dy); v != nil {
				return v
			}
		}
	}
	return nil
}

// RandomVertexIn picks a free vertex inside area uniformly.
func (o *Occupancy) RandomVertexIn(area *Area, rng *rand.Rand) *Vertex {
	var candidates []int
	for i := range o.vertices {
		if !o.vertices[i].Occupied && area.ContainsPoint(o.vertices[i].World) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return &o.vertices[candidates[rng.Intn(len(candidates))]]
}

// VerticesIn returns every vertex inside area, occupied or not, in lattice
// order (row by row).
func (o *Occupancy) VerticesIn(area *Area) []*Vertex {
	var out []*Vertex
	for i := range o.vertices {
		if area.ContainsPoint(o.vertices[i].World) {
			out = append(out, &o.vertices[i])
		}
	}
	return out
}

// SetOccupied marks v.
func (o *Occupancy) SetOccupied(v *Vertex, occupied bool) {
	if v == nil || v.Occupied == occupied {
		return
	}
	v.Occupied = occupied
	if occupied {
		o.free--
	} else {
		o.free++
	}
	o.free = max(o.free, 0)
}

// SetOccupiedAt marks the vertex of the cell containing p.
func (o *Occupancy) SetOccupiedAt(p math.Point, occupied bool) {
	o.SetOccupied(o.VertexAtWorld(p), occupied)
}

// CellOverlaps reports whether the cell at p belongs to area under the
// occupancy's overlap policy.
func (o *Occupancy) CellOverlaps(area *Area, p math.Point) bool {
	if !o.partialOverlap {
		return area.ContainsPoint(p)
	}
	if area.Empty() {
		return false
	}
	cellMin := o.grid.IndexToWorld(o.grid.WorldToIndex(p, o.resolution), o.resolution)
	cell := Delta(o.resolution)
	return area.Bounds().Overlaps(Bounds{cellMin.X, cellMin.Y, cellMin.X + cell, cellMin.Y + cell})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
