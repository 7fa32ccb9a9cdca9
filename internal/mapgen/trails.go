package mapgen

import (
	"fmt"
	gomath "math"
	"math/rand"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

const (
	nearestNeighbors   = 4
	loopChance         = 0.35
	loopCapRatio       = 0.25
	candidateJitter    = 25.0
	trailAttempts      = 1000
	isolatedCandidates = 5
	isolatedAttempts   = 100
	isolatedMaxPasses  = 200
	relaxEveryPasses   = 5
)

// Edge joins two rooms by index.
type Edge struct {
	A, B int
}

func (e Edge) key() Edge {
	if e.A > e.B {
		return Edge{e.B, e.A}
	}
	return e
}

type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	d := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

func (d *disjointSet) find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

func (d *disjointSet) union(a, b int) bool {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return false
	}
	if d.rank[ra] < d.rank[rb] {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	if d.rank[ra] == d.rank[rb] {
		d.rank[ra]++
	}
	return true
}

// components groups indices by root, ordered by their smallest member.
func (d *disjointSet) components() [][]int {
	byRoot := map[int]int{}
	var out [][]int
	for i := range d.parent {
		r := d.find(i)
		idx, ok := byRoot[r]
		if !ok {
			idx = len(out)
			byRoot[r] = idx
			out = append(out, nil)
		}
		out[idx] = append(out[idx], i)
	}
	return out
}

// PlanMazeConnections picks the room pairs to join with trails. Forced edges
// always come first. The remaining edges are drawn from each room's nearest
// neighbours in jittered distance order: an edge joining two components is
// always taken, an edge closing a loop is taken with a fixed chance up to a
// cap. Components still apart afterwards are joined by their closest pair.
func PlanMazeConnections(centers []math.Point, forced []Edge, rng *rand.Rand) []Edge {
	n := len(centers)
	if n < 2 {
		return nil
	}
	dsu := newDisjointSet(n)
	seen := map[Edge]bool{}
	var planned []Edge
	valid := func(e Edge) bool { return e.A >= 0 && e.B >= 0 && e.A < n && e.B < n && e.A != e.B }

	for _, e := range forced {
		if !valid(e) {
			continue
		}
		dsu.union(e.A, e.B)
		if !seen[e.key()] {
			seen[e.key()] = true
			planned = append(planned, e)
		}
	}

	type candidate struct {
		edge   Edge
		weight float64
	}
	var candidates []candidate
	for i := range centers {
		type neighbour struct {
			dist float64
			j    int
		}
		near := make([]neighbour, 0, n-1)
		for j := range centers {
			if i != j {
				near = append(near, neighbour{centers[i].Distance(centers[j]), j})
			}
		}
		sort.SliceStable(near, func(a, b int) bool { return near[a].dist < near[b].dist })
		for _, nb := range near[:min(nearestNeighbors, len(near))] {
			e := Edge{i, nb.j}
			if seen[e.key()] {
				continue
			}
			seen[e.key()] = true
			candidates = append(candidates, candidate{edge: e, weight: nb.dist})
		}
	}
	for i := range candidates {
		candidates[i].weight += rng.Float64() * candidateJitter
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.weight != cb.weight {
			return ca.weight < cb.weight
		}
		if ca.edge.A != cb.edge.A {
			return ca.edge.A < cb.edge.A
		}
		return ca.edge.B < cb.edge.B
	})

	loopCap := int(gomath.Ceil(float64(n) * loopCapRatio))
	if loopCap == 0 && n > 2 {
		loopCap = 1
	}
	loops := 0
	for _, c := range candidates {
		if dsu.union(c.edge.A, c.edge.B) {
			planned = append(planned, c.edge)
		} else if loops < loopCap && rng.Float64() < loopChance {
			planned = append(planned, c.edge)
			loops++
		}
	}

	for comps := dsu.components(); len(comps) > 1; comps = dsu.components() {
		base := 0
		for i := range comps {
			if len(comps[i]) < len(comps[base]) {
				base = i
			}
		}
		best, bestA, bestB := -1.0, -1, -1
		for _, a := range comps[base] {
			for g, group := range comps {
				if g == base {
					continue
				}
				for _, b := range group {
					if d := centers[a].Distance(centers[b]); best < 0 || d < best {
						best, bestA, bestB = d, a, b
					}
				}
			}
		}
		e := Edge{bestA, bestB}
		if !seen[e.key()] {
			seen[e.key()] = true
			planned = append(planned, e)
		}
		dsu.union(bestA, bestB)
	}
	return planned
}

type trailTemplate struct {
	name string
	data jsonutil.Object
}

func (t trailTemplate) shape() TrailShape {
	minW := jsonutil.Int(t.data, "min_width", 40)
	maxW := jsonutil.Int(t.data, "max_width", minW)
	return TrailShape{Width: float64(max(minW, maxW)), Curvyness: jsonutil.Int(t.data, "curvyness", 2)}
}

func (g *Generator) loadTrailTemplates() error {
	g.templates = g.templates[:0]
	for _, name := range sortedKeys(g.trailsData) {
		entry, ok := jsonutil.GetObject(g.trailsData, name)
		if !ok {
			continue
		}
		if _, changed := room.EnsureColor(entry, &g.colors); changed {
			g.dirty = true
		}
		g.templates = append(g.templates, trailTemplate{name: name, data: entry})
	}
	if len(g.templates) == 0 {
		return fmt.Errorf("no trail templates in %s", room.SectionTrails)
	}
	return nil
}

func (g *Generator) pickTemplate() trailTemplate {
	return g.templates[g.rng.Intn(len(g.templates))]
}

// buildTrails plans and places the trails joining rooms. The forced edges
// are the parent-child links of the radial layout.
func (g *Generator) buildTrails(rooms []*room.Room, forced []Edge) ([]*room.Room, error) {
	if len(rooms) < 2 {
		return nil, nil
	}
	if err := g.loadTrailTemplates(); err != nil {
		return nil, err
	}
	centers := make([]math.Point, len(rooms))
	for i, r := range rooms {
		centers[i] = r.Area.Center()
	}
	var trails []*room.Room
	for _, e := range PlanMazeConnections(centers, forced, g.rng) {
		a, b := rooms[e.A], rooms[e.B]
		var trail *room.Room
		for attempt := 0; attempt < g.opts.TrailAttempts && trail == nil; attempt++ {
			trail = g.connect(a, b, 1, g.pickTemplate())
		}
		if trail == nil {
			logger.Warn("trail placement failed", zap.String("from", a.Name), zap.String("to", b.Name))
			continue
		}
		trails = append(trails, trail)
	}
	trails = append(trails, g.connectIsolated(rooms)...)
	logger.Info("trails built", zap.Int("rooms", len(rooms)), zap.Int("trails", len(trails)))
	return trails, nil
}

// connect places one trail between a and b if its ribbon overlaps at most
// allowed foreign areas.
func (g *Generator) connect(a, b *room.Room, allowed int, tpl trailTemplate) *room.Room {
	shape := tpl.shape()
	pts := TrailPolygon(a.Area, b.Area, shape, g.rng)
	if len(pts) < 3 {
		return nil
	}
	candidate := geom.NewAreaFromPoints(tpl.name, pts, trailAreaResolution)
	if countBlocking(candidate, g.areas, a.Area, b.Area) > allowed {
		return nil
	}
	center := candidate.Center()
	trail, err := room.New(room.Spec{
		Name:      tpl.name,
		Type:      room.TypeTrail,
		Origin:    center,
		Parent:    room.NoRoom,
		Context:   g.opts.MapID,
		Section:   room.SectionTrails,
		Data:      tpl.data,
		Area:      candidate,
		Grid:      g.grid,
		MapRadius: g.radii.MapRadius,
		Writer:    g.opts.Writer,
		RNG:       g.rng,
	})
	if err != nil {
		logger.Warn("trail room rejected", zap.String("trail", tpl.name), zap.Error(err))
		return nil
	}
	id := g.graph.Add(trail)
	g.graph.Connect(a.ID, id)
	g.graph.Connect(b.ID, id)
	g.areas = append(g.areas, trail.Area)
	return trail
}

// connectIsolated joins rooms that cannot reach the layer 0 room. Each pass
// tries the least connected members of every isolated group against up to
// five reachable rooms; the tolerated overlap count grows every few passes.
func (g *Generator) connectIsolated(rooms []*room.Room) []*room.Room {
	root := -1
	for i, r := range rooms {
		if r.Layer == 0 {
			root = i
			break
		}
	}
	if root < 0 {
		return nil
	}
	var out []*room.Room
	allowed := 0
	for pass := 0; pass < g.opts.IsolatedPasses; pass++ {
		reach := g.graph.Reachable(rooms[root].ID)
		groups := g.isolatedGroups(rooms, reach)
		if len(groups) == 0 {
			break
		}
		var reachable []*room.Room
		for _, r := range rooms {
			if reach[r.ID] {
				reachable = append(reachable, r)
			}
		}
		for _, group := range groups {
			if t := g.joinGroup(group, reachable, allowed); t != nil {
				out = append(out, t)
			}
		}
		if (pass+1)%relaxEveryPasses == 0 {
			allowed++
		}
	}
	return out
}

func (g *Generator) isolatedGroups(rooms []*room.Room, reach map[room.ID]bool) [][]*room.Room {
	visited := map[room.ID]bool{}
	var groups [][]*room.Room
	for _, r := range rooms {
		if reach[r.ID] || visited[r.ID] {
			continue
		}
		comp := g.graph.Reachable(r.ID)
		var group []*room.Room
		for _, o := range rooms {
			if comp[o.ID] {
				visited[o.ID] = true
				group = append(group, o)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func byConnections(rs []*room.Room) {
	sort.SliceStable(rs, func(i, j int) bool { return len(rs[i].Connected) < len(rs[j].Connected) })
}

func (g *Generator) joinGroup(group, reachable []*room.Room, allowed int) *room.Room {
	members := slices.Clone(group)
	byConnections(members)
	targets := slices.Clone(reachable)
	byConnections(targets)
	if len(targets) > isolatedCandidates {
		targets = targets[:isolatedCandidates]
	}
	for _, a := range members {
		for _, b := range targets {
			for attempt := 0; attempt < isolatedAttempts; attempt++ {
				if t := g.connect(a, b, allowed, g.pickTemplate()); t != nil {
					return t
				}
			}
		}
	}
	return nil
}
