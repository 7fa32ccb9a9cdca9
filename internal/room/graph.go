package room

import (
	"slices"

	"github.com/Faultbox/vibble/pkg/math"
)

// Graph owns every room of a map. Rooms refer to each other by ID.
type Graph struct {
	rooms []*Room
}

// NewGraph creates an empty graph.
func NewGraph() *Graph { return &Graph{} }

// Add registers r and returns its id.
func (g *Graph) Add(r *Room) ID {
	r.ID = ID(len(g.rooms))
	g.rooms = append(g.rooms, r)
	if p := g.Get(r.Parent); p != nil && !slices.Contains(p.Children, r.ID) {
		p.Children = append(p.Children, r.ID)
	}
	return r.ID
}

// Get returns the room with id, or nil.
func (g *Graph) Get(id ID) *Room {
	if id < 0 || int(id) >= len(g.rooms) {
		return nil
	}
	return g.rooms[id]
}

// Len returns the number of rooms.
func (g *Graph) Len() int { return len(g.rooms) }

// Rooms returns every room in id order.
func (g *Graph) Rooms() []*Room { return g.rooms }

// OfType returns the rooms of type t.
func (g *Graph) OfType(t string) []*Room {
	var out []*Room
	for _, r := range g.rooms {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// ByName returns the first room called name.
func (g *Graph) ByName(name string) *Room {
	for _, r := range g.rooms {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Spawn returns the spawn room: the one flagged is_spawn, else the first
// room on layer 0.
func (g *Graph) Spawn() *Room {
	for _, r := range g.rooms {
		if r.IsSpawn() {
			return r
		}
	}
	for _, r := range g.rooms {
		if r.Layer == 0 {
			return r
		}
	}
	return nil
}

// SetParent makes parent the parent of child.
func (g *Graph) SetParent(child, parent ID) {
	c, p := g.Get(child), g.Get(parent)
	if c == nil {
		return
	}
	if old := g.Get(c.Parent); old != nil {
		old.Children = slices.DeleteFunc(old.Children, func(id ID) bool { return id == child })
	}
	c.Parent = NoRoom
	if p == nil {
		return
	}
	c.Parent = parent
	if !slices.Contains(p.Children, child) {
		p.Children = append(p.Children, child)
	}
}

// LinkSiblings records left and right as ring neighbors.
func (g *Graph) LinkSiblings(left, right ID) {
	l, r := g.Get(left), g.Get(right)
	if l == nil || r == nil {
		return
	}
	l.Right = right
	r.Left = left
}

// Connect joins a and b in both directions. It reports whether a new link
// was made.
func (g *Graph) Connect(a, b ID) bool {
	ra, rb := g.Get(a), g.Get(b)
	if ra == nil || rb == nil || a == b || slices.Contains(ra.Connected, b) {
		return false
	}
	ra.Connected = append(ra.Connected, b)
	if !slices.Contains(rb.Connected, a) {
		rb.Connected = append(rb.Connected, a)
	}
	return true
}

// Disconnect removes the link between a and b.
func (g *Graph) Disconnect(a, b ID) {
	if ra := g.Get(a); ra != nil {
		ra.Connected = slices.DeleteFunc(ra.Connected, func(id ID) bool { return id == b })
	}
	if rb := g.Get(b); rb != nil {
		rb.Connected = slices.DeleteFunc(rb.Connected, func(id ID) bool { return id == a })
	}
}

// ConnectedTo returns the rooms linked to id.
func (g *Graph) ConnectedTo(id ID) []*Room {
	r := g.Get(id)
	if r == nil {
		return nil
	}
	out := make([]*Room, 0, len(r.Connected))
	for _, c := range r.Connected {
		if cr := g.Get(c); cr != nil {
			out = append(out, cr)
		}
	}
	return out
}

// Reachable returns the set of rooms reachable from id through
// connections, id included.
func (g *Graph) Reachable(id ID) map[ID]bool {
	seen := map[ID]bool{}
	if g.Get(id) == nil {
		return seen
	}
	queue := []ID{id}
	seen[id] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range g.rooms[cur].Connected {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return seen
}

// Components counts the connected components among rooms of type t, with
// trails treated as links. An empty t counts over every room.
func (g *Graph) Components(t string) int {
	seen := map[ID]bool{}
	count := 0
	for _, r := range g.rooms {
		if (t != "" && r.Type != t) || seen[r.ID] {
			continue
		}
		count++
		for id := range g.Reachable(r.ID) {
			seen[id] = true
		}
	}
	return count
}

// At returns the first room whose outline contains p.
func (g *Graph) At(p math.Point) *Room {
	for _, r := range g.rooms {
		if r.Contains(p) {
			return r
		}
	}
	return nil
}
