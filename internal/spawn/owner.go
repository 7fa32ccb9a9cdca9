package spawn

import (
	gomath "math"

	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/pkg/math"
)

const (
	ownerCell     = 2048
	maxOwnerRings = 8
)

// OwnerIndex finds the room responsible for a world position: the room
// containing it, else the room with the nearest center.
type OwnerIndex struct {
	rooms   []*room.Room
	buckets map[math.Point][]*room.Room
}

// NewOwnerIndex buckets rooms by center.
func NewOwnerIndex(rooms []*room.Room) *OwnerIndex {
	idx := &OwnerIndex{buckets: make(map[math.Point][]*room.Room)}
	for _, r := range rooms {
		if r == nil || r.Area == nil || r.Area.Empty() {
			continue
		}
		idx.rooms = append(idx.rooms, r)
		b := ownerBucket(r.Area.Center())
		idx.buckets[b] = append(idx.buckets[b], r)
	}
	return idx
}

func ownerBucket(p math.Point) math.Point {
	return math.Point{X: floorDiv(p.X, ownerCell), Y: floorDiv(p.Y, ownerCell)}
}

// Owner returns the owning room of p, or nil without rooms.
func (idx *OwnerIndex) Owner(p math.Point) *room.Room {
	for _, r := range idx.rooms {
		if r.Contains(p) {
			return r
		}
	}
	if len(idx.rooms) == 0 {
		return nil
	}
	center := ownerBucket(p)
	var best *room.Room
	bestD := gomath.Inf(1)
	visit := func(list []*room.Room) {
		for _, r := range list {
			if d := r.Area.Center().DistanceSq(p); d < bestD {
				best, bestD = r, d
			}
		}
	}
	// After the first hit one more ring is searched so a closer center in a
	// neighbouring bucket is not missed.
	found := -1
	for ring := 0; ring <= maxOwnerRings; ring++ {
		for y := center.Y - ring; y <= center.Y+ring; y++ {
			for x := center.X - ring; x <= center.X+ring; x++ {
				if ring > 0 && y != center.Y-ring && y != center.Y+ring && x != center.X-ring && x != center.X+ring {
					continue
				}
				visit(idx.buckets[math.Point{X: x, Y: y}])
			}
		}
		if best != nil && found < 0 {
			found = ring
		}
		if found >= 0 && ring > found {
			return best
		}
	}
	if best == nil {
		visit(idx.rooms)
	}
	return best
}
