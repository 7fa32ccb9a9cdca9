package spawn

import (
	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/math"
)

const checkCell = 256

// Checker rejects candidate positions that violate spacing rules or fall
// inside exclusion zones. Placed assets are bucketed on a coarse grid.
type Checker struct {
	buckets  map[math.Point][]*world.Asset
	enforced map[*world.Asset]bool
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		buckets:  make(map[math.Point][]*world.Asset),
		enforced: make(map[*world.Asset]bool),
	}
}

func bucketOf(p math.Point) math.Point {
	return math.Point{X: floorDiv(p.X, checkCell), Y: floorDiv(p.Y, checkCell)}
}

func floorDiv(n, d int) int {
	q := n / d
	if (n%d != 0) && ((n < 0) != (d < 0)) {
		q--
	}
	return q
}

// Track records a placed asset. Assets placed with enforce set count for
// every candidate's min_distance_all.
func (c *Checker) Track(a *world.Asset, enforce bool) {
	if a == nil {
		return
	}
	b := bucketOf(a.Pos)
	c.buckets[b] = append(c.buckets[b], a)
	if enforce {
		c.enforced[a] = true
	}
}

// Len returns the number of tracked assets.
func (c *Checker) Len() int {
	n := 0
	for _, b := range c.buckets {
		n += len(b)
	}
	return n
}

// InZone reports whether p lies inside one of zones.
func InZone(p math.Point, zones []*geom.Area) bool {
	for _, z := range zones {
		if z != nil && z.ContainsPoint(p) {
			return true
		}
	}
	return false
}

// CheckOptions tune a single Reject call.
type CheckOptions struct {
	// Zones are exclusion areas; nil disables the zone test.
	Zones          []*geom.Area
	EnforceSpacing bool
	// Exempt skips the spacing rules, used for edge assets.
	Exempt bool
	// ExemptMapAssets skips the spacing rules for map_asset candidates.
	ExemptMapAssets bool
}

// Reject reports whether info may not be placed at p.
func (c *Checker) Reject(info *asset.Info, p math.Point, opts CheckOptions) bool {
	if InZone(p, opts.Zones) {
		return true
	}
	if info == nil || info.Type == asset.TypeBoundary || opts.Exempt {
		return false
	}
	if opts.ExemptMapAssets && info.Type == asset.TypeMapAsset {
		return false
	}
	all, same := info.MinDistanceAll, info.MinSameTypeDistance
	if all <= 0 && same <= 0 {
		return false
	}
	radius := max(all, same)
	reject := false
	c.near(p, radius, func(o *world.Asset) bool {
		d := o.Pos.DistanceSq(p)
		if all > 0 && (c.enforced[o] || opts.EnforceSpacing) && d < float64(all*all) {
			reject = true
			return false
		}
		if same > 0 && o.Info != nil && o.Info.Name == info.Name && d < float64(same*same) {
			reject = true
			return false
		}
		return true
	})
	return reject
}

// near visits tracked assets within radius of p until fn returns false.
func (c *Checker) near(p math.Point, radius int, fn func(*world.Asset) bool) {
	lo := bucketOf(math.Point{X: p.X - radius, Y: p.Y - radius})
	hi := bucketOf(math.Point{X: p.X + radius, Y: p.Y + radius})
	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			for _, a := range c.buckets[math.Point{X: x, Y: y}] {
				if !fn(a) {
					return
				}
			}
		}
	}
}
