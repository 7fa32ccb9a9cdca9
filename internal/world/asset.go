// Package world holds runtime asset instances and the chunked spatial
// index they live in once a map is finalized.
package world

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.uber.org/multierr"

	"github.com/Faultbox/vibble/internal/animation"
	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/pkg/math"
)

// ErrNoInfo is returned when an instance has no shared definition.
var ErrNoInfo = errors.New("world: asset has no info")

// IDs hands out instance ids. A seeded source yields the same sequence on
// every run.
type IDs struct {
	mu      sync.Mutex
	ms      uint64
	entropy io.Reader
}

// NewIDs creates an id source driven by seed.
func NewIDs(seed int64) *IDs {
	return &IDs{
		ms:      uint64(seed) & 0xFFFFFFFFFFFF,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// Next returns the next id.
func (g *IDs) Next() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(g.ms, g.entropy)
}

// Asset is one placed instance of an asset definition. Many instances share
// the same Info.
type Asset struct {
	ID   ulid.ULID
	Info *asset.Info
	Pos  math.Point

	Depth          int
	ZIndex         int
	ZOffset        int
	GridResolution int

	Parent   *Asset
	Children []*Asset

	SpawnID     string
	SpawnMethod string
	Room        string

	Animation   string
	Flipped     bool
	StaticFrame bool
	Dead        bool

	player    *animation.Player
	hidden    bool
	gridID    GridID
	hasGrid   bool
	finalized bool
}

// NewAsset places info at pos. The owning room is taken from the spawn area
// name.
func NewAsset(id ulid.ULID, info *asset.Info, spawnArea *geom.Area, pos math.Point, depth int, parent *Asset, spawnID, method string, gridResolution int) *Asset {
	a := &Asset{
		ID:             id,
		Info:           info,
		Pos:            pos,
		Depth:          depth,
		GridResolution: geom.ClampResolution(gridResolution),
		Parent:         parent,
		SpawnID:        spawnID,
		SpawnMethod:    method,
	}
	if spawnArea != nil {
		a.Room = spawnArea.Name
	}
	a.updateZIndex()
	return a
}

// Name returns the definition name, or "" without one.
func (a *Asset) Name() string {
	if a.Info == nil {
		return ""
	}
	return a.Info.Name
}

// Type returns the canonical asset type.
func (a *Asset) Type() string {
	if a.Info == nil {
		return asset.TypeObject
	}
	return a.Info.Type
}

// Hidden reports whether the asset is excluded from rendering.
func (a *Asset) Hidden() bool { return a.hidden }

// SetHidden changes render visibility.
func (a *Asset) SetHidden(v bool) { a.hidden = v }

// GridID returns the grid point the asset is bound to.
func (a *Asset) GridID() (GridID, bool) { return a.gridID, a.hasGrid }

func (a *Asset) setGridID(id GridID) {
	a.gridID = id
	a.hasGrid = true
}

func (a *Asset) clearGridID() {
	a.gridID = 0
	a.hasGrid = false
}

// Finalized reports whether Finalize completed.
func (a *Asset) Finalized() bool { return a.finalized }

// Player returns the animation timeline, or nil before Finalize.
func (a *Asset) Player() *animation.Player { return a.player }

// AddChild attaches c below a.
func (a *Asset) AddChild(c *Asset) {
	if c == nil {
		return
	}
	c.Parent = a
	a.Children = append(a.Children, c)
	c.updateZIndex()
}

// SetZOffset moves the asset in front of (positive) or behind (negative)
// its parent.
func (a *Asset) SetZOffset(z int) {
	a.ZOffset = z
	a.updateZIndex()
}

// SetPosition moves the asset and refreshes its depth order.
func (a *Asset) SetPosition(p math.Point) {
	a.Pos = p
	a.updateZIndex()
}

func (a *Asset) updateZIndex() {
	threshold := 0
	if a.Info != nil {
		threshold = a.Info.ZThreshold
	}
	switch {
	case a.Parent != nil && a.ZOffset > 0:
		a.ZIndex = a.Parent.ZIndex + 1
	case a.Parent != nil && a.ZOffset < 0:
		a.ZIndex = a.Parent.ZIndex - 1
	default:
		a.ZIndex = a.Pos.Y + threshold
	}
}

// Finalize selects the starting animation and finalizes children. It runs
// once; later calls are no-ops. rng picks a random start frame for rnd_start
// animations and the flip of flipable assets.
func (a *Asset) Finalize(rng *rand.Rand) error {
	if a.finalized {
		return nil
	}
	if a.Info == nil {
		return ErrNoInfo
	}
	if a.Info.Flipable && rng != nil {
		a.Flipped = rng.Intn(2) == 1
	}
	a.selectStart(rng)

	var errs error
	for _, c := range a.Children {
		if err := c.Finalize(rng); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("child of %s: %w", a.Name(), err))
		}
	}
	if errs != nil {
		return errs
	}
	a.finalized = true
	return nil
}

func (a *Asset) selectStart(rng *rand.Rand) {
	set := a.Info.Animations
	if set == nil || set.Len() == 0 {
		a.StaticFrame = true
		return
	}
	if cur, ok := set.Get(a.Animation); ok && len(cur.Frames) > 0 {
		return
	}
	start := a.Info.StartAnimation
	if start == "" {
		start = "default"
	}
	anim, ok := set.Get(start)
	if !ok {
		anim, ok = set.Get("default")
	}
	if !ok {
		anim, ok = set.Get(set.IDs()[0])
	}
	if !ok {
		return
	}
	a.Animation = anim.ID
	a.player = animation.NewPlayer(anim, rng)
	a.StaticFrame = len(anim.Frames) <= 1
}

// Update advances the animation by dt seconds unless the asset is frozen on
// a static frame.
func (a *Asset) Update(dt float64) {
	if a.player == nil || a.StaticFrame || a.hidden {
		return
	}
	a.player.Advance(dt)
}

// Size returns the scaled footprint of the current animation.
func (a *Asset) Size() (int, int) {
	scale := 1.0
	if a.Info != nil && a.Info.ScaleFactor > 0 {
		scale = a.Info.ScaleFactor
	}
	if a.player != nil && a.player.Animation() != nil {
		if w, h := a.player.Animation().ScaledSize(scale); w > 0 && h > 0 {
			return w, h
		}
	}
	if a.Info != nil {
		return int(float64(a.Info.CanvasWidth) * scale), int(float64(a.Info.CanvasHeight) * scale)
	}
	return 0, 0
}

// WorldArea returns the named area of the definition placed at the asset's
// position, mirrored when the asset is flipped. It returns nil when the
// definition has no such area.
func (a *Asset) WorldArea(name string) *geom.Area {
	if a.Info == nil {
		return nil
	}
	na := a.Info.FindArea(name)
	if na == nil || na.Area == nil || na.Area.Empty() {
		return nil
	}
	anchor := a.Info.ScaledAnchor(0)
	pts := make([]math.Point, 0, len(na.Area.Points()))
	for _, p := range na.Area.Points() {
		dx := p.X - anchor.X
		if a.Flipped {
			dx = -dx
		}
		pts = append(pts, math.Point{X: a.Pos.X + dx, Y: a.Pos.Y + p.Y - anchor.Y})
	}
	out := geom.NewAreaFromPoints(na.Name, pts, 0)
	out.Type = na.Area.Type
	return out
}
