package camera

import (
	gomath "math"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/Faultbox/vibble/internal/animation"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/math"
)

const minFadeAlpha = 0.001

// Rect is a screen rectangle in pixels.
type Rect struct {
	X, Y, W, H float64
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Frame is the result of one RebuildGrid call.
type Frame struct {
	Index  uint64
	Cull   Rect
	Assets []*world.Asset
	Points []*world.GridPoint
	Chunks []*world.Chunk
}

// Frame returns the last rebuilt frame.
func (c *ScreenGrid) Frame() Frame { return c.result }

// CullRect returns the screen rectangle assets must touch to be drawn.
func (c *ScreenGrid) CullRect() Rect {
	s := c.settings
	margin := s.ExtraCullMargin
	side := margin
	bottom := gomath.Max(c.depthOffset(), margin)
	if !s.RealismEnabled {
		side *= 2
		bottom *= 2
	}
	top := -side
	if horizon := c.HorizonY(); horizon > 0 {
		top = gomath.Max(-side, horizon-margin)
	}
	h := float64(c.screenH)
	return Rect{
		X: -side,
		Y: top,
		W: float64(c.screenW) + 2*side,
		H: gomath.Max(1, h+bottom-top),
	}
}

// depthOffset is half the base view height in screen pixels.
func (c *ScreenGrid) depthOffset() float64 {
	return c.settings.BaseHeightPx * 0.5
}

// RebuildGrid projects the assets of the active chunks, culls them and
// records the screen data on their grid points. player may be nil.
func (c *ScreenGrid) RebuildGrid(grid *world.Grid, player *world.Asset) Frame {
	c.frame++
	if player != nil && !c.manualZoom {
		// MapToScreen applies the offset, so measure without it.
		c.playerOffsetY = 0
		c.playerOffsetY = float64(c.screenH)/2 - c.MapToScreen(player.Pos.Vec()).Y
	} else {
		c.playerOffsetY = 0
	}

	out := Frame{Index: c.frame, Cull: c.CullRect()}
	if grid == nil {
		c.result = out
		return out
	}

	pad := int(gomath.Ceil((c.settings.ExtraCullMargin + c.depthOffset()) * c.scale))
	grid.UpdateActiveChunks(c.View(), pad)

	geo, realism := c.Geometry()
	minSize := gomath.Max(1, float64(c.screenH)*c.settings.MinVisibleScreenRatio)
	chunks := make(map[*world.Chunk]struct{})

	for _, ch := range grid.ActiveChunks() {
		for _, a := range ch.Assets {
			if a.Hidden() || a.Dead {
				continue
			}
			gp := grid.PointForAsset(a)
			if gp == nil {
				continue
			}
			if !gp.Valid(c.frame) {
				c.projectPoint(gp, geo, realism)
			}
			pr := c.project(a.Pos.Vec(), geo, realism)
			if !c.assetRect(a, pr, minSize).Intersects(out.Cull) || pr.FadeAlpha <= minFadeAlpha {
				continue
			}
			out.Assets = append(out.Assets, a)
			if !gp.OnScreen {
				gp.OnScreen = true
				out.Points = append(out.Points, gp)
			}
			if gp.Chunk != nil {
				if _, seen := chunks[gp.Chunk]; !seen {
					chunks[gp.Chunk] = struct{}{}
					out.Chunks = append(out.Chunks, gp.Chunk)
				}
			}
			c.vars.choose(a, pr, c.desiredVariant(pr), c.frame)
		}
	}

	slices.SortStableFunc(out.Assets, func(x, y *world.Asset) int {
		if x.ZIndex != y.ZIndex {
			return x.ZIndex - y.ZIndex
		}
		return x.ID.Compare(y.ID)
	})
	c.vars.prune(c.frame)
	c.result = out
	return out
}

// Projection is the screen data of one asset for one frame.
type Projection struct {
	Screen           math.Vec2
	PerspectiveScale float64
	DistanceToCamera float64
	FadeAlpha        float64
}

func (c *ScreenGrid) project(p math.Vec2, geo Geometry, realism bool) Projection {
	pr := Projection{Screen: c.MapToScreen(p), PerspectiveScale: 1}
	if realism {
		pr.PerspectiveScale, pr.DistanceToCamera = geo.PerspectiveScale(p)
	}
	pr.FadeAlpha = c.FadeAlpha(pr.Screen.Y)
	return pr
}

// projectPoint records the projection of the lattice vertex itself.
func (c *ScreenGrid) projectPoint(gp *world.GridPoint, geo Geometry, realism bool) {
	pr := c.project(gp.World.Vec(), geo, realism)
	gp.Screen = pr.Screen
	gp.PerspectiveScale = pr.PerspectiveScale
	gp.VerticalScale = pr.PerspectiveScale
	gp.DistanceToCamera = pr.DistanceToCamera
	gp.HorizonFadeAlpha = pr.FadeAlpha
	gp.OnScreen = false
	gp.MarkUpdated(c.frame)
}

// assetRect approximates the sprite on screen. The anchor is the bottom
// center of the canvas.
func (c *ScreenGrid) assetRect(a *world.Asset, pr Projection, minSize float64) Rect {
	fw, fh, factor := 1.0, 1.0, 1.0
	if a.Info != nil {
		fw = float64(max(1, a.Info.CanvasWidth))
		fh = float64(max(1, a.Info.CanvasHeight))
		if a.Info.ScaleFactor > 0 {
			factor = a.Info.ScaleFactor
		}
	}
	k := factor * pr.PerspectiveScale / c.scale
	w := gomath.Max(minSize, fw*k)
	h := gomath.Max(minSize, fh*k)
	return Rect{X: pr.Screen.X - w/2, Y: pr.Screen.Y - h, W: w, H: h}
}

// desiredVariant is the size at which one stored pixel maps to one screen
// pixel, capped by the render quality.
func (c *ScreenGrid) desiredVariant(pr Projection) float64 {
	d := pr.PerspectiveScale / c.scale
	return gomath.Min(d, float64(c.settings.RenderQualityPercent)/100)
}

// Variant returns the scale variant picked for a in the last frame it was
// visible.
func (c *ScreenGrid) Variant(a *world.Asset) (animation.Choice, bool) {
	if a == nil {
		return animation.Choice{}, false
	}
	e, ok := c.vars.entries[a.ID]
	if !ok {
		return animation.Choice{}, false
	}
	return e.choice, true
}

// Projected returns the projection of a from the current frame. ok is
// false when a was culled or not visited.
func (c *ScreenGrid) Projected(a *world.Asset) (Projection, bool) {
	if a == nil {
		return Projection{}, false
	}
	e, ok := c.vars.entries[a.ID]
	if !ok || e.frame != c.frame {
		return Projection{}, false
	}
	return e.proj, true
}

type variantEntry struct {
	selector *animation.VariantSelector
	choice   animation.Choice
	proj     Projection
	frame    uint64
}

// variants keeps one hysteresis selector per visible asset.
type variants struct {
	margin  float64
	entries map[ulid.ULID]*variantEntry
}

// variantTTL is how many frames a selector survives off screen.
const variantTTL = 120

func newVariants(margin float64) variants {
	return variants{margin: margin, entries: make(map[ulid.ULID]*variantEntry)}
}

func (v *variants) setMargin(margin float64) {
	v.margin = margin
	for _, e := range v.entries {
		e.selector.Margin = margin
	}
}

func (v *variants) choose(a *world.Asset, pr Projection, desired float64, frame uint64) {
	e, ok := v.entries[a.ID]
	if !ok {
		sel := animation.NewVariantSelector(animation.DefaultSteps)
		sel.Margin = v.margin
		e = &variantEntry{selector: sel}
		v.entries[a.ID] = e
	}
	e.choice = e.selector.Choose(desired, desired)
	e.proj = pr
	e.frame = frame
}

func (v *variants) prune(frame uint64) {
	for id, e := range v.entries {
		if frame > e.frame+variantTTL {
			delete(v.entries, id)
		}
	}
}

// ScreenPosition returns where a is drawn, reusing its projection when it
// was visible this frame.
func (c *ScreenGrid) ScreenPosition(a *world.Asset) math.Vec2 {
	if pr, ok := c.Projected(a); ok {
		return pr.Screen
	}
	return c.MapToScreen(a.Pos.Vec())
}
