// Package camera implements the warped screen grid: the zoom and pan
// driver, world to screen projection and the per-frame visibility pass over
// the world grid.
package camera

import (
	gomath "math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/math"
)

// Room zoom ratios relative to the starting room.
const (
	BaseRatio     = 1.1
	trailRatio    = BaseRatio * 0.8
	minRoomRatio  = BaseRatio * 0.9
	maxRoomRatio  = BaseRatio * 1.05
	autoZoomSteps = 35

	screenLimit = 1e8
)

// ScreenGrid is the 2D camera. It is driven from the main loop and is not
// safe for concurrent use.
type ScreenGrid struct {
	settings Settings
	screenW  int
	screenH  int

	cx, cy Axis
	scale  float64

	zooming     bool
	zoom        *gween.Tween
	zoomStart   float64
	targetScale float64
	stepsTotal  int
	stepsDone   int

	panning      bool
	panX, panY   *gween.Tween
	panTarget    math.Vec2
	focus        math.Vec2
	hasFocus     bool
	manualZoom   bool
	roomCenter   math.Vec2
	startingArea float64

	playerOffsetY float64
	lastCenter    math.Vec2
	lastScale     float64

	frame  uint64
	result Frame
	vars   variants
}

// NewScreenGrid creates a camera for a screen of w x h pixels. start is the
// area of the starting room; its size is the reference for room zoom.
func NewScreenGrid(w, h int, start *geom.Area, s Settings) *ScreenGrid {
	s.Clamp()
	c := &ScreenGrid{
		settings:  s,
		screenW:   max(1, w),
		screenH:   max(1, h),
		scale:     1,
		lastScale: 1,
		vars:      newVariants(s.ScaleHysteresisMargin),
	}
	c.scale = c.clampScale(1)
	c.lastScale = c.scale
	c.targetScale = c.scale
	if start != nil && !start.Empty() {
		aw, ah := c.aspectSize(float64(start.Width()), float64(start.Height()))
		c.startingArea = aw * ah
		center := start.Center().Vec()
		c.roomCenter = center
		c.SetScreenCenter(center, true)
	}
	return c
}

// Settings returns the active settings.
func (c *ScreenGrid) Settings() Settings { return c.settings }

// SetSettings replaces the settings. The current scale is clamped into the
// new zoom range.
func (c *ScreenGrid) SetSettings(s Settings) {
	s.Clamp()
	c.settings = s
	c.vars.setMargin(s.ScaleHysteresisMargin)
	c.SetScale(c.scale)
}

// ScreenSize returns the screen size in pixels.
func (c *ScreenGrid) ScreenSize() (int, int) { return c.screenW, c.screenH }

// Resize changes the screen size.
func (c *ScreenGrid) Resize(w, h int) {
	c.screenW, c.screenH = max(1, w), max(1, h)
}

func (c *ScreenGrid) minScale() float64 { return gomath.Max(scaleEps, c.settings.ZoomLow) }
func (c *ScreenGrid) maxScale() float64 { return gomath.Min(MaxZoom, c.settings.ZoomHigh) }

func (c *ScreenGrid) clampScale(s float64) float64 {
	if !finite(s) {
		s = c.lastScale
	}
	return clamp(s, c.minScale(), c.maxScale())
}

// Scale returns world units per screen pixel.
func (c *ScreenGrid) Scale() float64 { return c.scale }

// TargetScale returns where the current zoom ends.
func (c *ScreenGrid) TargetScale() float64 { return c.targetScale }

// Zooming reports whether a zoom transition is running.
func (c *ScreenGrid) Zooming() bool { return c.zooming }

// ManualZoom reports whether a manual zoom or pan overrides auto zoom.
func (c *ScreenGrid) ManualZoom() bool { return c.manualZoom }

// SetScale jumps to s and stops any transition.
func (c *ScreenGrid) SetScale(s float64) {
	c.scale = c.clampScale(s)
	c.targetScale = c.scale
	c.zooming = false
	c.zoom = nil
	c.stepsDone, c.stepsTotal = 0, 0
	c.lastScale = c.scale
}

// ZoomToScale moves the scale to target over steps updates. A call with the
// same step count and a target within tolerance of the running one is a
// retarget: the steps already taken are kept and the zoom lands exactly on
// the new target. Anything else restarts from the current scale.
func (c *ScreenGrid) ZoomToScale(target float64, steps int) {
	target = c.clampScale(target)
	if steps <= 0 {
		c.SetScale(target)
		return
	}
	if !c.zooming || c.stepsTotal != steps || gomath.Abs(target-c.targetScale) > scaleEps {
		c.zoomStart = c.scale
		c.stepsTotal = steps
		c.stepsDone = 0
		c.zoom = gween.New(float32(c.zoomStart), float32(target), float32(steps), ease.Linear)
	}
	c.targetScale = target
	c.zooming = true
}

// ZoomToArea zooms so area fills the screen, keeping the screen aspect.
func (c *ScreenGrid) ZoomToArea(area *geom.Area, steps int) {
	if area == nil || area.Empty() {
		return
	}
	w, _ := c.aspectSize(float64(area.Width()), float64(area.Height()))
	if w <= 0 {
		return
	}
	c.ZoomToScale(w/float64(c.screenW), steps)
}

// AnimateZoomMultiply zooms by factor relative to the current scale and
// takes the zoom out of auto mode.
func (c *ScreenGrid) AnimateZoomMultiply(factor float64, steps int) {
	if factor <= 0 || !finite(factor) {
		return
	}
	c.manualZoom = true
	c.ZoomToScale(c.scale*factor, steps)
}

// AnimateZoomTowardsPoint zooms by factor while keeping the world point under
// the screen position sp in place.
func (c *ScreenGrid) AnimateZoomTowardsPoint(factor float64, sp math.Vec2, steps int) {
	if factor <= 0 || !finite(factor) {
		return
	}
	anchor := c.ScreenToMap(sp)
	cur := c.Center()
	target := c.clampScale(c.scale * factor)
	ratio := target / c.scale
	next := anchor.Add(cur.Sub(anchor).Scale(ratio))

	c.manualZoom = true
	c.panTo(next, steps)
	c.ZoomToScale(target, steps)
}

// PanAndZoomToPoint centers on p at scale. Non-positive steps apply
// immediately.
func (c *ScreenGrid) PanAndZoomToPoint(p math.Vec2, scale float64, steps int) {
	if !p.IsFinite() {
		return
	}
	c.manualZoom = true
	if steps <= 0 {
		c.panning = false
		c.focus, c.hasFocus = p, true
		c.SetScreenCenter(p, true)
		c.SetScale(scale)
		return
	}
	c.panTo(p, steps)
	c.ZoomToScale(scale, steps)
}

// ClearOverrides hands the camera back to auto zoom and player follow.
func (c *ScreenGrid) ClearOverrides() {
	c.manualZoom = false
	c.hasFocus = false
	c.panning = false
}

// SetFocus centers the camera on p until ClearOverrides.
func (c *ScreenGrid) SetFocus(p math.Vec2) {
	if !p.IsFinite() {
		return
	}
	c.focus, c.hasFocus = p, true
}

func (c *ScreenGrid) panTo(p math.Vec2, steps int) {
	if steps <= 0 {
		c.focus, c.hasFocus = p, true
		c.panning = false
		return
	}
	from := c.Center()
	c.panX = gween.New(float32(from.X), float32(p.X), float32(steps), ease.Linear)
	c.panY = gween.New(float32(from.Y), float32(p.Y), float32(steps), ease.Linear)
	c.panTarget = p
	c.panning = true
	c.focus, c.hasFocus = from, true
}

// SetScreenCenter moves the smoothing target. snap jumps there directly.
func (c *ScreenGrid) SetScreenCenter(p math.Vec2, snap bool) {
	if !p.IsFinite() {
		return
	}
	if snap {
		c.cx.Reset(p.X)
		c.cy.Reset(p.Y)
		c.lastCenter = p
		return
	}
	c.cx.Target, c.cy.Target = p.X, p.Y
}

// Center returns the smoothed center in world units.
func (c *ScreenGrid) Center() math.Vec2 {
	p := c.settings.Smoothing
	return math.Vec2{X: c.cx.Value(p), Y: c.cy.Value(p)}
}

// Update advances the zoom and pan drivers by one step and the center
// smoothing by dt seconds. player may be nil.
func (c *ScreenGrid) Update(dt float64, player *world.Asset) {
	if c.zooming && c.zoom != nil {
		c.stepsDone++
		v, done := c.zoom.Update(1)
		c.scale = c.clampScale(float64(v))
		if done || c.stepsDone >= c.stepsTotal {
			c.scale = c.targetScale
			c.zooming = false
			c.zoom = nil
		}
	}
	panning := c.panning
	if panning {
		x, doneX := c.panX.Update(1)
		y, doneY := c.panY.Update(1)
		c.focus = math.Vec2{X: float64(x), Y: float64(y)}
		if doneX && doneY {
			c.focus = c.panTarget
			c.panning = false
		}
	}

	switch {
	case c.hasFocus:
		c.SetScreenCenter(c.focus, panning)
	case player != nil:
		c.SetScreenCenter(player.Pos.Vec(), false)
	default:
		c.SetScreenCenter(c.roomCenter, false)
	}
	c.cx.Advance(c.settings.Smoothing, dt)
	c.cy.Advance(c.settings.Smoothing, dt)
	c.keepFinite()
}

// keepFinite restores the last finite state after a bad update.
func (c *ScreenGrid) keepFinite() {
	center := math.Vec2{X: c.cx.Current, Y: c.cy.Current}
	if !center.IsFinite() {
		logger.Warn("camera center not finite, restoring",
			zap.Float64("x", c.lastCenter.X), zap.Float64("y", c.lastCenter.Y))
		c.cx.Reset(c.lastCenter.X)
		c.cy.Reset(c.lastCenter.Y)
	} else {
		c.lastCenter = center
	}
	if !finite(c.scale) || c.scale <= 0 {
		c.scale = c.lastScale
	} else {
		c.lastScale = c.scale
	}
}

// UpdateZoom runs auto zoom between cur and its neighbor neigh. The target
// blends both room scales by the player's progress from cur towards neigh.
// refresh forces a new transition.
func (c *ScreenGrid) UpdateZoom(cur, neigh *room.Room, player *world.Asset, refresh bool) {
	if cur == nil {
		return
	}
	a := roomCenter(cur)
	c.roomCenter = a
	if c.manualZoom {
		return
	}

	target := c.DefaultZoomForRoom(cur)
	if neigh != nil && player != nil {
		b := roomCenter(neigh)
		ab := b.Sub(a)
		if l2 := ab.Dot(ab); l2 > 0 {
			t := clamp(player.Pos.Vec().Sub(a).Dot(ab)/l2, 0, 1)
			target += (c.DefaultZoomForRoom(neigh) - target) * t
		}
	}
	target = clamp(target, c.minScale(), c.maxScale())

	if !refresh {
		if c.zooming && gomath.Abs(target-c.targetScale) <= scaleEps {
			return
		}
		if !c.zooming && gomath.Abs(target-c.scale) <= scaleEps {
			return
		}
	}
	c.ZoomToScale(target, autoZoomSteps)
}

// DefaultZoomForRoom returns the resting scale for r. Rooms zoom out with
// their size relative to the starting room; trails zoom in.
func (c *ScreenGrid) DefaultZoomForRoom(r *room.Room) float64 {
	if r == nil || r.Area == nil || r.Area.Empty() {
		return BaseRatio
	}
	if r.IsTrail() {
		return trailRatio
	}
	w, h := c.aspectSize(float64(r.Area.Width()), float64(r.Area.Height()))
	size := w * h
	if size <= 0 {
		return trailRatio
	}
	if c.startingArea <= 0 {
		c.startingArea = size
	}
	return clamp(size/c.startingArea*BaseRatio, minRoomRatio, maxRoomRatio)
}

// aspectSize grows w or h until w/h matches the screen aspect.
func (c *ScreenGrid) aspectSize(w, h float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return gomath.Max(0, w), gomath.Max(0, h)
	}
	aspect := float64(c.screenW) / float64(c.screenH)
	if w/h > aspect {
		return w, w / aspect
	}
	return h * aspect, h
}

func roomCenter(r *room.Room) math.Vec2 {
	if r.Area != nil && !r.Area.Empty() {
		return r.Area.Center().Vec()
	}
	return r.Origin.Vec()
}

// viewMin returns the world point at the top left of the screen.
func (c *ScreenGrid) viewMin() math.Vec2 {
	center := c.Center()
	s := c.scale
	return math.Vec2{
		X: center.X - float64(c.screenW)*s/2,
		Y: center.Y - float64(c.screenH)*s/2,
	}
}

// View returns the visible world rectangle.
func (c *ScreenGrid) View() geom.Bounds {
	origin := c.viewMin()
	w := float64(c.screenW) * c.scale
	h := float64(c.screenH) * c.scale
	return geom.Bounds{
		MinX: math.SaturateInt32(gomath.Floor(origin.X)),
		MinY: math.SaturateInt32(gomath.Floor(origin.Y)),
		MaxX: math.SaturateInt32(gomath.Ceil(origin.X + w)),
		MaxY: math.SaturateInt32(gomath.Ceil(origin.Y + h)),
	}
}

// PlayerOffsetY returns the vertical shift applied by the last RebuildGrid.
func (c *ScreenGrid) PlayerOffsetY() float64 { return c.playerOffsetY }

// MapToScreen projects a world point to screen pixels.
func (c *ScreenGrid) MapToScreen(p math.Vec2) math.Vec2 {
	origin := c.viewMin()
	s := c.scale
	sx := (p.X - origin.X) / s
	sy := (p.Y-origin.Y)/s + c.playerOffsetY
	if !finite(sx) {
		sx = 0
	}
	if !finite(sy) {
		sy = 0
	}
	return math.Vec2{X: clamp(sx, -screenLimit, screenLimit), Y: clamp(sy, -screenLimit, screenLimit)}
}

// ScreenToMap is the inverse of MapToScreen.
func (c *ScreenGrid) ScreenToMap(sp math.Vec2) math.Vec2 {
	origin := c.viewMin()
	s := c.scale
	x := origin.X + sp.X*s
	y := origin.Y + (sp.Y-c.playerOffsetY)*s
	if !finite(x) {
		x = origin.X
	}
	if !finite(y) {
		y = origin.Y
	}
	return math.Vec2{X: x, Y: y}
}

// FadeAlpha returns the horizon fade for a screen row: 0 above the horizon,
// rising over the fade band, 1 below it.
func (c *ScreenGrid) FadeAlpha(screenY float64) float64 {
	horizon := c.HorizonY()
	if horizon <= 0 || horizon >= float64(c.screenH) {
		return 1
	}
	d := screenY - horizon
	if d <= 0 {
		return 0
	}
	band := c.settings.HorizonFadeBandPx
	if band <= 0 || d >= band {
		return 1
	}
	t := d / band
	return t * t * t
}
