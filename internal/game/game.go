// Package game runs the main loop over a loaded world: input, player
// movement, camera, culling and drawing.
package game

import (
	"context"
	"fmt"
	"image"
	gomath "math"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/camera"
	"github.com/Faultbox/vibble/internal/input"
	"github.com/Faultbox/vibble/internal/loader"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/math"
)

const (
	defaultFPS  = 60
	playerSpeed = 400 // world units per second
	wheelZoom   = 1.1
	wheelSteps  = 10
)

// EventSource feeds the loop. *sdlinput.Input implements it.
type EventSource interface {
	Update() bool
	Events() []input.Event
	Held(code input.Key) bool
	Mouse() (int, int)
}

// Options configures a Game.
type Options struct {
	Renderer render.Renderer
	Input    EventSource
	World    *loader.World
	Camera   *camera.ScreenGrid
	// FPS caps the frame rate; 0 uses 60.
	FPS int
	// MaxFrames stops the loop after that many frames; 0 runs until quit.
	MaxFrames int
}

// Game is the main game instance.
type Game struct {
	opts    Options
	stopped bool
	frames  int
	player  *world.Asset
	current *room.Room
}

// New creates a game over a loaded world.
func New(opts Options) (*Game, error) {
	if opts.Renderer == nil || opts.World == nil || opts.Camera == nil || opts.Input == nil {
		return nil, fmt.Errorf("game: renderer, input, world and camera are required")
	}
	if opts.FPS <= 0 {
		opts.FPS = defaultFPS
	}
	g := &Game{opts: opts}
	g.player = findPlayer(opts.World)
	if g.player != nil {
		logger.Info("player found", zap.String("asset", g.player.Name()),
			zap.Int("x", g.player.Pos.X), zap.Int("y", g.player.Pos.Y))
	}
	return g, nil
}

func findPlayer(w *loader.World) *world.Asset {
	if w.Grid == nil {
		return nil
	}
	for _, a := range w.Grid.Assets() {
		if a.Type() == asset.TypePlayer && !a.Dead {
			return a
		}
	}
	return nil
}

// Player returns the asset driven by the keyboard, or nil.
func (g *Game) Player() *world.Asset { return g.player }

// Stopped reports whether the player asked to quit.
func (g *Game) Stopped() bool { return g.stopped }

// Frames returns the number of frames run so far.
func (g *Game) Frames() int { return g.frames }

// Run executes the loop at the configured frame rate until the window is
// closed, escape is pressed, ctx ends or MaxFrames is reached.
func (g *Game) Run(ctx context.Context) error {
	budget := time.Second / time.Duration(g.opts.FPS)
	last := time.Now()
	fpsTimer := last
	fpsCount := 0

	logger.Info("starting game loop", zap.Int("fps", g.opts.FPS))
	for !g.stopped {
		if err := ctx.Err(); err != nil {
			return nil
		}
		start := time.Now()
		dt := start.Sub(last).Seconds()
		last = start

		if err := g.Step(dt); err != nil {
			return fmt.Errorf("frame %d: %w", g.frames, err)
		}
		if g.opts.MaxFrames > 0 && g.frames >= g.opts.MaxFrames {
			break
		}

		fpsCount++
		if time.Since(fpsTimer) >= time.Second {
			logger.Debug("fps", zap.Int("count", fpsCount), zap.Int("visible", len(g.opts.Camera.Frame().Assets)))
			fpsCount = 0
			fpsTimer = time.Now()
		}
		if remaining := budget - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	logger.Info("game loop stopped", zap.Int("frames", g.frames))
	return nil
}

// Step runs one frame with a time step of dt seconds.
func (g *Game) Step(dt float64) error {
	g.frames++
	if g.opts.Input.Update() {
		g.stopped = true
		return nil
	}
	g.handleEvents()
	if g.stopped {
		return nil
	}
	g.movePlayer(dt)
	g.updateCamera(dt)
	return g.render()
}

func (g *Game) handleEvents() {
	cam := g.opts.Camera
	for _, e := range g.opts.Input.Events() {
		switch e.Type {
		case input.EventWindowResize:
			cam.Resize(e.Width, e.Height)
		case input.EventKeyDown:
			switch e.Key {
			case input.KeyEscape:
				g.stopped = true
			case input.KeyHome:
				cam.ClearOverrides()
			}
		case input.EventMouseWheel:
			factor := gomath.Pow(wheelZoom, float64(-e.Wheel))
			cam.AnimateZoomTowardsPoint(factor, math.Vec2{X: float64(e.MouseX), Y: float64(e.MouseY)}, wheelSteps)
		}
	}
}

func (g *Game) movePlayer(dt float64) {
	if g.player == nil || dt <= 0 {
		return
	}
	in := g.opts.Input
	var dir math.Vec2
	if in.Held(input.KeyW) || in.Held(input.KeyUp) {
		dir.Y--
	}
	if in.Held(input.KeyS) || in.Held(input.KeyDown) {
		dir.Y++
	}
	if in.Held(input.KeyA) || in.Held(input.KeyLeft) {
		dir.X--
	}
	if in.Held(input.KeyD) || in.Held(input.KeyRight) {
		dir.X++
	}
	if dir == (math.Vec2{}) {
		return
	}
	step := dir.Normalize().Scale(playerSpeed * dt)
	next := g.player.Pos.Vec().Add(step).Round()
	g.opts.World.Grid.Move(g.player, next)
}

func (g *Game) updateCamera(dt float64) {
	w := g.opts.World
	cam := g.opts.Camera

	if g.player != nil && w.Graph != nil {
		if r := w.Graph.At(g.player.Pos); r != nil {
			g.current = r
		}
	}
	if g.current == nil && w.Graph != nil {
		g.current = w.Graph.Spawn()
	}
	cam.UpdateZoom(g.current, g.neighbor(), g.player, false)
	cam.Update(dt, g.player)
	frame := cam.RebuildGrid(w.Grid, g.player)
	for _, a := range frame.Assets {
		a.Update(dt)
	}
}

// neighbor is the connected room whose center is closest to the player.
func (g *Game) neighbor() *room.Room {
	if g.current == nil || g.player == nil || g.opts.World.Graph == nil {
		return nil
	}
	var best *room.Room
	bestD := gomath.MaxFloat64
	for _, r := range g.opts.World.Graph.ConnectedTo(g.current.ID) {
		if r.Area == nil || r.Area.Empty() {
			continue
		}
		if d := r.Area.Center().Distance(g.player.Pos); d < bestD {
			best, bestD = r, d
		}
	}
	return best
}

func (g *Game) render() error {
	r := g.opts.Renderer
	cam := g.opts.Camera
	if err := r.Clear(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for _, a := range cam.Frame().Assets {
		if err := g.draw(a); err != nil {
			logger.Debug("draw failed", zap.String("asset", a.Name()), zap.Error(err))
		}
	}
	r.Present()
	return nil
}

func (g *Game) draw(a *world.Asset) error {
	p := a.Player()
	if p == nil || p.Frame() == nil {
		return nil
	}
	choice, ok := g.opts.Camera.Variant(a)
	if !ok {
		return nil
	}
	v := p.Frame().Variant(choice.Index)
	if v == nil || v.Texture == nil {
		return nil
	}
	tw, th := v.Texture.Size()
	w := int(gomath.Round(float64(tw) * choice.Remainder))
	h := int(gomath.Round(float64(th) * choice.Remainder))
	if w <= 0 || h <= 0 {
		return nil
	}
	pos := g.opts.Camera.ScreenPosition(a)
	x, y := int(gomath.Round(pos.X)), int(gomath.Round(pos.Y))
	alpha := uint8(255)
	if pr, ok := g.opts.Camera.Projected(a); ok {
		alpha = uint8(gomath.Round(255 * clamp01(pr.FadeAlpha)))
	}
	return g.opts.Renderer.Copy(v.Texture, image.Rect(x-w/2, y-h, x-w/2+w, y), alpha)
}

// Close releases loop resources.
func (g *Game) Close() {
	logger.Info("closing game", zap.Int("frames", g.frames))
	g.stopped = true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
