package game

import (
	"context"
	"testing"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/camera"
	"github.com/Faultbox/vibble/internal/input"
	"github.com/Faultbox/vibble/internal/loader"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/internal/room"
	"github.com/Faultbox/vibble/internal/world"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

type fakeInput struct {
	quit   bool
	events []input.Event
	held   map[input.Key]bool
}

func (f *fakeInput) Update() bool             { return f.quit }
func (f *fakeInput) Events() []input.Event    { return f.events }
func (f *fakeInput) Held(code input.Key) bool { return f.held[code] }
func (f *fakeInput) Mouse() (int, int)        { return 0, 0 }

func newWorld(t *testing.T) (*loader.World, *world.Asset) {
	t.Helper()
	info, err := asset.NewInfo("hero", jsonutil.Object{"asset_type": "player"}, nil)
	if err != nil {
		t.Fatalf("NewInfo() error = %v", err)
	}
	ids := world.NewIDs(5)
	player := world.NewAsset(ids.Next(), info, nil, math.Point{X: 100, Y: 100}, 0, nil, "", "", 0)
	grid := world.NewGrid(math.Point{}, 10)
	grid.Register(player)
	return &loader.World{Graph: room.NewGraph(), Grid: grid}, player
}

func newGame(t *testing.T, in *fakeInput) (*Game, *world.Asset) {
	t.Helper()
	w, player := newWorld(t)
	g, err := New(Options{
		Renderer: render.NewHeadless(800, 600),
		Input:    in,
		World:    w,
		Camera:   camera.NewScreenGrid(800, 600, nil, camera.DefaultSettings()),
		FPS:      1000,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, player
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error for empty options")
	}
}

func TestFindsPlayer(t *testing.T) {
	g, player := newGame(t, &fakeInput{})
	if g.Player() != player {
		t.Fatal("expected the player asset to be found")
	}
}

func TestStepMovesPlayer(t *testing.T) {
	in := &fakeInput{held: map[input.Key]bool{input.KeyD: true}}
	g, player := newGame(t, in)
	if err := g.Step(0.5); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if player.Pos != (math.Point{X: 300, Y: 100}) {
		t.Errorf("expected player at (300,100), got %v", player.Pos)
	}
	gp := g.opts.World.Grid.PointForAsset(player)
	if gp == nil || gp.World != (math.Point{}) {
		t.Errorf("expected the player in the cell at the origin vertex, got %+v", gp)
	}
	cam := g.opts.Camera
	if got, want := cam.ScreenPosition(player), cam.MapToScreen(player.Pos.Vec()); got != want {
		t.Errorf("expected the player drawn at %v, got %v", want, got)
	}
	if got := g.opts.Camera.Frame().Assets; len(got) != 1 || got[0] != player {
		t.Errorf("expected the player to be visible, got %d assets", len(got))
	}
}

func TestQuitAndEscape(t *testing.T) {
	g, _ := newGame(t, &fakeInput{quit: true})
	if err := g.Step(0.1); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !g.Stopped() {
		t.Error("expected quit to stop the loop")
	}

	g, _ = newGame(t, &fakeInput{events: []input.Event{{Type: input.EventKeyDown, Key: input.KeyEscape}}})
	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !g.Stopped() || g.Frames() != 1 {
		t.Errorf("expected escape to stop after 1 frame, got %d (stopped %v)", g.Frames(), g.Stopped())
	}
}

func TestRunMaxFrames(t *testing.T) {
	g, _ := newGame(t, &fakeInput{})
	g.opts.MaxFrames = 3
	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if g.Frames() != 3 {
		t.Errorf("expected 3 frames, got %d", g.Frames())
	}
}

func TestWheelZoomsManually(t *testing.T) {
	in := &fakeInput{events: []input.Event{{Type: input.EventMouseWheel, Wheel: 1, MouseX: 400, MouseY: 300}}}
	g, _ := newGame(t, in)
	if err := g.Step(1.0 / 60); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	cam := g.opts.Camera
	if !cam.ManualZoom() || !cam.Zooming() {
		t.Errorf("expected a manual zoom in progress, manual=%v zooming=%v", cam.ManualZoom(), cam.Zooming())
	}
	if cam.TargetScale() >= 1 {
		t.Errorf("expected zoom in below scale 1, got %v", cam.TargetScale())
	}
}
