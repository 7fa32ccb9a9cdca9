package sdlinput

import (
	"testing"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/vibble/internal/input"
)

func scripted(events ...sdl.Event) *Input {
	in := New()
	in.poll = func() sdl.Event {
		if len(events) == 0 {
			return nil
		}
		e := events[0]
		events = events[1:]
		return e
	}
	return in
}

func TestUpdateTranslatesEvents(t *testing.T) {
	in := scripted(
		&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_W}},
		&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Repeat: 1, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_W}},
		&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_F12}},
		&sdl.MouseMotionEvent{X: 10, Y: 20},
		&sdl.MouseWheelEvent{Y: 1, Direction: sdl.MOUSEWHEEL_FLIPPED},
		&sdl.WindowEvent{Event: sdl.WINDOWEVENT_RESIZED, Data1: 640, Data2: 480},
	)
	if in.Update() {
		t.Fatal("expected no quit")
	}
	ev := in.Events()
	if len(ev) != 4 {
		t.Fatalf("expected 4 events, got %d", len(ev))
	}
	if !in.IsKeyPressed(input.KeyW) || !in.Held(input.KeyW) {
		t.Error("expected W pressed and held")
	}
	if ev[2].Type != input.EventMouseWheel || ev[2].Wheel != -1 || ev[2].MouseX != 10 {
		t.Errorf("expected flipped wheel at x=10, got %+v", ev[2])
	}
	if ev[3].Type != input.EventWindowResize || ev[3].Width != 640 {
		t.Errorf("expected resize to 640, got %+v", ev[3])
	}
	if x, y := in.Mouse(); x != 10 || y != 20 {
		t.Errorf("expected mouse (10,20), got (%d,%d)", x, y)
	}
}

func TestUpdateQuitAndRelease(t *testing.T) {
	in := scripted(
		&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_A}},
		&sdl.KeyboardEvent{Type: sdl.KEYUP, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_A}},
		&sdl.QuitEvent{},
	)
	if !in.Update() {
		t.Fatal("expected quit")
	}
	if in.Held(input.KeyA) {
		t.Error("expected A released")
	}
}
