// Package sdlinput feeds input.State from the SDL2 event queue.
package sdlinput

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/vibble/internal/input"
)

var keys = map[sdl.Scancode]input.Key{
	sdl.SCANCODE_ESCAPE: input.KeyEscape,
	sdl.SCANCODE_HOME:   input.KeyHome,
	sdl.SCANCODE_W:      input.KeyW,
	sdl.SCANCODE_A:      input.KeyA,
	sdl.SCANCODE_S:      input.KeyS,
	sdl.SCANCODE_D:      input.KeyD,
	sdl.SCANCODE_UP:     input.KeyUp,
	sdl.SCANCODE_DOWN:   input.KeyDown,
	sdl.SCANCODE_LEFT:   input.KeyLeft,
	sdl.SCANCODE_RIGHT:  input.KeyRight,
}

// Input polls SDL into an input.State.
type Input struct {
	*input.State
	poll func() sdl.Event
}

// New creates an input handler reading the SDL event queue.
func New() *Input {
	return &Input{State: input.NewState(), poll: sdl.PollEvent}
}

// Update drains pending events. It returns true when the window was closed.
func (i *Input) Update() bool {
	i.Reset()
	quit := false
	for event := i.poll(); event != nil; event = i.poll() {
		e := translate(event)
		if i.Push(e) && e.Type == input.EventQuit {
			quit = true
		}
	}
	return quit
}

func translate(event sdl.Event) input.Event {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return input.Event{Type: input.EventQuit}

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			return input.Event{Type: input.EventWindowResize, Width: int(e.Data1), Height: int(e.Data2)}
		}

	case *sdl.KeyboardEvent:
		k, ok := keys[e.Keysym.Scancode]
		if !ok {
			return input.Event{}
		}
		switch e.Type {
		case sdl.KEYDOWN:
			return input.Event{Type: input.EventKeyDown, Key: k, Repeat: e.Repeat != 0}
		case sdl.KEYUP:
			return input.Event{Type: input.EventKeyUp, Key: k}
		}

	case *sdl.MouseMotionEvent:
		return input.Event{Type: input.EventMouseMove, MouseX: int(e.X), MouseY: int(e.Y)}

	case *sdl.MouseButtonEvent:
		t := input.EventMouseDown
		if e.Type == sdl.MOUSEBUTTONUP {
			t = input.EventMouseUp
		}
		return input.Event{Type: t, MouseX: int(e.X), MouseY: int(e.Y), Button: e.Button}

	case *sdl.MouseWheelEvent:
		y := int(e.Y)
		if e.Direction == sdl.MOUSEWHEEL_FLIPPED {
			y = -y
		}
		return input.Event{Type: input.EventMouseWheel, Wheel: y}
	}
	return input.Event{}
}
