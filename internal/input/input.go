// Package input holds the small set of events the game loop reacts to and
// the per-frame key and mouse state built from them. The SDL event source
// lives in input/sdlinput.
package input

// EventType identifies an Event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventMouseWheel
)

// Key is a physical key the game binds.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyHome
	KeyW
	KeyA
	KeyS
	KeyD
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// Event is a processed input event.
type Event struct {
	Type   EventType
	Key    Key
	Width  int
	Height int
	MouseX int
	MouseY int
	Button uint8
	Wheel  int // positive scrolls away from the user
	Repeat bool
}

// State tracks held keys, the mouse position and the events of one frame.
type State struct {
	events []Event
	held   map[Key]bool
	mouseX int
	mouseY int
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		events: make([]Event, 0, 16),
		held:   make(map[Key]bool),
	}
}

// Reset drops the events of the previous frame. Held keys survive.
func (s *State) Reset() {
	s.events = s.events[:0]
}

// Push records e. Key repeats update the held state but are not queued.
// It reports whether e was queued.
func (s *State) Push(e Event) bool {
	switch e.Type {
	case EventNone:
		return false
	case EventKeyDown:
		s.held[e.Key] = true
		if e.Repeat {
			return false
		}
	case EventKeyUp:
		delete(s.held, e.Key)
	case EventMouseMove, EventMouseDown, EventMouseUp:
		s.mouseX, s.mouseY = e.MouseX, e.MouseY
	case EventMouseWheel:
		if e.Wheel == 0 {
			return false
		}
		e.MouseX, e.MouseY = s.mouseX, s.mouseY
	}
	s.events = append(s.events, e)
	return true
}

// Events returns the events of the current frame.
func (s *State) Events() []Event {
	return s.events
}

// Held reports whether a key is currently down.
func (s *State) Held(k Key) bool {
	return s.held[k]
}

// Mouse returns the last known cursor position.
func (s *State) Mouse() (int, int) {
	return s.mouseX, s.mouseY
}

// IsKeyPressed checks if a specific key was pressed this frame.
func (s *State) IsKeyPressed(k Key) bool {
	for _, e := range s.events {
		if e.Type == EventKeyDown && e.Key == k {
			return true
		}
	}
	return false
}
