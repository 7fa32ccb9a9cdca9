package input

import "testing"

func TestStatePush(t *testing.T) {
	s := NewState()
	tests := []struct {
		e      Event
		queued bool
	}{
		{Event{Type: EventKeyDown, Key: KeyD}, true},
		{Event{Type: EventKeyDown, Key: KeyD, Repeat: true}, false},
		{Event{Type: EventMouseMove, MouseX: 30, MouseY: 40}, true},
		{Event{Type: EventMouseWheel, Wheel: 0}, false},
		{Event{Type: EventMouseWheel, Wheel: 2}, true},
		{Event{}, false},
	}
	for i, tt := range tests {
		if got := s.Push(tt.e); got != tt.queued {
			t.Errorf("event %d: expected queued=%v, got %v", i, tt.queued, got)
		}
	}
	ev := s.Events()
	if len(ev) != 3 {
		t.Fatalf("expected 3 events, got %d", len(ev))
	}
	if ev[2].MouseX != 30 || ev[2].MouseY != 40 {
		t.Errorf("expected wheel at the cursor (30,40), got (%d,%d)", ev[2].MouseX, ev[2].MouseY)
	}
	if !s.IsKeyPressed(KeyD) || !s.Held(KeyD) {
		t.Error("expected D pressed and held")
	}
}

func TestStateResetKeepsHeld(t *testing.T) {
	s := NewState()
	s.Push(Event{Type: EventKeyDown, Key: KeyLeft})
	s.Reset()
	if len(s.Events()) != 0 {
		t.Errorf("expected no events after reset, got %d", len(s.Events()))
	}
	if s.IsKeyPressed(KeyLeft) || !s.Held(KeyLeft) {
		t.Error("expected Left held but not pressed after reset")
	}
	s.Push(Event{Type: EventKeyUp, Key: KeyLeft})
	if s.Held(KeyLeft) {
		t.Error("expected Left released")
	}
}
