package music

import (
	"errors"
	"testing"

	"github.com/Faultbox/vibble/internal/audio"
	"github.com/Faultbox/vibble/internal/config"
)

func TestGainExponent(t *testing.T) {
	tests := []struct {
		vol, want float64
	}{
		{1, 0},
		{0.5, -1},
		{0.25, -2},
		{0, -100},
	}
	for _, tt := range tests {
		if got := gainExponent(tt.vol); got != tt.want {
			t.Errorf("gainExponent(%v) = %v, expected %v", tt.vol, got, tt.want)
		}
	}
}

func TestPlayBeforeInit(t *testing.T) {
	m := New(config.AudioConfig{MasterVolume: 2, MusicVolume: 0.5})
	if m.master != 1 || m.music != 0.5 {
		t.Errorf("expected clamped volumes, got %v %v", m.master, m.music)
	}
	if err := m.PlayMapMusic("missing.wav", 1); !errors.Is(err, audio.ErrNotInitialized) {
		t.Errorf("expected audio.ErrNotInitialized, got %v", err)
	}
	if m.MusicPath() != "" {
		t.Errorf("expected no music, got %q", m.MusicPath())
	}
}
