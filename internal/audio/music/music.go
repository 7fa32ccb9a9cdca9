// Package music loops map music through the beep speaker.
package music

import (
	"fmt"
	gomath "math"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/Faultbox/vibble/internal/audio"
	"github.com/Faultbox/vibble/internal/config"
)

// SampleRate is the speaker sample rate.
const SampleRate = beep.SampleRate(44100)

var _ audio.Player = (*Manager)(nil)

// Manager owns the speaker and the current music loop.
type Manager struct {
	mu sync.Mutex

	initialized bool
	muted       bool
	master      float64
	music       float64
	mapVolume   float64

	stream beep.StreamSeekCloser
	ctrl   *beep.Ctrl
	volume *effects.Volume
	path   string
}

// New creates a manager with the configured volumes.
func New(cfg config.AudioConfig) *Manager {
	return &Manager{
		muted:     cfg.Muted,
		master:    audio.Clamp(cfg.MasterVolume, 0, 1),
		music:     audio.Clamp(cfg.MusicVolume, 0, 1),
		mapVolume: 1,
	}
}

// Init opens the speaker. Calling it again is a no-op.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if err := speaker.Init(SampleRate, SampleRate.N(time.Second/30)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	m.initialized = true
	return nil
}

// Close stops playback.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	if m.initialized {
		speaker.Clear()
	}
	m.initialized = false
}

// MusicPath returns the file of the current loop.
func (m *Manager) MusicPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// SetMasterVolume sets the master volume in [0, 1].
func (m *Manager) SetMasterVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.master = audio.Clamp(v, 0, 1)
	m.applyVolume()
}

// SetMuted silences or restores music.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	m.applyVolume()
}

// PlayMapMusic loops the WAV file at path. volume scales the configured
// music volume for this map.
func (m *Manager) PlayMapMusic(path string, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return audio.ErrNotInitialized
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open music: %w", err)
	}
	stream, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", path, err)
	}
	m.stopLocked()

	var s beep.Streamer = &looped{src: stream}
	if format.SampleRate != SampleRate {
		s = beep.Resample(4, format.SampleRate, SampleRate, s)
	}
	m.ctrl = &beep.Ctrl{Streamer: s}
	m.volume = &effects.Volume{Streamer: m.ctrl, Base: 2}
	m.stream = stream
	m.path = path
	m.mapVolume = audio.Clamp(volume, 0, 1)
	m.applyVolume()
	speaker.Play(m.volume)
	return nil
}

func (m *Manager) stopLocked() {
	if m.ctrl != nil {
		speaker.Lock()
		m.ctrl.Paused = true
		speaker.Unlock()
	}
	if m.stream != nil {
		m.stream.Close()
	}
	m.stream, m.ctrl, m.volume, m.path = nil, nil, nil, ""
}

func (m *Manager) applyVolume() {
	if m.volume == nil {
		return
	}
	v := m.master * m.music * m.mapVolume
	m.volume.Silent = m.muted || v <= 0
	m.volume.Volume = gainExponent(v)
}

// looped rewinds src whenever it drains.
type looped struct {
	src beep.StreamSeeker
}

func (l *looped) Stream(samples [][2]float64) (int, bool) {
	filled := 0
	for filled < len(samples) {
		n, ok := l.src.Stream(samples[filled:])
		filled += n
		if ok && n > 0 {
			continue
		}
		if l.src.Len() == 0 || l.src.Seek(0) != nil {
			return filled, filled > 0
		}
	}
	return filled, true
}

func (l *looped) Err() error { return l.src.Err() }

// gainExponent maps a linear volume onto effects.Volume's base-2 scale.
func gainExponent(v float64) float64 {
	if v <= 0 {
		return -100
	}
	return gomath.Log2(v)
}
