// Package audio describes map music. The speaker-backed player lives in
// audio/music; the world loads without sound when it is absent or fails.
package audio

import (
	"errors"

	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// ErrNotInitialized is returned when music is played before Init.
var ErrNotInitialized = errors.New("audio not initialized")

// Player is the narrow surface the loader needs.
type Player interface {
	Init() error
	PlayMapMusic(path string, volume float64) error
}

// MapMusic reads the audio section of a map entry. ok is false when no
// music is configured.
func MapMusic(mapInfo jsonutil.Object) (path string, volume float64, ok bool) {
	sec, found := jsonutil.GetObject(mapInfo, "audio")
	if !found {
		return "", 0, false
	}
	path = jsonutil.String(sec, "music", "")
	if path == "" {
		return "", 0, false
	}
	v := jsonutil.Float(sec, "volume", 100)
	if v > 1 {
		v /= 100
	}
	return path, Clamp(v, 0, 1), true
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
