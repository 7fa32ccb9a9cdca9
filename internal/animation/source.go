package animation

import (
	gomath "math"

	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Source kinds.
const (
	KindFolder      = "folder"
	KindGIF         = "gif"
	KindAnimation   = "animation"
	KindPNGSequence = "png_sequence"
)

// BaseFPS is the playback rate at speed multiplier 1.
const BaseFPS = 24

// SpeedSteps are the accepted speed multipliers.
var SpeedSteps = []float64{0.25, 0.5, 1, 2, 4}

// legacyKeys are dropped once an entry has been converted to the source form.
var legacyKeys = []string{"frames_path", "lock_until_done", "speed", "speed_factor", "fps"}

// Source describes where the frames of an animation come from.
type Source struct {
	Kind  string
	Path  string
	Name  string
	Paths []string
}

// Derived reports whether the frames are cloned from a sibling animation.
func (s Source) Derived() bool {
	return s.Kind == KindAnimation && s.Name != ""
}

// ParseSource reads a source object. Kind defaults to folder.
func ParseSource(m jsonutil.Object) Source {
	s := Source{
		Kind: jsonutil.String(m, "kind", KindFolder),
		Path: jsonutil.String(m, "path", ""),
		Name: jsonutil.String(m, "name", ""),
	}
	if s.Kind == "" {
		s.Kind = KindFolder
	}
	s.Paths = jsonutil.Strings(m, "paths")
	return s
}

// ToJSON renders the source back into its manifest form.
func (s Source) ToJSON() jsonutil.Object {
	out := jsonutil.Object{"kind": s.Kind}
	switch s.Kind {
	case KindAnimation:
		out["name"] = s.Name
	case KindPNGSequence:
		out["paths"] = jsonutil.StringsToArray(s.Paths)
	default:
		out["path"] = s.Path
	}
	return out
}

// SnapSpeed returns the accepted multiplier nearest to v on a log scale.
func SnapSpeed(v float64) float64 {
	if !finite(v) || v <= 0 {
		return 1
	}
	best, bestDist := 1.0, gomath.MaxFloat64
	for _, s := range SpeedSteps {
		d := gomath.Abs(gomath.Log2(v) - gomath.Log2(s))
		if d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

// NormalizeLegacy rewrites an old-style animation payload in place:
// frames_path becomes a folder source, lock_until_done becomes locked and
// fps or speed become a snapped speed_multiplier. It reports whether the
// payload changed.
func NormalizeLegacy(id string, payload jsonutil.Object) bool {
	if payload == nil {
		return false
	}
	changed := false
	if _, ok := jsonutil.GetObject(payload, "source"); !ok {
		path := jsonutil.String(payload, "frames_path", "")
		if path == "" {
			path = id
		}
		payload["source"] = jsonutil.Object{"kind": KindFolder, "path": path}
		if v, ok := payload["lock_until_done"]; ok {
			if b, ok := jsonutil.ToBool(v); ok {
				payload["locked"] = b
			}
		}
		changed = true
	}

	if _, ok := payload["speed_multiplier"]; !ok {
		if fps, ok := jsonutil.ToFloat(payload["fps"]); ok {
			payload["speed_multiplier"] = SnapSpeed(fps / BaseFPS)
			changed = true
		} else if sp, ok := jsonutil.ToFloat(payload["speed_factor"]); ok {
			payload["speed_multiplier"] = SnapSpeed(sp)
			changed = true
		} else if sp, ok := jsonutil.ToFloat(payload["speed"]); ok {
			payload["speed_multiplier"] = SnapSpeed(sp)
			changed = true
		}
	}

	for _, k := range legacyKeys {
		if _, ok := payload[k]; ok {
			delete(payload, k)
			changed = true
		}
	}
	return changed
}
