package geom

import (
	gomath "math"
	"math/rand"

	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// MapGridSettings is the map_grid_settings section of a map entry.
type MapGridSettings struct {
	Resolution int
	Jitter     int
	RChunk     int
}

// ParseMapGridSettings reads the section, accepting spacing for resolution
// and chunk_resolution, chunk_size or chunk_size_px for r_chunk. The result
// is clamped.
func ParseMapGridSettings(obj jsonutil.Object) MapGridSettings {
	var s MapGridSettings
	if obj == nil {
		return s
	}
	if r, ok := jsonutil.Integer(obj, "resolution"); ok {
		s.Resolution = r
	} else if sp, ok := jsonutil.Integer(obj, "spacing"); ok {
		s.Resolution = log2Round(sp)
	}
	if j, ok := jsonutil.Integer(obj, "jitter"); ok {
		s.Jitter = j
	}
	if r, ok := jsonutil.Integer(obj, "r_chunk"); ok {
		s.RChunk = r
	} else if r, ok := jsonutil.Integer(obj, "chunk_resolution"); ok {
		s.RChunk = r
	} else {
		for _, key := range []string{"chunk_size", "chunk_size_px"} {
			if px, ok := jsonutil.Integer(obj, key); ok {
				s.RChunk = log2Round(px)
				break
			}
		}
	}
	s.Clamp()
	return s
}

func log2Round(v int) int {
	return int(gomath.Round(gomath.Log2(float64(max(1, v)))))
}

// Clamp limits every field to its allowed range. Jitter may not exceed half
// the spacing.
func (s *MapGridSettings) Clamp() {
	s.Resolution = ClampResolution(s.Resolution)
	s.RChunk = ClampResolution(s.RChunk)
	s.Jitter = math.ClampInt(s.Jitter, 0, max(0, s.Spacing()/2))
}

// Spacing returns the vertex spacing in world units.
func (s MapGridSettings) Spacing() int { return Delta(s.Resolution) }

// ChunkSize returns the world-grid chunk size in world units.
func (s MapGridSettings) ChunkSize() int { return Delta(s.RChunk) }

// ApplyTo writes the settings, including the derived sizes, into obj.
func (s MapGridSettings) ApplyTo(obj jsonutil.Object) {
	obj["resolution"] = s.Resolution
	obj["spacing"] = s.Spacing()
	obj["jitter"] = s.Jitter
	obj["r_chunk"] = s.RChunk
	obj["chunk_size"] = s.ChunkSize()
}

// EnsureMapGridSettings normalizes map_grid_settings inside a map entry and
// returns the parsed settings.
func EnsureMapGridSettings(mapInfo jsonutil.Object) MapGridSettings {
	section, _ := jsonutil.EnsureObject(mapInfo, "map_grid_settings")
	s := ParseMapGridSettings(section)
	s.ApplyTo(section)
	return s
}

// JitterPoint offsets base by up to ±settings.Jitter on each axis, keeping the
// result inside area. After four misses base is returned.
func (s MapGridSettings) JitterPoint(base math.Point, rng *rand.Rand, area *Area) math.Point {
	if s.Jitter <= 0 {
		return base
	}
	for attempt := 0; attempt < 4; attempt++ {
		c := math.Point{
			X: base.X + rng.Intn(2*s.Jitter+1) - s.Jitter,
			Y: base.Y + rng.Intn(2*s.Jitter+1) - s.Jitter,
		}
		if area.ContainsPoint(c) {
			return c
		}
	}
	return base
}
