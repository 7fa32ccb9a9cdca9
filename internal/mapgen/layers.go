package mapgen

import (
	gomath "math"
	"sort"
	"strings"

	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Layer geometry constants.
const (
	LayerRadiusStep        = 512
	MapRadiusOuterPadding  = 800
	DefaultMinEdgeDistance = 200
	MaxMinEdgeDistance     = 10000
)

const tau = 2 * gomath.Pi

// ClampMinEdge limits the gap kept between neighbouring rooms. Non-finite
// values fall back to the default.
func ClampMinEdge(v float64) float64 {
	switch {
	case gomath.IsNaN(v) || gomath.IsInf(v, 0):
		return DefaultMinEdgeDistance
	case v < 0:
		return 0
	case v > MaxMinEdgeDistance:
		return MaxMinEdgeDistance
	}
	return v
}

// MinEdgeDistance reads map_layers_settings.min_edge_distance from a map
// entry.
func MinEdgeDistance(mapInfo jsonutil.Object) float64 {
	settings, ok := jsonutil.GetObject(mapInfo, "map_layers_settings")
	if !ok {
		return DefaultMinEdgeDistance
	}
	v, ok := jsonutil.ToFloat(settings["min_edge_distance"])
	if !ok {
		return DefaultMinEdgeDistance
	}
	return ClampMinEdge(v)
}

func dimension(room jsonutil.Object, key string) float64 {
	v, ok := jsonutil.ToFloat(room[key])
	if !ok {
		return 0
	}
	return v
}

func sanitizeExtent(v float64) float64 {
	if gomath.IsNaN(v) || gomath.IsInf(v, 0) || v <= 0 {
		return 1
	}
	return v
}

// RoomExtent returns the bounding radius of a room entry: the radius of a
// circle room, else half the diagonal of its maximum size. It returns 0 for
// a missing entry.
func RoomExtent(roomsData jsonutil.Object, name string) float64 {
	room, ok := jsonutil.GetObject(roomsData, name)
	if !ok || name == "" {
		return 0
	}
	maxW, maxH := dimension(room, "max_width"), dimension(room, "max_height")
	if strings.EqualFold(jsonutil.String(room, "geometry", ""), "circle") {
		r := max(0, dimension(room, "radius"))
		if r <= 0 {
			d := max(maxW, maxH)
			if d <= 0 {
				d = max(dimension(room, "min_width"), dimension(room, "min_height"))
			}
			r = d / 2
		}
		if r <= 0 {
			r = 1
		}
		return r
	}
	switch {
	case maxW <= 0 && maxH <= 0:
		maxW, maxH = 100, 100
	case maxW <= 0:
		maxW = maxH
	case maxH <= 0:
		maxH = maxW
	}
	return gomath.Hypot(maxW, maxH) / 2
}

// MinimalRadius returns the smallest ring radius at which every pair of
// neighbouring extents fits with edge between them.
func MinimalRadius(extents []float64, edge float64) float64 {
	switch len(extents) {
	case 0:
		return 0
	case 1:
		return sanitizeExtent(extents[0]) + max(0, edge)/2
	}
	best := 0.0
	for i := range extents {
		cur := sanitizeExtent(extents[i])
		next := sanitizeExtent(extents[(i+1)%len(extents)])
		best = max(best, (cur+next+max(0, edge))/2)
	}
	return best
}

// TotalRequiredAngle sums the angle each neighbouring pair of extents needs
// on a ring of radius. It is +Inf when a pair cannot fit.
func TotalRequiredAngle(radius float64, extents []float64, edge float64) float64 {
	if len(extents) <= 1 {
		return 0
	}
	if !(radius > 0) || gomath.IsInf(radius, 0) {
		return gomath.Inf(1)
	}
	edge = max(0, edge)
	total := 0.0
	for i := range extents {
		chord := sanitizeExtent(extents[i]) + sanitizeExtent(extents[(i+1)%len(extents)]) + edge
		ratio := chord / (2 * radius)
		if ratio >= 1 {
			return gomath.Inf(1)
		}
		total += 2 * gomath.Asin(ratio)
	}
	return total
}

// EnsureRadius grows base until extents fit around the ring.
func EnsureRadius(base float64, extents []float64, edge float64) float64 {
	if len(extents) == 0 {
		return max(0, base)
	}
	edge = ClampMinEdge(edge)
	minimal := MinimalRadius(extents, edge)
	r := max(base, minimal)
	if !(r > 0) || gomath.IsInf(r, 0) {
		r = minimal
		if !(r > 0) || gomath.IsInf(r, 0) {
			r = 1
		}
	}
	for iter := 0; iter < 32; iter++ {
		req := TotalRequiredAngle(r, extents, edge)
		if gomath.IsInf(req, 0) {
			r = max(r*1.25, minimal+edge)
			continue
		}
		if req <= tau {
			break
		}
		r *= max(1.01, req/tau)
	}
	return r
}

// LayerRadii is the ring geometry of a map's layers.
type LayerRadii struct {
	Radii     []float64
	Extents   []float64
	MapRadius float64
	MinEdge   float64
}

// ComputeLayerRadii places layer 0 at the center and each following ring
// far enough out to clear the previous ring and to fit its own rooms.
func ComputeLayerRadii(layers []any, roomsData jsonutil.Object, minEdge float64) LayerRadii {
	res := LayerRadii{MinEdge: ClampMinEdge(minEdge)}
	if len(layers) == 0 {
		return res
	}
	n := len(layers)
	res.Radii = make([]float64, n)
	res.Extents = make([]float64, n)
	perLayer := make([][]float64, n)
	largest := 0.0

	for i, raw := range layers {
		layer, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		biggest := 0.0
		var list []float64
		rooms, _ := jsonutil.GetArray(layer, "rooms")
		for _, rc := range rooms {
			cand, ok := rc.(map[string]any)
			if !ok {
				continue
			}
			ext := sanitizeExtent(RoomExtent(roomsData, jsonutil.String(cand, "name", "")))
			biggest = max(biggest, ext)
			for k := 0; k < max(0, jsonutil.Int(cand, "max_instances", 0)); k++ {
				list = append(list, ext)
			}
		}
		if limit := jsonutil.Int(layer, "max_rooms", 0); limit > 0 && len(list) > limit {
			sort.Sort(sort.Reverse(sort.Float64Slice(list)))
			list = list[:limit]
		}
		if len(list) == 0 && biggest > 0 {
			list = append(list, biggest)
		}
		perLayer[i] = list
		res.Extents[i] = biggest
		largest = max(largest, biggest)
	}

	maxExtent := res.Extents[0]
	for i := 1; i < n; i++ {
		sep := res.Extents[i-1] + res.Extents[i] + res.MinEdge
		r := gomath.Ceil(max(0, res.Radii[i-1]+sep))
		if len(perLayer[i]) > 0 {
			r = EnsureRadius(r, perLayer[i], res.MinEdge)
		}
		res.Radii[i] = r
		maxExtent = max(maxExtent, r+res.Extents[i])
	}
	if maxExtent <= 0 {
		maxExtent = largest
	}
	if maxExtent <= 0 {
		maxExtent = 1
	}
	res.MapRadius = maxExtent + MapRadiusOuterPadding
	return res
}

// Layout is the result of RadialLayout.
type Layout struct {
	Radius float64
	Angles []float64
}

// RadialLayout spreads extents around a ring of at least base radius,
// starting at start. Slack is shared evenly between neighbours and the
// returned angles increase monotonically.
func RadialLayout(base float64, extents []float64, edge, start float64) Layout {
	edge = ClampMinEdge(edge)
	out := Layout{Radius: EnsureRadius(max(0, base), extents, edge)}
	switch len(extents) {
	case 0:
		return out
	case 1:
		out.Angles = normalizeAngles([]float64{start})
		return out
	}
	total := TotalRequiredAngle(out.Radius, extents, edge)
	if gomath.IsInf(total, 0) {
		total = tau
	}
	extra := max(0, tau-total) / float64(len(extents))
	raw := make([]float64, 0, len(extents))
	cur := start
	for i := range extents {
		raw = append(raw, cur)
		chord := sanitizeExtent(extents[i]) + sanitizeExtent(extents[(i+1)%len(extents)]) + edge
		delta := 0.0
		if out.Radius > 0 {
			delta = 2 * gomath.Asin(min(1, chord/(2*out.Radius)))
		}
		cur += delta + extra
	}
	out.Angles = normalizeAngles(raw)
	return out
}

func normalizeAngles(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make([]float64, 0, len(raw))
	offset := gomath.Floor(raw[0]/tau) * tau
	prev := 0.0
	for i, a := range raw {
		a -= offset
		for a < 0 {
			a += tau
		}
		if i > 0 {
			for a <= prev {
				a += tau
			}
		}
		prev = a
		out = append(out, a)
	}
	return out
}
