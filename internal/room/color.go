package room

import (
	"fmt"
	"image/color"
	gomath "math"
	"strconv"
	"strings"

	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

const goldenRatioConjugate = 0.6180339887498948482

// FallbackColor is used for rooms without a display colour.
var FallbackColor = color.NRGBA{120, 170, 235, 255}

func channel(v any) (uint8, bool) {
	n, ok := jsonutil.ToInt(v)
	if !ok {
		return 0, false
	}
	return uint8(math.ClampInt(n, 0, 255)), true
}

// ColorFromJSON reads "#rrggbb[aa]", [r,g,b(,a)] or {r,g,b(,a)}.
func ColorFromJSON(v any) (color.NRGBA, bool) {
	switch c := v.(type) {
	case string:
		return parseHex(c)
	case []any:
		if len(c) < 3 {
			return color.NRGBA{}, false
		}
		var out [4]uint8
		out[3] = 255
		for i := 0; i < len(c) && i < 4; i++ {
			n, ok := channel(c[i])
			if !ok {
				if i < 3 {
					return color.NRGBA{}, false
				}
				continue
			}
			out[i] = n
		}
		return color.NRGBA{out[0], out[1], out[2], out[3]}, true
	case map[string]any:
		r, ok1 := channel(c["r"])
		g, ok2 := channel(c["g"])
		b, ok3 := channel(c["b"])
		if !ok1 || !ok2 || !ok3 {
			return color.NRGBA{}, false
		}
		a, ok := channel(c["a"])
		if !ok {
			a = 255
		}
		return color.NRGBA{r, g, b, a}, true
	}
	return color.NRGBA{}, false
}

func parseHex(s string) (color.NRGBA, bool) {
	if !strings.HasPrefix(s, "#") || (len(s) != 7 && len(s) != 9) {
		return color.NRGBA{}, false
	}
	n, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	if len(s) == 7 {
		return color.NRGBA{uint8(n >> 16), uint8(n >> 8), uint8(n), 255}, true
	}
	return color.NRGBA{uint8(n >> 24), uint8(n >> 16), uint8(n >> 8), uint8(n)}, true
}

// ColorToJSON writes c as [r,g,b,a].
func ColorToJSON(c color.NRGBA) []any {
	return []any{int(c.R), int(c.G), int(c.B), int(c.A)}
}

// ColorHex formats c as #rrggbb.
func ColorHex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// HSV converts hue in degrees, saturation and value in [0,1] to an opaque
// colour.
func HSV(hue, sat, val float64) color.NRGBA {
	hue = gomath.Mod(hue, 360)
	if hue < 0 {
		hue += 360
	}
	sat = math.Clamp(sat, 0, 1)
	val = math.Clamp(val, 0, 1)

	c := val * sat
	h := hue / 60
	x := c * (1 - gomath.Abs(gomath.Mod(h, 2)-1))
	var r, g, b float64
	switch {
	case h < 1:
		r, g = c, x
	case h < 2:
		r, g = x, c
	case h < 3:
		g, b = c, x
	case h < 4:
		g, b = x, c
	case h < 5:
		r, b = x, c
	default:
		r, b = c, x
	}
	m := val - c
	conv := func(v float64) uint8 {
		return uint8(gomath.Round(math.Clamp(v+m, 0, 1) * 255))
	}
	return color.NRGBA{conv(r), conv(g), conv(b), 255}
}

func colorDistance(a, b color.NRGBA) float64 {
	dr := float64(int(a.R)-int(b.R)) / 255
	dg := float64(int(a.G)-int(b.G)) / 255
	db := float64(int(a.B)-int(b.B)) / 255
	return gomath.Sqrt(dr*dr + dg*dg + db*db)
}

// DistinctColor returns the candidate colour farthest from every colour in
// used. Candidates walk the hue circle by the golden ratio.
func DistinctColor(used []color.NRGBA) color.NRGBA {
	if len(used) == 0 {
		return HSV(210, 0.60, 0.88)
	}
	sats := [...]float64{0.65, 0.75, 0.85}
	vals := [...]float64{0.88, 0.8, 0.95}
	best := HSV(45, 0.7, 0.9)
	bestScore := -1.0
	for i := 0; i < 360; i++ {
		hue := gomath.Mod(float64(i)*goldenRatioConjugate*360, 360)
		for _, s := range sats {
			for _, v := range vals {
				cand := HSV(hue, s, v)
				d := gomath.Inf(1)
				for _, u := range used {
					d = min(d, colorDistance(cand, u))
				}
				if d > bestScore {
					bestScore, best = d, cand
				}
			}
		}
	}
	return best
}

// ReadColor returns the display_color of entry.
func ReadColor(entry jsonutil.Object) (color.NRGBA, bool) {
	v, ok := entry["display_color"]
	if !ok {
		return color.NRGBA{}, false
	}
	return ColorFromJSON(v)
}

// EnsureColor keeps entry's colour when no other entry already uses it and
// otherwise assigns a distinct one. used is extended either way. The bool
// reports whether entry changed.
func EnsureColor(entry jsonutil.Object, used *[]color.NRGBA) (color.NRGBA, bool) {
	if c, ok := ReadColor(entry); ok {
		taken := false
		for _, u := range *used {
			if u.R == c.R && u.G == c.G && u.B == c.B {
				taken = true
				break
			}
		}
		if !taken {
			*used = append(*used, c)
			return c, false
		}
	}
	c := DistinctColor(*used)
	entry["display_color"] = ColorToJSON(c)
	*used = append(*used, c)
	return c, true
}

// CollectColors gathers the display colours of every entry in section.
func CollectColors(section jsonutil.Object) []color.NRGBA {
	var out []color.NRGBA
	for _, k := range sortedKeys(section) {
		if obj, ok := section[k].(map[string]any); ok {
			if c, ok := ReadColor(obj); ok {
				out = append(out, c)
			}
		}
	}
	return out
}
