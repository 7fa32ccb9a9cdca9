package asset

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/cache"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

// ErrLightCache is returned when light maps stay unavailable after a rebuild.
var ErrLightCache = errors.New("asset: light cache unavailable")

// LightSource is one light emitted by an asset.
type LightSource struct {
	Intensity         int
	Radius            int
	FallOff           int
	Flare             int
	FlickerSpeed      int
	FlickerSmoothness int
	OffsetX, OffsetY  int
	Color             color.NRGBA

	InFront          bool
	Behind           bool
	RenderToDarkMask bool
	RenderToAlpha    bool

	Texture render.Texture
	Width   int
	Height  int
}

// Signature identifies the light map produced for these parameters.
func (l *LightSource) Signature() string {
	return fmt.Sprintf("%d|%d|%d|%d|%d|%d",
		l.Radius, l.FallOff, l.Flare, l.Intensity, l.FlickerSpeed, l.FlickerSmoothness)
}

func (l *LightSource) release() {
	if l.Texture != nil {
		l.Texture.Destroy()
		l.Texture = nil
	}
	l.Width, l.Height = 0, 0
}

func parseLight(obj jsonutil.Object) (*LightSource, bool) {
	if !jsonutil.Bool(obj, "has_light_source", false) {
		return nil, false
	}
	l := &LightSource{
		Intensity:         math.ClampInt(jsonutil.Int(obj, "light_intensity", 255), 1, 255),
		Radius:            max(1, jsonutil.Int(obj, "radius", 64)),
		FallOff:           max(0, jsonutil.Int(obj, "fall_off", 50)),
		Flare:             math.ClampInt(jsonutil.Int(obj, "flare", 0), 0, 100),
		FlickerSpeed:      math.ClampInt(jsonutil.Int(obj, "flicker_speed", 0), 0, 100),
		FlickerSmoothness: math.ClampInt(jsonutil.Int(obj, "flicker_smoothness", 100), 0, 100),
		OffsetX:           jsonutil.Int(obj, "offset_x", 0),
		OffsetY:           jsonutil.Int(obj, "offset_y", 0),
		Color:             color.NRGBA{255, 255, 255, 255},
		InFront:           jsonutil.Bool(obj, "in_front", false),
		Behind:            jsonutil.Bool(obj, "behind", false),
		RenderToDarkMask:  jsonutil.Bool(obj, "render_to_dark_mask", false),
		RenderToAlpha:     jsonutil.Bool(obj, "render_front_and_back_to_asset_alpha_mask", false),
	}
	if c, ok := jsonutil.GetArray(obj, "light_color"); ok && len(c) >= 3 {
		ch := func(v any) uint8 {
			n, _ := jsonutil.ToInt(v)
			return uint8(math.ClampInt(n, 0, 255))
		}
		l.Color = color.NRGBA{ch(c[0]), ch(c[1]), ch(c[2]), 255}
	}
	return l, true
}

// ParseLights reads lighting_info, which may be a single light or a list.
func ParseLights(data jsonutil.Object) []*LightSource {
	var out []*LightSource
	switch v := data["lighting_info"].(type) {
	case []any:
		for _, e := range v {
			if obj, ok := e.(map[string]any); ok {
				if l, ok := parseLight(obj); ok {
					out = append(out, l)
				}
			}
		}
	case map[string]any:
		if l, ok := parseLight(v); ok {
			out = append(out, l)
		}
	}
	return out
}

// SetLightProperties merges props into entry index of lighting_info. The
// parsed lights are refreshed by the next GenerateLights.
func (i *Info) SetLightProperties(index int, props jsonutil.Object) bool {
	var target map[string]any
	switch v := i.json["lighting_info"].(type) {
	case []any:
		if index >= 0 && index < len(v) {
			target, _ = v[index].(map[string]any)
		}
	case map[string]any:
		if index == 0 {
			target = v
		}
	}
	if target == nil {
		return false
	}
	for k, v := range props {
		target[k] = v
	}
	return true
}

// LightSignatures returns the signature of every light in order.
func (i *Info) LightSignatures() []string {
	out := make([]string, len(i.Lights))
	for k, l := range i.Lights {
		out[k] = l.Signature()
	}
	return out
}

// ClearLights destroys light textures.
func (i *Info) ClearLights() {
	for _, l := range i.Lights {
		l.release()
	}
}

// GenerateLights re-reads lighting_info and loads the light maps from the
// cache. A stale or missing cache triggers one rebuild through the light
// tool followed by a single retry; when that fails too the lights stay
// without textures.
func (i *Info) GenerateLights(ctx context.Context, r render.Renderer) error {
	i.ClearLights()
	i.Lights = ParseLights(i.json)
	i.IsLightSource = len(i.Lights) > 0
	if r == nil || len(i.Lights) == 0 {
		return nil
	}

	lc := cache.NewLightCache(i.env.CacheRoot, i.Name)
	sigs := i.LightSignatures()
	err := i.uploadLights(lc, sigs, r)
	if err == nil {
		return nil
	}
	logger.Debug("light cache rejected", zap.String("asset", i.Name), zap.Error(err))

	if q := i.env.Rebuild; q != nil {
		q.RequestLight(ctx, i.Name)
		if !q.RunLightTool(ctx) {
			logger.Warn("light tool failed", zap.String("asset", i.Name))
		}
		err = i.uploadLights(lc, sigs, r)
	}
	if err != nil {
		i.ClearLights()
		logger.Warn("lights disabled for asset", zap.String("asset", i.Name), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrLightCache, i.Name, err)
	}
	return nil
}

// EnsureLightTextures generates lights only when some light has no texture.
func (i *Info) EnsureLightTextures(ctx context.Context, r render.Renderer) error {
	for _, l := range i.Lights {
		if l.Texture == nil {
			return i.GenerateLights(ctx, r)
		}
	}
	return nil
}

func (i *Info) uploadLights(lc *cache.LightCache, sigs []string, r render.Renderer) error {
	images, err := lc.Load(sigs)
	if err != nil {
		return err
	}
	var errs error
	for k, img := range images {
		tex, err := cache.ToTexture(r, img)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		b := img.Bounds()
		i.Lights[k].Texture = tex
		i.Lights[k].Width, i.Lights[k].Height = b.Dx(), b.Dy()
	}
	if errs != nil {
		i.ClearLights()
	}
	return errs
}
