package animation

import (
	"errors"
	"fmt"
	"image"
	gomath "math"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/Faultbox/vibble/internal/cache"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/render"
)

var (
	// ErrNoFrames is returned when no variant folder holds a first frame.
	ErrNoFrames = errors.New("no cached frames")
	// ErrMissingMask is returned when a shaded asset has no mask sequence.
	ErrMissingMask = errors.New("shadow mask required")
)

// LoadOptions locate an animation in the texture cache.
type LoadOptions struct {
	CacheRoot string
	Asset     string
	// Shaded requires a mask sequence for every frame.
	Shaded bool
	// Nearest selects nearest-neighbour filtering for synthesized variants.
	Nearest bool
}

type layers struct {
	normal, fg, bg, mask []image.Image
}

// LoadFrames reads the baked variants of a from the cache. The frame count
// comes from the first variant whose normal folder holds 0.png. Variants
// that are missing or incomplete on disk are scaled from that one.
func LoadFrames(a *Animation, opts LoadOptions) error {
	steps := a.Steps
	if len(steps) == 0 {
		steps = DefaultSteps
		a.Steps = append([]float64(nil), steps...)
	}
	dir := func(i int, layer string) string {
		return cache.VariantDir(opts.CacheRoot, opts.Asset, a.ID, Percent(steps[i]), layer)
	}

	base, count := -1, 0
	for i := range steps {
		folder := dir(i, cache.LayerNormal)
		if _, err := os.Stat(cache.FramePath(folder, 0)); err != nil {
			continue
		}
		if n := cache.CountFrames(folder); n > 0 {
			base, count = i, n
			break
		}
	}
	if base < 0 {
		return fmt.Errorf("%s/%s: %w", opts.Asset, a.ID, ErrNoFrames)
	}

	baked := make([]*layers, len(steps))
	for i := range steps {
		l, err := loadLayers(dir, i, count, opts.Shaded)
		if err != nil {
			if i == base {
				return fmt.Errorf("%s/%s: %w", opts.Asset, a.ID, err)
			}
			continue
		}
		baked[i] = l
	}

	for i := range steps {
		if baked[i] != nil {
			continue
		}
		factor := steps[i] / steps[base]
		baked[i] = scaleLayers(baked[base], factor, opts.Nearest)
		logger.Debug("synthesized variant",
			zap.String("asset", opts.Asset),
			zap.String("animation", a.ID),
			zap.Int("percent", Percent(steps[i])))
	}

	frames := make([]*Frame, count)
	for f := 0; f < count; f++ {
		fr := &Frame{Index: f, Variants: make([]*Variant, len(steps))}
		if len(a.Movement) > 0 && f < len(a.Movement[0]) {
			fr.Move = a.Movement[0][f]
		}
		for i, step := range steps {
			l := baked[i]
			fr.Variants[i] = &Variant{
				Scale:      step,
				Normal:     l.normal[f],
				Foreground: at(l.fg, f),
				Background: at(l.bg, f),
				Mask:       at(l.mask, f),
			}
		}
		frames[f] = fr
	}

	a.Frames = frames
	a.NumberOfFrames = count
	b := frames[0].Variants[0].Normal.Bounds()
	a.Width, a.Height = b.Dx(), b.Dy()
	return nil
}

func loadLayers(dir func(int, string) string, i, count int, shaded bool) (*layers, error) {
	normal, err := cache.LoadSequence(dir(i, cache.LayerNormal), count)
	if err != nil {
		return nil, err
	}
	l := &layers{normal: normal}
	if shaded {
		mask, err := cache.LoadSequence(dir(i, cache.LayerMask), count)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingMask, err)
		}
		l.mask = mask
	}
	// Foreground and background are optional.
	if fg, err := cache.LoadSequence(dir(i, cache.LayerForeground), count); err == nil {
		l.fg = fg
	}
	if bg, err := cache.LoadSequence(dir(i, cache.LayerBackground), count); err == nil {
		l.bg = bg
	}
	return l, nil
}

func scaleLayers(src *layers, factor float64, nearest bool) *layers {
	return &layers{
		normal: scaleAll(src.normal, factor, nearest),
		fg:     scaleAll(src.fg, factor, nearest),
		bg:     scaleAll(src.bg, factor, nearest),
		mask:   scaleAll(src.mask, factor, nearest),
	}
}

func scaleAll(in []image.Image, factor float64, nearest bool) []image.Image {
	if in == nil {
		return nil
	}
	out := make([]image.Image, len(in))
	for i, img := range in {
		out[i] = ScaleImage(img, factor, nearest)
	}
	return out
}

// ScaleImage resizes img by factor. Each side keeps at least one pixel.
func ScaleImage(img image.Image, factor float64, nearest bool) image.Image {
	b := img.Bounds()
	w := max(1, int(gomath.Round(float64(b.Dx())*factor)))
	h := max(1, int(gomath.Round(float64(b.Dy())*factor)))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	var ip draw.Interpolator = draw.CatmullRom
	if nearest {
		ip = draw.NearestNeighbor
	}
	ip.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FlipImage mirrors img horizontally, vertically or both.
func FlipImage(img image.Image, horizontal, vertical bool) image.Image {
	if img == nil || (!horizontal && !vertical) {
		return img
	}
	b := img.Bounds()
	m := f64.Aff3{1, 0, float64(-b.Min.X), 0, 1, float64(-b.Min.Y)}
	if horizontal {
		m[0], m[2] = -1, float64(b.Dx()+b.Min.X)
	}
	if vertical {
		m[4], m[5] = -1, float64(b.Dy()+b.Min.Y)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.NearestNeighbor.Transform(dst, m, img, b, draw.Src, nil)
	return dst
}

// Upload creates textures for every variant of a that does not have one yet.
func Upload(a *Animation, r render.Renderer) error {
	if r == nil {
		return cache.ErrNoRenderer
	}
	var errs error
	upload := func(img image.Image, dst *render.Texture) {
		if img == nil || *dst != nil {
			return
		}
		t, err := cache.ToTexture(r, img)
		if err != nil {
			errs = multierr.Append(errs, err)
			return
		}
		*dst = t
	}
	for _, f := range a.Frames {
		for _, v := range f.Variants {
			upload(v.Normal, &v.Texture)
			upload(v.Foreground, &v.ForegroundTexture)
			upload(v.Background, &v.BackgroundTexture)
			upload(v.Mask, &v.MaskTexture)
		}
	}
	return errs
}

func at(s []image.Image, i int) image.Image {
	if i < len(s) {
		return s[i]
	}
	return nil
}
