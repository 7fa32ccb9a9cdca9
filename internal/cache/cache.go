// Package cache reads the on-disk texture cache written by the rebuild
// tools and keeps decoded images in memory.
//
// Layout under the cache root:
//
//	<asset>/animations/<anim>/metadata.json
//	<asset>/animations/<anim>/scale_<percent>/{normal|foreground|background|mask}/<i>.png
//	<asset>/lights/metadata.json
//	<asset>/lights/light_<i>.png
package cache

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Frame layers stored per variant.
const (
	LayerNormal     = "normal"
	LayerForeground = "foreground"
	LayerBackground = "background"
	LayerMask       = "mask"
)

var (
	// ErrInvalid is returned when cached metadata is missing or stale.
	ErrInvalid = errors.New("cache entry invalid")
	// ErrNoRenderer is returned when a texture is requested without a renderer.
	ErrNoRenderer = errors.New("renderer unavailable")
)

// AnimationDir returns the cache folder of one animation.
func AnimationDir(root, asset, anim string) string {
	return filepath.Join(root, asset, "animations", anim)
}

// ScaleFolder returns the variant folder name for a percentage, e.g. scale_75.
func ScaleFolder(percent int) string {
	return "scale_" + strconv.Itoa(percent)
}

// VariantDir returns the folder holding one layer of one variant.
func VariantDir(root, asset, anim string, percent int, layer string) string {
	return filepath.Join(AnimationDir(root, asset, anim), ScaleFolder(percent), layer)
}

// FramePath returns the path of frame i inside folder.
func FramePath(folder string, i int) string {
	return filepath.Join(folder, strconv.Itoa(i)+".png")
}

// LoadMetadata reads a metadata.json file. The entry is rejected with
// ErrInvalid when it is missing, unparsable or its version differs from want.
func LoadMetadata(path string, want int) (jsonutil.Object, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	meta, err := jsonutil.Decode(raw)
	if err != nil {
		logger.Warn("failed to parse cache metadata", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	got, ok := jsonutil.ToInt(meta["version"])
	if !ok || got != want {
		return nil, fmt.Errorf("%w: version %v, want %d", ErrInvalid, meta["version"], want)
	}
	return meta, nil
}

// SaveMetadata writes meta as canonical JSON, creating parent folders.
func SaveMetadata(path string, meta jsonutil.Object) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metadata dir: %w", err)
	}
	raw, err := jsonutil.Encode(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadImage decodes one image file.
func LoadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("empty image path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// SaveImage encodes img as PNG at path.
func SaveImage(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// LoadSequence loads 0.png..n-1.png from folder. Any missing frame fails the
// whole sequence.
func LoadSequence(folder string, n int) ([]image.Image, error) {
	frames := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		img, err := LoadImage(FramePath(folder, i))
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}
	logger.Debug("loaded cached sequence", zap.String("folder", folder), zap.Int("frames", n))
	return frames, nil
}

// CountFrames returns how many consecutive <i>.png files exist in folder.
func CountFrames(folder string) int {
	n := 0
	for {
		if _, err := os.Stat(FramePath(folder, n)); err != nil {
			return n
		}
		n++
	}
}

// ToTexture uploads img through r.
func ToTexture(r render.Renderer, img image.Image) (render.Texture, error) {
	if r == nil {
		return nil, ErrNoRenderer
	}
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	return r.CreateTexture(img)
}
