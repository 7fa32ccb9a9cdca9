package cache

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

func solid(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestMetadataVersionGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "metadata.json")
	if err := SaveMetadata(path, jsonutil.Object{"version": 2, "frames": 4}); err != nil {
		t.Fatalf("SaveMetadata() error = %v", err)
	}

	meta, err := LoadMetadata(path, 2)
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	if got := jsonutil.Int(meta, "frames", 0); got != 4 {
		t.Errorf("expected frames 4, got %d", got)
	}
	if _, err := LoadMetadata(path, 3); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for version mismatch, got %v", err)
	}
	if _, err := LoadMetadata(filepath.Join(t.TempDir(), "none.json"), 2); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for missing file, got %v", err)
	}
}

func TestLoadSequenceAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		if err := SaveImage(FramePath(dir, i), solid(2, 2, color.NRGBA{R: 255, A: 255})); err != nil {
			t.Fatal(err)
		}
	}
	frames, err := LoadSequence(dir, 3)
	if err != nil {
		t.Fatalf("LoadSequence() error = %v", err)
	}
	if len(frames) != 3 {
		t.Errorf("expected 3 frames, got %d", len(frames))
	}
	if _, err := LoadSequence(dir, 4); err == nil {
		t.Error("expected error when a frame is missing")
	}
	if n := CountFrames(dir); n != 3 {
		t.Errorf("expected CountFrames 3, got %d", n)
	}
}

func TestImageCacheStats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.png")
	if err := SaveImage(path, solid(1, 1, color.NRGBA{A: 255})); err != nil {
		t.Fatal(err)
	}
	c := NewImageCache()
	if _, err := c.Load(path); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Load(path); err != nil {
		t.Fatal(err)
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit 1 miss, got %d/%d", hits, misses)
	}
	c.Invalidate()
	if _, ok := c.Get(path); ok {
		t.Error("expected entry to be gone after Invalidate")
	}
}

func TestLightCacheValidity(t *testing.T) {
	root := t.TempDir()
	lc := NewLightCache(root, "lamp")
	sigs := []string{"64|50|0|255|0|100", "32|10|0|128|0|100"}
	imgs := []image.Image{solid(4, 4, color.NRGBA{R: 255, A: 255}), solid(4, 4, color.NRGBA{G: 255, A: 255})}
	if err := lc.Store(sigs, imgs); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := lc.Load(sigs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 images, got %d", len(got))
	}

	swapped := []string{sigs[1], sigs[0]}
	if _, err := lc.Load(swapped); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected order-sensitive mismatch, got %v", err)
	}

	if err := os.Remove(lc.LightPath(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := lc.Load(sigs); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected missing texture to invalidate, got %v", err)
	}
}

func TestToTexture(t *testing.T) {
	if _, err := ToTexture(nil, solid(1, 1, color.NRGBA{})); !errors.Is(err, ErrNoRenderer) {
		t.Errorf("expected ErrNoRenderer, got %v", err)
	}
	tex, err := ToTexture(render.NewHeadless(10, 10), solid(3, 2, color.NRGBA{A: 255}))
	if err != nil {
		t.Fatalf("ToTexture() error = %v", err)
	}
	if w, h := tex.Size(); w != 3 || h != 2 {
		t.Errorf("expected 3x2, got %dx%d", w, h)
	}
}

func TestScaleFolder(t *testing.T) {
	if got := ScaleFolder(75); got != "scale_75" {
		t.Errorf("expected scale_75, got %s", got)
	}
	if got := ScaleFolder(10); got != "scale_10" {
		t.Errorf("expected scale_10, got %s", got)
	}
	if got := ScaleFolder(100); got != "scale_100" {
		t.Errorf("expected scale_100, got %s", got)
	}
}
