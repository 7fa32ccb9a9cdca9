// Package sdlrender implements render.Renderer on an SDL window with an
// accelerated 2D renderer.
package sdlrender

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	"golang.org/x/image/draw"

	"github.com/Faultbox/vibble/internal/render"
)

// Renderer implements render.Renderer on top of an SDL accelerated renderer.
type Renderer struct {
	r *sdl.Renderer
}

type sdlTexture struct {
	t    *sdl.Texture
	w, h int
}

func (t *sdlTexture) Size() (int, int) { return t.w, t.h }

func (t *sdlTexture) Destroy() {
	if t.t != nil {
		_ = t.t.Destroy()
		t.t = nil
	}
}

// CreateTexture uploads img as a blendable RGBA texture.
func (s *Renderer) CreateTexture(img image.Image) (render.Texture, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	rgba, ok := img.(*image.NRGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	surface, err := sdl.CreateRGBSurfaceWithFormatFrom(
		unsafe.Pointer(&rgba.Pix[0]),
		int32(b.Dx()), int32(b.Dy()), 32, int32(rgba.Stride),
		sdl.PIXELFORMAT_ABGR8888,
	)
	if err != nil {
		return nil, fmt.Errorf("creating surface: %w", err)
	}
	defer surface.Free()

	tex, err := s.r.CreateTextureFromSurface(surface)
	if err != nil {
		return nil, fmt.Errorf("creating texture: %w", err)
	}
	_ = tex.SetBlendMode(sdl.BLENDMODE_BLEND)
	return &sdlTexture{t: tex, w: b.Dx(), h: b.Dy()}, nil
}

// Copy draws tex into dst.
func (s *Renderer) Copy(tex render.Texture, dst image.Rectangle, alpha uint8) error {
	st, ok := tex.(*sdlTexture)
	if !ok || st.t == nil {
		return fmt.Errorf("texture not owned by this renderer")
	}
	if err := st.t.SetAlphaMod(alpha); err != nil {
		return err
	}
	rect := sdl.Rect{X: int32(dst.Min.X), Y: int32(dst.Min.Y), W: int32(dst.Dx()), H: int32(dst.Dy())}
	return s.r.Copy(st.t, nil, &rect)
}

// Clear fills the frame with black.
func (s *Renderer) Clear() error {
	if err := s.r.SetDrawColor(0, 0, 0, 255); err != nil {
		return err
	}
	return s.r.Clear()
}

// Present flips the back buffer.
func (s *Renderer) Present() { s.r.Present() }

// OutputSize returns the drawable size in pixels.
func (s *Renderer) OutputSize() (int, int) {
	w, h, err := s.r.GetOutputSize()
	if err != nil {
		return 0, 0
	}
	return int(w), int(h)
}

func (s *Renderer) destroy() {
	if s.r != nil {
		_ = s.r.Destroy()
		s.r = nil
	}
}

var _ render.Renderer = (*Renderer)(nil)
