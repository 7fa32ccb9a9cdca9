package render

import (
	"fmt"
	"image"
	"sync/atomic"
)

// HeadlessRenderer keeps textures in memory and draws nothing. It backs the
// -headless mode and tests.
type HeadlessRenderer struct {
	width, height int

	created   atomic.Int64
	destroyed atomic.Int64
	draws     atomic.Int64
}

// NewHeadless creates a headless renderer with the given output size.
func NewHeadless(width, height int) *HeadlessRenderer {
	return &HeadlessRenderer{width: width, height: height}
}

// MemTexture is the texture type returned by HeadlessRenderer.
type MemTexture struct {
	Image image.Image
	owner *HeadlessRenderer
	dead  bool
}

func (t *MemTexture) Size() (int, int) {
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

func (t *MemTexture) Destroy() {
	if t.dead {
		return
	}
	t.dead = true
	t.owner.destroyed.Add(1)
}

// CreateTexture wraps img.
func (h *HeadlessRenderer) CreateTexture(img image.Image) (Texture, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}
	h.created.Add(1)
	return &MemTexture{Image: img, owner: h}, nil
}

// Copy counts the draw.
func (h *HeadlessRenderer) Copy(tex Texture, _ image.Rectangle, _ uint8) error {
	if _, ok := tex.(*MemTexture); !ok {
		return fmt.Errorf("texture not owned by this renderer")
	}
	h.draws.Add(1)
	return nil
}

func (h *HeadlessRenderer) Clear() error { return nil }

func (h *HeadlessRenderer) Present() {}

func (h *HeadlessRenderer) OutputSize() (int, int) { return h.width, h.height }

// Stats returns texture creation, destruction and draw counts.
func (h *HeadlessRenderer) Stats() (created, destroyed, draws int64) {
	return h.created.Load(), h.destroyed.Load(), h.draws.Load()
}
