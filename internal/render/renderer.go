// Package render defines the renderer capability used by texture-loading
// code and provides a headless implementation. The SDL implementation lives
// in render/sdlrender so that code taking a Renderer builds without cgo.
//
// A Renderer is single-threaded: only the main loop may create, draw or
// destroy textures. Code running on worker goroutines never receives one.
package render

import "image"

// Texture is a GPU-resident image owned by a Renderer.
type Texture interface {
	Size() (w, h int)
	Destroy()
}

// Renderer creates textures from decoded images and blits them.
type Renderer interface {
	CreateTexture(img image.Image) (Texture, error)
	// Copy draws tex into dst with the given alpha (0..255).
	Copy(tex Texture, dst image.Rectangle, alpha uint8) error
	Clear() error
	Present()
	OutputSize() (w, h int)
}
