package sdlrender

import (
	"fmt"
	"runtime"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
)

func init() {
	// SDL renderer calls must be made from the main thread
	runtime.LockOSThread()
}

// WindowConfig holds window configuration.
type WindowConfig struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
	VSync      bool
}

// Window wraps an SDL window and its accelerated 2D renderer.
type Window struct {
	config    WindowConfig
	sdlWindow *sdl.Window
	renderer  *Renderer
}

// NewWindow initializes SDL video and creates a window with a renderer.
func NewWindow(cfg WindowConfig) (*Window, error) {
	w := &Window{config: cfg}

	logger.Info("initializing SDL2")
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("SDL_Init failed: %w", err)
	}

	flags := uint32(sdl.WINDOW_SHOWN | sdl.WINDOW_RESIZABLE)
	if cfg.Fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN_DESKTOP
	}

	var err error
	w.sdlWindow, err = sdl.CreateWindow(
		cfg.Title,
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		int32(cfg.Width),
		int32(cfg.Height),
		flags,
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("SDL_CreateWindow failed: %w", err)
	}

	rflags := uint32(sdl.RENDERER_ACCELERATED)
	if cfg.VSync {
		rflags |= sdl.RENDERER_PRESENTVSYNC
	}
	r, err := sdl.CreateRenderer(w.sdlWindow, -1, rflags)
	if err != nil {
		w.sdlWindow.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("SDL_CreateRenderer failed: %w", err)
	}
	w.renderer = &Renderer{r: r}

	logger.Info("window created",
		zap.String("title", cfg.Title),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Bool("fullscreen", cfg.Fullscreen),
		zap.Bool("vsync", cfg.VSync),
	)
	return w, nil
}

// Renderer returns the window's renderer.
func (w *Window) Renderer() *Renderer { return w.renderer }

// Close destroys the renderer and window and shuts SDL down.
func (w *Window) Close() {
	logger.Info("closing window")

	if w.renderer != nil {
		w.renderer.destroy()
	}
	if w.sdlWindow != nil {
		w.sdlWindow.Destroy()
	}
	sdl.Quit()
}

// Size returns the current window size.
func (w *Window) Size() (int, int) {
	width, height := w.sdlWindow.GetSize()
	return int(width), int(height)
}

// SetTitle sets the window title.
func (w *Window) SetTitle(title string) {
	w.sdlWindow.SetTitle(title)
}
