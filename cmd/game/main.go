// Package main is the entry point for vibble: it loads the manifest and
// asset library, builds the configured map and runs the game loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/audio/music"
	"github.com/Faultbox/vibble/internal/camera"
	"github.com/Faultbox/vibble/internal/config"
	"github.com/Faultbox/vibble/internal/dialog"
	"github.com/Faultbox/vibble/internal/game"
	"github.com/Faultbox/vibble/internal/input/sdlinput"
	"github.com/Faultbox/vibble/internal/loader"
	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/manifest"
	"github.com/Faultbox/vibble/internal/rebuild"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/internal/render/sdlrender"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== vibble ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	var prompter dialog.Prompter = dialog.Native{}
	if cfg.Window.Headless {
		prompter = dialog.Console{W: os.Stderr}
	}
	if err := run(cfg); err != nil {
		dialog.Fatal(prompter, "vibble failed", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("game closed normally")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := rebuild.NewQueue(rebuild.NewPythonTool(cfg.Rebuild.Python, cfg.Paths.ToolsDir), cfg.Paths.ToolsDir, cfg.Paths.Manifest)
	if cfg.Rebuild.RebuildOnStart {
		logger.Info("queuing full asset and light rebuild")
		if !queue.RequestFullAssetRebuild(ctx) {
			logger.Warn("failed to flag assets for rebuild")
		}
		if !queue.RequestFullLightRebuild(ctx) {
			logger.Warn("failed to flag lights for rebuild")
		}
	}
	if queue.HasPendingAssetWork() && !queue.RunAssetTool(ctx) {
		logger.Warn("asset tool failed, continuing with cached frames")
	}
	if queue.HasPendingLightWork() && !queue.RunLightTool(ctx) {
		logger.Warn("light tool failed, continuing with cached lights")
	}

	store := manifest.New(cfg.Paths.Manifest, cfg.Paths.SrcRoot)
	if err := store.Load(); err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	lib := asset.NewLibrary(&asset.Env{
		CacheRoot: cfg.Paths.CacheRoot,
		Rebuild:   queue,
		Seed:      int64(cfg.World.Seed),
	})
	if err := lib.LoadAllFromSRC(ctx, store); err != nil {
		return fmt.Errorf("load asset library: %w", err)
	}

	var (
		r   render.Renderer
		win *sdlrender.Window
	)
	if cfg.Window.Headless {
		r = render.NewHeadless(cfg.Window.Width, cfg.Window.Height)
	} else {
		var err error
		win, err = sdlrender.NewWindow(sdlrender.WindowConfig{
			Title:      cfg.Window.Title,
			Width:      cfg.Window.Width,
			Height:     cfg.Window.Height,
			Fullscreen: cfg.Window.Fullscreen,
			VSync:      cfg.Window.VSync,
		})
		if err != nil {
			return fmt.Errorf("create window: %w", err)
		}
		defer win.Close()
		r = win.Renderer()
	}

	sound := music.New(cfg.Audio)
	defer sound.Close()

	w, err := loader.Load(ctx, loader.Options{
		MapID:    cfg.World.MapID,
		Store:    store,
		Library:  lib,
		Audio:    sound,
		Renderer: r,
		World:    cfg.World,
		Status: func(msg string) {
			if win != nil {
				win.SetTitle(cfg.Window.Title + " - " + msg)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	if win != nil {
		win.SetTitle(cfg.Window.Title)
	}
	logger.Info("world ready",
		zap.String("map", w.MapID),
		zap.Int("assets", len(w.Assets)),
		zap.Int("visible", len(w.Visible())),
		zap.Int("locked", w.Locked),
		zap.Int("removed", w.Removed),
	)
	if cfg.Window.Headless {
		return nil
	}

	settings := camera.SettingsFromConfig(cfg.Camera)
	if cs, ok := jsonutil.GetObject(w.Map, "camera_settings"); ok {
		settings.Apply(cs)
	}
	width, height := r.OutputSize()
	spawn := w.Graph.Spawn()
	cam := camera.NewScreenGrid(width, height, nil, settings)
	if spawn != nil {
		cam = camera.NewScreenGrid(width, height, spawn.Area, settings)
		cam.SetScale(cam.DefaultZoomForRoom(spawn))
	}

	g, err := game.New(game.Options{
		Renderer: r,
		Input:    sdlinput.New(),
		World:    w,
		Camera:   cam,
		FPS:      cfg.Window.FPSLimit,
	})
	if err != nil {
		return err
	}
	defer g.Close()
	return g.Run(ctx)
}
