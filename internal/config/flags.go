package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagRebuild    = flag.Bool("r", false, "Queue a full asset and light rebuild before starting")
	flagMap        = flag.String("map", "", "Map id to load")
	flagSeed       = flag.Uint64("seed", 0, "Map generation seed (0 keeps the configured seed)")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagHeadless   = flag.Bool("headless", false, "Build the world without opening a window")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagRebuild {
		cfg.Rebuild.RebuildOnStart = true
	}
	if *flagMap != "" {
		cfg.World.MapID = *flagMap
	}
	if *flagSeed != 0 {
		cfg.World.Seed = *flagSeed
	}
	if *flagWindowed {
		cfg.Window.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Window.Fullscreen = true
	}
	if *flagHeadless {
		cfg.Window.Headless = true
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
}
