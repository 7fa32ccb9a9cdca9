// Package config handles engine configuration loading and management.
package config

// Config holds all engine settings.
type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Audio   AudioConfig   `yaml:"audio"`
	Paths   PathsConfig   `yaml:"paths"`
	Rebuild RebuildConfig `yaml:"rebuild"`
	World   WorldConfig   `yaml:"world"`
	Camera  CameraConfig  `yaml:"camera"`
	Logging LoggingConfig `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	FPSLimit   int    `yaml:"fps_limit"`
	Headless   bool   `yaml:"headless"` // Build the world without opening a window
}

// AudioConfig holds audio settings.
type AudioConfig struct {
	MasterVolume float64 `yaml:"master_volume"`
	MusicVolume  float64 `yaml:"music_volume"`
	Muted        bool    `yaml:"muted"`
}

// PathsConfig holds content locations, relative to the working directory.
type PathsConfig struct {
	Manifest  string `yaml:"manifest"`
	SrcRoot   string `yaml:"src_root"`
	CacheRoot string `yaml:"cache_root"`
	ToolsDir  string `yaml:"tools_dir"`
}

// RebuildConfig controls the external rebuild tools.
type RebuildConfig struct {
	Python         string `yaml:"python"` // Interpreter command line, e.g. "python3" or "uv run python"
	RebuildOnStart bool   `yaml:"rebuild_on_start"`
}

// WorldConfig holds map generation settings.
type WorldConfig struct {
	MapID             string  `yaml:"map_id"`
	Seed              uint64  `yaml:"seed"`
	LockThreshold     float64 `yaml:"lock_threshold"`
	RemoveThreshold   float64 `yaml:"remove_threshold"`
	TrailAttempts     int     `yaml:"trail_attempts"`
	IsolatedPassLimit int     `yaml:"isolated_pass_limit"`
}

// CameraConfig holds warped screen grid settings.
type CameraConfig struct {
	ZoomLow           float64 `yaml:"zoom_low"`
	ZoomHigh          float64 `yaml:"zoom_high"`
	BaseHeightPx      float64 `yaml:"base_height_px"`
	ExtraCullMargin   float64 `yaml:"extra_cull_margin"`
	HorizonFadeBandPx float64 `yaml:"horizon_fade_band_px"`
	Smoothing         string  `yaml:"smoothing"` // none, lerp or spring
	SmoothingTau      float64 `yaml:"smoothing_tau"`
	SpringFrequency   float64 `yaml:"spring_frequency"`
	SnapThreshold     float64 `yaml:"snap_threshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "vibble",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Audio: AudioConfig{
			MasterVolume: 0.8,
			MusicVolume:  0.7,
		},
		Paths: PathsConfig{
			Manifest:  "manifest.json",
			SrcRoot:   "SRC",
			CacheRoot: "cache",
			ToolsDir:  "tools",
		},
		Rebuild: RebuildConfig{
			Python: "python",
		},
		World: WorldConfig{
			MapID:             "",
			Seed:              0,
			LockThreshold:     150,
			RemoveThreshold:   800,
			TrailAttempts:     1000,
			IsolatedPassLimit: 200,
		},
		Camera: CameraConfig{
			ZoomLow:           0.75,
			ZoomHigh:          3.0,
			BaseHeightPx:      1000,
			ExtraCullMargin:   300,
			HorizonFadeBandPx: 150,
			Smoothing:         "lerp",
			SmoothingTau:      0.08,
			SpringFrequency:   10,
			SnapThreshold:     0.5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
