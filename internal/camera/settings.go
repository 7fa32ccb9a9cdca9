package camera

import (
	gomath "math"

	"github.com/Faultbox/vibble/internal/animation"
	"github.com/Faultbox/vibble/internal/config"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Zoom limits shared by every camera.
const (
	MinZoom = 0.5
	MaxZoom = 20.0

	scaleEps = 1e-4

	defaultBaseHeight       = 720
	defaultMinVisibleRatio  = 0.015
	maxMinVisibleRatio      = 0.5
	defaultLerpRate         = 1 / 0.08
	defaultSpringFrequency  = 10
	defaultFOVDegrees       = 60
	defaultPitchDegrees     = 35
	defaultHeightFactor     = 1.0
	minPitchDegrees         = 5
	maxPitchDegrees         = 85
	defaultPerspectiveFloor = 0.25
)

// Settings drive a ScreenGrid. Clamp brings any value into range.
type Settings struct {
	ZoomLow  float64
	ZoomHigh float64

	BaseHeightPx          float64
	ExtraCullMargin       float64
	HorizonFadeBandPx     float64
	MinVisibleScreenRatio float64

	Smoothing             Params
	ScaleHysteresisMargin float64
	RenderQualityPercent  int

	RealismEnabled bool
	FOVDegrees     float64
	PitchDegrees   float64
	HeightFactor   float64
}

// DefaultSettings returns the built-in camera settings.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.Default().Camera)
}

// SettingsFromConfig converts the camera section of the config file.
func SettingsFromConfig(c config.CameraConfig) Settings {
	s := Settings{
		ZoomLow:               c.ZoomLow,
		ZoomHigh:              c.ZoomHigh,
		BaseHeightPx:          c.BaseHeightPx,
		ExtraCullMargin:       c.ExtraCullMargin,
		HorizonFadeBandPx:     c.HorizonFadeBandPx,
		MinVisibleScreenRatio: defaultMinVisibleRatio,
		Smoothing: Params{
			Method:          ParseMethod(c.Smoothing),
			LerpRate:        RateFromTau(c.SmoothingTau),
			SpringFrequency: c.SpringFrequency,
			SnapThreshold:   c.SnapThreshold,
		},
		ScaleHysteresisMargin: animation.DefaultHysteresisMargin,
		RenderQualityPercent:  100,
		FOVDegrees:            defaultFOVDegrees,
		PitchDegrees:          defaultPitchDegrees,
		HeightFactor:          defaultHeightFactor,
	}
	s.Clamp()
	return s
}

// Clamp enforces the valid ranges.
func (s *Settings) Clamp() {
	s.ZoomLow = clampFinite(s.ZoomLow, MinZoom, MaxZoom, 1)
	s.ZoomHigh = clampFinite(s.ZoomHigh, s.ZoomLow+scaleEps, MaxZoom, MaxZoom)

	if !finite(s.BaseHeightPx) || s.BaseHeightPx <= 0 {
		s.BaseHeightPx = defaultBaseHeight
	}
	s.ExtraCullMargin = gomath.Max(0, zeroIfNaN(s.ExtraCullMargin))
	s.HorizonFadeBandPx = gomath.Max(0, zeroIfNaN(s.HorizonFadeBandPx))
	s.MinVisibleScreenRatio = clampFinite(s.MinVisibleScreenRatio, 0, maxMinVisibleRatio, defaultMinVisibleRatio)

	if s.Smoothing.Method == MethodLerp && s.Smoothing.LerpRate <= 0 {
		s.Smoothing.LerpRate = defaultLerpRate
	}
	if s.Smoothing.Method == MethodSpring && s.Smoothing.SpringFrequency <= 0 {
		s.Smoothing.SpringFrequency = defaultSpringFrequency
	}
	s.Smoothing.MaxStep = gomath.Max(0, zeroIfNaN(s.Smoothing.MaxStep))
	s.Smoothing.SnapThreshold = gomath.Max(0, zeroIfNaN(s.Smoothing.SnapThreshold))

	if !finite(s.ScaleHysteresisMargin) || s.ScaleHysteresisMargin < 0 {
		s.ScaleHysteresisMargin = animation.DefaultHysteresisMargin
	}
	s.RenderQualityPercent = alignQuality(s.RenderQualityPercent)

	s.FOVDegrees = clampFinite(s.FOVDegrees, 10, 120, defaultFOVDegrees)
	s.PitchDegrees = clampFinite(s.PitchDegrees, minPitchDegrees, maxPitchDegrees, defaultPitchDegrees)
	s.HeightFactor = clampFinite(s.HeightFactor, 0.1, 10, defaultHeightFactor)
}

// Apply overrides settings from a map's camera_settings object and clamps
// the result.
func (s *Settings) Apply(obj jsonutil.Object) {
	if obj == nil {
		return
	}
	s.ZoomLow = jsonutil.Float(obj, "zoom_low", s.ZoomLow)
	s.ZoomHigh = jsonutil.Float(obj, "zoom_high", s.ZoomHigh)
	s.BaseHeightPx = jsonutil.Float(obj, "base_height_px", s.BaseHeightPx)
	s.ExtraCullMargin = jsonutil.Float(obj, "extra_cull_margin", s.ExtraCullMargin)
	s.HorizonFadeBandPx = jsonutil.Float(obj, "horizon_fade_band_px", s.HorizonFadeBandPx)
	s.MinVisibleScreenRatio = jsonutil.Float(obj, "min_visible_screen_ratio", s.MinVisibleScreenRatio)
	s.ScaleHysteresisMargin = jsonutil.Float(obj, "scale_variant_hysteresis_margin", s.ScaleHysteresisMargin)
	s.RenderQualityPercent = jsonutil.Int(obj, "render_quality_percent", s.RenderQualityPercent)
	s.RealismEnabled = jsonutil.Bool(obj, "realism_enabled", s.RealismEnabled)
	s.FOVDegrees = jsonutil.Float(obj, "fov_degrees", s.FOVDegrees)
	s.PitchDegrees = jsonutil.Float(obj, "pitch_degrees", s.PitchDegrees)
	s.HeightFactor = jsonutil.Float(obj, "height_factor", s.HeightFactor)

	if m, ok := obj["smoothing_method"].(string); ok {
		s.Smoothing.Method = ParseMethod(m)
	}
	if tau := jsonutil.Float(obj, "smoothing_tau", 0); tau > 0 {
		s.Smoothing.LerpRate = RateFromTau(tau)
	}
	s.Smoothing.SpringFrequency = jsonutil.Float(obj, "spring_frequency", s.Smoothing.SpringFrequency)
	s.Smoothing.MaxStep = jsonutil.Float(obj, "max_step", s.Smoothing.MaxStep)
	s.Smoothing.SnapThreshold = jsonutil.Float(obj, "snap_threshold", s.Smoothing.SnapThreshold)
	s.Clamp()
}

// JSON returns the settings in camera_settings form.
func (s Settings) JSON() jsonutil.Object {
	tau := 0.0
	if s.Smoothing.LerpRate > 0 {
		tau = 1 / s.Smoothing.LerpRate
	}
	return jsonutil.Object{
		"zoom_low":                        s.ZoomLow,
		"zoom_high":                       s.ZoomHigh,
		"base_height_px":                  s.BaseHeightPx,
		"extra_cull_margin":               s.ExtraCullMargin,
		"horizon_fade_band_px":            s.HorizonFadeBandPx,
		"min_visible_screen_ratio":        s.MinVisibleScreenRatio,
		"scale_variant_hysteresis_margin": s.ScaleHysteresisMargin,
		"render_quality_percent":          s.RenderQualityPercent,
		"realism_enabled":                 s.RealismEnabled,
		"fov_degrees":                     s.FOVDegrees,
		"pitch_degrees":                   s.PitchDegrees,
		"height_factor":                   s.HeightFactor,
		"smoothing_method":                s.Smoothing.Method.String(),
		"smoothing_tau":                   tau,
		"spring_frequency":                s.Smoothing.SpringFrequency,
		"max_step":                        s.Smoothing.MaxStep,
		"snap_threshold":                  s.Smoothing.SnapThreshold,
	}
}

// alignQuality snaps a percentage to the nearest baked variant.
func alignQuality(pct int) int {
	best, bestDiff := 100, gomath.MaxInt
	for _, step := range animation.DefaultSteps {
		p := animation.Percent(step)
		d := pct - p
		if d < 0 {
			d = -d
		}
		if d < bestDiff {
			best, bestDiff = p, d
		}
	}
	return best
}

func clampFinite(v, lo, hi, def float64) float64 {
	if !finite(v) {
		v = def
	}
	return clamp(v, lo, hi)
}

func zeroIfNaN(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}
