// Package animation parses animation payloads, loads their baked frames
// from the texture cache and plays them back.
package animation

import (
	"image"
	gomath "math"
	"strings"

	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// OnEnd is what happens when a non-looping animation finishes.
type OnEnd int

const (
	OnEndDefault OnEnd = iota
	OnEndKill
	OnEndLock
	OnEndReverse
	// OnEndAnimation switches to the animation named in Animation.OnEndName.
	OnEndAnimation
)

// ClassifyOnEnd maps the manifest on_end string to an OnEnd directive.
func ClassifyOnEnd(v string) OnEnd {
	switch strings.ToLower(v) {
	case "", "default":
		return OnEndDefault
	case "kill":
		return OnEndKill
	case "lock":
		return OnEndLock
	case "reverse":
		return OnEndReverse
	}
	return OnEndAnimation
}

// Move is the per-frame displacement of a movement path.
type Move struct {
	DX, DY  int
	ZResort bool
}

// Variant is one pre-scaled rendition of a frame.
type Variant struct {
	Scale      float64
	Normal     image.Image
	Foreground image.Image
	Background image.Image
	Mask       image.Image

	Texture           render.Texture
	ForegroundTexture render.Texture
	BackgroundTexture render.Texture
	MaskTexture       render.Texture
}

func (v *Variant) release() {
	for _, t := range []render.Texture{v.Texture, v.ForegroundTexture, v.BackgroundTexture, v.MaskTexture} {
		if t != nil {
			t.Destroy()
		}
	}
	v.Texture, v.ForegroundTexture, v.BackgroundTexture, v.MaskTexture = nil, nil, nil, nil
}

// Frame is a single animation frame with one entry per variant step.
type Frame struct {
	Index    int
	Move     Move
	Variants []*Variant
}

// Variant returns variant i, clamped into range.
func (f *Frame) Variant(i int) *Variant {
	if len(f.Variants) == 0 {
		return nil
	}
	return f.Variants[clampIndex(i, len(f.Variants))]
}

// Animation is a parsed animation payload plus its loaded frames.
type Animation struct {
	ID     string
	Source Source

	NumberOfFrames int
	Loop           bool
	Locked         bool
	Randomize      bool
	RndStart       bool

	FlippedSource          bool
	FlipVerticalSource     bool
	ReverseSource          bool
	FlipMovementHorizontal bool
	FlipMovementVertical   bool
	InheritSourceMovement  bool

	SpeedMultiplier float64
	OnEndName       string
	OnEnd           OnEnd

	CropFrames bool
	CropBounds image.Rectangle

	Children       []string
	ChildTimelines []jsonutil.Object

	// Movement holds the movement paths; path 0 is the primary one.
	Movement         [][]Move
	movementAuthored bool
	TotalDX, TotalDY int

	Steps  []float64
	Frames []*Frame

	// Width and Height are the canvas size of the 100% variant.
	Width, Height int
}

// Parse builds an Animation from its manifest payload. children, when not
// empty, overrides the per-animation children list.
func Parse(id string, payload jsonutil.Object, children []string) *Animation {
	a := &Animation{
		ID:              id,
		Loop:            jsonutil.Bool(payload, "loop", true),
		Locked:          jsonutil.Bool(payload, "locked", false),
		Randomize:       jsonutil.Bool(payload, "randomize", false),
		RndStart:        jsonutil.Bool(payload, "rnd_start", false),
		NumberOfFrames:  jsonutil.Int(payload, "number_of_frames", 0),
		SpeedMultiplier: SnapSpeed(jsonutil.Float(payload, "speed_multiplier", 1)),
		OnEndName:       jsonutil.String(payload, "on_end", "default"),
		CropFrames:      jsonutil.Bool(payload, "crop_frames", false),
		Steps:           append([]float64(nil), DefaultSteps...),
	}
	a.OnEnd = ClassifyOnEnd(a.OnEndName)

	if src, ok := jsonutil.GetObject(payload, "source"); ok {
		a.Source = ParseSource(src)
	} else {
		a.Source = Source{Kind: KindFolder, Path: id}
	}

	a.FlippedSource = jsonutil.Bool(payload, "flipped_source", false)
	a.ReverseSource = jsonutil.Bool(payload, "reverse_source", false)
	if a.Source.Kind == KindAnimation {
		a.FlipVerticalSource = jsonutil.Bool(payload, "flip_vertical_source", false)
		a.FlipMovementHorizontal = jsonutil.Bool(payload, "flip_movement_horizontal", false)
		a.FlipMovementVertical = jsonutil.Bool(payload, "flip_movement_vertical", false)
		if mods, ok := jsonutil.GetObject(payload, "derived_modifiers"); ok {
			a.ReverseSource = jsonutil.Bool(mods, "reverse", a.ReverseSource)
			a.FlippedSource = jsonutil.Bool(mods, "flipX", a.FlippedSource)
			a.FlipVerticalSource = jsonutil.Bool(mods, "flipY", a.FlipVerticalSource)
			a.FlipMovementHorizontal = jsonutil.Bool(mods, "flipMovementX", a.FlipMovementHorizontal)
			a.FlipMovementVertical = jsonutil.Bool(mods, "flipMovementY", a.FlipMovementVertical)
		}
		a.InheritSourceMovement = jsonutil.Bool(payload, "inherit_source_movement", true)
	}

	if cb, ok := jsonutil.GetObject(payload, "crop_bounds"); ok {
		x, y := jsonutil.Int(cb, "x", 0), jsonutil.Int(cb, "y", 0)
		a.CropBounds = image.Rect(x, y, x+jsonutil.Int(cb, "width", 0), y+jsonutil.Int(cb, "height", 0))
	}

	if len(children) > 0 {
		a.Children = dedupe(children)
	} else {
		a.Children = dedupe(jsonutil.Strings(payload, "children"))
	}
	if arr, ok := jsonutil.GetArray(payload, "child_timelines"); ok {
		for _, e := range arr {
			if o, ok := e.(map[string]any); ok {
				a.ChildTimelines = append(a.ChildTimelines, o)
			}
		}
	}

	a.parseMovement(payload)
	return a
}

func (a *Animation) parseMovement(payload jsonutil.Object) {
	var paths [][]Move
	if arr, ok := jsonutil.GetArray(payload, "movement_paths"); ok {
		for _, p := range arr {
			seq, _ := p.([]any)
			moves, specified := parseMoves(seq)
			paths = append(paths, moves)
			a.movementAuthored = a.movementAuthored || specified
		}
	}
	if seq, ok := jsonutil.GetArray(payload, "movement"); ok {
		moves, specified := parseMoves(seq)
		a.movementAuthored = a.movementAuthored || specified
		if len(moves) > 0 {
			paths = append([][]Move{moves}, paths...)
		}
	}
	if len(paths) == 0 {
		paths = [][]Move{nil}
	}
	a.Movement = paths
	a.updateTotals()
}

func (a *Animation) updateTotals() {
	a.TotalDX, a.TotalDY = 0, 0
	if len(a.Movement) == 0 {
		return
	}
	for _, m := range a.Movement[0] {
		a.TotalDX += m.DX
		a.TotalDY += m.DY
	}
}

// parseMoves accepts [dx, dy, resort?] arrays and {dx, dy, resort_z} objects.
func parseMoves(seq []any) ([]Move, bool) {
	var out []Move
	specified := false
	for _, e := range seq {
		switch mv := e.(type) {
		case map[string]any:
			m := Move{
				DX:      jsonutil.Int(mv, "dx", 0),
				DY:      jsonutil.Int(mv, "dy", 0),
				ZResort: jsonutil.Bool(mv, "resort_z", true),
			}
			_, hasResort := mv["resort_z"]
			if m.DX != 0 || m.DY != 0 || hasResort {
				specified = true
			}
			out = append(out, m)
		case []any:
			if len(mv) < 2 {
				continue
			}
			dx, _ := jsonutil.ToInt(mv[0])
			dy, _ := jsonutil.ToInt(mv[1])
			m := Move{DX: dx, DY: dy, ZResort: true}
			if len(mv) >= 3 {
				if b, ok := mv[2].(bool); ok {
					m.ZResort = b
				}
			}
			if dx != 0 || dy != 0 || len(mv) >= 3 {
				specified = true
			}
			out = append(out, m)
		}
	}
	return out, specified
}

// Ready reports whether frames have been loaded.
func (a *Animation) Ready() bool {
	return len(a.Frames) > 0
}

// FrameCount returns the number of loaded frames.
func (a *Animation) FrameCount() int {
	return len(a.Frames)
}

// ScaledSize returns the canvas size multiplied by factor.
func (a *Animation) ScaledSize(factor float64) (int, int) {
	if factor <= 0 || !finite(factor) {
		factor = 1
	}
	return int(gomath.Round(float64(a.Width) * factor)), int(gomath.Round(float64(a.Height) * factor))
}

// FrameDuration returns the display time of one frame in seconds.
func (a *Animation) FrameDuration() float64 {
	speed := a.SpeedMultiplier
	if speed <= 0 {
		speed = 1
	}
	return 1 / (BaseFPS * speed)
}

// Release destroys every texture owned by the animation. Decoded images are
// kept so textures can be recreated.
func (a *Animation) Release() {
	for _, f := range a.Frames {
		for _, v := range f.Variants {
			v.release()
		}
	}
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
