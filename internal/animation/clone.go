package animation

import "slices"

// CloneFrames fills a with the frames of src, applying a's flip and reverse
// modifiers. Images are shared when no flip is requested; textures are not.
func CloneFrames(a, src *Animation) {
	flipH, flipV := a.FlippedSource, a.FlipVerticalSource
	frames := make([]*Frame, len(src.Frames))
	for i, sf := range src.Frames {
		f := &Frame{Index: i, Variants: make([]*Variant, len(sf.Variants))}
		for j, sv := range sf.Variants {
			f.Variants[j] = &Variant{
				Scale:      sv.Scale,
				Normal:     FlipImage(sv.Normal, flipH, flipV),
				Foreground: FlipImage(sv.Foreground, flipH, flipV),
				Background: FlipImage(sv.Background, flipH, flipV),
				Mask:       FlipImage(sv.Mask, flipH, flipV),
			}
		}
		frames[i] = f
	}
	if a.ReverseSource {
		slices.Reverse(frames)
		for i, f := range frames {
			f.Index = i
		}
	}

	if a.InheritSourceMovement && !a.movementAuthored {
		a.inheritMovement(src)
	}
	for i, f := range frames {
		f.Move = Move{ZResort: true}
		if len(a.Movement) > 0 && i < len(a.Movement[0]) {
			f.Move = a.Movement[0][i]
		}
	}

	a.Frames = frames
	a.NumberOfFrames = len(frames)
	a.Steps = append([]float64(nil), src.Steps...)
	a.Width, a.Height = src.Width, src.Height
}

func (a *Animation) inheritMovement(src *Animation) {
	paths := make([][]Move, len(src.Movement))
	for i, p := range src.Movement {
		path := slices.Clone(p)
		if a.ReverseSource {
			slices.Reverse(path)
		}
		for j := range path {
			if a.FlipMovementHorizontal {
				path[j].DX = -path[j].DX
			}
			if a.FlipMovementVertical {
				path[j].DY = -path[j].DY
			}
		}
		paths[i] = path
	}
	if len(paths) == 0 {
		paths = [][]Move{nil}
	}
	a.Movement = paths
	a.updateTotals()
}
