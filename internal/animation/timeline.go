package animation

import "math/rand"

// Player steps through the frames of one animation.
type Player struct {
	anim     *Animation
	frame    int
	elapsed  float64
	finished bool
}

// NewPlayer starts anim at frame 0, or at a random frame when rnd_start is
// set and rng is not nil.
func NewPlayer(anim *Animation, rng *rand.Rand) *Player {
	p := &Player{anim: anim}
	if anim != nil && anim.RndStart && rng != nil && len(anim.Frames) > 1 {
		p.frame = rng.Intn(len(anim.Frames))
	}
	return p
}

// Animation returns the animation being played.
func (p *Player) Animation() *Animation { return p.anim }

// Index returns the current frame index.
func (p *Player) Index() int { return p.frame }

// Frame returns the current frame, or nil when nothing is loaded.
func (p *Player) Frame() *Frame {
	if p.anim == nil || len(p.anim.Frames) == 0 {
		return nil
	}
	return p.anim.Frames[clampIndex(p.frame, len(p.anim.Frames))]
}

// Finished reports whether a non-looping animation reached its last frame.
func (p *Player) Finished() bool { return p.finished }

// Advance moves the timeline forward by dt seconds and reports whether the
// frame changed. Looping animations wrap; others stop on the last frame.
func (p *Player) Advance(dt float64) bool {
	if p.anim == nil || p.finished || dt <= 0 {
		return false
	}
	n := len(p.anim.Frames)
	if n == 0 {
		return false
	}
	step := p.anim.FrameDuration()
	p.elapsed += dt
	changed := false
	for p.elapsed >= step {
		p.elapsed -= step
		if p.frame+1 < n {
			p.frame++
			changed = true
			continue
		}
		if p.anim.Loop {
			if p.frame != 0 {
				changed = true
			}
			p.frame = 0
			continue
		}
		p.finished = true
		p.elapsed = 0
		break
	}
	return changed
}

// Reset rewinds to frame 0.
func (p *Player) Reset() {
	p.frame = 0
	p.elapsed = 0
	p.finished = false
}
