package camera

import (
	gomath "math"
	"strings"
)

// Method selects how a smoothed value chases its target.
type Method int

const (
	MethodNone Method = iota
	MethodLerp
	MethodSpring
)

// ParseMethod maps a config name onto a Method. Unknown names use Lerp.
func ParseMethod(name string) Method {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "off":
		return MethodNone
	case "spring", "critically_damped_spring", "critical":
		return MethodSpring
	default:
		return MethodLerp
	}
}

// String returns the config name of the method.
func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodSpring:
		return "spring"
	default:
		return "lerp"
	}
}

// Params configures one smoothed axis.
type Params struct {
	Method          Method
	LerpRate        float64 // 1/s
	SpringFrequency float64 // Hz
	MaxStep         float64 // 0 disables the clamp
	SnapThreshold   float64
}

// RateFromTau converts a time constant into a lerp rate.
func RateFromTau(tau float64) float64 {
	if tau <= 0 || !finite(tau) {
		return 0
	}
	return 1 / tau
}

// Axis is the state of a single smoothed scalar.
type Axis struct {
	Prev     float64
	Target   float64
	Current  float64
	Velocity float64
}

// Reset jumps to v and drops velocity.
func (a *Axis) Reset(v float64) {
	a.Prev, a.Target, a.Current, a.Velocity = v, v, v, 0
}

// Value returns the value to render, snapping when the target is near.
func (a *Axis) Value(p Params) float64 {
	if p.SnapThreshold > 0 && gomath.Abs(a.Target-a.Current) <= p.SnapThreshold {
		return a.Target
	}
	return a.Current
}

// Advance moves Current towards Target by dt seconds.
func (a *Axis) Advance(p Params, dt float64) {
	a.Prev = a.Current
	if !finite(a.Target) {
		a.Reset(a.Current)
		return
	}
	if dt <= 0 || !finite(dt) || p.Method == MethodNone {
		a.Current, a.Velocity = a.Target, 0
		return
	}
	if p.SnapThreshold > 0 && gomath.Abs(a.Target-a.Current) <= p.SnapThreshold {
		a.Current, a.Velocity = a.Target, 0
		return
	}

	switch p.Method {
	case MethodLerp:
		rate := p.LerpRate
		if rate <= 0 {
			a.Current, a.Velocity = a.Target, 0
			break
		}
		step := (a.Target - a.Current) * (1 - gomath.Exp(-rate*dt))
		if p.MaxStep > 0 {
			step = clamp(step, -p.MaxStep, p.MaxStep)
		}
		a.Current += step
		a.Velocity = step / dt
	case MethodSpring:
		a.spring(p, dt)
	}

	if !finite(a.Current) || !finite(a.Velocity) {
		a.Reset(a.Target)
		return
	}
	if p.SnapThreshold > 0 && gomath.Abs(a.Target-a.Current) <= p.SnapThreshold {
		a.Current, a.Velocity = a.Target, 0
	}
}

// spring is a critically damped spring with a smooth time of 1/frequency.
func (a *Axis) spring(p Params, dt float64) {
	freq := p.SpringFrequency
	if freq <= 0 {
		a.Current, a.Velocity = a.Target, 0
		return
	}
	omega := 2 * freq
	x := omega * dt
	decay := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := a.Current - a.Target
	if p.MaxStep > 0 {
		change = clamp(change, -p.MaxStep, p.MaxStep)
	}
	target := a.Current - change
	temp := (a.Velocity + omega*change) * dt
	a.Velocity = (a.Velocity - omega*temp) * decay
	out := target + (change+temp)*decay

	// No overshoot past the original target.
	if (a.Target-a.Current > 0) == (out > a.Target) {
		out = a.Target
		a.Velocity = 0
	}
	a.Current = out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !gomath.IsNaN(v) && !gomath.IsInf(v, 0)
}
