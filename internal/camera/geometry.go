package camera

import (
	gomath "math"

	"github.com/Faultbox/vibble/pkg/math"
)

// Geometry is the perspective rig used when realism is enabled. The camera
// hangs above the ground plane south of the view center and looks down at
// it by Pitch.
type Geometry struct {
	Eye      math.Vec3
	Target   math.Vec3
	Height   float64
	Pitch    float64 // radians
	FOV      float64 // radians
	ViewProj math.Mat4

	refDistance float64
	screenH     float64
}

// horizonDistance is how far ahead, in camera heights, the horizon sample
// is taken.
const horizonDistance = 1000

// Geometry returns the perspective rig for the current center and scale.
// ok is false when realism is disabled.
func (c *ScreenGrid) Geometry() (Geometry, bool) {
	if !c.settings.RealismEnabled {
		return Geometry{}, false
	}
	center := c.Center()
	pitch := c.settings.PitchDegrees * gomath.Pi / 180
	fov := c.settings.FOVDegrees * gomath.Pi / 180
	height := c.settings.BaseHeightPx * c.scale * c.settings.HeightFactor
	back := height / gomath.Tan(pitch)

	g := Geometry{
		Eye:         math.Vec3{X: float32(center.X), Y: float32(height), Z: float32(center.Y + back)},
		Target:      math.Vec3{X: float32(center.X), Y: 0, Z: float32(center.Y)},
		Height:      height,
		Pitch:       pitch,
		FOV:         fov,
		refDistance: height / gomath.Sin(pitch),
		screenH:     float64(c.screenH),
	}
	aspect := float32(c.screenW) / float32(c.screenH)
	far := float32(height * horizonDistance * 4)
	proj := math.Perspective(float32(fov), aspect, 1, far)
	view := math.LookAt(g.Eye, g.Target, math.Vec3{Y: 1})
	g.ViewProj = proj.Mul(view)
	return g, true
}

// ProjectY returns the screen row of a ground point, or false when it lies
// behind the camera.
func (g Geometry) ProjectY(p math.Vec2) (float64, bool) {
	clip := g.ViewProj.MulVec4(math.Vec4{float32(p.X), 0, float32(p.Y), 1})
	if clip[3] <= 0 {
		return 0, false
	}
	ndc := float64(clip[1] / clip[3])
	return (1 - ndc) * 0.5 * g.screenH, true
}

// PerspectiveScale is the size of a ground point relative to one at the
// view center.
func (g Geometry) PerspectiveScale(p math.Vec2) (scale, distance float64) {
	ground := math.Vec3{X: float32(p.X), Y: 0, Z: float32(p.Y)}
	distance = float64(g.Eye.Distance(ground))
	if distance <= 0 || !finite(distance) {
		return 1, 0
	}
	return clamp(g.refDistance/distance, defaultPerspectiveFloor, 1/defaultPerspectiveFloor), distance
}

// HorizonY returns the screen row of the horizon. It is 0 when realism is
// disabled or the horizon is behind the camera.
func (c *ScreenGrid) HorizonY() float64 {
	g, ok := c.Geometry()
	if !ok {
		return 0
	}
	far := g.Height * horizonDistance
	center := c.Center()
	y, ok := g.ProjectY(math.Vec2{X: center.X, Y: center.Y - far})
	if !ok || !finite(y) {
		return 0
	}
	return clamp(y, -4*float64(c.screenH), float64(c.screenH))
}
