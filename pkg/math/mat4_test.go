package math

import (
	"math"
	"testing"
)

func near32(a, b, eps float32) bool { return float32(math.Abs(float64(a-b))) <= eps }

func TestMulIdentity(t *testing.T) {
	p := Perspective(1, 1.5, 1, 100)
	got := Identity().Mul(p)
	for i := range got {
		if got[i] != p[i] {
			t.Fatalf("element %d: expected %v, got %v", i, p[i], got[i])
		}
	}
}

func TestLookAtMapsEyeToOrigin(t *testing.T) {
	eye := Vec3{X: 3, Y: 4, Z: 5}
	view := LookAt(eye, Vec3{}, Vec3{Y: 1})
	got := view.MulVec4(Vec4{eye.X, eye.Y, eye.Z, 1})
	for i := 0; i < 3; i++ {
		if !near32(got[i], 0, 1e-5) {
			t.Errorf("component %d: expected 0, got %v", i, got[i])
		}
	}
	// The look target sits straight ahead on -Z.
	ahead := view.MulVec4(Vec4{0, 0, 0, 1})
	if !near32(ahead[0], 0, 1e-5) || !near32(ahead[1], 0, 1e-5) || ahead[2] >= 0 {
		t.Errorf("expected target on -Z, got %v", ahead)
	}
}

func TestPerspectiveEdgeOfView(t *testing.T) {
	fov := float32(math.Pi / 2)
	p := Perspective(fov, 1, 1, 100)
	// At 45 degrees up the point lands on the top edge.
	clip := p.MulVec4(Vec4{0, 10, -10, 1})
	if clip[3] <= 0 {
		t.Fatalf("expected positive w, got %v", clip[3])
	}
	if ndc := clip[1] / clip[3]; !near32(ndc, 1, 1e-5) {
		t.Errorf("expected ndc y 1, got %v", ndc)
	}
}

func TestVec3Distance(t *testing.T) {
	v := Vec3{X: 2, Y: 9, Z: -4}
	if d := v.Distance(Vec3{X: 2, Y: 9, Z: 0}); d != 4 {
		t.Errorf("expected distance 4, got %v", d)
	}
}
