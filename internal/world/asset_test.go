package world

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

func TestFinalizeWithoutInfo(t *testing.T) {
	a := NewAsset(NewIDs(1).Next(), nil, nil, math.Point{}, 0, nil, "", "", 0)
	if err := a.Finalize(nil); !errors.Is(err, ErrNoInfo) {
		t.Errorf("expected ErrNoInfo, got %v", err)
	}
	if a.Finalized() {
		t.Error("expected asset to stay unfinalized")
	}
}

func TestFinalizeAnimationless(t *testing.T) {
	info, err := asset.NewInfo("stone", jsonutil.Object{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	area := geom.NewArea("cave", 0)
	a := NewAsset(NewIDs(1).Next(), info, area, math.Point{X: 5, Y: 9}, 0, nil, "g1", "Random", 0)
	if a.Room != "cave" {
		t.Errorf("expected owning room cave, got %q", a.Room)
	}
	if err := a.Finalize(rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if !a.Finalized() || !a.StaticFrame {
		t.Error("expected a finalized static asset")
	}
}

func TestChildZOrder(t *testing.T) {
	ids := NewIDs(1)
	info, _ := asset.NewInfo("tree", jsonutil.Object{"z_threshold": 4}, nil)
	parent := NewAsset(ids.Next(), info, nil, math.Point{X: 0, Y: 100}, 0, nil, "", "", 0)
	if parent.ZIndex != 104 {
		t.Fatalf("expected z 104, got %d", parent.ZIndex)
	}
	front := NewAsset(ids.Next(), info, nil, math.Point{X: 0, Y: 50}, 1, nil, "", "", 0)
	back := NewAsset(ids.Next(), info, nil, math.Point{X: 0, Y: 50}, 1, nil, "", "", 0)
	parent.AddChild(front)
	parent.AddChild(back)
	front.SetZOffset(1)
	back.SetZOffset(-1)
	if front.ZIndex != 105 || back.ZIndex != 103 {
		t.Errorf("expected 105 and 103, got %d and %d", front.ZIndex, back.ZIndex)
	}
	if err := parent.Finalize(nil); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if !front.Finalized() || !back.Finalized() {
		t.Error("expected children finalized with the parent")
	}
}
