package world

import (
	"testing"

	"github.com/Faultbox/vibble/internal/asset"
	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

func newTestAsset(t *testing.T, ids *IDs, name string, x, y int) *Asset {
	t.Helper()
	info, err := asset.NewInfo(name, jsonutil.Object{}, nil)
	if err != nil {
		t.Fatalf("NewInfo() error = %v", err)
	}
	return NewAsset(ids.Next(), info, nil, math.Point{X: x, Y: y}, 0, nil, "", "", 0)
}

func TestGridIDRoundTrip(t *testing.T) {
	tests := []math.Point{{X: 0, Y: 0}, {X: -3, Y: 7}, {X: 1 << 20, Y: -(1 << 20)}}
	for _, p := range tests {
		if got := MakeGridID(p.X, p.Y).Index(); got != p {
			t.Errorf("expected %v, got %v", p, got)
		}
	}
}

func TestIDsDeterministic(t *testing.T) {
	a, b := NewIDs(7), NewIDs(7)
	for i := 0; i < 5; i++ {
		x, y := a.Next(), b.Next()
		if x != y {
			t.Fatalf("expected identical ids, got %s and %s", x, y)
		}
	}
	if NewIDs(7).Next() == NewIDs(8).Next() {
		t.Error("expected different seeds to produce different ids")
	}
}

func TestGridRegister(t *testing.T) {
	ids := NewIDs(1)
	g := NewGrid(math.Point{}, 6)
	a := newTestAsset(t, ids, "tree", 10, 10)
	b := newTestAsset(t, ids, "rock", 20, 30)
	c := newTestAsset(t, ids, "bush", 100, -5)
	for _, x := range []*Asset{a, b, c} {
		g.Register(x)
	}

	if g.Len() != 3 {
		t.Fatalf("expected 3 assets, got %d", g.Len())
	}
	if len(g.Chunks()) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(g.Chunks()))
	}
	if ch := g.ChunkFromWorld(math.Point{X: 5, Y: 5}); ch == nil || len(ch.Assets) != 2 {
		t.Errorf("expected chunk (0,0) to hold 2 assets, got %+v", ch)
	}
	if ch := g.ChunkFromWorld(c.Pos); ch == nil || ch.I != 1 || ch.J != -1 {
		t.Errorf("expected chunk (1,-1), got %+v", ch)
	}

	// Every registered asset maps to exactly one grid point.
	for _, x := range g.Assets() {
		count := 0
		for _, p := range g.Points() {
			for _, o := range p.Occupants {
				if o == x {
					count++
				}
			}
		}
		if count != 1 {
			t.Errorf("expected %s on one grid point, got %d", x.Name(), count)
		}
		if p := g.PointForAsset(x); p == nil {
			t.Errorf("expected point for %s", x.Name())
		}
	}
	if got, ok := g.Lookup(b.ID); !ok || got != b {
		t.Error("expected lookup by id")
	}
}

func TestGridPointIsLatticeVertex(t *testing.T) {
	ids := NewIDs(2)
	g := NewGrid(math.Point{X: 3, Y: -2}, 4)
	first := newTestAsset(t, ids, "tree", 10, 5)
	last := newTestAsset(t, ids, "rock", 17, 12)
	g.Register(first)
	g.Register(last)

	p := g.PointForAsset(first)
	if p == nil || p != g.PointForAsset(last) {
		t.Fatalf("expected one shared grid point, got %+v", p)
	}
	if want := (math.Point{X: 3, Y: -2}); p.World != want {
		t.Errorf("expected vertex %v, got %v", want, p.World)
	}
	if len(p.Occupants) != 2 {
		t.Errorf("expected 2 occupants, got %d", len(p.Occupants))
	}
}

func TestGridMoveAndRemove(t *testing.T) {
	ids := NewIDs(1)
	g := NewGrid(math.Point{}, 4)
	a := newTestAsset(t, ids, "tree", 1, 1)
	g.Register(a)
	before, _ := a.GridID()

	g.Move(a, math.Point{X: 40, Y: 1})
	after, _ := a.GridID()
	if before == after {
		t.Fatal("expected a new grid point after moving")
	}
	if g.PointForID(before) != nil {
		t.Error("expected the old point to be pruned")
	}
	if ch := g.ChunkFromWorld(math.Point{X: 1, Y: 1}); ch == nil || len(ch.Assets) != 0 {
		t.Error("expected the old chunk to be empty")
	}
	if a.ZIndex != 1 {
		t.Errorf("expected z index to follow y, got %d", a.ZIndex)
	}

	if !g.Remove(a) {
		t.Fatal("expected removal")
	}
	if g.Remove(a) {
		t.Error("expected second removal to fail")
	}
	if _, ok := a.GridID(); ok || len(g.Points()) != 0 {
		t.Error("expected grid binding cleared")
	}
}

func TestGridRebuildAndActiveChunks(t *testing.T) {
	ids := NewIDs(1)
	g := NewGrid(math.Point{}, 4)
	for i := 0; i < 4; i++ {
		g.Register(newTestAsset(t, ids, "tree", i*16, 0))
	}
	if len(g.Chunks()) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(g.Chunks()))
	}

	g.SetChunkResolution(6)
	g.Rebuild()
	if len(g.Chunks()) != 1 || g.Len() != 4 {
		t.Errorf("expected 1 chunk with 4 assets, got %d chunks %d assets", len(g.Chunks()), g.Len())
	}

	g.UpdateActiveChunks(geom.Bounds{MinX: 200, MinY: 200, MaxX: 300, MaxY: 300}, 0)
	if len(g.ActiveChunks()) != 0 {
		t.Errorf("expected no active chunks, got %d", len(g.ActiveChunks()))
	}
	g.UpdateActiveChunks(geom.Bounds{MinX: 200, MinY: 200, MaxX: 300, MaxY: 300}, 150)
	if len(g.ActiveChunks()) != 1 {
		t.Errorf("expected margin to activate the chunk, got %d", len(g.ActiveChunks()))
	}
}
