package asset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Faultbox/vibble/pkg/jsonutil"
)

func newInfo(t *testing.T, entry jsonutil.Object) *Info {
	t.Helper()
	info, err := NewInfo("tree", entry, nil)
	if err != nil {
		t.Fatalf("NewInfo() error = %v", err)
	}
	return info
}

func TestNewInfoRejectsEmptyName(t *testing.T) {
	if _, err := NewInfo("", jsonutil.Object{}, nil); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestNewInfoBaseProperties(t *testing.T) {
	info := newInfo(t, jsonutil.Object{
		"asset_type":               "NPC",
		"tags":                     []any{"passable", "", "pixel_art"},
		"tileable":                 true,
		"neighbor_search_distance": 5000,
		"size_settings":            jsonutil.Object{"scale_percentage": 50},
	})

	if info.Type != TypeNPC {
		t.Errorf("expected type npc, got %q", info.Type)
	}
	if !info.Passable {
		t.Error("expected passable from tag")
	}
	if !info.Tillable {
		t.Error("expected legacy tileable to set tillable")
	}
	if info.NeighborSearchRadius != MaxNeighborSearch {
		t.Errorf("expected radius clamped to %d, got %d", MaxNeighborSearch, info.NeighborSearchRadius)
	}
	if info.ScaleFactor != 0.5 {
		t.Errorf("expected scale 0.5, got %v", info.ScaleFactor)
	}
	if !info.Nearest() {
		t.Error("expected pixel_art to select nearest filtering")
	}
	if got := jsonutil.String(info.JSON(), "asset_name", ""); got != "tree" {
		t.Errorf("expected asset_name tree, got %q", got)
	}
}

func TestCanonicalType(t *testing.T) {
	tests := map[string]string{
		"Player":  TypePlayer,
		"enemy":   TypeEnemy,
		"unknown": TypeObject,
		"":        TypeObject,
	}
	for in, want := range tests {
		if got := CanonicalType(in); got != want {
			t.Errorf("CanonicalType(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestTagMutation(t *testing.T) {
	info := newInfo(t, jsonutil.Object{"tags": []any{"tree"}})

	info.SetPassable(true)
	if !info.Passable || !info.HasTag("passable") {
		t.Fatal("expected passable after SetPassable(true)")
	}
	info.AddTag("tree")
	if len(info.Tags) != 2 {
		t.Errorf("expected no duplicate tag, got %v", info.Tags)
	}
	info.RemoveTag("passable")
	if info.Passable {
		t.Error("expected not passable after removing tag")
	}
	if got := jsonutil.Strings(info.JSON(), "tags"); !reflect.DeepEqual(got, []string{"tree"}) {
		t.Errorf("expected tags written back, got %v", got)
	}

	info.SetAntiTags([]string{"water", "water", "lava"})
	if !info.HasAntiTag("lava") || len(info.AntiTags) != 2 {
		t.Errorf("expected deduplicated anti-tags, got %v", info.AntiTags)
	}
}

func TestStartAnimationFallback(t *testing.T) {
	tests := []struct {
		name  string
		anims jsonutil.Object
		start string
		want  string
	}{
		{"keeps valid", jsonutil.Object{"walk": jsonutil.Object{}, "idle": jsonutil.Object{}}, "walk", "walk"},
		{"prefers default", jsonutil.Object{"default": jsonutil.Object{}, "idle": jsonutil.Object{}}, "gone", "default"},
		{"then idle", jsonutil.Object{"walk": jsonutil.Object{}, "idle": jsonutil.Object{}}, "", "idle"},
		{"then first", jsonutil.Object{"run": jsonutil.Object{}, "jump": jsonutil.Object{}}, "", "jump"},
		{"skips reserved", jsonutil.Object{"cache": jsonutil.Object{}}, "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := newInfo(t, jsonutil.Object{"animations": tc.anims, "start": tc.start})
			if info.StartAnimation != tc.want {
				t.Errorf("expected start %q, got %q", tc.want, info.StartAnimation)
			}
		})
	}
}

func TestNestedAnimationPayloads(t *testing.T) {
	info := newInfo(t, jsonutil.Object{
		"animations": jsonutil.Object{"animations": jsonutil.Object{"idle": jsonutil.Object{}}},
	})
	if !reflect.DeepEqual(info.AnimationNames(), []string{"idle"}) {
		t.Errorf("expected nested idle animation, got %v", info.AnimationNames())
	}
}

func TestAnimationCRUD(t *testing.T) {
	info := newInfo(t, jsonutil.Object{
		"animations": jsonutil.Object{"idle": jsonutil.Object{}, "walk": jsonutil.Object{}},
		"start":      "walk",
	})

	if err := info.RenameAnimation("walk", "run"); err != nil {
		t.Fatalf("RenameAnimation() error = %v", err)
	}
	if info.StartAnimation != "run" {
		t.Errorf("expected start to follow rename, got %q", info.StartAnimation)
	}
	if err := info.RenameAnimation("idle", "run"); !errors.Is(err, ErrAnimationExists) {
		t.Errorf("expected ErrAnimationExists, got %v", err)
	}
	if err := info.RenameAnimation("missing", "other"); !errors.Is(err, ErrNoAnimation) {
		t.Errorf("expected ErrNoAnimation, got %v", err)
	}
	if err := info.RenameAnimation("idle", "idle"); !errors.Is(err, ErrAnimationName) {
		t.Errorf("expected ErrAnimationName, got %v", err)
	}

	if !info.RemoveAnimation("run") {
		t.Fatal("expected run to be removed")
	}
	if info.StartAnimation != "" {
		t.Errorf("expected start cleared, got %q", info.StartAnimation)
	}

	if err := info.UpdateAnimationProperties("idle", jsonutil.Object{"loop": false, "start": true}); err != nil {
		t.Fatalf("UpdateAnimationProperties() error = %v", err)
	}
	if info.StartAnimation != "idle" {
		t.Errorf("expected start idle, got %q", info.StartAnimation)
	}
	p, ok := info.AnimationPayload("idle")
	if !ok {
		t.Fatal("expected idle payload")
	}
	if jsonutil.Bool(p, "loop", true) {
		t.Error("expected loop false after merge")
	}
	if _, ok := jsonutil.GetObject(p, "source"); !ok {
		t.Error("expected merge to keep the existing source")
	}
	if a, ok := info.Animations.Get("idle"); !ok || a.Loop {
		t.Error("expected parsed animation to reflect the merge")
	}

	if err := info.UpsertAnimation("jump", jsonutil.Object{"fps": 48}); err != nil {
		t.Fatalf("UpsertAnimation() error = %v", err)
	}
	if a, ok := info.Animations.Get("jump"); !ok || a.SpeedMultiplier != 2 {
		t.Errorf("expected upserted jump at double speed")
	}
}

func TestAnimationChildrenGathered(t *testing.T) {
	info := newInfo(t, jsonutil.Object{
		"animations": jsonutil.Object{
			"a": jsonutil.Object{"children": []any{"hat", "sword"}},
			"b": jsonutil.Object{"child_timelines": []any{jsonutil.Object{"asset": "hat"}, jsonutil.Object{"asset": "cape"}}},
		},
	})
	want := []string{"hat", "sword", "cape"}
	if !reflect.DeepEqual(info.AnimationChildren, want) {
		t.Errorf("expected %v, got %v", want, info.AnimationChildren)
	}
}

func mappingEntry(condition string, opts ...any) jsonutil.Object {
	return jsonutil.Object{
		"condition": condition,
		"map_to":    jsonutil.Object{"options": opts},
	}
}

func TestPickNextAnimation(t *testing.T) {
	info := newInfo(t, jsonutil.Object{
		"mappings": jsonutil.Object{
			"next": []any{
				mappingEntry("false", jsonutil.Object{"animation": "never"}),
				mappingEntry("", jsonutil.Object{"animation": "zero", "percent": 0}, jsonutil.Object{"animation": "walk", "percent": 50}),
			},
			"dead": []any{
				mappingEntry("true", jsonutil.Object{"animation": "a", "percent": 0}, jsonutil.Object{"animation": "b", "percent": 0}),
			},
		},
	})

	for i := 0; i < 50; i++ {
		if got := info.PickNextAnimation("next"); got != "walk" {
			t.Fatalf("expected walk, got %q", got)
		}
	}
	if got := info.PickNextAnimation("dead"); got != "" {
		t.Errorf("expected empty pick for all-zero weights, got %q", got)
	}
	if got := info.PickNextAnimation("missing"); got != "" {
		t.Errorf("expected empty pick for unknown mapping, got %q", got)
	}
}

func TestPickNextAnimationCoversOptions(t *testing.T) {
	info := newInfo(t, jsonutil.Object{
		"mappings": jsonutil.Object{
			"next": []any{mappingEntry("", jsonutil.Object{"animation": "a"}, jsonutil.Object{"animation": "b"})},
		},
	})
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[info.PickNextAnimation("next")] = true
	}
	if !seen["a"] || !seen["b"] || len(seen) != 2 {
		t.Errorf("expected both options to be picked, got %v", seen)
	}
}

func TestAsyncChildren(t *testing.T) {
	info := newInfo(t, jsonutil.Object{
		"async_children": []any{
			jsonutil.Object{"name": "flame", "child": "fire", "frames": []any{
				jsonutil.Object{"dx": 2, "dy": -3, "rotation": 45},
				[]any{1, 2, 90, false, false},
			}},
			jsonutil.Object{"name": "flame", "asset": "dup", "frames": []any{[]any{0, 0}}},
			jsonutil.Object{"name": "empty", "asset": "fire"},
		},
	})
	if len(info.AsyncChildren) != 1 {
		t.Fatalf("expected 1 async child, got %d", len(info.AsyncChildren))
	}
	c := info.AsyncChildren[0]
	if c.Asset != "fire" {
		t.Errorf("expected child asset fire, got %q", c.Asset)
	}
	want := []ChildFrame{
		{DX: 2, DY: -3, Degree: 45, Visible: true, RenderInFront: true},
		{DX: 1, DY: 2, Degree: 90},
	}
	if !reflect.DeepEqual(c.Frames, want) {
		t.Errorf("expected %+v, got %+v", want, c.Frames)
	}
}
