package asset

import (
	gomath "math"
	"reflect"
	"testing"

	"github.com/Faultbox/vibble/internal/geom"
	"github.com/Faultbox/vibble/pkg/jsonutil"
	"github.com/Faultbox/vibble/pkg/math"
)

func pts(xy ...int) []math.Point {
	out := make([]math.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, math.Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

func entryPoints(t *testing.T, entry jsonutil.Object) []math.Point {
	t.Helper()
	arr, ok := jsonutil.GetArray(entry, "points")
	if !ok {
		t.Fatal("entry has no points")
	}
	var out []math.Point
	for _, v := range arr {
		p := v.(jsonutil.Object)
		out = append(out, math.Point{X: jsonutil.Int(p, "x", 0), Y: jsonutil.Int(p, "y", 0)})
	}
	return out
}

func scaledInfo(t *testing.T, pct float64) *Info {
	t.Helper()
	return newInfo(t, jsonutil.Object{
		"canvas_width":  200,
		"canvas_height": 300,
		"size_settings": jsonutil.Object{"scale_percentage": pct},
	})
}

func TestAreaRenderSpaceRoundTrip(t *testing.T) {
	info := scaledInfo(t, 200)
	area := geom.NewAreaFromPoints("hit", pts(50, 50, 150, 50, 100, 250), 0)
	frame := &RenderFrame{Width: 200, Height: 300, PivotX: 100, PivotY: 300, PixelScale: 2}

	entry := EncodeArea(info, area, "trigger", "", frame)

	if got, want := entryPoints(t, entry), pts(-25, -125, 25, -125, 0, -25); !reflect.DeepEqual(got, want) {
		t.Errorf("expected canonical points %v, got %v", want, got)
	}
	space, _ := jsonutil.GetObject(entry, "coordinate_space")
	if jsonutil.String(space, "kind", "") != SpaceRender || jsonutil.Float(space, "scale_at_save", 0) != 2 {
		t.Errorf("unexpected coordinate space %v", space)
	}
	anchor, _ := jsonutil.GetObject(entry, "anchor")
	if jsonutil.Int(anchor, "x", 0) != 100 || jsonutil.Int(anchor, "y", 0) != 300 {
		t.Errorf("expected canonical anchor (100,300), got %v", anchor)
	}
	if jsonutil.Int(entry, "schema_version", 0) != 2 {
		t.Error("expected schema_version 2")
	}

	info.SetScalePercentage(100)
	na := DecodeArea(info, entry)
	if na == nil {
		t.Fatal("expected decoded area")
	}
	if want := pts(75, 175, 125, 175, 100, 275); !reflect.DeepEqual(na.Area.Points(), want) {
		t.Errorf("expected decoded points %v, got %v", want, na.Area.Points())
	}
	if na.RenderFrame == nil || na.RenderFrame.PivotY != 300 {
		t.Errorf("expected render frame to survive decoding, got %+v", na.RenderFrame)
	}
	if na.Kind != "trigger" || na.Area.Type != "trigger" {
		t.Errorf("expected kind to fall back to type, got %q/%q", na.Kind, na.Area.Type)
	}
}

func TestAreaCanonicalRoundTrip(t *testing.T) {
	info := scaledInfo(t, 200)
	area := geom.NewAreaFromPoints("base", pts(180, 580, 220, 580, 200, 600), 0)

	entry := EncodeArea(info, area, "", "spawn", nil)
	if got, want := entryPoints(t, entry), pts(-10, -10, 10, -10, 0, 0); !reflect.DeepEqual(got, want) {
		t.Errorf("expected canonical points %v, got %v", want, got)
	}

	info.SetScalePercentage(100)
	na := DecodeArea(info, entry)
	if na == nil {
		t.Fatal("expected decoded area")
	}
	if want := pts(90, 290, 110, 290, 100, 300); !reflect.DeepEqual(na.Area.Points(), want) {
		t.Errorf("expected points %v, got %v", want, na.Area.Points())
	}
	if na.RenderFrame != nil {
		t.Error("expected no render frame for canonical areas")
	}
}

func TestDecodeAreaRejects(t *testing.T) {
	info := scaledInfo(t, 100)
	space := func(kind, origin string) jsonutil.Object {
		return jsonutil.Object{"origin": origin, "kind": kind, "scale_at_save": 1}
	}
	three := []any{
		jsonutil.Object{"x": 0, "y": 0}, jsonutil.Object{"x": 1, "y": 0}, jsonutil.Object{"x": 0, "y": 1},
	}
	tests := []struct {
		name  string
		entry jsonutil.Object
	}{
		{"no name", jsonutil.Object{"points": three, "coordinate_space": space(SpaceCanonical, "bottom_center")}},
		{"no points", jsonutil.Object{"name": "a", "coordinate_space": space(SpaceCanonical, "bottom_center")}},
		{"no space", jsonutil.Object{"name": "a", "points": three}},
		{"bad origin", jsonutil.Object{"name": "a", "points": three, "coordinate_space": space(SpaceCanonical, "top_left")}},
		{"unknown kind", jsonutil.Object{"name": "a", "points": three, "coordinate_space": space("world", "bottom_center")}},
		{"two points", jsonutil.Object{"name": "a", "points": three[:2], "coordinate_space": space(SpaceCanonical, "bottom_center")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if na := DecodeArea(info, tc.entry); na != nil {
				t.Errorf("expected rejection, got %+v", na)
			}
		})
	}
}

func TestDecodeAreaSaturates(t *testing.T) {
	info := scaledInfo(t, 100)
	entry := jsonutil.Object{
		"name":             "huge",
		"resolution":       0,
		"coordinate_space": jsonutil.Object{"origin": "bottom_center", "kind": SpaceCanonical, "scale_at_save": 1},
		"points": []any{
			jsonutil.Object{"x": 1e12, "y": -1e12},
			jsonutil.Object{"x": 0, "y": 0},
			jsonutil.Object{"x": 1, "y": 1},
		},
	}
	na := DecodeArea(info, entry)
	if na == nil {
		t.Fatal("expected decoded area")
	}
	p := na.Area.Points()[0]
	if p.X != gomath.MaxInt32 || p.Y != gomath.MinInt32 {
		t.Errorf("expected saturated point, got %v", p)
	}
}

func TestDecodeAreaAttachmentFields(t *testing.T) {
	info := newInfo(t, jsonutil.Object{
		"canvas_width":  100,
		"canvas_height": 100,
		"areas": []any{
			jsonutil.Object{
				"name":                 "hand",
				"type":                 "attachment",
				"attachment_subtype":   AttachmentChild,
				"placed_on_top_parent": true,
				"child_candidates":     []any{jsonutil.Object{"name": "sword"}},
				"resolution":           0,
				"coordinate_space":     jsonutil.Object{"origin": "bottom_center", "kind": SpaceCanonical, "scale_at_save": 1},
				"points": []any{
					jsonutil.Object{"x": -5, "y": -5}, jsonutil.Object{"x": 5, "y": -5}, jsonutil.Object{"x": 0, "y": 0},
				},
			},
		},
	})
	if len(info.Areas) != 1 {
		t.Fatalf("expected 1 area, got %d", len(info.Areas))
	}
	if !info.Areas[0].IsOnTop {
		t.Error("expected placed_on_top_parent to set IsOnTop")
	}
	if len(info.Children) != 1 || info.Children[0].AreaName != "hand" || !info.Children[0].PlacedOnTopParent {
		t.Errorf("expected child slot for hand, got %+v", info.Children)
	}
	if len(info.Children[0].Candidates) != 1 {
		t.Errorf("expected candidates carried over, got %v", info.Children[0].Candidates)
	}
}

func TestAreaEditing(t *testing.T) {
	info := scaledInfo(t, 100)
	a := geom.NewAreaFromPoints("zone", pts(90, 290, 110, 290, 100, 300), 0)
	a.Type = "trigger"
	info.UpsertArea(a, nil)

	arr, _ := jsonutil.GetArray(info.JSON(), "areas")
	if len(arr) != 1 || info.FindArea("zone") == nil {
		t.Fatalf("expected one stored area, got %d", len(arr))
	}

	arr[0].(jsonutil.Object)["attachment_subtype"] = AttachmentChild
	info.json["areas"] = arr
	info.UpsertArea(a, nil)
	arr, _ = jsonutil.GetArray(info.JSON(), "areas")
	if jsonutil.String(arr[0].(jsonutil.Object), "attachment_subtype", "") != AttachmentChild {
		t.Error("expected attachment keys to survive an upsert")
	}

	other := geom.NewAreaFromPoints("other", pts(0, 0, 10, 0, 5, 5), 0)
	info.UpsertArea(other, nil)
	if info.RenameArea("zone", "other") {
		t.Error("expected rename onto an existing name to fail")
	}
	if !info.RenameArea("zone", "spot") || info.FindArea("spot") == nil {
		t.Error("expected rename to succeed")
	}
	if !info.RemoveArea("spot") || info.FindArea("spot") != nil {
		t.Error("expected spot to be removed")
	}
	arr, _ = jsonutil.GetArray(info.JSON(), "areas")
	if len(arr) != 1 {
		t.Errorf("expected one remaining entry, got %d", len(arr))
	}
}
