package rebuild

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// fakeTool records invocations and applies a callback instead of spawning
// a process.
type fakeTool struct {
	calls [][]string
	code  int
	apply func(args []string)
}

func (f *fakeTool) Run(_ context.Context, args []string, _ []string) (int, error) {
	f.calls = append(f.calls, append([]string(nil), args...))
	if f.apply != nil {
		f.apply(args)
	}
	return f.code, nil
}

func setupQueue(t *testing.T, tool Tool) (*Queue, string) {
	t.Helper()
	dir := t.TempDir()
	tools := filepath.Join(dir, "tools")
	if err := os.MkdirAll(tools, 0755); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{ScriptAssetTool, ScriptLightTool, ScriptSetRebuild, ScriptCacheValidator} {
		if err := os.WriteFile(filepath.Join(tools, s), []byte("# stub\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	manifest := filepath.Join(dir, "manifest.json")
	writeManifest(t, manifest, false)
	return NewQueue(tool, tools, manifest), manifest
}

func writeManifest(t *testing.T, path string, needsRebuild bool) {
	t.Helper()
	doc := jsonutil.Object{
		"version": 1,
		"assets": map[string]any{
			"tree": map[string]any{
				"asset_name": "tree",
				"animations": map[string]any{
					"default": map[string]any{
						"frames": []any{
							map[string]any{"needs_rebuild": needsRebuild},
						},
					},
				},
			},
		},
		"maps": map[string]any{},
	}
	raw, err := jsonutil.Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRequestFrameArgs(t *testing.T) {
	tool := &fakeTool{}
	q, manifest := setupQueue(t, tool)

	if !q.RequestFrame(context.Background(), "tree", "default", 0) {
		t.Fatal("expected RequestFrame to succeed")
	}
	if len(tool.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(tool.calls))
	}
	got := tool.calls[0][1:]
	want := []string{"frame", "tree", "default", "0", "--manifest", manifest}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected args %v, got %v", want, got)
	}
	if filepath.Base(tool.calls[0][0]) != ScriptSetRebuild {
		t.Errorf("expected script %s, got %s", ScriptSetRebuild, tool.calls[0][0])
	}
}

func TestRequestIgnoresInvalidInput(t *testing.T) {
	tool := &fakeTool{}
	q, _ := setupQueue(t, tool)
	ctx := context.Background()

	if q.RequestAsset(ctx, "") {
		t.Error("expected empty asset name to be ignored")
	}
	if q.RequestAnimation(ctx, "tree", "") {
		t.Error("expected empty animation name to be ignored")
	}
	if q.RequestFrame(ctx, "tree", "default", -1) {
		t.Error("expected negative frame index to be ignored")
	}
	if q.RequestLightEntry(ctx, "tree", -2) {
		t.Error("expected negative light index to be ignored")
	}
	if len(tool.calls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(tool.calls))
	}
}

func TestRequestAssetWithAnimations(t *testing.T) {
	tool := &fakeTool{}
	q, _ := setupQueue(t, tool)

	if !q.RequestAsset(context.Background(), "tree", "idle", "walk") {
		t.Fatal("expected RequestAsset to succeed")
	}
	if len(tool.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(tool.calls))
	}
	if tool.calls[1][1] != "animation" || tool.calls[1][3] != "walk" {
		t.Errorf("unexpected second call %v", tool.calls[1])
	}
}

func TestMissingScriptFails(t *testing.T) {
	tool := &fakeTool{}
	q, _ := setupQueue(t, tool)
	if err := os.Remove(filepath.Join(q.toolsDir, ScriptLightTool)); err != nil {
		t.Fatal(err)
	}
	if q.RunLightTool(context.Background()) {
		t.Error("expected RunLightTool to fail without its script")
	}
	if len(tool.calls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(tool.calls))
	}
}

func TestNonZeroExitFails(t *testing.T) {
	tool := &fakeTool{code: 2}
	q, _ := setupQueue(t, tool)
	if q.ValidateManifestCache(context.Background()) {
		t.Error("expected non-zero exit to report failure")
	}
}

func TestPendingAssetWorkCycle(t *testing.T) {
	tool := &fakeTool{}
	q, manifest := setupQueue(t, tool)
	tool.apply = func(args []string) {
		switch filepath.Base(args[0]) {
		case ScriptSetRebuild:
			writeManifest(t, manifest, true)
		case ScriptAssetTool:
			writeManifest(t, manifest, false)
		}
	}
	ctx := context.Background()

	if q.HasPendingAssetWork() {
		t.Fatal("expected no pending work before marking")
	}
	if !q.RequestFrame(ctx, "tree", "default", 0) {
		t.Fatal("expected RequestFrame to succeed")
	}
	if !q.HasPendingAssetWork() {
		t.Fatal("expected pending work after marking")
	}
	if !q.RunAssetTool(ctx) {
		t.Fatal("expected RunAssetTool to succeed")
	}
	if q.HasPendingAssetWork() {
		t.Error("expected no pending work after rebuild")
	}
}

func TestLightWorkPending(t *testing.T) {
	tests := []struct {
		name string
		info any
		want bool
	}{
		{"object flagged", map[string]any{"needs_rebuild": true}, true},
		{"object clean", map[string]any{"needs_rebuild": false}, false},
		{"array flagged", []any{map[string]any{}, map[string]any{"needs_rebuild": true}}, true},
		{"missing", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := map[string]any{"asset_name": "lamp"}
			if tt.info != nil {
				entry["lighting_info"] = tt.info
			}
			doc := jsonutil.Object{"assets": map[string]any{"lamp": entry}}
			if got := LightWorkPending(doc); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAssetWorkPendingNestedAnimations(t *testing.T) {
	doc := jsonutil.Object{"assets": map[string]any{
		"rock": map[string]any{
			"animations": map[string]any{
				"animations": map[string]any{
					"default": map[string]any{
						"frames": []any{map[string]any{"needs_rebuild": true}},
					},
				},
			},
		},
	}}
	if !AssetWorkPending(doc) {
		t.Error("expected nested animations to be scanned")
	}
}
