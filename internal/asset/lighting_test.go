package asset

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Faultbox/vibble/internal/cache"
	"github.com/Faultbox/vibble/internal/rebuild"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// lightTool stands in for light_tool.py: it bakes one square light map
// per light, sized by radius.
type lightTool struct {
	root  string
	info  **Info
	calls []string
}

func (f *lightTool) Run(_ context.Context, args []string, _ []string) (int, error) {
	script := filepath.Base(args[0])
	f.calls = append(f.calls, script)
	if script != rebuild.ScriptLightTool {
		return 0, nil
	}
	info := *f.info
	lights := ParseLights(info.json)
	sigs := make([]string, len(lights))
	imgs := make([]image.Image, len(lights))
	for i, l := range lights {
		sigs[i] = l.Signature()
		imgs[i] = image.NewNRGBA(image.Rect(0, 0, 2*l.Radius, 2*l.Radius))
	}
	if err := cache.NewLightCache(f.root, info.Name).Store(sigs, imgs); err != nil {
		return 1, nil
	}
	return 0, nil
}

func newLightQueue(t *testing.T, tool rebuild.Tool) *rebuild.Queue {
	t.Helper()
	dir := t.TempDir()
	tools := filepath.Join(dir, "tools")
	if err := os.MkdirAll(tools, 0755); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{rebuild.ScriptLightTool, rebuild.ScriptSetRebuild} {
		if err := os.WriteFile(filepath.Join(tools, s), []byte("# stub\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return rebuild.NewQueue(tool, tools, filepath.Join(dir, "manifest.json"))
}

func TestParseLights(t *testing.T) {
	lights := ParseLights(jsonutil.Object{
		"lighting_info": []any{
			jsonutil.Object{"has_light_source": true, "light_intensity": 900, "radius": 0, "flare": 150, "light_color": []any{300, 10, -5}},
			jsonutil.Object{"has_light_source": false},
			jsonutil.Object{"has_light_source": true},
		},
	})
	if len(lights) != 2 {
		t.Fatalf("expected 2 lights, got %d", len(lights))
	}
	l := lights[0]
	if l.Intensity != 255 || l.Radius != 1 || l.Flare != 100 {
		t.Errorf("expected clamped values, got %+v", l)
	}
	if l.Color.R != 255 || l.Color.G != 10 || l.Color.B != 0 {
		t.Errorf("expected clamped colour, got %v", l.Color)
	}
	d := lights[1]
	if d.Radius != 64 || d.FallOff != 50 || d.Intensity != 255 || d.FlickerSmoothness != 100 {
		t.Errorf("expected defaults, got %+v", d)
	}
	if got := d.Signature(); got != "64|50|0|255|0|100" {
		t.Errorf("expected signature 64|50|0|255|0|100, got %q", got)
	}

	single := ParseLights(jsonutil.Object{"lighting_info": jsonutil.Object{"has_light_source": true}})
	if len(single) != 1 {
		t.Errorf("expected object form to parse, got %d", len(single))
	}
}

func TestGenerateLightsRebuildsStaleCache(t *testing.T) {
	root := t.TempDir()
	var info *Info
	tool := &lightTool{root: root, info: &info}
	env := &Env{CacheRoot: root, Rebuild: newLightQueue(t, tool)}

	var err error
	info, err = NewInfo("lamp", jsonutil.Object{
		"lighting_info": []any{jsonutil.Object{"has_light_source": true, "radius": 8}},
	}, env)
	if err != nil {
		t.Fatalf("NewInfo() error = %v", err)
	}
	if !info.IsLightSource {
		t.Fatal("expected light source")
	}

	r := render.NewHeadless(64, 64)
	ctx := context.Background()
	if err := info.GenerateLights(ctx, r); err != nil {
		t.Fatalf("GenerateLights() error = %v", err)
	}
	if w, _ := info.Lights[0].Texture.Size(); w != 16 {
		t.Errorf("expected 16px light map, got %d", w)
	}
	first := len(tool.calls)
	if first == 0 {
		t.Fatal("expected the light tool to run for an empty cache")
	}

	if err := info.GenerateLights(ctx, r); err != nil {
		t.Fatalf("GenerateLights() error = %v", err)
	}
	if len(tool.calls) != first {
		t.Errorf("expected a valid cache to skip the rebuild, got calls %v", tool.calls)
	}

	if !info.SetLightProperties(0, jsonutil.Object{"radius": 20}) {
		t.Fatal("expected light 0 to be updated")
	}
	if err := info.GenerateLights(ctx, r); err != nil {
		t.Fatalf("GenerateLights() error = %v", err)
	}
	if len(tool.calls) == first {
		t.Error("expected signature change to trigger a rebuild")
	}

	meta, err := cache.LoadMetadata(cache.NewLightCache(root, "lamp").MetadataPath(), cache.LightCacheVersion)
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	if got := jsonutil.Strings(meta, "signatures"); !reflect.DeepEqual(got, []string{"20|50|0|255|0|100"}) {
		t.Errorf("expected new signatures in metadata, got %v", got)
	}
	if w, _ := info.Lights[0].Texture.Size(); w != 40 {
		t.Errorf("expected replaced 40px light map, got %d", w)
	}
	if !strings.HasSuffix(tool.calls[len(tool.calls)-1], rebuild.ScriptLightTool) {
		t.Errorf("expected light tool last, got %v", tool.calls)
	}
}

func TestGenerateLightsWithoutRebuild(t *testing.T) {
	info, err := NewInfo("lamp", jsonutil.Object{
		"lighting_info": jsonutil.Object{"has_light_source": true},
	}, &Env{CacheRoot: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	err = info.GenerateLights(context.Background(), render.NewHeadless(8, 8))
	if !errors.Is(err, ErrLightCache) {
		t.Errorf("expected ErrLightCache, got %v", err)
	}
	if info.Lights[0].Texture != nil {
		t.Error("expected lights to stay without textures")
	}
	if err := info.GenerateLights(context.Background(), nil); err != nil {
		t.Errorf("expected no-op without renderer, got %v", err)
	}
}
