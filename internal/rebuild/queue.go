package rebuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Script names under the tools directory.
const (
	ScriptAssetTool      = "asset_tool.py"
	ScriptLightTool      = "light_tool.py"
	ScriptSetRebuild     = "set_rebuild_values.py"
	ScriptCacheValidator = "cache_validator.py"
)

// Queue is the facade over rebuild flags and tool invocations. Marking is
// delegated to set_rebuild_values.py, which owns the manifest edit; the
// queue only reads the resulting flags back.
type Queue struct {
	tool         Tool
	toolsDir     string
	manifestPath string
	env          []string
}

// NewQueue creates a queue running scripts from toolsDir against the
// manifest at manifestPath.
func NewQueue(tool Tool, toolsDir, manifestPath string) *Queue {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		abs = manifestPath
	}
	return &Queue{tool: tool, toolsDir: toolsDir, manifestPath: abs}
}

// SetEnv sets extra environment entries for every tool run.
func (q *Queue) SetEnv(env []string) { q.env = append([]string(nil), env...) }

// ManifestPath returns the absolute manifest path passed to the tools.
func (q *Queue) ManifestPath() string { return q.manifestPath }

// RequestFullAssetRebuild marks every frame of every asset.
func (q *Queue) RequestFullAssetRebuild(ctx context.Context) bool {
	return q.mark(ctx, "all")
}

// RequestAsset marks an asset, or only the listed animations of it.
func (q *Queue) RequestAsset(ctx context.Context, asset string, animations ...string) bool {
	if asset == "" {
		return false
	}
	if len(animations) == 0 {
		return q.mark(ctx, "asset", asset)
	}
	ok := true
	for _, anim := range animations {
		ok = q.RequestAnimation(ctx, asset, anim) && ok
	}
	return ok
}

// RequestAnimation marks every frame of one animation.
func (q *Queue) RequestAnimation(ctx context.Context, asset, animation string) bool {
	if asset == "" || animation == "" {
		return false
	}
	return q.mark(ctx, "animation", asset, animation)
}

// RequestFrame marks a single frame.
func (q *Queue) RequestFrame(ctx context.Context, asset, animation string, frame int) bool {
	if asset == "" || animation == "" || frame < 0 {
		return false
	}
	return q.mark(ctx, "frame", asset, animation, strconv.Itoa(frame))
}

// RequestFullLightRebuild marks every light of every asset.
func (q *Queue) RequestFullLightRebuild(ctx context.Context) bool {
	return q.mark(ctx, "lighting_all")
}

// RequestLight marks all lights of one asset.
func (q *Queue) RequestLight(ctx context.Context, asset string) bool {
	if asset == "" {
		return false
	}
	return q.mark(ctx, "lighting_asset", asset)
}

// RequestLightEntry marks one light of an asset.
func (q *Queue) RequestLightEntry(ctx context.Context, asset string, index int) bool {
	if asset == "" || index < 0 {
		return false
	}
	return q.mark(ctx, "lighting_light", asset, strconv.Itoa(index))
}

// RunAssetTool regenerates frames for every flagged animation.
func (q *Queue) RunAssetTool(ctx context.Context) bool {
	return q.run(ctx, ScriptAssetTool)
}

// RunLightTool regenerates flagged light maps.
func (q *Queue) RunLightTool(ctx context.Context) bool {
	return q.run(ctx, ScriptLightTool)
}

// ValidateManifestCache checks the cache against the manifest.
func (q *Queue) ValidateManifestCache(ctx context.Context) bool {
	return q.run(ctx, ScriptCacheValidator, "--manifest", q.manifestPath)
}

func (q *Queue) mark(ctx context.Context, scope string, args ...string) bool {
	full := append([]string{scope}, args...)
	full = append(full, "--manifest", q.manifestPath)
	return q.run(ctx, ScriptSetRebuild, full...)
}

func (q *Queue) run(ctx context.Context, script string, args ...string) bool {
	path := filepath.Join(q.toolsDir, script)
	if _, err := os.Stat(path); err != nil {
		logger.Warn("missing rebuild script", zap.String("script", path))
		return false
	}
	if q.tool == nil {
		logger.Warn("no rebuild tool configured", zap.String("script", script))
		return false
	}

	logger.Info("rebuild queue running script", zap.String("script", script), zap.Strings("args", args))
	code, err := q.tool.Run(ctx, append([]string{path}, args...), q.env)
	if err != nil {
		logger.Warn("rebuild script failed to start", zap.String("script", script), zap.Error(err))
		return false
	}
	if code != 0 {
		logger.Warn("rebuild script exited with error", zap.String("script", script), zap.Int("code", code))
		return false
	}
	return true
}

// HasPendingAssetWork reports whether any frame in the manifest file is
// flagged needs_rebuild.
func (q *Queue) HasPendingAssetWork() bool {
	doc, err := q.readManifest()
	if err != nil {
		return false
	}
	return AssetWorkPending(doc)
}

// HasPendingLightWork reports whether any light in the manifest file is
// flagged needs_rebuild.
func (q *Queue) HasPendingLightWork() bool {
	doc, err := q.readManifest()
	if err != nil {
		return false
	}
	return LightWorkPending(doc)
}

func (q *Queue) readManifest() (jsonutil.Object, error) {
	raw, err := os.ReadFile(q.manifestPath)
	if err != nil {
		return nil, err
	}
	doc, err := jsonutil.Decode(raw)
	if err != nil {
		if !errors.Is(err, jsonutil.ErrNotObject) {
			logger.Debug("manifest unreadable while scanning rebuild flags", zap.Error(err))
		}
		return nil, err
	}
	return doc, nil
}
