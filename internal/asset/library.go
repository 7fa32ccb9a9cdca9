package asset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/internal/manifest"
	"github.com/Faultbox/vibble/internal/render"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Library holds every Info built from the manifest, keyed by name.
type Library struct {
	env *Env

	mu    sync.RWMutex
	infos map[string]*Info

	noRendererOnce sync.Once
}

// NewLibrary creates an empty library whose infos share env.
func NewLibrary(env *Env) *Library {
	if env == nil {
		env = &Env{}
	}
	return &Library{env: env, infos: make(map[string]*Info)}
}

// Get returns the named info.
func (l *Library) Get(name string) (*Info, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.infos[name]
	return info, ok
}

// Names returns all asset names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.infos))
	for n := range l.infos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of infos.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.infos)
}

// Add registers info, replacing any previous one with the same name.
func (l *Library) Add(info *Info) {
	if info == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.infos[info.Name]; ok && prev != info {
		prev.ReleaseAnimations()
		prev.ClearLights()
	}
	l.infos[info.Name] = info
}

// Remove drops the named info and releases its textures.
func (l *Library) Remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, ok := l.infos[name]
	if !ok {
		return false
	}
	info.ReleaseAnimations()
	info.ClearLights()
	delete(l.infos, name)
	return true
}

// LoadAllFromSRC synchronizes the manifest with the asset folders under
// the store's SRC root, then builds every entry on a worker pool. Entries
// that fail are logged and skipped.
func (l *Library) LoadAllFromSRC(ctx context.Context, store *manifest.Store) error {
	root := filepath.Join(store.SrcRoot(), "assets")
	changed, err := store.UpdateAssets(func(assets jsonutil.Object) bool {
		return syncAssets(assets, root)
	})
	if err != nil {
		logger.Warn("failed to persist manifest sync", zap.Error(err))
	} else if changed {
		logger.Info("manifest assets synchronized with asset folders", zap.String("root", root))
	}

	type job struct {
		name  string
		entry jsonutil.Object
	}
	var jobs []job
	failed := 0
	raw := store.Snapshot()
	section, _ := jsonutil.GetObject(raw, manifest.SectionAssets)
	for _, name := range sortedKeys(section) {
		entry, ok := section[name].(map[string]any)
		if !ok {
			failed++
			logger.Warn("manifest entry is not an object", zap.String("asset", name))
			continue
		}
		jobs = append(jobs, job{name, entry})
	}

	start := time.Now()
	var (
		mu      sync.Mutex
		loaded  = make(map[string]*Info, len(jobs))
		errs    error
		workers = min(len(jobs), runtime.NumCPU())
	)
	if workers > 0 {
		slice := (len(jobs) + workers - 1) / workers
		g, gctx := errgroup.WithContext(ctx)
		for lo := 0; lo < len(jobs); lo += slice {
			part := jobs[lo:min(lo+slice, len(jobs))]
			g.Go(func() error {
				for _, j := range part {
					if err := gctx.Err(); err != nil {
						return err
					}
					info, err := NewInfo(j.name, j.entry, l.env)
					mu.Lock()
					if err != nil {
						failed++
						errs = multierr.Append(errs, fmt.Errorf("asset %s: %w", j.name, err))
						logger.Warn("failed to load asset", zap.String("asset", j.name), zap.Error(err))
					} else {
						loaded[j.name] = info
					}
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	l.mu.Lock()
	for _, info := range l.infos {
		info.ReleaseAnimations()
		info.ClearLights()
	}
	l.infos = loaded
	l.mu.Unlock()

	logger.Info("asset library loaded",
		zap.Int("loaded", len(loaded)),
		zap.Int("failed", failed),
		zap.Int("workers", workers),
		zap.Duration("elapsed", time.Since(start)))
	return errs
}

// LoadAllAnimations loads frames for every info and uploads them through r.
// Without a renderer frames are decoded but no textures are created.
func (l *Library) LoadAllAnimations(r render.Renderer) error {
	if r == nil {
		l.noRendererOnce.Do(func() {
			logger.Warn("loading animations without a renderer")
		})
	}
	var errs error
	for _, name := range l.Names() {
		info, _ := l.Get(name)
		if err := info.LoadAnimations(r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("asset %s: %w", name, err))
		}
	}
	return errs
}

// syncAssets reconciles the assets section with the folders under root and
// logs what changed per asset. It reports whether anything changed.
func syncAssets(assets jsonutil.Object, root string) bool {
	dirty := false
	names := sortedKeys(assets)
	for _, dir := range discoverAssetDirs(root) {
		if _, ok := assets[dir]; !ok {
			names = append(names, dir)
		}
	}
	for _, name := range names {
		entry, ok := assets[name].(map[string]any)
		if !ok {
			if _, present := assets[name]; present {
				continue
			}
			entry = jsonutil.Object{}
		}
		before := jsonutil.CloneObject(entry)
		if ensureEntryShape(name, entry, root) {
			assets[name] = entry
			logger.Info("manifest entry synchronized",
				zap.String("asset", name), zap.Strings("changed", diffKeys(before, entry)))
			dirty = true
		}
	}
	return dirty
}

func ensureEntryShape(name string, entry jsonutil.Object, root string) bool {
	mutated := false
	if jsonutil.String(entry, "asset_name", "") == "" {
		entry["asset_name"] = name
		mutated = true
	}
	if jsonutil.String(entry, "asset_directory", "") == "" {
		entry["asset_directory"] = filepath.ToSlash(filepath.Join(root, name))
		mutated = true
	}
	return ensureAnimationFolders(entry, filepath.Join(root, name)) || mutated
}

type animationFolder struct {
	name, path string
}

func ensureAnimationFolders(entry jsonutil.Object, dir string) bool {
	folders := discoverAnimationFolders(dir)
	if len(folders) == 0 {
		return false
	}
	anims, created := jsonutil.EnsureObject(entry, "animations")
	mutated := created
	for _, f := range folders {
		slot, ok := anims[f.name].(map[string]any)
		if !ok {
			slot = jsonutil.Object{}
			anims[f.name] = slot
			mutated = true
		}
		src, ok := slot["source"].(map[string]any)
		if !ok {
			src = jsonutil.Object{}
			slot["source"] = src
			mutated = true
		}
		if jsonutil.String(src, "kind", "") == "" {
			src["kind"] = "folder"
			mutated = true
		}
		if p, ok := src["path"].(string); !ok || p != f.path {
			src["path"] = f.path
			mutated = true
		}
		if _, ok := slot["loop"].(bool); !ok {
			slot["loop"] = true
			mutated = true
		}
		if _, ok := slot["locked"].(bool); !ok {
			slot["locked"] = false
			mutated = true
		}
	}
	return ensureStart(entry, anims) || mutated
}

// discoverAnimationFolders lists the PNG folders of an asset directory.
// Root-level PNGs form the default animation.
func discoverAnimationFolders(dir string) []animationFolder {
	var out []animationFolder
	seen := map[string]struct{}{}
	if countPNG(dir) > 0 {
		out = append(out, animationFolder{name: "default"})
		seen["default"] = struct{}{}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || isReservedAnimation(name) {
			continue
		}
		if _, dup := seen[name]; dup || countPNG(filepath.Join(dir, name)) == 0 {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, animationFolder{name: name, path: name})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].name < out[b].name })
	return out
}

func countPNG(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			n++
		}
	}
	return n
}

func discoverAssetDirs(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn("assets root missing or unreadable", zap.String("root", root), zap.Error(err))
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func diffKeys(before, after jsonutil.Object) []string {
	var keys []string
	for _, k := range sortedKeys(after) {
		if !reflect.DeepEqual(before[k], after[k]) {
			keys = append(keys, k)
		}
	}
	return keys
}
