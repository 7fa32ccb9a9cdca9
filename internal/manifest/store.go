// Package manifest is the transactional store for manifest.json: the
// catalogue of assets, maps and rebuild flags shared by the engine and the
// external content tools.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Top-level manifest sections.
const (
	SectionAssets = "assets"
	SectionMaps   = "maps"

	DefaultVersion = 1
)

var (
	// ErrNotFound is returned when an asset or map entry does not exist.
	ErrNotFound = errors.New("manifest: entry not found")
	// ErrEmptyName is returned for blank asset or map names.
	ErrEmptyName = errors.New("manifest: empty name")
	// ErrClosed is returned when a finished transaction is reused.
	ErrClosed = errors.New("manifest: transaction closed")
)

// srcFolders are created under the SRC root on every load.
var srcFolders = []string{
	"",
	"assets",
	"misc_content",
	"loading_screen_content",
	"LOADING CONTENT",
}

// Store owns the in-memory manifest document and its file.
type Store struct {
	mu      sync.RWMutex
	path    string
	srcRoot string
	data    jsonutil.Object
	cached  jsonutil.Object // Last document that parsed successfully

	retryDelay time.Duration

	obsMu     sync.Mutex
	observers []func()
}

// New creates a store for the manifest at path. srcRoot is the SRC content
// directory scaffolded next to it.
func New(path, srcRoot string) *Store {
	return &Store{
		path:       path,
		srcRoot:    srcRoot,
		data:       DefaultDocument(),
		retryDelay: 50 * time.Millisecond,
	}
}

// DefaultDocument returns an empty valid manifest.
func DefaultDocument() jsonutil.Object {
	return jsonutil.Object{
		"version":      DefaultVersion,
		SectionAssets: jsonutil.Object{},
		SectionMaps:   jsonutil.Object{},
	}
}

// Path returns the manifest file path.
func (s *Store) Path() string { return s.path }

// SrcRoot returns the SRC content directory.
func (s *Store) SrcRoot() string { return s.srcRoot }

// OnFlush registers a callback invoked after every successful write.
func (s *Store) OnFlush(fn func()) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

// Load reads the manifest from disk. Parse failures never surface as errors:
// the read is retried once and then the last good in-process copy is used.
// The returned error only reports scaffolding or write-back failures.
func (s *Store) Load() error {
	if err := s.ensureScaffolding(); err != nil {
		return err
	}

	doc, err := s.readWithRetry()
	s.mu.Lock()
	if err != nil {
		if s.cached != nil {
			logger.Warn("manifest unreadable, using cached copy",
				zap.String("path", s.path), zap.Error(err))
			s.data = jsonutil.CloneObject(s.cached)
		} else {
			logger.Warn("manifest unreadable and no cached copy, using defaults",
				zap.String("path", s.path), zap.Error(err))
			s.data = DefaultDocument()
		}
		s.mu.Unlock()
		return nil
	}

	repaired := repair(doc)
	s.data = doc
	s.cached = jsonutil.CloneObject(doc)
	s.mu.Unlock()

	if len(repaired) > 0 {
		logger.Warn("manifest repaired", zap.String("path", s.path), zap.Strings("fixes", repaired))
		if err := s.Flush(); err != nil {
			return fmt.Errorf("writing repaired manifest: %w", err)
		}
	}
	return nil
}

func (s *Store) ensureScaffolding() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating manifest dir: %w", err)
		}
	}
	if s.srcRoot != "" {
		for _, sub := range srcFolders {
			if err := os.MkdirAll(filepath.Join(s.srcRoot, sub), 0755); err != nil {
				return fmt.Errorf("creating %s: %w", filepath.Join(s.srcRoot, sub), err)
			}
		}
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		logger.Info("creating default manifest", zap.String("path", s.path))
		data, err := jsonutil.Encode(DefaultDocument())
		if err != nil {
			return err
		}
		if err := writeAtomic(s.path, data); err != nil {
			return fmt.Errorf("creating default manifest: %w", err)
		}
	}
	return nil
}

func (s *Store) readWithRetry() (jsonutil.Object, error) {
	doc, err := readDocument(s.path)
	if err == nil {
		return doc, nil
	}
	logger.Debug("manifest read failed, retrying", zap.Error(err))
	time.Sleep(s.retryDelay)
	return readDocument(s.path)
}

func readDocument(path string) (jsonutil.Object, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := jsonutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// repair fixes the top-level shape in place and returns what it changed.
func repair(doc jsonutil.Object) []string {
	var fixes []string
	if !jsonutil.IsNumber(doc["version"]) {
		doc["version"] = DefaultVersion
		fixes = append(fixes, "version")
	}
	if _, changed := jsonutil.EnsureObject(doc, SectionAssets); changed {
		fixes = append(fixes, SectionAssets)
	}
	if _, changed := jsonutil.EnsureObject(doc, SectionMaps); changed {
		fixes = append(fixes, SectionMaps)
	}

	assets := doc[SectionAssets].(map[string]any)
	for _, name := range sortedKeys(assets) {
		entry, ok := assets[name].(map[string]any)
		if !ok {
			delete(assets, name)
			fixes = append(fixes, "assets."+name+" (not an object)")
			continue
		}
		if jsonutil.String(entry, "asset_name", "") != name {
			entry["asset_name"] = name
			fixes = append(fixes, "assets."+name+".asset_name")
		}
	}
	return fixes
}

// Flush writes the current document atomically and notifies observers.
func (s *Store) Flush() error {
	s.mu.RLock()
	data, err := jsonutil.Encode(s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = jsonutil.CloneObject(s.data)
	s.mu.Unlock()

	s.obsMu.Lock()
	observers := append([]func(){}, s.observers...)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn()
	}
	return nil
}

// writeAtomic writes to path+".tmp" and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("committing %s: %w", path, err)
	}
	return nil
}

// Snapshot returns a deep copy of the whole document.
func (s *Store) Snapshot() jsonutil.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jsonutil.CloneObject(s.data)
}

// Version returns the manifest version number.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jsonutil.Int(s.data, "version", DefaultVersion)
}

// view returns a section for reading. A missing section reads as empty and
// is not stored, so callers may hold only the read lock.
func (s *Store) view(name string) jsonutil.Object {
	if sec, ok := s.data[name].(map[string]any); ok {
		return sec
	}
	return jsonutil.Object{}
}

// section returns a section for writing, creating it when missing. The
// caller holds the write lock.
func (s *Store) section(name string) jsonutil.Object {
	if sec, ok := s.data[name].(map[string]any); ok {
		return sec
	}
	sec := jsonutil.Object{}
	s.data[name] = sec
	return sec
}

// Asset returns a copy of the named asset entry.
func (s *Store) Asset(name string) (jsonutil.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.view(SectionAssets)[name].(map[string]any)
	if !ok {
		return nil, false
	}
	return jsonutil.CloneObject(entry), true
}

// AssetNames returns all asset keys in sorted order.
func (s *Store) AssetNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.view(SectionAssets))
}

// Assets returns copies of all asset entries keyed by name.
func (s *Store) Assets() map[string]jsonutil.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.view(SectionAssets)
	out := make(map[string]jsonutil.Object, len(src))
	for name, v := range src {
		if entry, ok := v.(map[string]any); ok {
			out[name] = jsonutil.CloneObject(entry)
		}
	}
	return out
}

// FindMap returns a copy of the map entry with the given id.
func (s *Store) FindMap(id string) (jsonutil.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.view(SectionMaps)[id].(map[string]any)
	if !ok {
		return nil, false
	}
	return jsonutil.CloneObject(entry), true
}

// MapIDs returns all map ids in sorted order.
func (s *Store) MapIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.view(SectionMaps))
}

// UpdateAssets runs fn on a copy of the assets section. When fn reports a
// change the copy replaces the section and the manifest is flushed; on a
// failed flush the previous section is restored.
func (s *Store) UpdateAssets(fn func(assets jsonutil.Object) bool) (bool, error) {
	s.mu.Lock()
	prev := s.section(SectionAssets)
	draft := jsonutil.CloneObject(prev)
	if !fn(draft) {
		s.mu.Unlock()
		return false, nil
	}
	s.data[SectionAssets] = draft
	s.mu.Unlock()

	if err := s.Flush(); err != nil {
		s.mu.Lock()
		s.data[SectionAssets] = prev
		s.mu.Unlock()
		return false, err
	}
	return true, nil
}

// RemoveAsset deletes the named asset and persists the change. It reports
// whether an entry was removed.
func (s *Store) RemoveAsset(name string) (bool, error) {
	if name == "" {
		return false, ErrEmptyName
	}
	s.mu.Lock()
	assets := s.section(SectionAssets)
	prev, ok := assets[name]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(assets, name)
	s.mu.Unlock()

	if err := s.Flush(); err != nil {
		s.mu.Lock()
		s.section(SectionAssets)[name] = prev
		s.mu.Unlock()
		return false, err
	}
	logger.Info("removed asset from manifest", zap.String("asset", name))
	return true, nil
}

// RemoveAssetFromFile deletes an asset by editing the manifest file
// directly, for callers that have no Store. An unparsable file is left
// untouched.
func RemoveAssetFromFile(path, name string) (bool, error) {
	if name == "" {
		return false, ErrEmptyName
	}
	doc, err := readDocument(path)
	if err != nil {
		return false, err
	}
	repair(doc)
	assets := doc[SectionAssets].(map[string]any)
	if _, ok := assets[name]; !ok {
		return false, nil
	}
	delete(assets, name)
	data, err := jsonutil.Encode(doc)
	if err != nil {
		return false, err
	}
	if err := writeAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
