package manifest

import (
	"github.com/Faultbox/vibble/pkg/encoding"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Resolve maps a user-supplied asset name to its manifest key. It tries the
// exact key, then a case-insensitive match, then a directory alias (an asset
// whose asset_directory, or its last element, equals the input).
func (s *Store) Resolve(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := s.view(SectionAssets)
	if _, ok := assets[name]; ok {
		return name, true
	}

	keys := sortedKeys(assets)
	folded := encoding.FoldName(name)
	for _, key := range keys {
		if encoding.FoldName(key) == folded {
			return key, true
		}
	}

	wantPath := encoding.NormalizePath(name)
	for _, key := range keys {
		entry, ok := assets[key].(map[string]any)
		if !ok {
			continue
		}
		dir := jsonutil.String(entry, "asset_directory", "")
		if dir == "" {
			continue
		}
		if encoding.NormalizePath(dir) == wantPath || encoding.FoldName(encoding.BaseName(dir)) == folded {
			return key, true
		}
	}
	return "", false
}
