package cache

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// LightCacheVersion is the metadata version written by light_tool.py.
const LightCacheVersion = 3

// LightCache is the light-map folder of one asset.
type LightCache struct {
	dir string
}

// NewLightCache returns the light cache of asset under root.
func NewLightCache(root, asset string) *LightCache {
	return &LightCache{dir: filepath.Join(root, asset, "lights")}
}

// Dir returns the cache folder.
func (c *LightCache) Dir() string { return c.dir }

// MetadataPath returns the metadata.json path.
func (c *LightCache) MetadataPath() string { return filepath.Join(c.dir, "metadata.json") }

// LightPath returns the texture path of light i.
func (c *LightCache) LightPath(i int) string {
	return filepath.Join(c.dir, fmt.Sprintf("light_%d.png", i))
}

// Load returns the cached light maps when the metadata version matches,
// the stored signatures equal signatures in order, and every light_<i>.png
// decodes.
func (c *LightCache) Load(signatures []string) ([]image.Image, error) {
	meta, err := LoadMetadata(c.MetadataPath(), LightCacheVersion)
	if err != nil {
		return nil, err
	}
	stored := jsonutil.Strings(meta, "signatures")
	if !slices.Equal(stored, signatures) {
		logger.Debug("light cache signature mismatch",
			zap.String("dir", c.dir),
			zap.Strings("stored", stored),
			zap.Strings("current", signatures))
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalid)
	}

	images := make([]image.Image, 0, len(signatures))
	for i := range signatures {
		img, err := LoadImage(c.LightPath(i))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// Store writes light maps and their metadata.
func (c *LightCache) Store(signatures []string, images []image.Image) error {
	if len(signatures) != len(images) {
		return fmt.Errorf("have %d signatures for %d images", len(signatures), len(images))
	}
	for i, img := range images {
		if err := SaveImage(c.LightPath(i), img); err != nil {
			return err
		}
	}
	meta := jsonutil.Object{
		"version":    LightCacheVersion,
		"signatures": jsonutil.StringsToArray(signatures),
	}
	return SaveMetadata(c.MetadataPath(), meta)
}

// Clear removes the cache folder.
func (c *LightCache) Clear() error {
	return os.RemoveAll(c.dir)
}
