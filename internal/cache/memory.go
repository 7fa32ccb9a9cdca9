package cache

import (
	"image"
	"sync"
)

// ImageCache is an in-memory cache of decoded images keyed by path.
type ImageCache struct {
	data map[string]image.Image
	mu   sync.Mutex

	// Stats
	hits   int
	misses int
}

// NewImageCache creates a new cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		data: make(map[string]image.Image),
	}
}

// Get retrieves an image from cache.
func (c *ImageCache) Get(key string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return img, ok
}

// Set stores an image in cache.
func (c *ImageCache) Set(key string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = img
}

// Load returns the cached image for path, decoding it on first use.
func (c *ImageCache) Load(path string) (image.Image, error) {
	if img, ok := c.Get(path); ok {
		return img, nil
	}
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	c.Set(path, img)
	return img, nil
}

// Invalidate drops every entry.
func (c *ImageCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]image.Image)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *ImageCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
