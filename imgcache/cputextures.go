package imgcache

import (
	"context"
	"fmt"

	"github.com/gogpu/slider/cache"
	"github.com/gogpu/slider/source"
)

// CPUTextures presents CPU-cached images as textures. Textures are keyed by
// the content of the encoded bytes, so identical images share one texture
// and a slot that returns to view reuses the texture made for it earlier.
//
// CPUTextures is safe for concurrent use.
type CPUTextures struct {
	backend *TextureBackend
	cache   *cache.Cache[*CachedData]
}

// NewCPUTextures creates a texture cache holding at most capacity textures
// created through b.
func NewCPUTextures(b *TextureBackend, capacity int) *CPUTextures {
	return &CPUTextures{
		backend: b,
		cache:   cache.New(capacity, b.Release),
	}
}

// Texture returns the texture for CPU data, creating it on first use. The
// decode and upload run outside the cache lock; callers asking for the
// same image meanwhile wait for that upload. The returned data is owned
// by the texture cache; do not release it.
func (t *CPUTextures) Texture(ctx context.Context, data *CachedData) (*CachedData, error) {
	encoded, err := data.Bytes()
	if err != nil {
		return nil, err
	}
	return t.cache.GetOrCreate(encoded, func() (*CachedData, error) {
		pixels, err := source.Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode cached image: %w", err)
		}
		return t.backend.Store(ctx, &Decoded{
			Encoded: encoded,
			Pixels:  pixels,
			Meta:    data.meta,
		})
	})
}

// Stats returns texture cache statistics.
func (t *CPUTextures) Stats() cache.Stats {
	return t.cache.Stats()
}

// Close destroys every cached texture.
func (t *CPUTextures) Close() {
	t.cache.Clear()
}
