// Package cache provides a content-addressed LRU cache for GPU resources
// built from image bytes.
//
// Keys are xxh3 hashes of the source bytes, so identical images decoded
// from different paths share one texture. Evicted values are handed to a
// release callback, which is where the owner destroys the GPU resource.
//
// Example:
//
//	textures := cache.New(32, func(t *Texture) { t.Destroy() })
//	tex, err := textures.GetOrCreate(encoded, func() (*Texture, error) {
//	    return upload(encoded)
//	})
package cache
