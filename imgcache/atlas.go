package imgcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/source"
)

// AtlasBackend packs images into a shared atlas. Images the atlas rejects
// get an individual uncompressed texture instead: ErrAtlasFull covers both
// the layer limit and a larger texture the device could not create, and
// ErrInvalidCompressionInput covers BC1 input with unaligned dimensions.
type AtlasBackend struct {
	atlas    *atlas.Shared
	fallback TextureBackend

	fallbacks atomic.Int64
}

// NewAtlasBackend creates a backend uploading to a. Fallback textures are
// created on the atlas device.
func NewAtlasBackend(r source.Reader, a *atlas.Shared) *AtlasBackend {
	return &AtlasBackend{
		atlas: a,
		fallback: TextureBackend{
			Reader:      r,
			Device:      a.Device(),
			Compression: atlas.CompressionNone,
			FlipY:       a.Config().FlipY,
		},
	}
}

// Atlas returns the atlas images are packed into.
func (b *AtlasBackend) Atlas() *atlas.Shared {
	return b.atlas
}

// Fallbacks returns how many images were stored outside the atlas.
func (b *AtlasBackend) Fallbacks() int64 {
	return b.fallbacks.Load()
}

// Decode reads and decodes src.
func (b *AtlasBackend) Decode(src source.Source) (*Decoded, error) {
	return b.fallback.Decode(src)
}

// Store uploads the image into the atlas.
func (b *AtlasBackend) Store(ctx context.Context, d *Decoded) (*CachedData, error) {
	if d.Pixels == nil {
		return nil, fmt.Errorf("imgcache: %s was not decoded", d.Source.FileName())
	}
	p := d.Pixels

	entry, err := b.atlas.Upload(p.Width, p.Height, p.Data)
	switch {
	case err == nil:
		format := b.atlas.Config().Compression.Format()
		slogger().Debug("imgcache: packed into atlas", "source", d.Source.FileName(),
			"width", p.Width, "height", p.Height, "fragmented", entry.Fragmented())
		return newAtlasData(entry, format, d.Meta), nil
	case errors.Is(err, atlas.ErrAtlasFull), errors.Is(err, atlas.ErrInvalidCompressionInput):
		b.fallbacks.Add(1)
		slogger().Warn("imgcache: atlas rejected image, using individual texture",
			"source", d.Source.FileName(), "width", p.Width, "height", p.Height, "err", err)
		return b.fallback.Store(ctx, d)
	default:
		return nil, fmt.Errorf("atlas upload %s: %w", d.Source.FileName(), err)
	}
}

// Release frees the atlas entry or the fallback texture.
func (b *AtlasBackend) Release(data *CachedData) {
	if data == nil {
		return
	}
	if data.entry != nil {
		b.atlas.Remove(data.entry)
		data.entry = nil
		return
	}
	b.fallback.Release(data)
}
