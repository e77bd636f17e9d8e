package imgcache

import (
	"context"
	"fmt"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/source"
)

// TextureBackend uploads every image to its own texture.
type TextureBackend struct {
	Reader source.Reader
	Device atlas.Device

	// Compression selects BC1 for images whose dimensions are multiples
	// of 4. Other images use RGBA8.
	Compression atlas.Compression

	// FlipY uploads rows bottom-up.
	FlipY bool
}

// Decode reads and decodes src.
func (b *TextureBackend) Decode(src source.Source) (*Decoded, error) {
	return readSource(b.Reader, src, true)
}

// Store creates the texture and submits its upload.
func (b *TextureBackend) Store(_ context.Context, d *Decoded) (*CachedData, error) {
	if d.Pixels == nil {
		return nil, fmt.Errorf("imgcache: %s was not decoded", d.Source.FileName())
	}
	p := d.Pixels

	enc, err := b.Device.CreateEncoder("image upload")
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	label := "image " + d.Source.FileName()
	tex, view, err := atlas.NewImageTexture(b.Device, enc, label, p.Width, p.Height, p.Data, b.Compression, b.FlipY)
	if err != nil {
		enc.Discard()
		return nil, err
	}
	if err := b.Device.Submit(enc); err != nil {
		b.Device.DestroyView(view)
		b.Device.DestroyTexture(tex)
		return nil, fmt.Errorf("submit image upload: %w", err)
	}

	slogger().Debug("imgcache: texture created", "source", d.Source.FileName(),
		"width", p.Width, "height", p.Height, "format", tex.Format())
	return newTextureData(tex, view, p.Width, p.Height, d.Meta), nil
}

// Release destroys the texture and its view.
func (b *TextureBackend) Release(data *CachedData) {
	if data == nil || data.texture == nil {
		return
	}
	b.Device.DestroyView(data.view)
	b.Device.DestroyTexture(data.texture)
	data.view, data.texture = nil, nil
}
