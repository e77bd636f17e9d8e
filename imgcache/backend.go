package imgcache

import (
	"context"
	"fmt"

	"github.com/gogpu/slider/source"
)

// Backend loads images into a form a renderer can draw and releases them.
//
// Decode does the CPU work and may run concurrently for several sources.
// Store moves a decoded image to its final home. Release frees what Store
// created; it is called exactly once per CachedData, when the slot holding
// it is overwritten, shifted out or cleared.
type Backend interface {
	Decode(src source.Source) (*Decoded, error)
	Store(ctx context.Context, d *Decoded) (*CachedData, error)
	Release(data *CachedData)
}

// Decoded is an image read from its source, ready for Backend.Store.
type Decoded struct {
	Source source.Source

	// Encoded holds the bytes read from the source.
	Encoded []byte

	// Pixels is the decoded image. It is nil for backends that keep
	// encoded bytes.
	Pixels *source.Pixels

	Meta Metadata
}

// Load decodes and stores the image of src.
func Load(ctx context.Context, b Backend, src source.Source) (*CachedData, error) {
	d, err := b.Decode(src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Store(ctx, d)
}

// readSource reads src and its header. With decode set the pixels are
// decoded too.
func readSource(r source.Reader, src source.Source, decode bool) (*Decoded, error) {
	data, err := r.ReadBytes(src)
	if err != nil {
		return nil, err
	}
	cfg, err := source.DecodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.FileName(), err)
	}
	d := &Decoded{
		Source:  src,
		Encoded: data,
		Meta:    Metadata{Width: cfg.Width, Height: cfg.Height, FileSize: uint64(len(data))},
	}
	if decode {
		if d.Pixels, err = source.Decode(data); err != nil {
			return nil, fmt.Errorf("%s: %w", src.FileName(), err)
		}
	}
	return d, nil
}

// CPUBackend keeps encoded bytes in memory. Images are decoded when drawn,
// for example through CPUTextures.
type CPUBackend struct {
	Reader source.Reader
}

// Decode reads the bytes of src and its dimensions.
func (b *CPUBackend) Decode(src source.Source) (*Decoded, error) {
	return readSource(b.Reader, src, false)
}

// Store wraps the encoded bytes.
func (b *CPUBackend) Store(_ context.Context, d *Decoded) (*CachedData, error) {
	return NewCPUData(d.Encoded, d.Meta.Width, d.Meta.Height, d.Meta), nil
}

// Release does nothing; CPU data is reclaimed by the garbage collector.
func (b *CPUBackend) Release(*CachedData) {}
