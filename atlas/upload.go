package atlas

import (
	"context"
	"fmt"
	"log/slog"
)

// Upload allocates space for a width×height RGBA8 image, grows the texture
// if the allocation appended layers and records the copies that move the
// pixels into place. pixels holds rows top-down, 4 bytes per pixel.
//
// With Config.FlipY the image is flipped as a whole before it is cut into
// fragments, so fragment positions count from the bottom edge.
//
// On error nothing stays allocated. If the texture was grown before the
// error, enc still carries the layer copies and must be submitted rather
// than discarded; the generation of Binding tells the two cases apart.
// A texture that cannot be grown yields ErrAtlasFull.
func (a *Atlas) Upload(enc Encoder, width, height int, pixels []byte) (*Entry, error) {
	entry, err := a.reserve(width, height, pixels)
	if err != nil {
		return nil, err
	}

	if missing := a.missingLayers(); missing > 0 {
		if err := a.Grow(enc, missing); err != nil {
			a.release(entry)
			return nil, fmt.Errorf("grow atlas: %w", err)
		}
	}

	if err := a.record(enc, entry, pixels); err != nil {
		a.release(entry)
		return nil, err
	}
	a.logUpload(entry)
	return entry, nil
}

// reserve validates an upload and allocates space for it.
func (a *Atlas) reserve(width, height int, pixels []byte) (*Entry, error) {
	if a.closed {
		return nil, ErrAtlasClosed
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(pixels) < 4*width*height {
		return nil, fmt.Errorf("%w: have %d bytes, need %d for %dx%d",
			ErrPixelDataSize, len(pixels), 4*width*height, width, height)
	}

	size := a.config.Size
	if a.config.Compression == CompressionBC1 && width <= size && height <= size && !ShouldCompress(width, height) {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidCompressionInput, width, height)
	}
	return a.Allocate(width, height)
}

// record stages the pixels of entry and records the copies into the
// current texture.
func (a *Atlas) record(enc Encoder, entry *Entry, pixels []byte) error {
	if a.config.Compression == CompressionBC1 {
		return a.uploadBC1(enc, entry, pixels)
	}
	return a.uploadRGBA(enc, entry, pixels)
}

func (a *Atlas) logUpload(entry *Entry) {
	l := slogger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s := a.Stats()
	l.Debug("atlas upload",
		"width", entry.Width, "height", entry.Height,
		"fragments", len(entry.Fragments),
		"layers", s.Layers, "busy", s.BusyLayers, "full", s.FullLayers,
		"allocations", s.Allocations)
}

// uploadRGBA stages the whole image once with padded rows and copies every
// allocation out of the shared buffer.
func (a *Atlas) uploadRGBA(enc Encoder, entry *Entry, pixels []byte) error {
	width, height := entry.Width, entry.Height
	rowBytes := 4 * width
	padded := PaddedBytesPerRow(rowBytes, a.device.RowAlignment())

	staging := PadRows(pixels, rowBytes, height, padded, a.config.FlipY)
	buf, err := enc.CreateBuffer(a.config.Label+" staging", staging)
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}

	for _, p := range entry.placements() {
		x, y := p.Allocation.Position()
		w, h := p.Allocation.Size()
		enc.CopyBufferToTexture(buf,
			BufferLayout{
				Offset:       p.Y*padded + 4*p.X,
				BytesPerRow:  padded,
				RowsPerImage: height,
			},
			a.texture,
			Origin{X: x, Y: y, Layer: p.Allocation.Layer},
			Extent{Width: w, Height: h},
		)
	}
	return nil
}
