package atlas

import (
	"fmt"

	"github.com/gogpu/slider/internal/bc1"
)

// NewImageTexture creates a single-layer texture holding one width×height
// RGBA8 image and records its upload into enc. This is the path for images
// kept out of the atlas.
//
// With CompressionBC1 the texture is block-compressed when both dimensions
// are multiples of 4 and RGBA8 otherwise. The caller owns the returned
// texture and view.
func NewImageTexture(device Device, enc Encoder, label string, width, height int, pixels []byte, compression Compression, flipY bool) (Texture, View, error) {
	if width <= 0 || height <= 0 {
		return nil, nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(pixels) < 4*width*height {
		return nil, nil, fmt.Errorf("%w: have %d bytes, need %d for %dx%d",
			ErrPixelDataSize, len(pixels), 4*width*height, width, height)
	}

	format := FormatRGBA8
	if compression == CompressionBC1 && ShouldCompress(width, height) {
		format = FormatBC1
	}

	tex, err := device.CreateTexture(TextureDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Layers: 1,
		Format: format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create image texture: %w", err)
	}
	view, err := device.CreateView(tex)
	if err != nil {
		device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("create image view: %w", err)
	}

	var (
		data   []byte
		layout BufferLayout
	)
	align := device.RowAlignment()
	rowBytes := 4 * width
	if format == FormatBC1 {
		src := pixels
		if flipY {
			src = PadRows(pixels, rowBytes, height, rowBytes, true)
		}
		bx, by := width/blockSize, height/blockSize
		blockRow := bx * bc1.BlockBytes
		padded := PaddedBytesPerRow(blockRow, align)
		data = PadRows(bc1.Compress(src, width, height), blockRow, by, padded, false)
		layout = BufferLayout{BytesPerRow: padded, RowsPerImage: by}
	} else {
		padded := PaddedBytesPerRow(rowBytes, align)
		data = PadRows(pixels, rowBytes, height, padded, flipY)
		layout = BufferLayout{BytesPerRow: padded, RowsPerImage: height}
	}

	buf, err := enc.CreateBuffer(label+" staging", data)
	if err != nil {
		device.DestroyView(view)
		device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("create staging buffer: %w", err)
	}
	enc.CopyBufferToTexture(buf, layout, tex, Origin{}, Extent{Width: width, Height: height})
	return tex, view, nil
}
