package atlas

import (
	"fmt"

	"github.com/gogpu/slider/internal/bc1"
)

// uploadBC1 compresses each allocation separately and copies whole blocks.
// Fragments are cut out of the full image; pixels past the image edge are
// zero so partial edge blocks encode as transparent black.
func (a *Atlas) uploadBC1(enc Encoder, entry *Entry, pixels []byte) error {
	src := pixels
	if a.config.FlipY {
		rowBytes := 4 * entry.Width
		src = PadRows(pixels, rowBytes, entry.Height, rowBytes, true)
	}

	align := a.device.RowAlignment()
	for _, p := range entry.placements() {
		w, h := p.Allocation.Size()
		tile := src
		if entry.Fragmented() {
			tile = subImage(src, entry.Width, entry.Height, p.X, p.Y, w, h)
		}

		blocks := bc1.Compress(tile, w, h)
		bx, by := divCeil(w, blockSize), divCeil(h, blockSize)
		rowBytes := bx * bc1.BlockBytes
		padded := PaddedBytesPerRow(rowBytes, align)

		buf, err := enc.CreateBuffer(a.config.Label+" bc1 staging", PadRows(blocks, rowBytes, by, padded, false))
		if err != nil {
			return fmt.Errorf("create bc1 staging buffer: %w", err)
		}

		x, y := p.Allocation.Position()
		enc.CopyBufferToTexture(buf,
			BufferLayout{BytesPerRow: padded, RowsPerImage: by},
			a.texture,
			Origin{X: alignDown(x, blockSize), Y: alignDown(y, blockSize), Layer: p.Allocation.Layer},
			Extent{Width: bx * blockSize, Height: by * blockSize},
		)
	}
	return nil
}

// subImage copies the w×h rectangle at (x, y) out of a width×height RGBA8
// image. Pixels outside the image are left zero.
func subImage(pixels []byte, width, height, x, y, w, h int) []byte {
	out := make([]byte, 4*w*h)
	cw := min(w, width-x)
	for row := 0; row < h && y+row < height; row++ {
		if cw <= 0 {
			break
		}
		s := 4 * ((y+row)*width + x)
		copy(out[4*row*w:4*(row*w+cw)], pixels[s:s+4*cw])
	}
	return out
}
