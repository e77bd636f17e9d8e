package atlas

import "golang.org/x/exp/constraints"

// blockSize is the edge of a BC1 block in pixels.
const blockSize = 4

// alignUp rounds v up to the next multiple of align.
func alignUp[T constraints.Integer](v, align T) T {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// alignDown rounds v down to a multiple of align.
func alignDown[T constraints.Integer](v, align T) T {
	if align <= 1 {
		return v
	}
	return v / align * align
}

// divCeil returns v/d rounded up.
func divCeil[T constraints.Integer](v, d T) T {
	return (v + d - 1) / d
}

// PaddedBytesPerRow returns the smallest multiple of alignment that is at
// least rowBytes. Buffer-to-texture copies require row strides aligned to
// the device's copy alignment (256 bytes on WebGPU).
func PaddedBytesPerRow(rowBytes, alignment int) int {
	return alignUp(rowBytes, alignment)
}

// PadRows copies rows of rowBytes each into a new buffer with a stride of
// padded bytes. With flip set the rows are written bottom-up.
func PadRows(src []byte, rowBytes, rows, padded int, flip bool) []byte {
	dst := make([]byte, padded*rows)
	for r := 0; r < rows; r++ {
		s := r
		if flip {
			s = rows - 1 - r
		}
		copy(dst[r*padded:r*padded+rowBytes], src[s*rowBytes:(s+1)*rowBytes])
	}
	return dst
}

// ShouldCompress reports whether an image of the given size can be
// block-compressed as a single texture.
func ShouldCompress(width, height int) bool {
	return width > 0 && height > 0 && width%blockSize == 0 && height%blockSize == 0
}
