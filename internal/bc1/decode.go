package bc1

import "encoding/binary"

// DecodeBlock expands an encoded block to RGBA8 pixels.
func DecodeBlock(data []byte) Block {
	c0 := binary.LittleEndian.Uint16(data[0:])
	c1 := binary.LittleEndian.Uint16(data[2:])
	indices := binary.LittleEndian.Uint32(data[4:])

	var palette [4][4]uint8
	palette[0] = fromRGB565(c0)
	palette[1] = fromRGB565(c1)
	if c0 > c1 {
		for i := 0; i < 3; i++ {
			palette[2][i] = uint8((2*int(palette[0][i]) + int(palette[1][i])) / 3)
			palette[3][i] = uint8((int(palette[0][i]) + 2*int(palette[1][i])) / 3)
		}
		palette[2][3], palette[3][3] = 255, 255
	} else {
		for i := 0; i < 3; i++ {
			palette[2][i] = uint8((int(palette[0][i]) + int(palette[1][i])) / 2)
		}
		palette[2][3] = 255
	}

	var blk Block
	for i := range blk {
		blk[i] = palette[(indices>>(2*i))&3]
	}
	return blk
}

// Decompress expands ceil(width/4)×ceil(height/4) blocks to a width×height
// RGBA8 image.
func Decompress(blocks []byte, width, height int) []byte {
	bx := (width + BlockDim - 1) / BlockDim
	out := make([]byte, 4*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b := (y/BlockDim)*bx + x/BlockDim
			blk := DecodeBlock(blocks[b*BlockBytes:])
			p := blk[(y%BlockDim)*BlockDim+x%BlockDim]
			copy(out[4*(y*width+x):], p[:])
		}
	}
	return out
}

func fromRGB565(c uint16) [4]uint8 {
	r := uint8(c >> 11 & 0x1f)
	g := uint8(c >> 5 & 0x3f)
	b := uint8(c & 0x1f)
	return [4]uint8{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 255}
}
