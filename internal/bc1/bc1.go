// Package bc1 encodes RGBA8 images as BC1 (DXT1) blocks.
//
// The encoder uses a range fit: the opaque colors of a 4x4 block are
// projected on their principal axis and the extreme colors become the two
// RGB565 endpoints. Pixels with alpha at or below 128 are treated as
// transparent and force the three-color mode, where index 3 decodes to
// transparent black.
package bc1

import (
	"encoding/binary"
	"math"

	"github.com/sourcegraph/conc/iter"
)

const (
	// BlockDim is the edge of one block in pixels.
	BlockDim = 4

	// BlockBytes is the size of one encoded block.
	BlockBytes = 8

	alphaThreshold = 128

	// parallelRows is the minimum number of block rows before rows are
	// encoded concurrently.
	parallelRows = 8
)

// Block is an uncompressed 4x4 block of RGBA8 pixels in row-major order.
type Block [16][4]uint8

type rgb [3]float32

// Compress encodes a width×height RGBA8 image. The result holds
// ceil(width/4)×ceil(height/4) blocks in row-major order. Pixels of partial
// edge blocks that fall outside the image encode as transparent black.
func Compress(pixels []byte, width, height int) []byte {
	bx := (width + BlockDim - 1) / BlockDim
	by := (height + BlockDim - 1) / BlockDim
	out := make([]byte, bx*by*BlockBytes)

	encodeRow := func(row int) {
		for col := 0; col < bx; col++ {
			blk := loadBlock(pixels, width, height, col*BlockDim, row*BlockDim)
			enc := EncodeBlock(&blk)
			copy(out[(row*bx+col)*BlockBytes:], enc[:])
		}
	}

	if by < parallelRows {
		for row := 0; row < by; row++ {
			encodeRow(row)
		}
		return out
	}

	rows := make([]struct{}, by)
	iter.ForEachIdx(rows, func(row int, _ *struct{}) {
		encodeRow(row)
	})
	return out
}

func loadBlock(pixels []byte, width, height, x0, y0 int) Block {
	var blk Block
	for y := 0; y < BlockDim; y++ {
		py := y0 + y
		if py >= height {
			break
		}
		for x := 0; x < BlockDim; x++ {
			px := x0 + x
			if px >= width {
				break
			}
			i := 4 * (py*width + px)
			blk[y*BlockDim+x] = [4]uint8{pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]}
		}
	}
	return blk
}

// EncodeBlock encodes one block. A fully transparent block encodes as
// eight zero bytes.
func EncodeBlock(blk *Block) [BlockBytes]byte {
	var out [BlockBytes]byte

	colors := make([]rgb, 0, 16)
	transparent := false
	for _, p := range blk {
		if p[3] > alphaThreshold {
			colors = append(colors, rgb{float32(p[0]), float32(p[1]), float32(p[2])})
		} else {
			transparent = true
		}
	}
	if len(colors) == 0 {
		return out
	}

	axis := principalAxis(colors)
	lo, hi := colors[0], colors[0]
	minProj := float32(math.MaxFloat32)
	maxProj := float32(-math.MaxFloat32)
	for _, c := range colors {
		proj := c[0]*axis[0] + c[1]*axis[1] + c[2]*axis[2]
		if proj < minProj {
			minProj, lo = proj, c
		}
		if proj > maxProj {
			maxProj, hi = proj, c
		}
	}

	c0, c1 := toRGB565(lo), toRGB565(hi)
	e0, e1 := lo, hi
	// color0 > color1 selects four opaque colors; otherwise three colors
	// plus transparent black.
	if transparent == (c0 > c1) {
		c0, c1 = c1, c0
		e0, e1 = e1, e0
	}

	var palette [4]rgb
	palette[0], palette[1] = e0, e1
	fourColor := c0 > c1
	if fourColor {
		palette[2] = mix(e0, e1, 2, 1, 3)
		palette[3] = mix(e0, e1, 1, 2, 3)
	} else {
		palette[2] = mix(e0, e1, 1, 1, 2)
	}

	var indices uint32
	for i, p := range blk {
		best := uint32(3)
		if p[3] > alphaThreshold {
			c := rgb{float32(p[0]), float32(p[1]), float32(p[2])}
			n := 4
			if !fourColor {
				n = 3
			}
			bestDist := float32(math.MaxFloat32)
			for j := 0; j < n; j++ {
				if d := distance2(c, palette[j]); d < bestDist {
					bestDist, best = d, uint32(j)
				}
			}
		}
		indices |= best << (2 * i)
	}

	binary.LittleEndian.PutUint16(out[0:], c0)
	binary.LittleEndian.PutUint16(out[2:], c1)
	binary.LittleEndian.PutUint32(out[4:], indices)
	return out
}

// principalAxis estimates the dominant direction of the colors with power
// iterations on their covariance matrix, starting from (1, 1, 1).
func principalAxis(colors []rgb) rgb {
	var mean rgb
	for _, c := range colors {
		mean[0] += c[0]
		mean[1] += c[1]
		mean[2] += c[2]
	}
	n := float32(len(colors))
	mean[0], mean[1], mean[2] = mean[0]/n, mean[1]/n, mean[2]/n

	var cov [3][3]float32
	for _, c := range colors {
		d := rgb{c[0] - mean[0], c[1] - mean[1], c[2] - mean[2]}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov[i][j] += d[i] * d[j]
			}
		}
	}
	cov[1][0], cov[2][0], cov[2][1] = cov[0][1], cov[0][2], cov[1][2]

	axis := rgb{1, 1, 1}
	if !powerIterate(&cov, &axis) {
		// (1, 1, 1) is orthogonal to the dominant direction, as for a
		// red/blue block. Restart from the channel with the most variance.
		axis = rgb{}
		best := 0
		for i := 1; i < 3; i++ {
			if cov[i][i] > cov[best][best] {
				best = i
			}
		}
		axis[best] = 1
		powerIterate(&cov, &axis)
	}
	return axis
}

// powerIterate applies four power iterations to axis. Returns false if
// the first iteration collapsed to the zero vector.
func powerIterate(cov *[3][3]float32, axis *rgb) bool {
	for k := 0; k < 4; k++ {
		var v rgb
		for i := 0; i < 3; i++ {
			v[i] = cov[i][0]*axis[0] + cov[i][1]*axis[1] + cov[i][2]*axis[2]
		}
		l := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
		if l == 0 {
			return k > 0
		}
		*axis = rgb{v[0] / l, v[1] / l, v[2] / l}
	}
	return true
}

func toRGB565(c rgb) uint16 {
	r, g, b := uint16(c[0]), uint16(c[1]), uint16(c[2])
	return (r>>3)<<11 | (g>>2)<<5 | b>>3
}

func mix(a, b rgb, wa, wb, div float32) rgb {
	return rgb{
		float32(int((wa*a[0] + wb*b[0]) / div)),
		float32(int((wa*a[1] + wb*b[1]) / div)),
		float32(int((wa*a[2] + wb*b[2]) / div)),
	}
}

func distance2(a, b rgb) float32 {
	dr, dg, db := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dr*dr + dg*dg + db*db
}
