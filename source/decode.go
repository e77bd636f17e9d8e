package source

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	xdraw "golang.org/x/image/draw"
)

// MaxTextureSize is the largest edge uploaded to the GPU. Larger images are
// downscaled, keeping their aspect ratio.
const MaxTextureSize = 8192

// Pixels is a decoded image: rows top-down, 4 bytes per pixel, RGBA8 with
// straight alpha.
type Pixels struct {
	Width  int
	Height int
	Data   []byte
}

// Config is the size of an encoded image, read without decoding pixels.
type Config struct {
	Width  int
	Height int
	Format string
}

// DecodeConfig reads the dimensions of an encoded image.
func DecodeConfig(data []byte) (Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return Config{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Decode decodes an encoded image to RGBA8, downscaling it if an edge
// exceeds MaxTextureSize.
func Decode(data []byte) (*Pixels, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	var rgba *image.NRGBA
	if w, h, ok := FitWithin(b.Dx(), b.Dy(), MaxTextureSize); ok {
		slogger().Warn("source: image exceeds maximum texture size, resizing",
			"width", b.Dx(), "height", b.Dy(), "max", MaxTextureSize,
			"new_width", w, "new_height", h)
		rgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(rgba, rgba.Bounds(), img, b, draw.Src, nil)
	} else {
		rgba = toNRGBA(img)
	}

	slogger().Debug("source: decoded", "format", format,
		"width", rgba.Rect.Dx(), "height", rgba.Rect.Dy())
	return FromImage(rgba), nil
}

// FromImage converts img to Pixels, copying rows into a tight buffer.
func FromImage(img image.Image) *Pixels {
	n := toNRGBA(img)
	w, h := n.Rect.Dx(), n.Rect.Dy()
	p := &Pixels{Width: w, Height: h, Data: make([]byte, 4*w*h)}
	for y := 0; y < h; y++ {
		copy(p.Data[4*w*y:4*w*(y+1)], n.Pix[n.Stride*y:n.Stride*y+4*w])
	}
	return p
}

// Image returns p as an image sharing its bytes.
func (p *Pixels) Image() *image.NRGBA {
	return &image.NRGBA{Pix: p.Data, Stride: 4 * p.Width, Rect: image.Rect(0, 0, p.Width, p.Height)}
}

// FitWithin returns the size of a w×h image scaled to fit limit×limit,
// and false if it already fits.
func FitWithin(w, h, limit int) (int, int, bool) {
	if w <= limit && h <= limit {
		return w, h, false
	}
	nw, nh := limit, limit
	if w >= h {
		nh = int(int64(h) * int64(limit) / int64(w))
	} else {
		nw = int(int64(w) * int64(limit) / int64(h))
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh, true
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Rect, img, b.Min, draw.Src)
	return n
}
