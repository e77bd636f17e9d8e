// Package atlastest provides an in-memory [atlas.Device] for tests.
//
// Textures are plain byte slices. Encoders record commands and Submit
// executes them in order on the CPU, so tests can read back exactly what a
// GPU would hold after the submission. Every copy is bounds- and
// alignment-checked; violations surface as Submit errors.
package atlastest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/internal/bc1"
)

// DefaultRowAlignment matches WebGPU's COPY_BYTES_PER_ROW_ALIGNMENT.
const DefaultRowAlignment = 256

var (
	// ErrSubmitted is returned when an encoder is submitted twice.
	ErrSubmitted = errors.New("atlastest: encoder already submitted")

	// ErrInjected is returned by operations configured to fail.
	ErrInjected = errors.New("atlastest: injected failure")
)

// Stats counts recorded and executed work.
type Stats struct {
	Submits       int
	BufferCopies  int
	TextureCopies int
	BytesStaged   int

	// TextureCopyLayers lists the destination layer of every executed
	// texture-to-texture copy.
	TextureCopyLayers []int
}

// Device is an in-memory atlas.Device. Safe for concurrent use.
type Device struct {
	mu        sync.Mutex
	alignment int
	live      map[*Texture]struct{}
	stats     Stats

	// FailTextures makes CreateTexture fail once this many textures exist.
	// Zero disables the failure.
	FailTextures int
	created      int

	// MaxTextureLayers makes CreateTexture fail for textures with more
	// layers, like a device out of memory for a larger array. Zero
	// disables the limit.
	MaxTextureLayers int

	// FailSubmit makes Submit fail for encoders created with this label.
	FailSubmit string
}

// NewDevice creates a device with the default row alignment.
func NewDevice() *Device {
	return NewDeviceWithAlignment(DefaultRowAlignment)
}

// NewDeviceWithAlignment creates a device with a custom row alignment.
func NewDeviceWithAlignment(alignment int) *Device {
	return &Device{
		alignment: alignment,
		live:      make(map[*Texture]struct{}),
	}
}

// RowAlignment implements atlas.Device.
func (d *Device) RowAlignment() int {
	return d.alignment
}

// CreateTexture implements atlas.Device.
func (d *Device) CreateTexture(desc atlas.TextureDescriptor) (atlas.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailTextures > 0 && d.created >= d.FailTextures {
		return nil, ErrInjected
	}
	if d.MaxTextureLayers > 0 && desc.Layers > d.MaxTextureLayers {
		return nil, fmt.Errorf("%w: %d layers", ErrInjected, desc.Layers)
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Layers <= 0 {
		return nil, fmt.Errorf("atlastest: invalid texture size %dx%dx%d", desc.Width, desc.Height, desc.Layers)
	}

	t := &Texture{desc: desc, data: make([][]byte, desc.Layers)}
	for i := range t.data {
		t.data[i] = make([]byte, t.layerBytes())
	}
	d.created++
	d.live[t] = struct{}{}
	return t, nil
}

// DestroyTexture implements atlas.Device.
func (d *Device) DestroyTexture(tex atlas.Texture) {
	t, ok := tex.(*Texture)
	if !ok || t == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t.destroyed = true
	delete(d.live, t)
}

// CreateView implements atlas.Device.
func (d *Device) CreateView(tex atlas.Texture) (atlas.View, error) {
	return &View{tex: tex}, nil
}

// DestroyView implements atlas.Device.
func (d *Device) DestroyView(view atlas.View) {
	if v, ok := view.(*View); ok && v != nil {
		v.destroyed = true
	}
}

// CreateEncoder implements atlas.Device.
func (d *Device) CreateEncoder(label string) (atlas.Encoder, error) {
	return &Encoder{device: d, label: label}, nil
}

// Submit implements atlas.Device. Recorded commands execute immediately,
// followed by the completion callbacks. A failed submission still runs
// the callbacks, as commands that will never execute hold nothing.
func (d *Device) Submit(e atlas.Encoder) error {
	enc, ok := e.(*Encoder)
	if !ok {
		return fmt.Errorf("atlastest: foreign encoder %T", e)
	}
	if enc.submitted {
		return ErrSubmitted
	}
	enc.submitted = true
	defer enc.complete()

	if enc.err != nil {
		return enc.err
	}
	if d.FailSubmit != "" && enc.label == d.FailSubmit {
		return fmt.Errorf("%w: submit %s", ErrInjected, enc.label)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cmd := range enc.cmds {
		if err := cmd(); err != nil {
			return fmt.Errorf("atlastest: %s: %w", enc.label, err)
		}
	}
	d.stats.Submits++
	return nil
}

// Stats returns a snapshot of the work executed so far.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.TextureCopyLayers = append([]int(nil), d.stats.TextureCopyLayers...)
	return s
}

// ResetStats clears the counters.
func (d *Device) ResetStats() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = Stats{}
}

// LiveTextures returns the number of textures not yet destroyed.
func (d *Device) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Texture is an in-memory texture array.
type Texture struct {
	desc      atlas.TextureDescriptor
	data      [][]byte
	destroyed bool
}

// Width implements atlas.Texture.
func (t *Texture) Width() int { return t.desc.Width }

// Height implements atlas.Texture.
func (t *Texture) Height() int { return t.desc.Height }

// Layers implements atlas.Texture.
func (t *Texture) Layers() int { return t.desc.Layers }

// Format implements atlas.Texture.
func (t *Texture) Format() atlas.Format { return t.desc.Format }

// Label returns the texture label.
func (t *Texture) Label() string { return t.desc.Label }

// Destroyed returns true after DestroyTexture.
func (t *Texture) Destroyed() bool { return t.destroyed }

func (t *Texture) blocksPerRow() int {
	bd := t.desc.Format.BlockDim()
	return (t.desc.Width + bd - 1) / bd
}

func (t *Texture) layerBytes() int {
	bd := t.desc.Format.BlockDim()
	return t.blocksPerRow() * ((t.desc.Height + bd - 1) / bd) * t.desc.Format.BlockBytes()
}

// ReadRGBA returns the w×h rectangle at (x, y) of a layer as RGBA8 pixels.
// BC1 textures are decoded; x and y must then be multiples of 4.
func (t *Texture) ReadRGBA(layer, x, y, w, h int) []byte {
	out := make([]byte, 4*w*h)
	if t.desc.Format == atlas.FormatRGBA8 {
		for row := 0; row < h; row++ {
			s := 4 * ((y+row)*t.desc.Width + x)
			copy(out[4*row*w:4*(row+1)*w], t.data[layer][s:s+4*w])
		}
		return out
	}

	bw, bh := (w+bc1.BlockDim-1)/bc1.BlockDim, (h+bc1.BlockDim-1)/bc1.BlockDim
	blocks := make([]byte, 0, bw*bh*bc1.BlockBytes)
	for by := 0; by < bh; by++ {
		s := ((y/bc1.BlockDim+by)*t.blocksPerRow() + x/bc1.BlockDim) * bc1.BlockBytes
		blocks = append(blocks, t.data[layer][s:s+bw*bc1.BlockBytes]...)
	}
	return bc1.Decompress(blocks, w, h)
}

// Pixel returns one RGBA8 pixel of a layer.
func (t *Texture) Pixel(layer, x, y int) [4]byte {
	var p [4]byte
	if t.desc.Format == atlas.FormatBC1 {
		blk := t.ReadRGBA(layer, x/bc1.BlockDim*bc1.BlockDim, y/bc1.BlockDim*bc1.BlockDim, bc1.BlockDim, bc1.BlockDim)
		s := 4 * ((y%bc1.BlockDim)*bc1.BlockDim + x%bc1.BlockDim)
		copy(p[:], blk[s:s+4])
		return p
	}
	s := 4 * (y*t.desc.Width + x)
	copy(p[:], t.data[layer][s:s+4])
	return p
}

// View is a view of a Texture.
type View struct {
	tex       atlas.Texture
	destroyed bool
}

// Texture implements atlas.View.
func (v *View) Texture() atlas.Texture { return v.tex }

// Destroyed returns true after DestroyView.
func (v *View) Destroyed() bool { return v.destroyed }

// Buffer is an in-memory staging buffer.
type Buffer struct {
	data []byte
}

// Size implements atlas.Buffer.
func (b *Buffer) Size() int { return len(b.data) }
