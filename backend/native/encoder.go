package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/slider/atlas"
)

// Encoder records atlas copies into a HAL command encoder.
//
// Staging buffers are created immediately and filled at submit time, so
// recording never touches the queue.
type Encoder struct {
	device *Device
	raw    hal.CommandEncoder
	label  string

	done   bool
	err    error
	staged []stagedBuffer
	after  []func()
}

type stagedBuffer struct {
	buf  hal.Buffer
	data []byte
}

// CreateBuffer implements atlas.Encoder.
func (e *Encoder) CreateBuffer(label string, data []byte) (atlas.Buffer, error) {
	if e.done {
		return nil, ErrEncoderUsed
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("native: empty staging buffer %q", label)
	}
	// Buffer sizes must be a multiple of COPY_BUFFER_ALIGNMENT.
	size := (len(data) + 3) &^ 3
	raw, err := e.device.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer %q: %w", label, err)
	}
	if size != len(data) {
		padded := make([]byte, size)
		copy(padded, data)
		data = padded
	}
	e.staged = append(e.staged, stagedBuffer{buf: raw, data: data})
	return &Buffer{raw: raw, size: size}, nil
}

// CopyBufferToTexture implements atlas.Encoder.
func (e *Encoder) CopyBufferToTexture(src atlas.Buffer, layout atlas.BufferLayout, dst atlas.Texture, origin atlas.Origin, size atlas.Extent) {
	buf, ok := src.(*Buffer)
	tex, ok2 := dst.(*Texture)
	if !ok || !ok2 {
		e.fail(ErrForeignResource)
		return
	}
	if tex.raw == nil {
		e.fail(fmt.Errorf("native: copy into destroyed texture %q", tex.desc.Label))
		return
	}
	e.raw.CopyBufferToTexture(buf.raw, tex.raw, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       uint64(layout.Offset),
			BytesPerRow:  uint32(layout.BytesPerRow),
			RowsPerImage: uint32(layout.RowsPerImage),
		},
		TextureBase: imageCopyTexture(tex, origin),
		Size:        copyExtent(size),
	}})
}

// CopyTextureToTexture implements atlas.Encoder.
func (e *Encoder) CopyTextureToTexture(src atlas.Texture, srcOrigin atlas.Origin, dst atlas.Texture, dstOrigin atlas.Origin, size atlas.Extent) {
	from, ok := src.(*Texture)
	to, ok2 := dst.(*Texture)
	if !ok || !ok2 {
		e.fail(ErrForeignResource)
		return
	}
	if from.raw == nil || to.raw == nil {
		e.fail(fmt.Errorf("native: copy between destroyed textures %q -> %q", from.desc.Label, to.desc.Label))
		return
	}
	e.raw.CopyTextureToTexture(from.raw, to.raw, []hal.TextureCopy{{
		SrcBase: imageCopyTexture(from, srcOrigin),
		DstBase: imageCopyTexture(to, dstOrigin),
		Size:    copyExtent(size),
	}})
}

// AfterCompletion implements atlas.Encoder.
func (e *Encoder) AfterCompletion(fn func()) {
	e.after = append(e.after, fn)
}

// Discard implements atlas.Encoder. Callbacks registered with
// AfterCompletion still run, since they release resources the caller has
// already given up.
func (e *Encoder) Discard() {
	if e.done {
		return
	}
	e.done = true
	e.raw.DiscardEncoding()
	e.abandon()
}

// abandon frees the staging buffers and schedules the completion callbacks
// of commands that will never be submitted.
func (e *Encoder) abandon() {
	e.destroyBuffers()
	for _, fn := range e.after {
		e.device.deferRelease(fn)
	}
	e.after = nil
}

// fail records the first recording error; Submit reports it.
func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *Encoder) destroyBuffers() {
	for _, s := range e.staged {
		e.device.device.DestroyBuffer(s.buf)
	}
	e.staged = nil
}
