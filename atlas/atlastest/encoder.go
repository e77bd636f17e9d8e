package atlastest

import (
	"errors"
	"fmt"

	"github.com/gogpu/slider/atlas"
)

var (
	errBounds    = errors.New("copy out of bounds")
	errAlignment = errors.New("bytes per row not aligned")
	errDestroyed = errors.New("texture destroyed")
	errFormat    = errors.New("format mismatch")
)

// Encoder records commands for Device.Submit.
type Encoder struct {
	device    *Device
	label     string
	cmds      []func() error
	after     []func()
	err       error
	submitted bool
	discarded bool
}

// CreateBuffer implements atlas.Encoder.
func (e *Encoder) CreateBuffer(_ string, data []byte) (atlas.Buffer, error) {
	buf := &Buffer{data: append([]byte(nil), data...)}
	e.device.mu.Lock()
	e.device.stats.BytesStaged += len(data)
	e.device.mu.Unlock()
	return buf, nil
}

// CopyBufferToTexture implements atlas.Encoder.
func (e *Encoder) CopyBufferToTexture(src atlas.Buffer, layout atlas.BufferLayout, dst atlas.Texture, origin atlas.Origin, size atlas.Extent) {
	buf, ok1 := src.(*Buffer)
	tex, ok2 := dst.(*Texture)
	if !ok1 || !ok2 {
		e.fail(fmt.Errorf("foreign resources %T, %T", src, dst))
		return
	}

	e.cmds = append(e.cmds, func() error {
		if tex.destroyed {
			return errDestroyed
		}
		if layout.BytesPerRow%e.device.alignment != 0 {
			return fmt.Errorf("%w: %d %% %d", errAlignment, layout.BytesPerRow, e.device.alignment)
		}

		f := tex.desc.Format
		bd, bb := f.BlockDim(), f.BlockBytes()
		if origin.X%bd != 0 || origin.Y%bd != 0 {
			return fmt.Errorf("%w: origin (%d,%d) not block aligned", errBounds, origin.X, origin.Y)
		}
		if origin.Layer < 0 || origin.Layer >= tex.desc.Layers ||
			origin.X+size.Width > alignUp(tex.desc.Width, bd) ||
			origin.Y+size.Height > alignUp(tex.desc.Height, bd) {
			return fmt.Errorf("%w: %dx%d at (%d,%d) layer %d in %dx%dx%d",
				errBounds, size.Width, size.Height, origin.X, origin.Y, origin.Layer,
				tex.desc.Width, tex.desc.Height, tex.desc.Layers)
		}

		rowBytes := (size.Width + bd - 1) / bd * bb
		rows := (size.Height + bd - 1) / bd
		if layout.BytesPerRow < rowBytes {
			return fmt.Errorf("%w: row stride %d < %d", errBounds, layout.BytesPerRow, rowBytes)
		}
		layer := tex.data[origin.Layer]
		for r := 0; r < rows; r++ {
			s := layout.Offset + r*layout.BytesPerRow
			if s+rowBytes > len(buf.data) {
				return fmt.Errorf("%w: buffer row %d", errBounds, r)
			}
			d := ((origin.Y/bd+r)*tex.blocksPerRow() + origin.X/bd) * bb
			copy(layer[d:d+rowBytes], buf.data[s:s+rowBytes])
		}
		e.device.stats.BufferCopies++
		return nil
	})
}

// CopyTextureToTexture implements atlas.Encoder.
func (e *Encoder) CopyTextureToTexture(src atlas.Texture, srcOrigin atlas.Origin, dst atlas.Texture, dstOrigin atlas.Origin, size atlas.Extent) {
	s, ok1 := src.(*Texture)
	d, ok2 := dst.(*Texture)
	if !ok1 || !ok2 {
		e.fail(fmt.Errorf("foreign resources %T, %T", src, dst))
		return
	}

	e.cmds = append(e.cmds, func() error {
		if s.destroyed || d.destroyed {
			return errDestroyed
		}
		if s.desc.Format != d.desc.Format {
			return errFormat
		}
		if srcOrigin.Layer >= s.desc.Layers || dstOrigin.Layer >= d.desc.Layers ||
			srcOrigin.X+size.Width > s.desc.Width || srcOrigin.Y+size.Height > s.desc.Height ||
			dstOrigin.X+size.Width > d.desc.Width || dstOrigin.Y+size.Height > d.desc.Height {
			return fmt.Errorf("%w: texture copy %dx%d", errBounds, size.Width, size.Height)
		}

		bd, bb := s.desc.Format.BlockDim(), s.desc.Format.BlockBytes()
		rowBytes := (size.Width + bd - 1) / bd * bb
		for r := 0; r < (size.Height+bd-1)/bd; r++ {
			so := ((srcOrigin.Y/bd+r)*s.blocksPerRow() + srcOrigin.X/bd) * bb
			do := ((dstOrigin.Y/bd+r)*d.blocksPerRow() + dstOrigin.X/bd) * bb
			copy(d.data[dstOrigin.Layer][do:do+rowBytes], s.data[srcOrigin.Layer][so:so+rowBytes])
		}
		e.device.stats.TextureCopies++
		e.device.stats.TextureCopyLayers = append(e.device.stats.TextureCopyLayers, dstOrigin.Layer)
		return nil
	})
}

// AfterCompletion implements atlas.Encoder.
func (e *Encoder) AfterCompletion(fn func()) {
	e.after = append(e.after, fn)
}

// Discard implements atlas.Encoder.
func (e *Encoder) Discard() {
	e.discarded = true
	e.cmds = nil
	e.complete()
}

// complete runs the completion callbacks once.
func (e *Encoder) complete() {
	after := e.after
	e.after = nil
	for _, fn := range after {
		fn()
	}
}

// Commands returns the number of recorded copy commands.
func (e *Encoder) Commands() int {
	return len(e.cmds)
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func alignUp(v, a int) int {
	return (v + a - 1) / a * a
}
