package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/slider/atlas"
)

// Texture wraps a hal.Texture created by Device.CreateTexture.
type Texture struct {
	raw  hal.Texture
	desc atlas.TextureDescriptor
}

// Width implements atlas.Texture.
func (t *Texture) Width() int { return t.desc.Width }

// Height implements atlas.Texture.
func (t *Texture) Height() int { return t.desc.Height }

// Layers implements atlas.Texture.
func (t *Texture) Layers() int { return t.desc.Layers }

// Format implements atlas.Texture.
func (t *Texture) Format() atlas.Format { return t.desc.Format }

// Raw returns the underlying HAL texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// TextureView wraps a 2D-array hal.TextureView.
type TextureView struct {
	raw hal.TextureView
	tex *Texture
}

// Texture implements atlas.View.
func (v *TextureView) Texture() atlas.Texture { return v.tex }

// Raw returns the underlying HAL view for bind group creation.
func (v *TextureView) Raw() hal.TextureView { return v.raw }

// Buffer wraps a staging hal.Buffer.
type Buffer struct {
	raw  hal.Buffer
	size int
}

// Size implements atlas.Buffer.
func (b *Buffer) Size() int { return b.size }

// textureFormat maps an atlas format to the GPU format.
func textureFormat(f atlas.Format) gputypes.TextureFormat {
	if f == atlas.FormatBC1 {
		return gputypes.TextureFormatBC1RGBAUnorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func halTextureDescriptor(desc atlas.TextureDescriptor) *hal.TextureDescriptor {
	return &hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: uint32(desc.Layers),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage: gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageCopySrc,
	}
}

func halViewDescriptor(t *Texture) *hal.TextureViewDescriptor {
	return &hal.TextureViewDescriptor{
		Label:           t.desc.Label + " view",
		Format:          textureFormat(t.desc.Format),
		Dimension:       gputypes.TextureViewDimension2DArray,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: uint32(t.desc.Layers),
	}
}

func imageCopyTexture(t *Texture, o atlas.Origin) hal.ImageCopyTexture {
	return hal.ImageCopyTexture{
		Texture:  t.raw,
		MipLevel: 0,
		Origin:   hal.Origin3D{X: uint32(o.X), Y: uint32(o.Y), Z: uint32(o.Layer)},
		Aspect:   gputypes.TextureAspectAll,
	}
}

func copyExtent(e atlas.Extent) hal.Extent3D {
	return hal.Extent3D{Width: uint32(e.Width), Height: uint32(e.Height), DepthOrArrayLayers: 1}
}
