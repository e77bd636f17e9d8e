package imgcache

import (
	"fmt"

	"github.com/gogpu/slider/atlas"
)

// Metadata describes the source image of a slot.
type Metadata struct {
	// Width and Height are the dimensions of the encoded image, before any
	// downscaling for upload.
	Width  int
	Height int

	// FileSize is the length of the encoded bytes.
	FileSize uint64
}

// ResolutionString returns the dimensions as "WxH".
func (m Metadata) ResolutionString() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// FileSizeString returns the file size in B, KB or MB.
func (m Metadata) FileSizeString() string {
	switch {
	case m.FileSize < 1024:
		return fmt.Sprintf("%d B", m.FileSize)
	case m.FileSize < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(m.FileSize)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(m.FileSize)/(1024*1024))
	}
}

// Kind tells where cached image data lives.
type Kind uint8

const (
	// KindCPU is encoded image bytes in memory.
	KindCPU Kind = iota

	// KindTexture is an individual RGBA8 texture.
	KindTexture

	// KindBC1 is an individual BC1 compressed texture.
	KindBC1

	// KindAtlas is an entry of a shared atlas.
	KindAtlas
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindTexture:
		return "texture"
	case KindBC1:
		return "bc1"
	case KindAtlas:
		return "atlas"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// CachedData is one loaded image. It is owned by the cache slot holding it
// and released through the Backend that created it.
type CachedData struct {
	kind   Kind
	width  int
	height int
	meta   Metadata
	format atlas.Format

	bytes   []byte
	texture atlas.Texture
	view    atlas.View
	entry   *atlas.Entry
}

// NewCPUData wraps encoded image bytes.
func NewCPUData(encoded []byte, width, height int, meta Metadata) *CachedData {
	return &CachedData{kind: KindCPU, width: width, height: height, meta: meta, bytes: encoded}
}

// newTextureData wraps an individual texture.
func newTextureData(tex atlas.Texture, view atlas.View, width, height int, meta Metadata) *CachedData {
	kind := KindTexture
	if tex.Format() == atlas.FormatBC1 {
		kind = KindBC1
	}
	return &CachedData{kind: kind, width: width, height: height, meta: meta,
		format: tex.Format(), texture: tex, view: view}
}

// newAtlasData wraps an entry of an atlas storing format texels.
func newAtlasData(entry *atlas.Entry, format atlas.Format, meta Metadata) *CachedData {
	return &CachedData{kind: KindAtlas, width: entry.Width, height: entry.Height, meta: meta,
		format: format, entry: entry}
}

// Kind returns where the data lives.
func (d *CachedData) Kind() Kind { return d.kind }

// Width returns the width of the stored pixels.
func (d *CachedData) Width() int { return d.width }

// Height returns the height of the stored pixels.
func (d *CachedData) Height() int { return d.height }

// Metadata returns the source image description.
func (d *CachedData) Metadata() Metadata { return d.meta }

// Len returns the memory held by the data in bytes: the encoded length for
// CPU data, the texel storage otherwise.
func (d *CachedData) Len() int {
	if d.kind == KindCPU {
		return len(d.bytes)
	}
	bd := d.format.BlockDim()
	return ((d.width + bd - 1) / bd) * ((d.height + bd - 1) / bd) * d.format.BlockBytes()
}

// Bytes returns the encoded image of CPU data.
func (d *CachedData) Bytes() ([]byte, error) {
	if d.kind != KindCPU {
		return nil, fmt.Errorf("%w: %v", ErrNotCPUData, d.kind)
	}
	return d.bytes, nil
}

// Entry returns the atlas entry, or nil when the data is not in an atlas.
func (d *CachedData) Entry() *atlas.Entry { return d.entry }

// Texture returns the individual texture, or nil.
func (d *CachedData) Texture() atlas.Texture { return d.texture }

// View returns the view of the individual texture, or nil.
func (d *CachedData) View() atlas.View { return d.view }

// IsCompressed reports whether the pixels are block compressed.
func (d *CachedData) IsCompressed() bool {
	return d.format == atlas.FormatBC1
}

// CompressionFormat returns the texel format of the texture or atlas
// holding the pixels. CPU data reports FormatRGBA8, the format it decodes
// to.
func (d *CachedData) CompressionFormat() atlas.Format {
	return d.format
}

// String implements fmt.Stringer.
func (d *CachedData) String() string {
	return fmt.Sprintf("%v %dx%d", d.kind, d.width, d.height)
}
