package atlas

import "fmt"

// Format is the texel format of an atlas texture.
type Format uint8

const (
	// FormatRGBA8 stores 4 bytes per pixel.
	FormatRGBA8 Format = iota

	// FormatBC1 stores 8 bytes per 4x4 block.
	FormatBC1
)

// String returns a string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatBC1:
		return "BC1"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// BlockDim returns the edge of one texel block in pixels.
func (f Format) BlockDim() int {
	if f == FormatBC1 {
		return blockSize
	}
	return 1
}

// BlockBytes returns the size of one texel block in bytes.
func (f Format) BlockBytes() int {
	if f == FormatBC1 {
		return 8
	}
	return 4
}

// TextureDescriptor describes a 2D texture array.
type TextureDescriptor struct {
	Label  string
	Width  int
	Height int
	Layers int
	Format Format
}

// Texture is an opaque GPU texture handle.
type Texture interface {
	Width() int
	Height() int
	Layers() int
	Format() Format
}

// View is an opaque 2D-array view of a texture.
type View interface {
	Texture() Texture
}

// Buffer is an opaque staging buffer.
type Buffer interface {
	Size() int
}

// Origin addresses a texel in a texture layer.
type Origin struct {
	X, Y  int
	Layer int
}

// Extent is a copy size in pixels.
type Extent struct {
	Width, Height int
}

// BufferLayout describes pixel rows inside a staging buffer. BytesPerRow
// and RowsPerImage count rows of texel blocks.
type BufferLayout struct {
	Offset       int
	BytesPerRow  int
	RowsPerImage int
}

// Device creates GPU resources and submits recorded work.
type Device interface {
	CreateTexture(desc TextureDescriptor) (Texture, error)
	DestroyTexture(tex Texture)
	CreateView(tex Texture) (View, error)
	DestroyView(view View)
	CreateEncoder(label string) (Encoder, error)

	// Submit hands the recorded commands to the GPU queue. It does not
	// wait for completion.
	Submit(enc Encoder) error

	// RowAlignment is the required BytesPerRow alignment of
	// buffer-to-texture copies.
	RowAlignment() int
}

// Encoder records copy commands. Commands execute in recording order.
type Encoder interface {
	// CreateBuffer creates a staging buffer initialized with data.
	CreateBuffer(label string, data []byte) (Buffer, error)

	CopyBufferToTexture(src Buffer, layout BufferLayout, dst Texture, origin Origin, size Extent)
	CopyTextureToTexture(src Texture, srcOrigin Origin, dst Texture, dstOrigin Origin, size Extent)

	// AfterCompletion registers fn to run once the GPU has finished the
	// submission carrying this encoder's commands.
	AfterCompletion(fn func())

	// Discard drops the recorded commands and staging buffers.
	Discard()
}
