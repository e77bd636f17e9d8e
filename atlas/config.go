package atlas

import (
	"fmt"
	"strings"
)

const (
	// DefaultSize is the edge length of one atlas layer in pixels.
	DefaultSize = 2048

	// MaxSize is the largest supported layer edge.
	MaxSize = 8192

	// DefaultMaxLayers matches the minimum maxTextureArrayLayers limit
	// guaranteed by WebGPU.
	DefaultMaxLayers = 256
)

// Compression selects how pixels are stored in the atlas texture.
type Compression uint8

const (
	// CompressionNone stores RGBA8 pixels.
	CompressionNone Compression = iota

	// CompressionBC1 stores BC1 (DXT1) 4x4 blocks, 8 bytes each.
	CompressionBC1
)

// String returns the configuration name of the compression mode.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionBC1:
		return "bc1"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// Format returns the texture format used by atlases with this compression.
func (c Compression) Format() Format {
	if c == CompressionBC1 {
		return FormatBC1
	}
	return FormatRGBA8
}

// ParseCompression parses a compression name as produced by String.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "rgba8":
		return CompressionNone, nil
	case "bc1", "dxt1":
		return CompressionBC1, nil
	}
	return CompressionNone, &ConfigError{Field: "Compression", Reason: fmt.Sprintf("unknown mode %q", s)}
}

// Config holds atlas configuration.
type Config struct {
	// Size is the edge length of each square layer in pixels.
	Size int

	// InitialLayers is the number of layers allocated up front.
	// GL backends cannot grow arrays cheaply and start with 2.
	InitialLayers int

	// MaxLayers bounds the texture array. Allocations that would need
	// more layers fail with ErrAtlasFull.
	MaxLayers int

	// Compression selects the texel storage.
	Compression Compression

	// FlipY uploads rows bottom-up. The image is flipped as a whole before
	// it is cut into fragments, so Fragment.Y then counts rows from the
	// bottom edge of the image.
	FlipY bool

	// Label prefixes GPU object labels.
	Label string

	// OnGrow is called with the new binding after every grow, while the
	// atlas is still locked for writing.
	OnGrow func(Binding)
}

// DefaultConfig returns the default atlas configuration.
func DefaultConfig() Config {
	return Config{
		Size:          DefaultSize,
		InitialLayers: 1,
		MaxLayers:     DefaultMaxLayers,
		Compression:   CompressionNone,
		Label:         "slider atlas",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Size < 16 {
		return &ConfigError{Field: "Size", Reason: "must be at least 16"}
	}
	if c.Size > MaxSize {
		return &ConfigError{Field: "Size", Reason: "must be at most 8192"}
	}
	if c.Size%blockSize != 0 {
		return &ConfigError{Field: "Size", Reason: "must be a multiple of 4"}
	}
	if c.MaxLayers < 1 {
		return &ConfigError{Field: "MaxLayers", Reason: "must be at least 1"}
	}
	if c.InitialLayers < 1 {
		return &ConfigError{Field: "InitialLayers", Reason: "must be at least 1"}
	}
	if c.InitialLayers > c.MaxLayers {
		return &ConfigError{Field: "InitialLayers", Reason: "must not exceed MaxLayers"}
	}
	if c.Compression > CompressionBC1 {
		return &ConfigError{Field: "Compression", Reason: "unknown mode"}
	}
	return nil
}
