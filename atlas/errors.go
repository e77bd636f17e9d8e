package atlas

import "errors"

var (
	// ErrAtlasFull is returned when no layer can hold the requested region
	// and the layer limit has been reached. Callers are expected to fall
	// back to an individually allocated texture.
	ErrAtlasFull = errors.New("atlas: texture atlas is full")

	// ErrAtlasClosed is returned when operating on a closed atlas.
	ErrAtlasClosed = errors.New("atlas: texture atlas is closed")

	// ErrInvalidDimensions is returned for zero or negative image sizes.
	ErrInvalidDimensions = errors.New("atlas: invalid image dimensions")

	// ErrPixelDataSize is returned when a pixel buffer is shorter than
	// 4*width*height bytes.
	ErrPixelDataSize = errors.New("atlas: pixel data too small")

	// ErrInvalidCompressionInput is returned when a block-compressed upload
	// is requested for an image that fits one layer but whose dimensions are
	// not multiples of the 4x4 block size.
	ErrInvalidCompressionInput = errors.New("atlas: dimensions not aligned to compression blocks")
)

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "atlas: invalid config." + e.Field + ": " + e.Reason
}
