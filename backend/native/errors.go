package native

import "errors"

var (
	// ErrNilDevice is returned when the HAL device or queue is nil.
	ErrNilDevice = errors.New("native: device is nil")

	// ErrProvider is returned when a device provider does not expose HAL
	// types.
	ErrProvider = errors.New("native: provider does not expose HAL device and queue")

	// ErrNoAdapter is returned when the noop API reports no adapter.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrClosed is returned when operating on a closed device.
	ErrClosed = errors.New("native: device is closed")

	// ErrForeignResource is returned when a resource was not created by
	// this package.
	ErrForeignResource = errors.New("native: resource not created by this device")

	// ErrEncoderUsed is returned when an encoder is submitted twice or
	// after Discard.
	ErrEncoderUsed = errors.New("native: encoder already submitted or discarded")
)
