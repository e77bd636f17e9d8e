package imgcache

import "errors"

var (
	// ErrSlotOutOfRange is returned for a slot outside [0, 2·CacheCount].
	ErrSlotOutOfRange = errors.New("imgcache: slot out of range")

	// ErrImageIndexOutOfRange is returned for an image index outside the
	// collection.
	ErrImageIndexOutOfRange = errors.New("imgcache: image index out of range")

	// ErrNoNextImage is returned when moving past the last image.
	ErrNoNextImage = errors.New("imgcache: no more images to display")

	// ErrNoPreviousImage is returned when moving before the first image.
	ErrNoPreviousImage = errors.New("imgcache: no previous images to display")

	// ErrEmptySlot is returned when a slot holds no image.
	ErrEmptySlot = errors.New("imgcache: slot is empty")

	// ErrNotCPUData is returned when encoded bytes are requested from data
	// held on the GPU.
	ErrNotCPUData = errors.New("imgcache: data is not held on the CPU")

	// ErrEmptyCollection is returned when a cache is created without
	// sources.
	ErrEmptyCollection = errors.New("imgcache: no images")
)
