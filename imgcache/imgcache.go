package imgcache

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/iter"

	"github.com/gogpu/slider/source"
)

// DefaultCacheCount is the number of images kept on each side of the
// cursor when Config leaves CacheCount zero.
const DefaultCacheCount = 5

// Config configures an ImageCache.
type Config struct {
	// CacheCount is the number of images kept on each side of the cursor.
	// The window holds 2·CacheCount+1 slots.
	CacheCount int

	// Concurrency bounds the decoders run by LoadInitialImages. Zero means
	// GOMAXPROCS.
	Concurrency int
}

// Op is a window operation, used to tell whether it may run in the current
// window state.
type Op uint8

const (
	OpLoadNext Op = iota
	OpShiftNext
	OpLoadPrevious
	OpShiftPrevious
	OpLoadPos
)

// String returns a string representation of the operation.
func (op Op) String() string {
	switch op {
	case OpLoadNext:
		return "LoadNext"
	case OpShiftNext:
		return "ShiftNext"
	case OpLoadPrevious:
		return "LoadPrevious"
	case OpShiftPrevious:
		return "ShiftPrevious"
	case OpLoadPos:
		return "LoadPos"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

// ImageCache is a window of 2·CacheCount+1 loaded images around a cursor.
//
// Slot i holds image windowStart+i when loaded; its index is -1 while the
// slot is empty. The cursor image sits at slot CacheCount+Offset.
type ImageCache struct {
	backend     Backend
	sources     []source.Source
	count       int
	concurrency int

	current     int
	offset      int
	windowStart int

	data    []*CachedData
	indices []int
}

// New creates an empty cache over sources. Call LoadInitialImages to fill
// the window.
func New(backend Backend, sources []source.Source, config Config) (*ImageCache, error) {
	if len(sources) == 0 {
		return nil, ErrEmptyCollection
	}
	if config.CacheCount < 0 {
		return nil, fmt.Errorf("imgcache: negative cache count %d", config.CacheCount)
	}
	count := config.CacheCount
	if count == 0 {
		count = DefaultCacheCount
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	c := &ImageCache{
		backend:     backend,
		sources:     sources,
		count:       count,
		concurrency: concurrency,
		data:        make([]*CachedData, 2*count+1),
		indices:     make([]int, 2*count+1),
	}
	for i := range c.indices {
		c.indices[i] = -1
	}
	return c, nil
}

// CacheCount returns the number of images kept on each side of the cursor.
func (c *ImageCache) CacheCount() int { return c.count }

// Len returns the number of images in the collection.
func (c *ImageCache) Len() int { return len(c.sources) }

// Sources returns the collection.
func (c *ImageCache) Sources() []source.Source { return c.sources }

// CurrentIndex returns the image index at the cursor.
func (c *ImageCache) CurrentIndex() int { return c.current }

// Offset returns the cursor position relative to the centre slot.
func (c *ImageCache) Offset() int { return c.offset }

// Indices returns the image index of every slot, -1 for empty slots.
func (c *ImageCache) Indices() []int {
	return append([]int(nil), c.indices...)
}

// Slot returns the data of slot i, nil when it is empty.
func (c *ImageCache) Slot(i int) (*CachedData, error) {
	if i < 0 || i >= len(c.data) {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrSlotOutOfRange, i, len(c.data)-1)
	}
	return c.data[i], nil
}

// LoadInitialImages releases the window and loads it around currentIndex.
//
// Near the collection edges the window is clamped and the cursor moves off
// centre: for currentIndex ≤ CacheCount the window starts at image 0, for
// currentIndex > Len-1-CacheCount it ends at the last image. Images are
// decoded concurrently and stored in slot order. Images that fail to load
// leave their slot empty. Cancelling ctx stops storing; slots already
// stored are kept.
func (c *ImageCache) LoadInitialImages(ctx context.Context, currentIndex int) error {
	n := len(c.sources)
	if currentIndex < 0 || currentIndex >= n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrImageIndexOutOfRange, currentIndex, n)
	}
	c.clear()

	switch k := c.count; {
	case currentIndex <= k:
		c.windowStart = 0
		c.offset = -(k - currentIndex)
	case currentIndex > n-1-k:
		c.windowStart = n - 2*k - 1
		c.offset = k - (n - 1 - currentIndex)
	default:
		c.windowStart = currentIndex - k
		c.offset = 0
	}
	c.current = currentIndex

	type job struct {
		slot  int
		index int
	}
	var jobs []job
	for slot := range c.data {
		if index := c.windowStart + slot; index >= 0 && index < n {
			jobs = append(jobs, job{slot: slot, index: index})
		}
	}

	type result struct {
		decoded *Decoded
		err     error
	}
	mapper := iter.Mapper[job, result]{MaxGoroutines: c.concurrency}
	results := mapper.Map(jobs, func(j *job) result {
		if ctx.Err() != nil {
			return result{err: ctx.Err()}
		}
		d, err := c.backend.Decode(c.sources[j.index])
		return result{decoded: d, err: err}
	})

	loaded := 0
	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load initial images: %w", err)
		}
		r := results[i]
		if r.err != nil {
			c.skip(j.index, r.err)
			continue
		}
		data, err := c.backend.Store(ctx, r.decoded)
		if err != nil {
			c.skip(j.index, err)
			continue
		}
		c.data[j.slot] = data
		c.indices[j.slot] = j.index
		loaded++
	}

	slogger().Debug("imgcache: initial images loaded", "current", currentIndex,
		"offset", c.offset, "window_start", c.windowStart, "loaded", loaded, "slots", len(c.data))
	return nil
}

func (c *ImageCache) skip(index int, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	slogger().Warn("imgcache: skipping image", "index", index,
		"source", c.sources[index].FileName(), "err", err)
}

// LoadImage loads image index through the backend without placing it in a
// slot.
func (c *ImageCache) LoadImage(ctx context.Context, index int) (*CachedData, error) {
	if index < 0 || index >= len(c.sources) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrImageIndexOutOfRange, index, len(c.sources))
	}
	return Load(ctx, c.backend, c.sources[index])
}

// LoadPos releases what slot holds and stores data with its image index.
// It reports whether slot is the centre slot.
func (c *ImageCache) LoadPos(data *CachedData, slot, index int) (bool, error) {
	if slot < 0 || slot >= len(c.data) {
		return false, fmt.Errorf("%w: %d not in [0, %d]", ErrSlotOutOfRange, slot, len(c.data)-1)
	}
	c.release(slot)
	c.data[slot] = data
	c.indices[slot] = index
	if data == nil {
		c.indices[slot] = -1
	}
	return slot == c.count, nil
}

// ShiftLeft drops slot 0, moves every slot one place down and puts data in
// the last slot as the image after the window. The cursor image moves one
// slot down with the window.
func (c *ImageCache) ShiftLeft(data *CachedData) {
	c.release(0)
	last := len(c.data) - 1
	copy(c.data, c.data[1:])
	copy(c.indices, c.indices[1:])
	c.windowStart++
	c.data[last] = data
	c.indices[last] = c.indexFor(data, c.windowStart+last)
	c.offset--
	slogger().Debug("imgcache: shifted left", "offset", c.offset, "window_start", c.windowStart)
}

// ShiftRight drops the last slot, moves every slot one place up and puts
// data in slot 0 as the image before the window.
func (c *ImageCache) ShiftRight(data *CachedData) {
	c.release(len(c.data) - 1)
	copy(c.data[1:], c.data)
	copy(c.indices[1:], c.indices)
	c.windowStart--
	c.data[0] = data
	c.indices[0] = c.indexFor(data, c.windowStart)
	c.offset++
	slogger().Debug("imgcache: shifted right", "offset", c.offset, "window_start", c.windowStart)
}

func (c *ImageCache) indexFor(data *CachedData, index int) int {
	if data == nil || index < 0 || index >= len(c.sources) {
		return -1
	}
	return index
}

// MoveNext shifts the window left, appending data, unless the cursor is at
// the last image.
func (c *ImageCache) MoveNext(data *CachedData) (bool, error) {
	if c.current >= len(c.sources)-1 {
		return false, ErrNoNextImage
	}
	c.ShiftLeft(data)
	return false, nil
}

// MovePrev shifts the window right, prepending data, unless the cursor is
// at the first image.
func (c *ImageCache) MovePrev(data *CachedData) (bool, error) {
	if c.current <= 0 {
		return false, ErrNoPreviousImage
	}
	c.ShiftRight(data)
	return false, nil
}

// Next advances the cursor. Once the cursor is past the centre slot the
// image entering the window is loaded and the window shifts left. It
// returns the data at the new cursor, nil if that image failed to load.
// When ctx is cancelled during the load the cursor does not move.
func (c *ImageCache) Next(ctx context.Context) (*CachedData, error) {
	if c.current >= len(c.sources)-1 {
		return nil, ErrNoNextImage
	}
	if c.IsOperationBlocking(OpShiftNext) {
		return nil, fmt.Errorf("imgcache: cursor at window end, offset %d", c.offset)
	}

	next := c.NextImageToLoad()
	if c.offset+1 > 0 && next < len(c.sources) {
		data, err := c.loadOrSkip(ctx, next)
		if err != nil {
			return nil, err
		}
		if _, err := c.MoveNext(data); err != nil {
			c.backend.Release(data)
			return nil, err
		}
	}
	c.current++
	c.offset++
	return c.InitialImage(), nil
}

// Prev moves the cursor back. Once the cursor is before the centre slot
// the image entering the window is loaded and the window shifts right.
func (c *ImageCache) Prev(ctx context.Context) (*CachedData, error) {
	if c.current <= 0 {
		return nil, ErrNoPreviousImage
	}
	if c.IsOperationBlocking(OpShiftPrevious) {
		return nil, fmt.Errorf("imgcache: cursor at window start, offset %d", c.offset)
	}

	prev := c.PrevImageToLoad()
	if c.offset-1 < 0 && prev >= 0 {
		data, err := c.loadOrSkip(ctx, prev)
		if err != nil {
			return nil, err
		}
		if _, err := c.MovePrev(data); err != nil {
			c.backend.Release(data)
			return nil, err
		}
	}
	c.current--
	c.offset--
	return c.InitialImage(), nil
}

// loadOrSkip loads image index. Load failures are logged and yield nil
// data; only cancellation is returned.
func (c *ImageCache) loadOrSkip(ctx context.Context, index int) (*CachedData, error) {
	data, err := c.LoadImage(ctx, index)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.skip(index, err)
		return nil, nil
	}
	return data, nil
}

// NextImageToLoad returns the image index that enters the window on the
// next shift left.
func (c *ImageCache) NextImageToLoad() int {
	return c.current + (c.count - c.offset) + 1
}

// PrevImageToLoad returns the image index that enters the window on the
// next shift right.
func (c *ImageCache) PrevImageToLoad() int {
	return c.current - c.count - c.offset - 1
}

// NextCacheIndex returns the slot after the cursor.
func (c *ImageCache) NextCacheIndex() int {
	return c.count + c.offset + 1
}

// InitialImage returns the data at the cursor slot.
func (c *ImageCache) InitialImage() *CachedData {
	slot := c.count + c.offset
	if slot < 0 || slot >= len(c.data) {
		return nil
	}
	return c.data[slot]
}

// CurrentImage returns the data of the centre slot.
func (c *ImageCache) CurrentImage() (*CachedData, error) {
	if d := c.data[c.count]; d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("%w: centre slot %d", ErrEmptySlot, c.count)
}

// IsOperationBlocking reports whether op would move the cursor out of the
// window.
func (c *ImageCache) IsOperationBlocking(op Op) bool {
	switch op {
	case OpLoadNext:
		return c.offset == -c.count
	case OpLoadPrevious:
		return c.offset == c.count
	case OpShiftNext:
		return c.offset == c.count
	case OpShiftPrevious:
		return c.offset == -c.count
	default:
		return false
	}
}

// Close releases every slot.
func (c *ImageCache) Close() {
	c.clear()
}

func (c *ImageCache) clear() {
	for i := range c.data {
		c.release(i)
		c.indices[i] = -1
	}
}

func (c *ImageCache) release(slot int) {
	if d := c.data[slot]; d != nil {
		c.backend.Release(d)
		c.data[slot] = nil
	}
}
