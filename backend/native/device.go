package native

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/slider/atlas"
)

// copyBytesPerRowAlignment is WebGPU's COPY_BYTES_PER_ROW_ALIGNMENT.
const copyBytesPerRowAlignment = 256

// closeTimeout bounds the final wait for in-flight submissions.
const closeTimeout = 5 * time.Second

// Device implements atlas.Device on a HAL device and queue.
//
// Device is safe for concurrent use.
type Device struct {
	mu     sync.Mutex
	device hal.Device
	queue  hal.Queue
	fence  hal.Fence

	// submitted is the fence value signalled by the latest submission.
	submitted uint64
	pending   []*submission

	release func()
	closed  bool
}

// submission holds resources that must outlive a queue submission.
type submission struct {
	value   uint64
	cmd     hal.CommandBuffer
	buffers []hal.Buffer
	after   []func()
}

// New creates a device on an existing HAL device and queue. The caller
// keeps ownership of both.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	return &Device{device: device, queue: queue, fence: fence}, nil
}

// NewFromProvider borrows the HAL device and queue of an application
// device provider. The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProvider)
	}
	return New(device, queue)
}

// NewNoop creates a device on the headless noop HAL backend. The device
// owns the instance and releases it on Close.
func NewNoop() (*Device, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open noop adapter: %w", err)
	}

	d, err := New(openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	slogger().Info("native: noop device opened")
	return d, nil
}

// HAL returns the underlying device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) {
	return d.device, d.queue
}

// RowAlignment implements atlas.Device.
func (d *Device) RowAlignment() int {
	return copyBytesPerRowAlignment
}

// CreateTexture implements atlas.Device.
func (d *Device) CreateTexture(desc atlas.TextureDescriptor) (atlas.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || desc.Layers <= 0 {
		return nil, fmt.Errorf("native: invalid texture size %dx%dx%d", desc.Width, desc.Height, desc.Layers)
	}
	raw, err := d.device.CreateTexture(halTextureDescriptor(desc))
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	slogger().Debug("native: texture created",
		"label", desc.Label, "width", desc.Width, "height", desc.Height,
		"layers", desc.Layers, "format", desc.Format)
	return &Texture{raw: raw, desc: desc}, nil
}

// DestroyTexture implements atlas.Device. The texture is destroyed once
// every submission recorded so far has completed.
func (d *Device) DestroyTexture(tex atlas.Texture) {
	t, ok := tex.(*Texture)
	if !ok || t == nil || t.raw == nil {
		return
	}
	raw := t.raw
	t.raw = nil
	d.deferRelease(func() { d.device.DestroyTexture(raw) })
}

// CreateView implements atlas.Device.
func (d *Device) CreateView(tex atlas.Texture) (atlas.View, error) {
	t, ok := tex.(*Texture)
	if !ok || t == nil {
		return nil, ErrForeignResource
	}
	raw, err := d.device.CreateTextureView(t.raw, halViewDescriptor(t))
	if err != nil {
		return nil, fmt.Errorf("create texture view: %w", err)
	}
	return &TextureView{raw: raw, tex: t}, nil
}

// DestroyView implements atlas.Device.
func (d *Device) DestroyView(view atlas.View) {
	v, ok := view.(*TextureView)
	if !ok || v == nil || v.raw == nil {
		return
	}
	raw := v.raw
	v.raw = nil
	d.deferRelease(func() { d.device.DestroyTextureView(raw) })
}

// CreateEncoder implements atlas.Device.
func (d *Device) CreateEncoder(label string) (atlas.Encoder, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	raw, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := raw.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return &Encoder{device: d, raw: raw, label: label}, nil
}

// Submit implements atlas.Device. Staged data is written to its buffers,
// the commands are submitted with the next fence value and completed
// submissions are reclaimed. Submit does not wait for the GPU.
func (d *Device) Submit(e atlas.Encoder) error {
	enc, ok := e.(*Encoder)
	if !ok || enc.device != d {
		return ErrForeignResource
	}
	if enc.done {
		return ErrEncoderUsed
	}
	enc.done = true

	if enc.err != nil {
		enc.raw.DiscardEncoding()
		enc.abandon()
		return enc.err
	}

	for _, s := range enc.staged {
		d.queue.WriteBuffer(s.buf, 0, s.data)
	}
	cmd, err := enc.raw.EndEncoding()
	if err != nil {
		enc.abandon()
		return fmt.Errorf("end encoding: %w", err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.device.FreeCommandBuffer(cmd)
		enc.abandon()
		return ErrClosed
	}

	value := d.submitted + 1
	if err := d.queue.Submit([]hal.CommandBuffer{cmd}, d.fence, value); err != nil {
		d.mu.Unlock()
		d.device.FreeCommandBuffer(cmd)
		enc.abandon()
		return fmt.Errorf("submit %s: %w", enc.label, err)
	}
	d.submitted = value

	sub := &submission{value: value, cmd: cmd, after: enc.after}
	for _, s := range enc.staged {
		sub.buffers = append(sub.buffers, s.buf)
	}
	d.pending = append(d.pending, sub)
	after := d.reclaimLocked()
	d.mu.Unlock()

	runAll(after)
	return nil
}

// Poll reclaims resources of completed submissions without blocking.
func (d *Device) Poll() {
	d.mu.Lock()
	after := d.reclaimLocked()
	d.mu.Unlock()
	runAll(after)
}

// Pending returns the number of submissions not yet known to be complete.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close waits for in-flight submissions, releases their resources and
// destroys the owned device, if any.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true

	var err error
	if d.submitted > 0 {
		ok, werr := d.device.Wait(d.fence, d.submitted, closeTimeout)
		if werr != nil || !ok {
			err = fmt.Errorf("wait for GPU: ok=%v err=%w", ok, werr)
		}
	}
	after := d.finishLocked(len(d.pending))
	d.mu.Unlock()

	runAll(after)
	d.device.DestroyFence(d.fence)
	if d.release != nil {
		d.release()
	}
	return err
}

// deferRelease runs fn once all work submitted so far is complete. With
// nothing in flight fn runs immediately.
func (d *Device) deferRelease(fn func()) {
	d.mu.Lock()
	if len(d.pending) == 0 || d.closed {
		d.mu.Unlock()
		fn()
		return
	}
	last := d.pending[len(d.pending)-1]
	last.after = append(last.after, fn)
	d.mu.Unlock()
}

// reclaimLocked frees every submission whose fence value has been reached
// and returns their completion callbacks.
func (d *Device) reclaimLocked() []func() {
	done := 0
	for _, s := range d.pending {
		ok, err := d.device.Wait(d.fence, s.value, 0)
		if err != nil {
			slogger().Warn("native: fence poll failed", "value", s.value, "err", err)
			break
		}
		if !ok {
			break
		}
		done++
	}
	return d.finishLocked(done)
}

// finishLocked releases the first n pending submissions and returns their
// callbacks, which must run without d.mu held.
func (d *Device) finishLocked(n int) []func() {
	var after []func()
	for _, s := range d.pending[:n] {
		d.device.FreeCommandBuffer(s.cmd)
		for _, b := range s.buffers {
			d.device.DestroyBuffer(b)
		}
		after = append(after, s.after...)
	}
	d.pending = append(d.pending[:0], d.pending[n:]...)
	return after
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
