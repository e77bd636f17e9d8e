package atlas

import (
	"fmt"
	"sync"
)

// Shared is an atlas guarded by a read-write lock, safe for concurrent use.
//
// Upload holds the write lock while it allocates, grows and records copies,
// then submits after unlocking so the GPU queue never runs under the lock.
// Renderers read the binding under the read lock.
//
// Submissions happen in the order the copies were recorded: a grow copies
// the old texture at submit time, so an earlier upload into that texture
// must reach the queue first. submitMu is always taken with mu held, then
// mu is released before submitting.
type Shared struct {
	mu       sync.RWMutex
	submitMu sync.Mutex
	atlas    *Atlas
	device   Device
}

// NewShared creates an atlas on device and wraps it.
func NewShared(device Device, config Config) (*Shared, error) {
	a, err := New(device, config)
	if err != nil {
		return nil, err
	}
	return &Shared{atlas: a, device: device}, nil
}

// Device returns the device the atlas was created on.
func (s *Shared) Device() Device {
	return s.device
}

// Upload packs an RGBA8 image and submits the copies. An upload that needs
// more layers grows the texture first; if the grow cannot be created or
// submitted the error wraps ErrAtlasFull and the atlas is unchanged.
func (s *Shared) Upload(width, height int, pixels []byte) (*Entry, error) {
	enc, err := s.device.CreateEncoder("atlas upload")
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	s.mu.Lock()
	entry, err := s.atlas.reserve(width, height, pixels)
	if err == nil {
		err = s.grow(enc, entry)
	}
	if err == nil {
		if err = s.atlas.record(enc, entry, pixels); err != nil {
			s.atlas.release(entry)
		}
	}
	if err != nil {
		s.mu.Unlock()
		enc.Discard()
		return nil, err
	}
	s.atlas.logUpload(entry)
	s.submitMu.Lock()
	s.mu.Unlock()

	err = s.device.Submit(enc)
	s.submitMu.Unlock()
	if err != nil {
		s.Remove(entry)
		return nil, fmt.Errorf("submit atlas upload: %w", err)
	}
	return entry, nil
}

// grow gives the texture the layers entry was allocated in. The layer
// copies go out on their own encoder before the new texture is installed,
// so a failed submission leaves the old texture and every entry in it
// intact. The old texture is released after enc, which writes into the new
// one, completes. On error entry is freed. s.mu must be held.
func (s *Shared) grow(enc Encoder, entry *Entry) error {
	missing := s.atlas.missingLayers()
	if missing == 0 {
		return nil
	}

	genc, err := s.device.CreateEncoder("atlas grow")
	if err != nil {
		s.atlas.release(entry)
		return fmt.Errorf("%w: create grow encoder: %w", ErrAtlasFull, err)
	}
	g, err := s.atlas.prepareGrow(genc, missing)
	if err != nil {
		genc.Discard()
		s.atlas.release(entry)
		return fmt.Errorf("grow atlas: %w", err)
	}

	s.submitMu.Lock()
	err = s.device.Submit(genc)
	s.submitMu.Unlock()
	if err != nil {
		s.atlas.abortGrow(g)
		s.atlas.release(entry)
		slogger().Warn("atlas: grow submission failed", "layers", g.layers, "err", err)
		return fmt.Errorf("%w: submit grow: %w", ErrAtlasFull, err)
	}
	enc.AfterCompletion(s.atlas.commitGrow(g))
	return nil
}

// Allocate reserves space without uploading pixels.
func (s *Shared) Allocate(width, height int) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.atlas.Allocate(width, height)
}

// Remove frees entry.
func (s *Shared) Remove(entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atlas.Remove(entry)
}

// Read calls fn with the atlas under the read lock. fn must not modify
// the atlas or retain it.
func (s *Shared) Read(fn func(a *Atlas)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.atlas)
}

// Binding returns the current texture binding.
func (s *Shared) Binding() Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.atlas.Binding()
}

// LayerCount returns the number of layers.
func (s *Shared) LayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.atlas.LayerCount()
}

// Stats returns layer usage statistics.
func (s *Shared) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.atlas.Stats()
}

// Config returns the atlas configuration.
func (s *Shared) Config() Config {
	return s.atlas.config
}

// Close releases the atlas texture.
func (s *Shared) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atlas.Close()
}
