package atlas

import (
	"fmt"
)

// Binding is a read handle on the current atlas texture. The texture and
// view are replaced on every grow; Generation changes with them.
type Binding struct {
	Texture    Texture
	View       View
	Layers     int
	Size       int
	Format     Format
	Generation uint64
}

// Stats summarises layer usage.
type Stats struct {
	Layers      int
	EmptyLayers int
	BusyLayers  int
	FullLayers  int
	Allocations int
}

// Atlas is a growable texture array with a packer per layer.
//
// Atlas is not safe for concurrent use; see [Shared].
type Atlas struct {
	device Device
	config Config

	texture       Texture
	view          View
	textureLayers int
	generation    uint64

	layers []layer
	closed bool
}

// New creates an atlas with config.InitialLayers empty layers.
func New(device Device, config Config) (*Atlas, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &Atlas{
		device: device,
		config: config,
		layers: make([]layer, config.InitialLayers),
	}
	tex, view, err := a.createTexture(config.InitialLayers)
	if err != nil {
		return nil, err
	}
	a.texture, a.view, a.textureLayers = tex, view, config.InitialLayers

	slogger().Info("atlas created",
		"size", config.Size,
		"layers", config.InitialLayers,
		"format", config.Compression.Format())
	return a, nil
}

// Config returns the atlas configuration.
func (a *Atlas) Config() Config {
	return a.config
}

// LayerCount returns the number of layers, including layers appended by
// Allocate that the texture does not have yet.
func (a *Atlas) LayerCount() int {
	return len(a.layers)
}

// Binding returns the current texture, view and generation.
func (a *Atlas) Binding() Binding {
	return Binding{
		Texture:    a.texture,
		View:       a.view,
		Layers:     a.textureLayers,
		Size:       a.config.Size,
		Format:     a.config.Compression.Format(),
		Generation: a.generation,
	}
}

// Stats returns layer usage statistics.
func (a *Atlas) Stats() Stats {
	s := Stats{Layers: len(a.layers)}
	for i := range a.layers {
		l := &a.layers[i]
		switch l.state {
		case layerEmpty:
			s.EmptyLayers++
		case layerBusy:
			s.BusyLayers++
		case layerFull:
			s.FullLayers++
		}
		s.Allocations += l.allocations()
	}
	return s
}

// Allocate reserves space for a width×height image.
//
// An image of exactly one layer claims a whole layer. Larger images are
// split into tiles of at most Size×Size in row-major order. Anything else
// is packed into the first layer with room, appending a layer when none
// has. Layers appended here only exist in the texture after a Grow.
func (a *Atlas) Allocate(width, height int) (*Entry, error) {
	if a.closed {
		return nil, ErrAtlasClosed
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	size := a.config.Size
	if width > size || height > size {
		return a.allocateFragmented(width, height)
	}

	alloc, err := a.allocateSingle(width, height)
	if err != nil {
		return nil, err
	}
	return &Entry{Width: width, Height: height, Allocation: alloc}, nil
}

func (a *Atlas) allocateSingle(width, height int) (Allocation, error) {
	if width == a.config.Size && height == a.config.Size {
		return a.allocateFull()
	}
	return a.allocatePartial(width, height)
}

func (a *Atlas) allocateFull() (Allocation, error) {
	for i := range a.layers {
		if a.layers[i].isEmpty() {
			a.layers[i].state = layerFull
			return Allocation{Kind: AllocationFull, Layer: i, size: a.config.Size}, nil
		}
	}
	if len(a.layers) >= a.config.MaxLayers {
		return Allocation{}, fmt.Errorf("%w: %d layers in use", ErrAtlasFull, len(a.layers))
	}
	a.layers = append(a.layers, layer{state: layerFull})
	return Allocation{Kind: AllocationFull, Layer: len(a.layers) - 1, size: a.config.Size}, nil
}

func (a *Atlas) allocatePartial(width, height int) (Allocation, error) {
	for i := range a.layers {
		l := &a.layers[i]
		switch l.state {
		case layerEmpty:
			p := a.newPacker()
			if r, ok := p.Allocate(width, height); ok {
				l.state, l.packer = layerBusy, p
				return Allocation{Kind: AllocationPartial, Layer: i, Region: r}, nil
			}
		case layerBusy:
			if r, ok := l.packer.Allocate(width, height); ok {
				return Allocation{Kind: AllocationPartial, Layer: i, Region: r}, nil
			}
		}
	}

	if len(a.layers) >= a.config.MaxLayers {
		return Allocation{}, fmt.Errorf("%w: no room for %dx%d in %d layers",
			ErrAtlasFull, width, height, len(a.layers))
	}
	p := a.newPacker()
	r, ok := p.Allocate(width, height)
	if !ok {
		return Allocation{}, fmt.Errorf("%w: %dx%d does not fit an empty layer", ErrAtlasFull, width, height)
	}
	a.layers = append(a.layers, layer{state: layerBusy, packer: p})
	return Allocation{Kind: AllocationPartial, Layer: len(a.layers) - 1, Region: r}, nil
}

func (a *Atlas) allocateFragmented(width, height int) (*Entry, error) {
	size := a.config.Size
	cols := divCeil(width, size)
	rows := divCeil(height, size)
	entry := &Entry{
		Width:     width,
		Height:    height,
		Fragments: make([]Fragment, 0, cols*rows),
	}

	for y := 0; y < height; y += size {
		fh := min(size, height-y)
		for x := 0; x < width; x += size {
			fw := min(size, width-x)
			alloc, err := a.allocateSingle(fw, fh)
			if err != nil {
				a.Remove(entry)
				return nil, err
			}
			entry.Fragments = append(entry.Fragments, Fragment{X: x, Y: y, Allocation: alloc})
		}
	}

	slogger().Debug("atlas fragmented allocation",
		"width", width, "height", height, "fragments", len(entry.Fragments))
	return entry, nil
}

func (a *Atlas) newPacker() *Packer {
	return NewPacker(a.config.Size, a.config.Size, a.config.Compression.Format().BlockDim())
}

// Remove frees every allocation held by entry. A nil entry is ignored.
func (a *Atlas) Remove(entry *Entry) {
	if entry == nil {
		return
	}
	if !entry.Fragmented() {
		a.Deallocate(entry.Allocation)
		return
	}
	for _, f := range entry.Fragments {
		a.Deallocate(f.Allocation)
	}
}

// Deallocate frees a single allocation. A busy layer whose packer becomes
// empty and a full layer both return to the empty state.
func (a *Atlas) Deallocate(alloc Allocation) {
	if alloc.Layer < 0 || alloc.Layer >= len(a.layers) {
		slogger().Warn("atlas deallocate: layer out of range", "allocation", alloc.String())
		return
	}

	l := &a.layers[alloc.Layer]
	switch alloc.Kind {
	case AllocationFull:
		if l.state != layerFull {
			slogger().Warn("atlas deallocate: layer not full", "allocation", alloc.String(), "state", l.state)
			return
		}
		l.clear()
	case AllocationPartial:
		if l.state != layerBusy {
			slogger().Warn("atlas deallocate: layer not busy", "allocation", alloc.String(), "state", l.state)
			return
		}
		if !l.packer.Deallocate(alloc.Region) {
			slogger().Warn("atlas deallocate: region not allocated", "allocation", alloc.String())
			return
		}
		if l.packer.IsEmpty() {
			l.clear()
		}
	}
}

// Grow adds additional layers to the texture array. The new texture is
// created, every non-empty layer of the old one is copied to the same
// index, and the old texture is released once the encoder's submission
// completes. Grow(0) is a no-op.
//
// A texture that cannot be created is reported as ErrAtlasFull: the
// layers do not exist and callers fall back as for any full atlas.
func (a *Atlas) Grow(enc Encoder, additional int) error {
	g, err := a.prepareGrow(enc, additional)
	if err != nil || g == nil {
		return err
	}
	enc.AfterCompletion(a.commitGrow(g))
	return nil
}

// growth is a larger texture whose layer copies are recorded but which is
// not installed yet.
type growth struct {
	texture Texture
	view    View
	layers  int
	copied  int
}

// prepareGrow creates the larger texture and records the copies of every
// non-empty layer into enc. The atlas keeps using its current texture.
func (a *Atlas) prepareGrow(enc Encoder, additional int) (*growth, error) {
	if a.closed {
		return nil, ErrAtlasClosed
	}
	if additional <= 0 {
		return nil, nil
	}

	oldCount := a.textureLayers
	newCount := oldCount + additional
	if newCount > a.config.MaxLayers {
		return nil, fmt.Errorf("%w: grow to %d layers exceeds limit %d", ErrAtlasFull, newCount, a.config.MaxLayers)
	}

	tex, view, err := a.createTexture(newCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAtlasFull, err)
	}

	g := &growth{texture: tex, view: view, layers: newCount}
	for i := 0; i < oldCount && i < len(a.layers); i++ {
		if a.layers[i].isEmpty() {
			continue
		}
		enc.CopyTextureToTexture(
			a.texture, Origin{Layer: i},
			tex, Origin{Layer: i},
			Extent{Width: a.config.Size, Height: a.config.Size},
		)
		g.copied++
	}
	return g, nil
}

// commitGrow installs g and returns the function that releases the
// replaced texture. It must run only after the copies reading that
// texture have completed.
func (a *Atlas) commitGrow(g *growth) func() {
	oldTex, oldView, oldCount := a.texture, a.view, a.textureLayers

	for len(a.layers) < g.layers {
		a.layers = append(a.layers, layer{})
	}
	a.texture, a.view, a.textureLayers = g.texture, g.view, g.layers
	a.generation++

	slogger().Debug("atlas grown",
		"from", oldCount, "to", g.layers, "copied", g.copied, "generation", a.generation)

	if a.config.OnGrow != nil {
		a.config.OnGrow(a.Binding())
	}
	return func() {
		a.device.DestroyView(oldView)
		a.device.DestroyTexture(oldTex)
	}
}

// abortGrow destroys the texture of a growth that was never installed.
func (a *Atlas) abortGrow(g *growth) {
	a.device.DestroyView(g.view)
	a.device.DestroyTexture(g.texture)
}

// missingLayers returns how many allocated layers the texture lacks.
func (a *Atlas) missingLayers() int {
	return max(0, len(a.layers)-a.textureLayers)
}

// release frees entry after a failed upload and drops the trailing empty
// layers its allocation appended beyond the texture.
func (a *Atlas) release(entry *Entry) {
	a.Remove(entry)
	for len(a.layers) > a.textureLayers && a.layers[len(a.layers)-1].isEmpty() {
		a.layers = a.layers[:len(a.layers)-1]
	}
}

func (a *Atlas) createTexture(layers int) (Texture, View, error) {
	tex, err := a.device.CreateTexture(TextureDescriptor{
		Label:  a.config.Label,
		Width:  a.config.Size,
		Height: a.config.Size,
		Layers: layers,
		Format: a.config.Compression.Format(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create atlas texture: %w", err)
	}
	view, err := a.device.CreateView(tex)
	if err != nil {
		a.device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("create atlas view: %w", err)
	}
	return tex, view, nil
}

// Close releases the texture. Entries become invalid.
func (a *Atlas) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.device.DestroyView(a.view)
	a.device.DestroyTexture(a.texture)
	a.texture, a.view = nil, nil
	a.layers = nil
}

// IsClosed returns true if the atlas has been closed.
func (a *Atlas) IsClosed() bool {
	return a.closed
}
