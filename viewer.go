package slider

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/cache"
	"github.com/gogpu/slider/imgcache"
	"github.com/gogpu/slider/source"
)

// ErrNoDevice is returned when a texture is requested from a viewer
// created without a device.
var ErrNoDevice = errors.New("slider: no device")

// Viewer moves a cursor over an image collection and keeps the images
// around it loaded.
//
// Viewer is not safe for concurrent use.
type Viewer struct {
	strategy Strategy
	cache    *imgcache.ImageCache
	backend  imgcache.Backend
	atlas    *atlas.Shared
	textures *imgcache.CPUTextures
	store    *source.Store
}

// Open creates a viewer over the image files of dir, in natural order.
func Open(ctx context.Context, dir string, opts ...Option) (*Viewer, error) {
	sources, err := source.List(dir)
	if err != nil {
		return nil, err
	}
	return New(ctx, sources, opts...)
}

// New creates a viewer over sources. Nothing is loaded until Load.
func New(ctx context.Context, sources []source.Source, opts ...Option) (*Viewer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	strategy := o.strategy
	if strategy.IsGPUBased() && o.device == nil {
		Logger().Warn("slider: no device for GPU strategy, using CPU", "strategy", strategy)
		strategy = StrategyCPU
	}

	v := &Viewer{strategy: strategy}
	if err := v.openStore(ctx, o); err != nil {
		return nil, err
	}
	reader := source.Reader{Store: v.store}

	switch strategy {
	case StrategyCPU:
		v.backend = &imgcache.CPUBackend{Reader: reader}
		if o.device != nil {
			v.textures = imgcache.NewCPUTextures(&imgcache.TextureBackend{
				Reader: reader,
				Device: o.device,
				FlipY:  o.atlasConfig.FlipY,
			}, o.textureCacheSize)
		}
	case StrategyGPU:
		v.backend = &imgcache.TextureBackend{
			Reader:      reader,
			Device:      o.device,
			Compression: o.textureCompression(),
			FlipY:       o.atlasConfig.FlipY,
		}
	case StrategyAtlas:
		cfg := o.atlasConfig
		cfg.Compression = o.textureCompression()
		a, err := atlas.NewShared(o.device, cfg)
		if err != nil {
			v.Close()
			return nil, err
		}
		v.atlas = a
		v.backend = imgcache.NewAtlasBackend(reader, a)
	default:
		v.Close()
		return nil, fmt.Errorf("slider: unknown strategy %v", strategy)
	}

	c, err := imgcache.New(v.backend, sources, imgcache.Config{
		CacheCount:  o.cacheCount,
		Concurrency: o.concurrency,
	})
	if err != nil {
		v.Close()
		return nil, err
	}
	v.cache = c

	Logger().Info("slider: viewer created", "images", len(sources),
		"strategy", strategy, "cache_count", c.CacheCount(), "compression", o.textureCompression())
	return v, nil
}

func (v *Viewer) openStore(ctx context.Context, o options) error {
	if len(o.preloaded) == 0 && o.store == (source.StoreConfig{}) {
		return nil
	}
	s, err := source.NewStore(ctx, o.store)
	if err != nil {
		return err
	}
	for _, p := range o.preloaded {
		if err := s.Put(p.path, p.data); err != nil {
			_ = s.Close()
			return err
		}
	}
	v.store = s
	return nil
}

// Strategy returns the strategy in use, StrategyCPU after a fallback.
func (v *Viewer) Strategy() Strategy { return v.strategy }

// Cache returns the image window.
func (v *Viewer) Cache() *imgcache.ImageCache { return v.cache }

// Atlas returns the atlas of StrategyAtlas viewers, nil otherwise.
func (v *Viewer) Atlas() *atlas.Shared { return v.atlas }

// Len returns the number of images.
func (v *Viewer) Len() int { return v.cache.Len() }

// CurrentIndex returns the index of the image at the cursor.
func (v *Viewer) CurrentIndex() int { return v.cache.CurrentIndex() }

// Load fills the window around index and puts the cursor there.
func (v *Viewer) Load(ctx context.Context, index int) error {
	return v.cache.LoadInitialImages(ctx, index)
}

// Current returns the image at the cursor, nil if it failed to load.
func (v *Viewer) Current() *imgcache.CachedData {
	return v.cache.InitialImage()
}

// Next moves the cursor forward and returns the image there.
func (v *Viewer) Next(ctx context.Context) (*imgcache.CachedData, error) {
	return v.cache.Next(ctx)
}

// Prev moves the cursor back and returns the image there.
func (v *Viewer) Prev(ctx context.Context) (*imgcache.CachedData, error) {
	return v.cache.Prev(ctx)
}

// Texture returns GPU data for the image at the cursor. CPU-cached images
// are uploaded through the texture cache; the result must not be
// released.
func (v *Viewer) Texture(ctx context.Context) (*imgcache.CachedData, error) {
	cur := v.Current()
	if cur == nil {
		return nil, fmt.Errorf("%w: image %d", imgcache.ErrEmptySlot, v.CurrentIndex())
	}
	if cur.Kind() != imgcache.KindCPU {
		return cur, nil
	}
	if v.textures == nil {
		return nil, ErrNoDevice
	}
	return v.textures.Texture(ctx, cur)
}

// Stats describes the viewer state.
type Stats struct {
	Strategy       string             `json:"strategy"`
	Images         int                `json:"images"`
	CurrentIndex   int                `json:"current_index"`
	Offset         int                `json:"offset"`
	Indices        []int              `json:"indices"`
	Loaded         int                `json:"loaded"`
	LoadedBytes    int                `json:"loaded_bytes"`
	Atlas          *atlas.Stats       `json:"atlas,omitempty"`
	AtlasFallbacks int64              `json:"atlas_fallbacks"`
	Textures       *cache.Stats       `json:"textures,omitempty"`
	Store          *source.StoreStats `json:"store,omitempty"`
}

// Stats returns a snapshot of the window, atlas and caches.
func (v *Viewer) Stats() Stats {
	s := Stats{
		Strategy:     v.strategy.String(),
		Images:       v.cache.Len(),
		CurrentIndex: v.cache.CurrentIndex(),
		Offset:       v.cache.Offset(),
		Indices:      v.cache.Indices(),
	}
	for i := range s.Indices {
		if d, _ := v.cache.Slot(i); d != nil {
			s.Loaded++
			s.LoadedBytes += d.Len()
		}
	}
	if v.atlas != nil {
		st := v.atlas.Stats()
		s.Atlas = &st
	}
	if b, ok := v.backend.(*imgcache.AtlasBackend); ok {
		s.AtlasFallbacks = b.Fallbacks()
	}
	if v.textures != nil {
		st := v.textures.Stats()
		s.Textures = &st
	}
	if v.store != nil {
		st := v.store.Stats()
		s.Store = &st
	}
	return s
}

// Close releases every loaded image, the atlas and the caches.
func (v *Viewer) Close() {
	if v.cache != nil {
		v.cache.Close()
	}
	if v.textures != nil {
		v.textures.Close()
	}
	if v.atlas != nil {
		v.atlas.Close()
	}
	if v.store != nil {
		if err := v.store.Close(); err != nil {
			Logger().Warn("slider: close store", "err", err)
		}
	}
}
