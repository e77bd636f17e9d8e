package slider

import (
	"log/slog"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/source"
)

// Option configures a Viewer during creation.
//
// Example:
//
//	v, err := slider.Open(ctx, dir,
//	    slider.WithStrategy(slider.StrategyAtlas),
//	    slider.WithDevice(dev),
//	)
type Option func(*options)

// DefaultTextureCacheSize is the number of textures CPU-cached images may
// hold at once.
const DefaultTextureCacheSize = 16

type preloaded struct {
	path string
	data []byte
}

// options holds optional configuration for Viewer creation.
type options struct {
	cacheCount       int
	concurrency      int
	strategy         Strategy
	compression      atlas.Compression
	compressionSet   bool
	atlasConfig      atlas.Config
	device           atlas.Device
	logger           *slog.Logger
	store            source.StoreConfig
	preloaded        []preloaded
	textureCacheSize int
}

// defaultOptions returns the default viewer options.
func defaultOptions() options {
	return options{
		strategy:         StrategyCPU,
		atlasConfig:      atlas.DefaultConfig(),
		textureCacheSize: DefaultTextureCacheSize,
	}
}

// WithCacheCount sets the number of images kept loaded on each side of the
// cursor. Zero selects imgcache.DefaultCacheCount.
func WithCacheCount(n int) Option {
	return func(o *options) {
		o.cacheCount = n
	}
}

// WithConcurrency bounds the decoders run while loading a window.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithStrategy selects where cached images are held. GPU strategies need
// a device; without one the viewer falls back to StrategyCPU.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithCompression selects the texel storage of GPU strategies. It
// overrides the compression of WithAtlasConfig.
func WithCompression(c atlas.Compression) Option {
	return func(o *options) {
		o.compression = c
		o.compressionSet = true
	}
}

// WithAtlasConfig sets the atlas configuration used by StrategyAtlas.
// Its FlipY, and its Compression unless WithCompression is given, also
// apply to individual textures.
func WithAtlasConfig(cfg atlas.Config) Option {
	return func(o *options) {
		o.atlasConfig = cfg
	}
}

// WithDevice sets the device textures are created on.
func WithDevice(d atlas.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithLogger sets the logger of slider and its sub-packages, as SetLogger
// does.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStore configures the store holding preloaded content.
func WithStore(cfg source.StoreConfig) Option {
	return func(o *options) {
		o.store = cfg
	}
}

// WithPreloaded adds encoded image bytes under path. The image is read
// from memory by sources of kind KindPreloaded or KindArchive with that
// path.
func WithPreloaded(path string, data []byte) Option {
	return func(o *options) {
		o.preloaded = append(o.preloaded, preloaded{path: path, data: data})
	}
}

// WithTextureCacheSize sets how many textures CPU-cached images may hold
// at once.
func WithTextureCacheSize(n int) Option {
	return func(o *options) {
		o.textureCacheSize = n
	}
}

// textureCompression returns the compression of GPU strategies.
func (o *options) textureCompression() atlas.Compression {
	if o.compressionSet {
		return o.compression
	}
	return o.atlasConfig.Compression
}
