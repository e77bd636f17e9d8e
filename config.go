package slider

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/source"
)

// Config is the file form of the viewer options.
//
//	strategy = "atlas"
//	cache_count = 3
//	compression = "bc1"
//
//	[atlas]
//	size = 2048
//	max_layers = 64
type Config struct {
	Strategy         Strategy    `toml:"strategy"`
	CacheCount       int         `toml:"cache_count"`
	Concurrency      int         `toml:"concurrency"`
	Compression      string      `toml:"compression"`
	TextureCacheSize int         `toml:"texture_cache_size"`
	Atlas            AtlasConfig `toml:"atlas"`
	Store            StoreConfig `toml:"store"`
}

// AtlasConfig is the file form of atlas.Config.
type AtlasConfig struct {
	Size          int    `toml:"size"`
	InitialLayers int    `toml:"initial_layers"`
	MaxLayers     int    `toml:"max_layers"`
	FlipY         bool   `toml:"flip_y"`
	Label         string `toml:"label"`
}

// StoreConfig is the file form of source.StoreConfig.
type StoreConfig struct {
	MaxSizeMB int `toml:"max_size_mb"`
	Shards    int `toml:"shards"`
}

// DefaultConfig returns the configuration matching the default options.
func DefaultConfig() Config {
	a := atlas.DefaultConfig()
	return Config{
		Strategy:         StrategyCPU,
		Compression:      atlas.CompressionNone.String(),
		TextureCacheSize: DefaultTextureCacheSize,
		Atlas: AtlasConfig{
			Size:          a.Size,
			InitialLayers: a.InitialLayers,
			MaxLayers:     a.MaxLayers,
			Label:         a.Label,
		},
		Store: StoreConfig{Shards: source.DefaultStoreShards},
	}
}

// LoadConfig reads a TOML file over DefaultConfig. Unknown keys are an
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	Logger().Debug("slider: config loaded", "path", path, "strategy", cfg.Strategy)
	return cfg, nil
}

// WriteConfig writes cfg to path as TOML.
func WriteConfig(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.CacheCount < 0 {
		return fmt.Errorf("cache_count must not be negative, got %d", c.CacheCount)
	}
	if _, err := atlas.ParseCompression(c.Compression); err != nil {
		return err
	}
	a := c.atlasConfig()
	return a.Validate()
}

func (c Config) atlasConfig() atlas.Config {
	a := atlas.DefaultConfig()
	a.Size = c.Atlas.Size
	a.InitialLayers = c.Atlas.InitialLayers
	a.MaxLayers = c.Atlas.MaxLayers
	a.FlipY = c.Atlas.FlipY
	if c.Atlas.Label != "" {
		a.Label = c.Atlas.Label
	}
	return a
}

// Options converts the configuration to viewer options.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	compression, _ := atlas.ParseCompression(c.Compression)
	return []Option{
		WithStrategy(c.Strategy),
		WithCacheCount(c.CacheCount),
		WithConcurrency(c.Concurrency),
		WithCompression(compression),
		WithAtlasConfig(c.atlasConfig()),
		WithTextureCacheSize(c.TextureCacheSize),
		WithStore(source.StoreConfig{MaxSizeMB: c.Store.MaxSizeMB, Shards: c.Store.Shards}),
	}, nil
}
