package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// DefaultStoreShards is the bigcache shard count used when StoreConfig
// leaves it zero. Must be a power of two.
const DefaultStoreShards = 64

// StoreConfig configures a Store.
type StoreConfig struct {
	// MaxSizeMB bounds the memory used for entries. Zero means unbounded.
	// When the bound is hit the oldest content is dropped and reading it
	// returns ErrNotPreloaded.
	MaxSizeMB int

	// Shards is the number of lock shards, a power of two.
	Shards int
}

// Store holds encoded image bytes extracted from archives, keyed by their
// inner path. Content never expires by age.
//
// Store is safe for concurrent use.
type Store struct {
	cache *bigcache.BigCache
}

// NewStore creates an empty store.
func NewStore(ctx context.Context, config StoreConfig) (*Store, error) {
	shards := config.Shards
	if shards == 0 {
		shards = DefaultStoreShards
	}
	if shards < 0 || shards&(shards-1) != 0 {
		return nil, fmt.Errorf("source: store shards %d is not a power of two", shards)
	}
	if config.MaxSizeMB < 0 {
		return nil, fmt.Errorf("source: negative store size %d MB", config.MaxSizeMB)
	}

	cfg := bigcache.DefaultConfig(24 * time.Hour)
	cfg.Shards = shards
	cfg.CleanWindow = 0
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 4096
	cfg.HardMaxCacheSize = config.MaxSizeMB
	cfg.Verbose = false
	cfg.Logger = storeLogger{}

	c, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create source store: %w", err)
	}
	return &Store{cache: c}, nil
}

// Put stores data under path, replacing any previous content.
func (s *Store) Put(path string, data []byte) error {
	if err := s.cache.Set(path, data); err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}
	return nil
}

// Get returns the content stored under path.
func (s *Store) Get(path string) ([]byte, error) {
	data, err := s.cache.Get(path)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotPreloaded, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return data, nil
}

// Has reports whether content is stored under path.
func (s *Store) Has(path string) bool {
	_, err := s.cache.Get(path)
	return err == nil
}

// Delete removes the content stored under path.
func (s *Store) Delete(path string) {
	if err := s.cache.Delete(path); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		slogger().Warn("source: store delete failed", "path", path, "err", err)
	}
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Size returns the bytes reserved by the store.
func (s *Store) Size() int {
	return s.cache.Capacity()
}

// StoreStats holds lookup counters.
type StoreStats struct {
	Hits       int64
	Misses     int64
	Collisions int64
}

// Stats returns lookup counters.
func (s *Store) Stats() StoreStats {
	st := s.cache.Stats()
	return StoreStats{Hits: st.Hits, Misses: st.Misses, Collisions: st.Collisions}
}

// Close releases the store.
func (s *Store) Close() error {
	return s.cache.Close()
}

// storeLogger routes bigcache messages to the package logger.
type storeLogger struct{}

func (storeLogger) Printf(format string, v ...interface{}) {
	slogger().Warn("source: store: " + fmt.Sprintf(format, v...))
}
