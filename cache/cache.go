package cache

import (
	"sync"
	"sync/atomic"

	"github.com/tidwall/hashmap"
	"github.com/zeebo/xxh3"
)

// DefaultCapacity is the number of entries kept when New is given a
// non-positive capacity.
const DefaultCapacity = 64

// Key identifies cached content by the xxh3 hash of its bytes.
type Key uint64

// KeyOf hashes data.
func KeyOf(data []byte) Key {
	return Key(xxh3.Hash(data))
}

// Cache is a content-addressed LRU cache.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[V any] struct {
	mu       sync.Mutex
	entries  *hashmap.Map[Key, *entry[V]]
	inflight *hashmap.Map[Key, *call[V]]
	lru      lruList
	capacity int
	release  func(V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry[V any] struct {
	value V
	node  *lruNode
}

// call is a create in progress. done is closed once value and err are set.
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// New creates a cache holding at most capacity entries. release, if not
// nil, is called for every value that leaves the cache through eviction,
// replacement, Delete or Clear. It runs without the cache lock held.
func New[V any](capacity int, release func(V)) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[V]{
		entries:  hashmap.New[Key, *entry[V]](capacity),
		inflight: hashmap.New[Key, *call[V]](0),
		capacity: capacity,
		release:  release,
	}
}

// Get returns the value stored under key and marks it recently used.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	e, ok := c.entries.Get(key)
	if ok {
		c.lru.MoveToFront(e.node)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key, replacing and releasing any previous value.
func (c *Cache[V]) Set(key Key, value V) {
	c.mu.Lock()
	dropped := c.storeLocked(key, value)
	c.mu.Unlock()

	c.releaseAll(dropped)
}

// GetOrCreate returns the value cached for data's content or creates it.
// create runs without the cache lock, so lookups of other content are
// not blocked while it works. Concurrent calls for the same content wait
// for the first one and share its result; a failed create caches nothing.
func (c *Cache[V]) GetOrCreate(data []byte, create func() (V, error)) (V, error) {
	key := KeyOf(data)

	c.mu.Lock()
	if e, ok := c.entries.Get(key); ok {
		c.lru.MoveToFront(e.node)
		c.mu.Unlock()
		c.hits.Add(1)
		return e.value, nil
	}
	if cl, ok := c.inflight.Get(key); ok {
		c.mu.Unlock()
		c.hits.Add(1)
		<-cl.done
		return cl.value, cl.err
	}
	cl := &call[V]{done: make(chan struct{})}
	c.inflight.Set(key, cl)
	c.mu.Unlock()
	c.misses.Add(1)

	cl.value, cl.err = create()

	c.mu.Lock()
	c.inflight.Delete(key)
	var dropped []V
	if cl.err == nil {
		dropped = c.storeLocked(key, cl.value)
	}
	c.mu.Unlock()
	close(cl.done)

	c.releaseAll(dropped)
	return cl.value, cl.err
}

// Delete removes and releases the value stored under key.
func (c *Cache[V]) Delete(key Key) bool {
	c.mu.Lock()
	e, ok := c.entries.Delete(key)
	if ok {
		c.lru.Remove(e.node)
	}
	c.mu.Unlock()

	if ok {
		c.releaseAll([]V{e.value})
	}
	return ok
}

// Clear removes and releases every value.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	dropped := make([]V, 0, c.entries.Len())
	c.entries.Scan(func(_ Key, e *entry[V]) bool {
		dropped = append(dropped, e.value)
		return true
	})
	c.entries = hashmap.New[Key, *entry[V]](c.capacity)
	c.lru.Clear()
	c.mu.Unlock()

	c.releaseAll(dropped)
}

// Len returns the number of cached values.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Capacity returns the maximum number of cached values.
func (c *Cache[V]) Capacity() int {
	return c.capacity
}

// Stats returns current cache statistics.
func (c *Cache[V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		Evictions: c.evictions.Load(),
	}
}

// ResetStats resets the hit, miss and eviction counters.
func (c *Cache[V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// storeLocked sets key to value and returns the values it displaced.
func (c *Cache[V]) storeLocked(key Key, value V) []V {
	if e, ok := c.entries.Get(key); ok {
		old := e.value
		e.value = value
		c.lru.MoveToFront(e.node)
		return []V{old}
	}
	return c.insertLocked(key, value)
}

// insertLocked adds a new entry and evicts the oldest ones beyond
// capacity. It returns the evicted values.
func (c *Cache[V]) insertLocked(key Key, value V) []V {
	var evicted []V
	for c.lru.Len() >= c.capacity {
		oldest, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		if e, ok := c.entries.Delete(oldest); ok {
			evicted = append(evicted, e.value)
			c.evictions.Add(1)
		}
	}
	c.entries.Set(key, &entry[V]{value: value, node: c.lru.PushFront(key)})
	return evicted
}

func (c *Cache[V]) releaseAll(values []V) {
	if c.release == nil {
		return
	}
	for _, v := range values {
		c.release(v)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the maximum number of entries.
	Capacity int
	// Hits counts lookups that found a value.
	Hits uint64
	// Misses counts lookups that did not.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 when nothing was looked up.
	HitRate float64
	// Evictions counts values dropped to make room.
	Evictions uint64
}
