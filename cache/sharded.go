// Package cache provides a sharded LRU cache for GPU objects that are
// expensive to build and cheap to look up, such as render pipelines.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

const (
	// DefaultShardCount is the number of shards. Must be a power of 2.
	DefaultShardCount = 16

	// DefaultCapacity is the default maximum number of entries per shard.
	DefaultCapacity = 64

	shardMask = DefaultShardCount - 1
)

// Hasher computes the hash used for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes the FNV-1a hash of s.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher mixes u so that keys differing only in high bits still
// spread across shards.
func Uint64Hasher(u uint64) uint64 {
	u ^= u >> 33
	u *= 0xff51afd7ed558ccd
	u ^= u >> 33
	return u
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Len       int
	Capacity  int // per shard
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Sharded is a thread-safe LRU cache split into DefaultShardCount shards,
// each with its own lock and capacity.
//
// An optional eviction callback receives every value dropped because a
// shard was full, or removed by Delete or Clear. It runs with the shard
// lock held and must not call back into the cache.
type Sharded[K comparable, V any] struct {
	shards   [DefaultShardCount]shard[K, V]
	hasher   Hasher[K]
	capacity int
	onEvict  func(K, V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*node[K, V]
	lru     list[K, V]
}

// Option configures a Sharded cache.
type Option[K comparable, V any] func(*Sharded[K, V])

// WithEvict sets the callback invoked for every value leaving the cache.
func WithEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Sharded[K, V]) {
		c.onEvict = fn
	}
}

// NewSharded creates a cache holding up to capacity entries per shard.
// If capacity <= 0, DefaultCapacity is used.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K], opts ...Option[K, V]) *Sharded[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Sharded[K, V]{
		hasher:   hasher,
		capacity: capacity,
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[K]*node[K, V])
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Sharded[K, V]) shard(key K) *shard[K, V] {
	return &c.shards[c.hasher(key)&shardMask]
}

// Get returns the value cached under key and marks it most recently used.
func (c *Sharded[K, V]) Get(key K) (V, bool) {
	s := c.shard(key)
	s.mu.Lock()
	n, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.lru.moveToFront(n)
	v := n.value
	s.mu.Unlock()

	c.hits.Add(1)
	return v, true
}

// Set stores value under key, evicting the least recently used entries of
// the shard when it is full. Replacing an existing value evicts the old one.
func (c *Sharded[K, V]) Set(key K, value V) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.entries[key]; ok {
		old := n.value
		n.value = value
		s.lru.moveToFront(n)
		c.evict(key, old)
		return
	}
	c.insertLocked(s, key, value)
}

// GetOrCreate returns the cached value for key, or calls create and caches
// its result. create runs with the shard lock held so concurrent callers
// build each value once. Errors are returned as-is and nothing is cached.
func (c *Sharded[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.entries[key]; ok {
		s.lru.moveToFront(n)
		c.hits.Add(1)
		return n.value, nil
	}
	c.misses.Add(1)

	v, err := create()
	if err != nil {
		return v, err
	}
	c.insertLocked(s, key, v)
	return v, nil
}

func (c *Sharded[K, V]) insertLocked(s *shard[K, V], key K, value V) {
	for s.lru.len >= c.capacity {
		oldest := s.lru.back()
		if oldest == nil {
			break
		}
		s.lru.remove(oldest)
		delete(s.entries, oldest.key)
		c.evictions.Add(1)
		c.evict(oldest.key, oldest.value)
	}
	n := &node[K, V]{key: key, value: value}
	s.lru.pushFront(n)
	s.entries[key] = n
}

func (c *Sharded[K, V]) evict(key K, value V) {
	if c.onEvict != nil {
		c.onEvict(key, value)
	}
}

// Delete removes key. It reports whether the key was present.
func (c *Sharded[K, V]) Delete(key K) bool {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.entries[key]
	if !ok {
		return false
	}
	s.lru.remove(n)
	delete(s.entries, key)
	c.evict(n.key, n.value)
	return true
}

// DeleteFunc removes every entry whose key matches fn and returns the
// number of removed entries.
func (c *Sharded[K, V]) DeleteFunc(fn func(K) bool) int {
	removed := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for k, n := range s.entries {
			if !fn(k) {
				continue
			}
			s.lru.remove(n)
			delete(s.entries, k)
			c.evict(n.key, n.value)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Clear removes all entries.
func (c *Sharded[K, V]) Clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for n := s.lru.back(); n != nil; n = s.lru.back() {
			s.lru.remove(n)
			c.evict(n.key, n.value)
		}
		clear(s.entries)
		s.mu.Unlock()
	}
}

// Len returns the number of entries across all shards.
func (c *Sharded[K, V]) Len() int {
	total := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Capacity returns the per-shard capacity.
func (c *Sharded[K, V]) Capacity() int {
	return c.capacity
}

// Stats returns current counters.
func (c *Sharded[K, V]) Stats() Stats {
	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// ResetStats zeroes the hit, miss and eviction counters.
func (c *Sharded[K, V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}
