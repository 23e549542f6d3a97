// Package cache provides an in-memory cache with TTL expiry and a capacity
// bound. It is shared between sessions and safe for concurrent use.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultMaxSize = 200
	DefaultTTL     = 2 * time.Hour
)

type entry[V any] struct {
	key         string
	content     V
	createdAt   time.Time
	accessCount int
	ttl         time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.createdAt.Add(e.ttl))
}

// Cache is a capacity-bounded cache with per-entry TTL.
//
// Accessing an entry moves it to the most recent end of the eviction order.
// Inserting past capacity evicts from the oldest end only; entries are never
// evicted on access. Expired entries are removed lazily on Get and counted as
// misses, or eagerly with CleanupExpired.
type Cache[V any] struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	entries    map[string]*list.Element
	// order keeps the eviction order with the oldest entry at the front.
	order  *list.List
	hits   int
	misses int
	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Stats summarises cache effectiveness.
type Stats struct {
	Size    int
	MaxSize int
	Hits    int
	Misses  int
	HitRate float64
}

// New creates a Cache holding at most maxSize entries with the given default TTL.
func New[V any](maxSize int, defaultTTL time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache[V]{
		mu:         sync.Mutex{},
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		hits:       0,
		misses:     0,
		now:        time.Now,
	}
}

// Get returns the content for key. Expired entries are removed and reported as
// misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	if ent.expired(c.now()) {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return zero, false
	}

	// Move to the most recent end so later insertions evict colder entries first.
	c.order.MoveToBack(elem)
	ent.accessCount++
	c.hits++
	return ent.content, true
}

// Set stores content under key with the default TTL.
func (c *Cache[V]) Set(key string, content V) {
	c.SetWithTTL(key, content, c.defaultTTL)
}

// SetWithTTL stores content under key. When the cache is full, the entry at
// the oldest end of the order is evicted.
func (c *Cache[V]) SetWithTTL(key string, content V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	} else if len(c.entries) >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[V]).key)
		}
	}

	c.entries[key] = c.order.PushBack(&entry[V]{
		key:         key,
		content:     content,
		createdAt:   c.now(),
		accessCount: 0,
		ttl:         ttl,
	})
}

// GetOrCompute returns the cached content for key or computes, stores, and
// returns it. The computation runs without holding the cache lock, so two
// concurrent callers with the same key may both compute; the later Set wins.
// That is acceptable because content is interchangeable for a given key.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error), ttl time.Duration) (V, error) {
	if content, ok := c.Get(key); ok {
		return content, nil
	}

	content, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.SetWithTTL(key, content, ttl)
	return content, nil
}

// Invalidate removes key from the cache.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}
}

// Clear removes all entries and resets the statistics.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
}

// CleanupExpired eagerly removes all expired entries.
func (c *Cache[V]) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if ent := elem.Value.(*entry[V]); ent.expired(now) {
			c.order.Remove(elem)
			delete(c.entries, ent.key)
		}
		elem = next
	}
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}
