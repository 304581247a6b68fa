// Package ttl provides a bounded, in-process cache with per-entry
// expiration. Entries expire a fixed duration after they were written and
// are purged lazily when read. When the cache is full, inserting a new key
// evicts the oldest inserted key (FIFO), not the least recently used one.
package ttl

import (
	"container/list"
	"fmt"
	"time"
)

// Cache maps string keys to values of type T.
//
// Cache is not safe for concurrent use; callers must serialize access or
// use Synced.
type Cache[T any] struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	metrics    Metrics

	items map[string]*list.Element
	order *list.List // Front = oldest insertion
}

type entry[T any] struct {
	key      string
	value    T
	cachedAt time.Time
}

func (e *entry[T]) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.cachedAt) > ttl
}

// New builds a cache whose entries stay valid for ttl and which holds at
// most maxEntries keys. It panics if either bound is not positive.
func New[T any](ttl time.Duration, maxEntries int, opts ...Option) *Cache[T] {
	if ttl <= 0 {
		panic(fmt.Sprintf("ttl: ttl must be positive, got %s", ttl))
	}
	if maxEntries <= 0 {
		panic(fmt.Sprintf("ttl: maxEntries must be positive, got %d", maxEntries))
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Cache[T]{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        cfg.now,
		metrics:    cfg.metrics,
		items:      make(map[string]*list.Element, maxEntries),
		order:      list.New(),
	}
}

// Get returns the value stored for key if it has not expired. An expired
// entry is removed and reported as absent.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	el, ok := c.items[key]
	if !ok {
		c.metrics.Miss()
		return zero, false
	}
	e := el.Value.(*entry[T])
	if e.expired(c.now(), c.ttl) {
		c.remove(el)
		c.metrics.Expire()
		c.metrics.Miss()
		return zero, false
	}
	c.metrics.Hit()
	return e.value, true
}

// Set stores value under key, stamping it with the current time.
// Overwriting an existing key keeps its insertion position and never
// evicts. A new key evicts the oldest entry first when the cache is full.
func (c *Cache[T]) Set(key string, value T) {
	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[T])
		e.value = value
		e.cachedAt = now
		return
	}
	if len(c.items) >= c.maxEntries {
		if oldest := c.order.Front(); oldest != nil {
			c.remove(oldest)
			c.metrics.Eviction()
		}
	}
	c.items[key] = c.order.PushBack(&entry[T]{key: key, value: value, cachedAt: now})
}

// Delete removes key if present and reports whether it was.
func (c *Cache[T]) Delete(key string) bool {
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(el)
	return true
}

// Clear removes every entry regardless of age.
func (c *Cache[T]) Clear() {
	c.items = make(map[string]*list.Element, c.maxEntries)
	c.order.Init()
}

// PurgeExpired removes every expired entry and returns how many were
// removed. Get already expires entries lazily; this is for proactive
// reclamation of keys that are written once and never read again.
func (c *Cache[T]) PurgeExpired() int {
	now := c.now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry[T]).expired(now, c.ttl) {
			c.remove(el)
			c.metrics.Expire()
			removed++
		}
		el = next
	}
	return removed
}

// Len returns the number of stored entries, including expired entries
// that have not been purged yet.
func (c *Cache[T]) Len() int { return len(c.items) }

// Cap returns the maximum number of entries.
func (c *Cache[T]) Cap() int { return c.maxEntries }

// TTL returns the configured time-to-live.
func (c *Cache[T]) TTL() time.Duration { return c.ttl }

// Keys returns the stored keys, oldest insertion first.
func (c *Cache[T]) Keys() []string {
	out := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[T]).key)
	}
	return out
}

func (c *Cache[T]) remove(el *list.Element) {
	delete(c.items, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}
