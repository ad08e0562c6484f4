// Package cache holds the single, globally shared dataset load result.
package cache

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Observer receives cache events; metrics.Hooks implements it
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheInvalidated()
}

type noopObserver struct{}

func (noopObserver) CacheHit()         {}
func (noopObserver) CacheMiss()        {}
func (noopObserver) CacheInvalidated() {}

// Cache is a parameterless value cache with a wall-clock expiry and an
// explicit generation. Readers only ever see a value that a loader fully
// produced; a load that overlaps an Invalidate is returned to its callers
// but never published.
type Cache[T any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	observer   Observer
	value      T
	valid      bool
	expiry     time.Time
	generation uint64
	group      singleflight.Group
}

// Option configures a Cache
type Option[T any] func(*Cache[T])

// WithClock replaces time.Now, for tests
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) { c.now = now }
}

// WithObserver attaches an event observer
func WithObserver[T any](o Observer) Option[T] {
	return func(c *Cache[T]) {
		if o != nil {
			c.observer = o
		}
	}
}

// New creates a cache whose entries live for ttl
func New[T any](ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		ttl:      ttl,
		now:      time.Now,
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the published value while it is fresh. Otherwise it runs
// load, sharing one in-flight call among concurrent callers, and publishes
// the result if no invalidation happened meanwhile. Errors are never cached.
func (c *Cache[T]) Get(load func(generation uint64) (T, error)) (T, error) {
	c.mu.Lock()
	if c.valid && c.now().Before(c.expiry) {
		v := c.value
		c.mu.Unlock()
		c.observer.CacheHit()
		return v, nil
	}
	gen := c.generation
	c.mu.Unlock()
	c.observer.CacheMiss()

	// Keying by generation keeps a refresh from joining a stale flight.
	key := strconv.FormatUint(gen, 10)
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := load(gen)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.value = v
			c.valid = true
			c.expiry = c.now().Add(c.ttl)
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Peek returns the published value without loading. The second result is
// false when nothing fresh is published.
func (c *Cache[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.now().Before(c.expiry) {
		return c.value, true
	}
	var zero T
	return zero, false
}

// Invalidate drops the published value and bumps the generation so the
// next Get reloads regardless of the expiry.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	var zero T
	c.value = zero
	c.valid = false
	c.expiry = time.Time{}
	c.generation++
	c.mu.Unlock()
	c.observer.CacheInvalidated()
}

// Generation returns the current generation
func (c *Cache[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// TTL returns the configured time-to-live
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}
