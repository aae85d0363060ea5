package cache

import (
	"context"
	"sync"
)

// FetchFunc loads the value for a key that is not cached yet
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Observer receives hit/miss notifications, typically a metrics collector
type Observer interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// entry is a value that may still be in flight. done is closed once val/err are set.
type entry[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Cache memoizes keyed remote lookups for the lifetime of the process.
//
// The first caller for a key registers an in-flight entry under the lock before the
// fetch starts, so every concurrent caller for the same key waits on that single
// fetch instead of issuing its own. There is no eviction and no TTL.
type Cache[K comparable, V any] struct {
	mu              sync.Mutex
	entries         map[K]*entry[V]
	negativeCaching bool
	observer        Observer
}

// Option configures a Cache
type Option func(*options)

type options struct {
	negativeCaching bool
	observer        Observer
}

// WithNegativeCaching controls whether a failed fetch stays cached.
// When disabled the failed entry is dropped once its waiters have been released,
// so the next caller for that key fetches again.
func WithNegativeCaching(enabled bool) Option {
	return func(o *options) {
		o.negativeCaching = enabled
	}
}

// WithObserver reports hits and misses to o
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// New creates an empty cache. Failed fetches are cached unless disabled with WithNegativeCaching(false).
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{negativeCaching: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[K, V]{
		entries:         make(map[K]*entry[V]),
		negativeCaching: o.negativeCaching,
		observer:        o.observer,
	}
}

// GetOrFetch returns the cached value for key, waiting for an in-flight fetch if one
// exists, or runs fetch exactly once and shares its result with every caller.
//
// The fetch is detached from the registering caller's cancellation; ctx only bounds
// how long this caller is willing to wait.
func (c *Cache[K, V]) GetOrFetch(ctx context.Context, key K, fetch FetchFunc[V]) (V, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[V]{done: make(chan struct{})}
		c.entries[key] = e
	}
	c.mu.Unlock()

	if ok {
		c.recordHit()
	} else {
		c.recordMiss()
		go c.run(context.WithoutCancel(ctx), key, e, fetch)
	}

	select {
	case <-e.done:
		return e.val, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (c *Cache[K, V]) run(ctx context.Context, key K, e *entry[V], fetch FetchFunc[V]) {
	e.val, e.err = fetch(ctx)
	close(e.done)

	if e.err != nil && !c.negativeCaching {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
}

// Forget drops a key so the next GetOrFetch fetches it again
func (c *Cache[K, V]) Forget(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of cached or in-flight keys
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[K, V]) recordHit() {
	if c.observer != nil {
		c.observer.RecordCacheHit()
	}
}

func (c *Cache[K, V]) recordMiss() {
	if c.observer != nil {
		c.observer.RecordCacheMiss()
	}
}
