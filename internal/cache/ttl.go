package cache

import (
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// Cache is a typed key/value cache with per-entry expiry.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

type Option func(*options)

type options struct {
	maxEntries    int
	sweepInterval time.Duration
}

// WithMaxEntries bounds the cache. When full, the entry closest to expiry is evicted.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithSweepInterval sets how often a write also drops every expired entry.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	now     func() time.Time

	maxEntries    int
	sweepInterval time.Duration
	nextSweep     time.Time
}

// NewTTLCache returns an in-memory cache. Expired entries are dropped on read
// and by a sweep that runs on write at most once per sweep interval.
func NewTTLCache[K comparable, V any](opts ...Option) Cache[K, V] {
	o := options{sweepInterval: defaultSweepInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sweepInterval <= 0 {
		o.sweepInterval = defaultSweepInterval
	}
	return &ttlCache[K, V]{
		entries:       make(map[K]entry[V]),
		now:           time.Now,
		maxEntries:    o.maxEntries,
		sweepInterval: o.sweepInterval,
	}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value. A non-positive ttl never expires.
func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	now := c.now()
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !now.Before(c.nextSweep) {
		c.sweepLocked(now)
	}
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.sweepLocked(now)
		if len(c.entries) >= c.maxEntries {
			c.evictLocked()
		}
	}
	c.entries[key] = e
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts stored entries, expired ones not yet swept included.
func (c *ttlCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ttlCache[K, V]) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	c.nextSweep = now.Add(c.sweepInterval)
}

// evictLocked drops the entry closest to expiry; entries without expiry go last.
func (c *ttlCache[K, V]) evictLocked() {
	var (
		victim K
		found  bool
		soon   time.Time
	)
	for key, e := range c.entries {
		if !found || (!e.expiresAt.IsZero() && (soon.IsZero() || e.expiresAt.Before(soon))) {
			victim, soon, found = key, e.expiresAt, true
		}
	}
	if found {
		delete(c.entries, victim)
	}
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
