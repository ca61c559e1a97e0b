package geo

import (
	"sort"
	"sync"
	"time"
)

// Cache is a bounded, time-expiring key/value store shared by the geocoding
// and routing resolvers. Entries past their expiry are never returned, even
// before the periodic sweep has removed them. When the cache grows past its
// capacity, entries nearest to expiry are evicted first.
type Cache[V any] struct {
	mu       sync.RWMutex
	entries  map[string]cacheEntry[V]
	capacity int

	sweepEvery time.Duration
	done       chan struct{}
	closeOnce  sync.Once

	now func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
}

// CacheOption customizes a Cache.
type CacheOption[V any] func(*Cache[V])

// WithClock overrides the cache's time source. Used by tests.
func WithClock[V any](now func() time.Time) CacheOption[V] {
	return func(c *Cache[V]) { c.now = now }
}

// WithSweepInterval overrides how often expired entries are purged.
func WithSweepInterval[V any](d time.Duration) CacheOption[V] {
	return func(c *Cache[V]) { c.sweepEvery = d }
}

// NewCache creates a Cache holding at most capacity live entries and starts
// the background sweep. Close must be called to stop the sweep goroutine.
func NewCache[V any](capacity int, opts ...CacheOption[V]) *Cache[V] {
	c := &Cache[V]{
		entries:    make(map[string]cacheEntry[V]),
		capacity:   capacity,
		sweepEvery: 5 * time.Minute,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweepLoop()
	return c
}

// Get returns the cached value for key, or ok=false on a miss. An entry past
// its expiry counts as a miss even if it has not been swept yet.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(entry.expiresAt) {
		return zero, false
	}
	return entry.value, true
}

// Put stores value under key for the given ttl, evicting entries nearest to
// expiry if the cache would exceed its capacity.
func (c *Cache[V]) Put(key string, value V, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry[V]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	if len(c.entries) > c.capacity {
		c.evictLocked()
	}
}

// Len returns the number of entries currently held, including not-yet-swept
// expired ones.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// evictLocked removes entries nearest to expiry until the cache is back
// under capacity. Caller holds the write lock.
func (c *Cache[V]) evictLocked() {
	type keyed struct {
		key       string
		expiresAt time.Time
	}
	ordered := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, keyed{key: k, expiresAt: e.expiresAt})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].expiresAt.Before(ordered[j].expiresAt)
	})
	for _, k := range ordered {
		if len(c.entries) <= c.capacity {
			break
		}
		delete(c.entries, k.key)
	}
}

func (c *Cache[V]) sweepLoop() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *Cache[V]) sweepExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
