package insights

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
)

type ttlItem[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is a small map cache whose entries expire after a fixed TTL.
// Expired entries are dropped on access.
type TTLCache[K comparable, V any] struct {
	mu    sync.Mutex
	clock clockwork.Clock
	ttl   time.Duration
	items map[K]ttlItem[V]
}

// NewTTLCache creates a TTLCache reading time from clock.
func NewTTLCache[K comparable, V any](clock clockwork.Clock, ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{clock: clock, ttl: ttl, items: make(map[K]ttlItem[V])}
}

// Get returns the live value for key.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(item.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return item.value, true
}

// Set stores value under key for the cache TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = ttlItem[V]{value: value, expires: c.clock.Now().Add(c.ttl)}
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CachedProvider memoizes successful lookups of another Provider per dataset.
type CachedProvider struct {
	next  Provider
	cache *TTLCache[string, Interval]
}

// NewCachedProvider wraps next with a cache of the given TTL.
func NewCachedProvider(next Provider, clock clockwork.Clock, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: NewTTLCache[string, Interval](clock, ttl)}
}

// DatasetInterval implements Provider. Errors are not cached.
func (p *CachedProvider) DatasetInterval(ctx context.Context, alert *entities.Alert) (Interval, error) {
	key := alert.Dataset()
	if key == "" {
		return p.next.DatasetInterval(ctx, alert)
	}
	if interval, ok := p.cache.Get(key); ok {
		return interval, nil
	}
	interval, err := p.next.DatasetInterval(ctx, alert)
	if err != nil {
		return Interval{}, err
	}
	p.cache.Set(key, interval)
	return interval, nil
}
