package cache

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/krisalay/marketplace/api"
	"github.com/krisalay/marketplace/expiration"
	"github.com/krisalay/marketplace/shard"
	"github.com/krisalay/marketplace/types"
)

const (
	// DefaultTimeout is how long an entry stays valid when no timeout is configured.
	DefaultTimeout = 120000 * time.Millisecond

	// DefaultShards is the number of independently locked partitions.
	DefaultShards = 16
)

var _ api.Cache[string, any] = (*ExpiringCache[string, any])(nil)

/*
ExpiringCache is the main cache implementation.
This struct is the orchestrator that connects:
- shards
- expiration
- the clock
- metrics

Expiry is lazy: there is no background goroutine. Every Get sweeps the whole
cache first, so a cache that nobody reads may hold stale entries until the next Get.
*/
type ExpiringCache[K comparable, V any] struct {
	// shards are the actual storage units. Each shard is an independent mini-map with its own lock.
	shards []*shard.Shard[K, V]

	// selector decides which shard a key should go to.
	selector shard.Selector[K, V]

	// expiration decides when an entry is too old to be returned.
	expiration expiration.Strategy

	clock   clockwork.Clock
	metrics types.Metrics
}

// Option configures an ExpiringCache.
type Option func(*options)

type options struct {
	shards  int
	clock   clockwork.Clock
	metrics types.Metrics
}

// WithShards sets the number of shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMetrics reports hits, misses, expiries and removals to m.
func WithMetrics(m types.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

/*
New creates an ExpiringCache whose entries live for timeout after insertion.
A non-positive timeout falls back to DefaultTimeout.
*/
func New[K comparable, V any](timeout time.Duration, opts ...Option) *ExpiringCache[K, V] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	o := options{
		shards:  DefaultShards,
		clock:   clockwork.NewRealClock(),
		metrics: types.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := make([]*shard.Shard[K, V], o.shards)
	for i := range s {
		s[i] = shard.NewShard[K, V]()
	}

	return &ExpiringCache[K, V]{
		shards:     s,
		selector:   shard.NewHashSelector[K, V](),
		expiration: &expiration.ExpireAfterWrite{Timeout: timeout},
		clock:      o.clock,
		metrics:    o.metrics,
	}
}

/*
Get retrieves a value from the cache.

1. Take "now" once; every freshness decision of this call uses it
2. Sweep all expired entries
3. Look the key up, re-checking freshness against the same "now" because
   the key may have been written by a concurrent Put with an older stamp
*/
func (c *ExpiringCache[K, V]) Get(key K) (V, bool) {
	now := c.clock.Now()
	c.sweep(now)

	sh := c.selector.Select(key, c.shards)
	if ent, ok := sh.Get(key); ok && !c.expiration.IsExpired(ent.CreatedAt(), now) {
		c.metrics.Hit()
		return ent.Value(), true
	}

	c.metrics.Miss()
	var zero V
	return zero, false
}

// Put stores a value stamped with the current time, replacing any previous entry.
func (c *ExpiringCache[K, V]) Put(key K, value V) {
	sh := c.selector.Select(key, c.shards)
	sh.Put(key, types.NewCacheEntry(value, c.clock.Now()))
}

// Remove deletes a key from the cache immediately.
func (c *ExpiringCache[K, V]) Remove(key K) {
	sh := c.selector.Select(key, c.shards)
	if sh.Delete(key) {
		c.metrics.Remove()
	}
}

// Clear drops every entry in every shard.
func (c *ExpiringCache[K, V]) Clear() {
	for _, sh := range c.shards {
		sh.Clear()
	}
}

// Clean removes every expired entry and reports how many were removed.
func (c *ExpiringCache[K, V]) Clean() int {
	return c.sweep(c.clock.Now())
}

// Len counts entries across all shards.
func (c *ExpiringCache[K, V]) Len() int {
	n := 0
	for _, sh := range c.shards {
		n += sh.Len()
	}
	return n
}

func (c *ExpiringCache[K, V]) sweep(now time.Time) int {
	removed := 0
	for _, sh := range c.shards {
		removed += sh.Sweep(func(ent types.CacheEntry[V]) bool {
			return c.expiration.IsExpired(ent.CreatedAt(), now)
		})
	}
	for i := 0; i < removed; i++ {
		c.metrics.Expire()
	}
	return removed
}
