package types

import "time"

// CacheEntry pairs a cached value with the moment it was inserted.
// Entries are never mutated: an update replaces the whole entry.
type CacheEntry[V any] struct {
	value     V
	createdAt time.Time
}

// NewCacheEntry stamps value with createdAt.
func NewCacheEntry[V any](value V, createdAt time.Time) CacheEntry[V] {
	return CacheEntry[V]{value: value, createdAt: createdAt}
}

func (e CacheEntry[V]) Value() V {
	return e.value
}

func (e CacheEntry[V]) CreatedAt() time.Time {
	return e.createdAt
}
