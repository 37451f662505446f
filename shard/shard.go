package shard

import (
	"sync"

	"github.com/krisalay/marketplace/types"
)

/*
This file defines what a "Shard" is. A shard is a small, independent piece of the cache.
Instead of having: One big cache and one big lock
We split the cache into many shards. Each shard:
- Holds some portion of the data
- Has its own lock

An expiry sweep walks the shards one at a time, so readers of other shards
are never blocked by it.
*/

type Shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]types.CacheEntry[V]
}

func NewShard[K comparable, V any]() *Shard[K, V] {
	return &Shard[K, V]{entries: make(map[K]types.CacheEntry[V])}
}

// Get returns the entry for key, if any. Freshness is the caller's concern.
func (s *Shard[K, V]) Get(key K) (types.CacheEntry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.entries[key]
	return ent, ok
}

// Put inserts or replaces the entry for key.
func (s *Shard[K, V]) Put(key K, ent types.CacheEntry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = ent
}

// Delete removes key and reports whether it was present.
func (s *Shard[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Clear drops every entry.
func (s *Shard[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[K]types.CacheEntry[V])
}

/*
Sweep removes every entry for which expired returns true and reports how many went.
The whole pass runs under the write lock: a concurrent reader sees either the
shard before the sweep or after it, never a half-swept state.
*/
func (s *Shard[K, V]) Sweep(expired func(types.CacheEntry[V]) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.entries {
		if expired(ent) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns how many entries the shard holds.
func (s *Shard[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
