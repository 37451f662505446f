package shard

import "hash/maphash"

/*
This file decides HOW a cache key is assigned to a shard.
If every request went to the same shard, that shard would become a bottleneck.
*/

/*
Selector is the interface that decides which shard should handle a given key.
The cache does not care HOW this decision is made. Different strategies can be plugged in.
*/
type Selector[K comparable, V any] interface {
	Select(K, []*Shard[K, V]) *Shard[K, V]
}

// HashSelector spreads keys by hashing them. Keys are any comparable type
// (UUIDs, int64 ids, strings), so it relies on maphash.Comparable instead of
// hashing a string form.
type HashSelector[K comparable, V any] struct {
	seed maphash.Seed
}

func NewHashSelector[K comparable, V any]() *HashSelector[K, V] {
	return &HashSelector[K, V]{seed: maphash.MakeSeed()}
}

// Select chooses the shard for a given key.
func (h *HashSelector[K, V]) Select(key K, shards []*Shard[K, V]) *Shard[K, V] {
	if len(shards) == 1 {
		return shards[0]
	}
	idx := maphash.Comparable(h.seed, key) % uint64(len(shards))
	return shards[idx]
}
