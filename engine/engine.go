package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/krisalay/marketplace/api"
	"github.com/krisalay/marketplace/internal/logging"
	"github.com/krisalay/marketplace/types"
)

/*
CacheAside is the "brain" every catalog service puts around its cache.
It owns the read/write coordination protocol, NOT storage.

It decides:
- When a read is answered from memory and when it falls back to the store
- When a store miss becomes a NotFound error
- When the cache is populated (only after the store has the data)
- When the cache is invalidated (only after the store dropped the data)

It does NOT:
- Validate or persist entities (the services do that)
- Decide expiry (the cache's expiration strategy does)

The store is the source of truth. The cache is a best-effort accelerator: a stale
reference left behind by a crash between store delete and cache remove heals on
its own, because the next miss surfaces NotFound from the store.
*/
type CacheAside[K comparable, V any] struct {

	// entity names the cached type in NotFound errors and logs ("category", "product").
	entity string

	cache api.Cache[K, V]

	// loader is the store's find-by-primary-key.
	loader types.Loader[K, V]

	// sf collapses concurrent misses for the same key into one store call.
	sf singleflight.Group

	// mu guards gens and orders every write into cache made by this coordinator.
	// gens[key] is bumped by Populate and Invalidate; a load only caches its
	// result if the generation it started under is still current.
	mu   sync.Mutex
	gens map[K]uint64

	log *logging.Logger
}

// loadTimeout bounds a shared store load once it no longer follows any caller's context.
const loadTimeout = 30 * time.Second

/*
NewCacheAside creates a CacheAside.
*/
func NewCacheAside[K comparable, V any](
	entity string,
	cache api.Cache[K, V],
	loader types.Loader[K, V],
	log *logging.Logger,
) *CacheAside[K, V] {

	if log == nil {
		log = logging.Discard()
	}

	return &CacheAside[K, V]{
		entity: entity,
		cache:  cache,
		loader: loader,
		gens:   make(map[K]uint64),
		log:    log,
	}
}

/*
Read resolves an entity by key.

BEHAVIOR:
---------
1. Cache hit: return the cached entity, the store is not touched
2. Cache miss: load from the store by primary key
   - store error: returned unchanged (wrapped)
   - store has no row: *types.NotFoundError naming the entity and key
   - store has the row: Put it in the cache, then return it

Concurrent misses share one load. The load runs detached from the caller that
started it, and every caller waits on its own ctx, so one caller giving up
does not fail the others.

A load that overlaps a Populate or Invalidate for the same key still returns
what it read, but does not cache it.
*/
func (e *CacheAside[K, V]) Read(ctx context.Context, key K) (V, error) {
	if v, ok := e.cache.Get(key); ok {
		return v, nil
	}

	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	e.log.Debugf("%s %v not cached, loading from store", e.entity, key)

	ch := e.sf.DoChan(flightKey(key), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return e.load(loadCtx, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (e *CacheAside[K, V]) load(ctx context.Context, key K) (V, error) {
	gen := e.generation(key)

	v, found, err := e.loader.Load(ctx, key)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("load %s %v: %w", e.entity, key, err)
	}
	if !found {
		var zero V
		return zero, &types.NotFoundError{Entity: e.entity, Key: key}
	}

	e.mu.Lock()
	if e.gens[key] == gen {
		e.cache.Put(key, v)
	} else {
		e.log.Debugf("%s %v changed while loading, not caching the loaded row", e.entity, key)
	}
	e.mu.Unlock()
	return v, nil
}

func (e *CacheAside[K, V]) generation(key K) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gens[key]
}

/*
Populate writes an entity that the store has just committed.
Callers must pass the store's returned value: it alone carries the generated
identity and any store-side defaults.

Loads for the key that are still running lose the right to cache their result,
and readers arriving from now on start a fresh load instead of joining them.
*/
func (e *CacheAside[K, V]) Populate(key K, v V) {
	e.mu.Lock()
	e.gens[key]++
	e.cache.Put(key, v)
	e.mu.Unlock()
	e.sf.Forget(flightKey(key))
}

// Invalidate drops key after the store deleted it. Running loads for key will not cache.
func (e *CacheAside[K, V]) Invalidate(key K) {
	e.mu.Lock()
	e.gens[key]++
	e.cache.Remove(key)
	e.mu.Unlock()
	e.sf.Forget(flightKey(key))
}

// Cached looks only at the cache and never touches the store.
func (e *CacheAside[K, V]) Cached(key K) (V, bool) {
	return e.cache.Get(key)
}

// Warm bulk-loads entities read from the store at startup and returns how many were cached.
func (e *CacheAside[K, V]) Warm(items []V, keyOf func(V) K) int {
	e.mu.Lock()
	for _, v := range items {
		e.cache.Put(keyOf(v), v)
	}
	e.mu.Unlock()
	e.log.Infof("warmed %s cache with %d entries", e.entity, len(items))
	return len(items)
}

func flightKey[K comparable](key K) string {
	return fmt.Sprint(key)
}
