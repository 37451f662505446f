package types

import "context"

// Loader is the contract between the cache-aside coordinator and the backing store.
type Loader[K comparable, V any] interface {

	/*
		Load is called when the cache misses. The key was not found in memory, so the
		coordinator asks the Loader to fetch it by primary key.
		1. Coordinator checks memory → key not found
		2. Coordinator calls Load(key)
		3. Loader fetches from the store
		4. found == false means the store has no such row; that is NOT an error
		5. err != nil means the store itself failed
	*/
	Load(ctx context.Context, key K) (value V, found bool, err error)
}

// LoaderFunc adapts a plain function (usually a repository's FindByID) to Loader.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, bool, error)

func (f LoaderFunc[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	return f(ctx, key)
}
