package api

/*
Cache defines the PUBLIC API of the expiring cache that every catalog service owns.
Sharding, locking and the expiry rule are hidden behind this interface.

None of these operations can fail. A missing or expired key is simply "no value",
which callers treat as a cache miss.
*/
type Cache[K comparable, V any] interface {

	/*
		Get retrieves the value associated with the given key.

		BEHAVIOR:
		-------------------
		1. Sweeps every expired entry out of the cache (lazy expiry, no timer)
		2. If the key is present and fresh: return (value, true)
		3. Otherwise: return (zero, false)

		Get never returns a value whose entry is expired at the instant of the call.
	*/
	Get(key K) (V, bool)

	/*
		Put inserts or replaces the entry for key, stamped with the current time.
		The value stays readable until the cache timeout elapses or the key is removed.
	*/
	Put(key K, value V)

	/*
		Remove deletes a key from the cache immediately.

		This operation is idempotent:
		- Removing a non-existing key is safe
		- It does NOT affect the backing store
	*/
	Remove(key K)

	/*
		Clear deletes every entry. Used for full invalidation
		(administrative reset, test teardown).
	*/
	Clear()

	/*
		Clean removes every entry older than the timeout and returns how many
		were removed. Running it twice in a row removes nothing the second time.
	*/
	Clean() int

	// Len returns the number of entries currently held, including stale
	// entries that have not been swept yet.
	Len() int
}
