// This file defines how cache entries expire over time.

package expiration

import "time"

/*
Strategy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the cache, we define a strategy so expiration behavior can be swapped easily.

Entries are immutable, so a strategy only ever sees the insertion time.
*/
type Strategy interface {

	// IsExpired reports whether an entry created at createdAt is stale at now.
	IsExpired(createdAt, now time.Time) bool
}
