package expiration

import "time"

/*
ExpireAfterWrite implements a fixed time-to-live measured from insertion.
Reads never extend the lifetime of an entry; only a new Put does, because it
replaces the entry with a freshly stamped one.
*/
type ExpireAfterWrite struct {

	// Timeout is how long an entry stays valid after it was written.
	Timeout time.Duration
}

// IsExpired is true strictly after createdAt + Timeout. An entry read at exactly
// its deadline is still fresh.
func (e *ExpireAfterWrite) IsExpired(createdAt, now time.Time) bool {
	return now.After(createdAt.Add(e.Timeout))
}
