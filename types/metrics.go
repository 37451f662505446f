package types

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the cache lifecycle. The cache will call these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when the cache returns a fresh value.
	Hit()

	// Miss is called when the cache has no fresh value for a key.
	Miss()

	// Expire is called once for every key swept out because it outlived the timeout.
	Expire()

	// Remove is called when a key is explicitly invalidated.
	Remove()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

It is the default for caches built without metrics, so the cache never
has to check for a nil Metrics.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()    {}
func (NoopMetrics) Miss()   {}
func (NoopMetrics) Expire() {}
func (NoopMetrics) Remove() {}
