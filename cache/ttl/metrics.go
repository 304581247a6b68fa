package ttl

// Metrics receives cache lifecycle events. Implementations must be cheap;
// they run inline with cache operations.
type Metrics interface {
	// Hit is called when Get returns a fresh value.
	Hit()
	// Miss is called when Get finds nothing usable, including expired entries.
	Miss()
	// Eviction is called when a full cache drops its oldest entry to admit a new key.
	Eviction()
	// Expire is called when an expired entry is removed.
	Expire()
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit()      {}
func (NoopMetrics) Miss()     {}
func (NoopMetrics) Eviction() {}
func (NoopMetrics) Expire()   {}
