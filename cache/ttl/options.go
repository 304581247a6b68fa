package ttl

import "time"

// Option customizes a Cache at construction.
type Option func(*options)

type options struct {
	now     func() time.Time
	metrics Metrics
}

func defaultOptions() options {
	return options{now: time.Now, metrics: NoopMetrics{}}
}

// WithClock replaces the wall clock used to stamp and judge entries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics installs a hook notified of hits, misses, evictions and
// expirations.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
