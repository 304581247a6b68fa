package memo

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sbc-om/sbc-sub007/cache"
)

type Option func(*options)

type options struct {
	shared      cache.Store
	log         logrus.FieldLogger
	loadTimeout time.Duration
}

// WithSharedStore adds a second cache layer consulted on local misses.
// Values are stored JSON encoded with the local cache's TTL.
func WithSharedStore(s cache.Store) Option {
	return func(o *options) { o.shared = s }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithLoadTimeout bounds each load. Loads are detached from caller
// cancellation, so this is the only deadline they get unless the loader
// sets its own.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.loadTimeout = d
		}
	}
}
