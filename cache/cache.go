// Package cache defines the byte-oriented store contract shared by the
// out-of-process cache backends. In-process caching lives in cache/ttl.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Store is a TTL-based key/value store that may be shared between
// processes. Get returns ErrNotFound on a miss; Delete returns ErrNotFound
// when the key did not exist. A ttl <= 0 means the entry does not expire.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
