// Package memo memoizes expensive lookups behind an in-process TTL cache,
// an optional shared cache.Store, and per-key request coalescing.
package memo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/sbc-om/sbc-sub007/cache"
	"github.com/sbc-om/sbc-sub007/cache/ttl"
	"github.com/sbc-om/sbc-sub007/internal/logging"
)

// Source reports where a memoized value came from.
type Source string

const (
	SourceMemory Source = "memory"
	SourceShared Source = "shared"
	SourceOrigin Source = "origin"
)

// Cached reports whether the value was served without calling the loader.
func (s Source) Cached() bool { return s != SourceOrigin }

// Loader produces the value for a key on a miss.
type Loader[T any] func(ctx context.Context) (T, error)

// Stats is a point-in-time view of the in-process layer.
type Stats struct {
	Entries    int
	MaxEntries int
	TTL        string
}

type Memoizer[T any] struct {
	local       *ttl.Synced[T]
	shared      cache.Store
	group       singleflight.Group
	log         logrus.FieldLogger
	loadTimeout time.Duration

	// mu orders cache writes from loads against Forget and Purge.
	mu      sync.Mutex
	flights map[string]*flight
}

// flight tracks one in-progress load. A stale flight still answers its
// callers but must not write to either cache layer.
type flight struct {
	stale bool
}

type result[T any] struct {
	value  T
	source Source
}

// New wraps local, which the caller keeps ownership of.
func New[T any](local *ttl.Synced[T], opts ...Option) *Memoizer[T] {
	if local == nil {
		panic("memo: local cache is nil")
	}
	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.log == nil {
		cfg.log = logging.Discard()
	}
	return &Memoizer[T]{
		local:       local,
		shared:      cfg.shared,
		log:         cfg.log,
		loadTimeout: cfg.loadTimeout,
		flights:     make(map[string]*flight),
	}
}

// Do returns the value for key, calling load at most once across
// concurrent callers when neither cache layer has it. Loader errors are
// returned as-is and never cached.
//
// The load runs detached from any single caller's cancellation; each
// caller stops waiting when its own ctx is done.
func (m *Memoizer[T]) Do(ctx context.Context, key string, load Loader[T]) (T, Source, error) {
	var zero T
	if v, ok := m.local.Get(key); ok {
		return v, SourceMemory, nil
	}

	ch := m.group.DoChan(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		if m.loadTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, m.loadTimeout)
			defer cancel()
		}
		return m.fill(loadCtx, key, load)
	})

	select {
	case <-ctx.Done():
		return zero, SourceOrigin, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, SourceOrigin, res.Err
		}
		r, ok := res.Val.(result[T])
		if !ok {
			return zero, SourceOrigin, fmt.Errorf("memo: unexpected result type %T", res.Val)
		}
		return r.value, r.source, nil
	}
}

func (m *Memoizer[T]) fill(ctx context.Context, key string, load Loader[T]) (any, error) {
	f := m.begin(key)
	defer m.end(key, f)

	// Another flight may have filled the cache while we waited.
	if v, ok := m.local.Get(key); ok {
		return result[T]{v, SourceMemory}, nil
	}
	if v, ok := m.loadShared(ctx, key); ok {
		m.commit(f, key, v)
		return result[T]{v, SourceShared}, nil
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if m.commit(f, key, v) {
		m.storeShared(ctx, key, v)
		if m.isStale(f) {
			// Forget ran while the shared write was in progress.
			m.deleteShared(ctx, key)
		}
	}
	return result[T]{v, SourceOrigin}, nil
}

func (m *Memoizer[T]) begin(key string) *flight {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &flight{}
	m.flights[key] = f
	return f
}

func (m *Memoizer[T]) end(key string, f *flight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flights[key] == f {
		delete(m.flights, key)
	}
}

// commit stores v locally unless f was invalidated.
func (m *Memoizer[T]) commit(f *flight, key string, v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.stale {
		return false
	}
	m.local.Set(key, v)
	return true
}

func (m *Memoizer[T]) isStale(f *flight) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return f.stale
}

// Forget drops key from both layers. A load for key that is already in
// flight will not write its result back.
func (m *Memoizer[T]) Forget(ctx context.Context, key string) error {
	m.mu.Lock()
	if f, ok := m.flights[key]; ok {
		f.stale = true
	}
	m.local.Delete(key)
	m.group.Forget(key)
	m.mu.Unlock()

	if m.shared == nil {
		return nil
	}
	if err := m.shared.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("memo: forget %s: %w", key, err)
	}
	return nil
}

// Purge clears the in-process layer and invalidates loads in flight.
// Shared entries age out on their own.
func (m *Memoizer[T]) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, f := range m.flights {
		f.stale = true
		m.group.Forget(key)
	}
	m.local.Clear()
}

func (m *Memoizer[T]) Stats() Stats {
	return Stats{
		Entries:    m.local.Len(),
		MaxEntries: m.local.Cap(),
		TTL:        m.local.TTL().String(),
	}
}

func (m *Memoizer[T]) loadShared(ctx context.Context, key string) (T, bool) {
	var v T
	if m.shared == nil {
		return v, false
	}
	payload, err := m.shared.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			m.log.WithError(err).WithField("key", key).Warn("shared cache read failed")
		}
		return v, false
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("shared cache entry undecodable")
		return v, false
	}
	return v, true
}

func (m *Memoizer[T]) deleteShared(ctx context.Context, key string) {
	if err := m.shared.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotFound) {
		m.log.WithError(err).WithField("key", key).Warn("shared cache delete failed")
	}
}

func (m *Memoizer[T]) storeShared(ctx context.Context, key string, v T) {
	if m.shared == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		m.log.WithError(err).WithField("key", key).Warn("value not encodable for shared cache")
		return
	}
	if err := m.shared.Set(ctx, key, payload, m.local.TTL()); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("shared cache write failed")
	}
}
