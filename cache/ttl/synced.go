package ttl

import (
	"context"
	"sync"
	"time"
)

// Synced is a Cache guarded by a mutex, with an optional background
// reaper. A Synced cache owns its reaper goroutine; call Close to stop it.
type Synced[T any] struct {
	mu    sync.Mutex
	cache *Cache[T]

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewSynced builds a concurrency-safe cache. See New for the meaning of
// the arguments.
func NewSynced[T any](ttl time.Duration, maxEntries int, opts ...Option) *Synced[T] {
	return &Synced[T]{cache: New[T](ttl, maxEntries, opts...)}
}

func (s *Synced[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(key)
}

func (s *Synced[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, value)
}

func (s *Synced[T]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Delete(key)
}

func (s *Synced[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Clear()
}

func (s *Synced[T]) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.PurgeExpired()
}

func (s *Synced[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

func (s *Synced[T]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Keys()
}

// Cap and TTL are fixed at construction and need no lock.
func (s *Synced[T]) Cap() int           { return s.cache.Cap() }
func (s *Synced[T]) TTL() time.Duration { return s.cache.TTL() }

// StartReaper launches a goroutine that purges expired entries every
// interval. It is a no-op when interval is not positive, when a reaper is
// already running, or after Close.
func (s *Synced[T]) StartReaper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.reap(ctx, interval)
}

func (s *Synced[T]) reap(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PurgeExpired()
		}
	}
}

// Close stops the reaper. Entries remain readable. Close is safe to call
// multiple times.
func (s *Synced[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	// The reaper takes the lock on every tick, so cancel and wait unlocked.
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}
