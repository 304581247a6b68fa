package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/sbc-om/sbc-sub007/cache"
)

// Store implements cache.Store on top of a go-redis client.
type Store struct {
	r      goredis.Cmdable
	prefix string
}

var _ cache.Store = (*Store)(nil)

// NewClient dials Redis with opts and verifies the connection with PING.
// The caller owns the returned client and must Close it.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	cfg := opts.withDefaults()
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewStore builds a Redis-backed cache store. A non-empty prefix is joined
// to every key with ":".
func NewStore(r goredis.Cmdable, prefix string) *Store {
	return &Store{r: r, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.r.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: GET %s: %w", key, err)
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	switch {
	case ttl < 0:
		ttl = 0
	case ttl > 0 && ttl < time.Millisecond:
		ttl = time.Millisecond
	}
	if err := s.r.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: SET %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.r.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis: DEL %s: %w", key, err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// Ping reports whether the server answers; used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.r.Ping(ctx).Err()
}
