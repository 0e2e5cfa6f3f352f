package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pravnik/pravnik/pkg/errors"
	pkgredis "github.com/pravnik/pravnik/pkg/redis"
	"github.com/pravnik/pravnik/pkg/resilience"
)

// RedisStore is a Redis-backed DurableStore. A circuit breaker guards every
// operation so a dead Redis degrades the cache to memory-only instead of
// stalling each request on a connection timeout.
type RedisStore struct {
	client  *pkgredis.Client
	breaker *resilience.CircuitBreaker
}

// NewRedisStore wraps an established Redis client.
func NewRedisStore(client *pkgredis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		breaker: resilience.NewCircuitBreaker("redis-store", resilience.CircuitBreakerConfig{}),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		data  []byte
		found bool
	)
	err := s.breaker.Execute(func() error {
		raw, err := s.client.Get(ctx, key)
		if err != nil {
			if pkgredis.IsNilError(err) {
				return nil
			}
			return fmt.Errorf("redis get: %w", err)
		}
		data = raw
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.breaker.Execute(func() error {
		if err := s.client.Set(ctx, key, value, ttl); err != nil {
			// Redis answers OOM when maxmemory is reached with a noeviction
			// policy; treat it as quota exhaustion.
			if strings.Contains(err.Error(), "OOM") {
				return fmt.Errorf("redis set: %w", pkgerrors.ErrStoreQuota)
			}
			return fmt.Errorf("redis set: %w", err)
		}
		return nil
	})
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.breaker.Execute(func() error {
		if err := s.client.Del(ctx, key); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	})
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.breaker.Execute(func() error {
		k, err := s.client.Keys(ctx)
		if err != nil {
			return err
		}
		keys = k
		return nil
	})
	return keys, err
}
