package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/klola/core-platform/platform/go/apperror"
)

// RedisStore implements Store backed by Redis.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore constructs a Redis-backed token store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	if client == nil {
		panic("tokenstore: redis client is required")
	}
	return &RedisStore{client: client}
}

// Set stores value under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperror.Wrap(apperror.Database, "token store write failed", fmt.Errorf("set %q: %w", key, err))
	}
	return nil
}

// Get loads the value for key; the boolean reports presence.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, apperror.Wrap(apperror.Database, "token store read failed", fmt.Errorf("get %q: %w", key, err))
	}
	return value, true, nil
}

// GetDel atomically loads and deletes the value for key.
func (s *RedisStore) GetDel(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, apperror.Wrap(apperror.Database, "token store read failed", fmt.Errorf("getdel %q: %w", key, err))
	}
	return value, true, nil
}

// Del removes the key; deleting a missing key is not an error.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return apperror.Wrap(apperror.Database, "token store delete failed", fmt.Errorf("del %q: %w", key, err))
	}
	return nil
}
