package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisJSON stores JSON encoded values under a key prefix. It shares the
// Cache contract but needs a context and may fail.
type RedisJSON[V any] struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisJSON[V any](client redis.UniversalClient, prefix string) *RedisJSON[V] {
	if client == nil {
		return nil
	}
	return &RedisJSON[V]{client: client, prefix: prefix}
}

func (r *RedisJSON[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

func (r *RedisJSON[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, raw, ttl).Err()
}

func (r *RedisJSON[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
