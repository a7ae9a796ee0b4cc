package counterstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the Counter Store with a shared Redis instance, the
// expected production deployment per §4.1. increment and set_ttl are
// issued as two round trips rather than folded into a Lua script so the
// "a lost TTL refresh on a pre-existing key is allowed" contract stays
// visible and testable rather than being hidden behind atomicity we
// don't actually need.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisStore) SetTTL(ctx context.Context, key string, seconds int) error {
	return s.client.Expire(ctx, key, time.Duration(seconds)*time.Second).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	v, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (s *RedisStore) Decrement(ctx context.Context, key string) (int64, error) {
	return s.client.Decr(ctx, key).Result()
}
