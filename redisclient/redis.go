// Package redisclient sets up the shared Redis connection backing the
// Counter Store.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New parses dsn and returns a connected *redis.Client. Returns an error
// if the DSN cannot be parsed.
func New(dsn string) (*redis.Client, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid counter store DSN: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Ping verifies connectivity with a bounded timeout.
func Ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Ping(ctx).Err()
}
