// Package counterstore implements C1, the shared key→integer store with
// TTL used by the rate limiter for window counters and the concurrency
// gauge.
package counterstore

import "context"

// Store abstracts a shared atomic counter store. The pipeline depends
// only on: increment being atomic and returning the post-increment
// value, set_ttl being idempotent, and a TTL refresh issued right after
// the first increment being allowed to race (a lost refresh on a
// pre-existing key is tolerated, not a bug).
type Store interface {
	// Increment atomically increments key and returns the post-increment
	// value.
	Increment(ctx context.Context, key string) (int64, error)
	// SetTTL sets (or refreshes) the expiry on key. Idempotent.
	SetTTL(ctx context.Context, key string, seconds int) error
	// Get returns the current value of key, or zero if absent.
	Get(ctx context.Context, key string) (int64, error)
	// Decrement atomically decrements key and returns the post-decrement
	// value.
	Decrement(ctx context.Context, key string) (int64, error)
}
