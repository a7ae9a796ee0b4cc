// Package ratelimit implements C3: admission against per-credential
// window quotas plus a concurrency ceiling, on top of the Counter
// Store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/relayforge/gateway/config"
	"github.com/relayforge/gateway/counterstore"
	"github.com/relayforge/gateway/pipelineerr"
)

const (
	minuteTTLSeconds = 60
	dayTTLSeconds    = 86400
	monthTTLSeconds  = 2592000
)

// Limiter implements the four-step admit algorithm and its paired
// release, backed by a counterstore.Store.
type Limiter struct {
	store counterstore.Store
}

// New wraps a Counter Store.
func New(store counterstore.Store) *Limiter {
	return &Limiter{store: store}
}

func concurrentKey(credential string) string {
	return fmt.Sprintf("concurrent:%s", credential)
}

// keysFor builds the three window keys for "now", matching the
// original's minute-of-hour (not a rolling 60s window), UTC date, and
// UTC year-month bucketing exactly.
func keysFor(credential string, now time.Time) (minute, day, month string) {
	now = now.UTC()
	minute = fmt.Sprintf("minute:%s:%d", credential, now.Minute())
	day = fmt.Sprintf("day:%s:%s", credential, now.Format("2006-01-02"))
	month = fmt.Sprintf("month:%s:%s", credential, now.Format("2006-01"))
	return
}

// Admit runs the four-step algorithm of §4.3. On success, the caller
// must arrange for Release to be called exactly once, on every exit
// path past this point.
func (l *Limiter) Admit(ctx context.Context, credential string, limits config.RateLimitTier) error {
	concurrentKeyName := concurrentKey(credential)

	// Step 1: concurrency ceiling, checked before the window counters.
	current, err := l.store.Get(ctx, concurrentKeyName)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.Internal, "counter store read failed", err)
	}
	if current >= int64(limits.ConcurrentRequests) {
		return pipelineerr.New(pipelineerr.RateLimited, "Too many concurrent requests")
	}

	// Step 2: increment and refresh TTL for all three windows.
	minuteKey, dayKey, monthKey := keysFor(credential, time.Now())

	minuteCount, err := l.incrementAndExpire(ctx, minuteKey, minuteTTLSeconds)
	if err != nil {
		return err
	}
	dayCount, err := l.incrementAndExpire(ctx, dayKey, dayTTLSeconds)
	if err != nil {
		return err
	}
	monthCount, err := l.incrementAndExpire(ctx, monthKey, monthTTLSeconds)
	if err != nil {
		return err
	}

	// Step 3: the increments above are NOT rolled back on overage — the
	// excess is absorbed when the window's TTL expires.
	if minuteCount > int64(limits.RequestsPerMinute) {
		return pipelineerr.New(pipelineerr.RateLimited, "Rate limit exceeded (per minute)")
	}
	if dayCount > int64(limits.RequestsPerDay) {
		return pipelineerr.New(pipelineerr.RateLimited, "Rate limit exceeded (per day)")
	}
	if monthCount > int64(limits.RequestsPerMonth) {
		return pipelineerr.New(pipelineerr.RateLimited, "Rate limit exceeded (per month)")
	}

	// Step 4: reserve a concurrency slot last.
	if _, err := l.store.Increment(ctx, concurrentKeyName); err != nil {
		return pipelineerr.Wrap(pipelineerr.Internal, "counter store increment failed", err)
	}
	return nil
}

func (l *Limiter) incrementAndExpire(ctx context.Context, key string, ttlSeconds int) (int64, error) {
	v, err := l.store.Increment(ctx, key)
	if err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.Internal, "counter store increment failed", err)
	}
	if err := l.store.SetTTL(ctx, key, ttlSeconds); err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.Internal, "counter store set_ttl failed", err)
	}
	return v, nil
}

// Release decrements the concurrency counter. Must be called on every
// path that previously admitted, including pipeline failures.
func (l *Limiter) Release(ctx context.Context, credential string) error {
	if _, err := l.store.Decrement(ctx, concurrentKey(credential)); err != nil {
		return pipelineerr.Wrap(pipelineerr.Internal, "counter store decrement failed", err)
	}
	return nil
}
