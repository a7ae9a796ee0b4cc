package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/relayforge/gateway/config"
	"github.com/relayforge/gateway/counterstore"
	"github.com/relayforge/gateway/pipelineerr"
)

func TestAdmitPerMinuteRejection(t *testing.T) {
	store := counterstore.NewMemStore(time.Second)
	defer store.Close()
	l := New(store)
	limits := config.RateLimitTier{RequestsPerMinute: 1, RequestsPerDay: 1000, RequestsPerMonth: 10000, ConcurrentRequests: 10}

	ctx := context.Background()
	if err := l.Admit(ctx, "sk-default", limits); err != nil {
		t.Fatalf("first admit should succeed: %v", err)
	}
	err := l.Admit(ctx, "sk-default", limits)
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.RateLimited {
		t.Fatalf("expected RateLimited on second admit, got %v", err)
	}
	if pe.Message != "Rate limit exceeded (per minute)" {
		t.Fatalf("unexpected message: %s", pe.Message)
	}

	if err := l.Release(ctx, "sk-default"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if v, _ := store.Get(ctx, "concurrent:sk-default"); v != 0 {
		t.Fatalf("expected concurrency gauge 0 after release, got %d", v)
	}
}

func TestAdmitConcurrencyCeiling(t *testing.T) {
	store := counterstore.NewMemStore(time.Second)
	defer store.Close()
	l := New(store)
	limits := config.RateLimitTier{RequestsPerMinute: 1000, RequestsPerDay: 1000, RequestsPerMonth: 10000, ConcurrentRequests: 2}

	ctx := context.Background()
	if err := l.Admit(ctx, "sk-default", limits); err != nil {
		t.Fatalf("admit 1: %v", err)
	}
	if err := l.Admit(ctx, "sk-default", limits); err != nil {
		t.Fatalf("admit 2: %v", err)
	}
	err := l.Admit(ctx, "sk-default", limits)
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.RateLimited || pe.Message != "Too many concurrent requests" {
		t.Fatalf("expected concurrency rejection, got %v", err)
	}

	if err := l.Release(ctx, "sk-default"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l.Admit(ctx, "sk-default", limits); err != nil {
		t.Fatalf("admit after release should succeed: %v", err)
	}
}
