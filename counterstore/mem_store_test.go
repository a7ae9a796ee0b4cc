package counterstore

import (
	"context"
	"testing"
	"time"
)

func TestMemStoreIncrementIsMonotonic(t *testing.T) {
	s := NewMemStore(50 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		v, err := s.Increment(ctx, "minute:sk-default:0")
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if v != i {
			t.Fatalf("expected post-increment value %d, got %d", i, v)
		}
	}
}

func TestMemStoreExpiryResetsValue(t *testing.T) {
	s := NewMemStore(10 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Increment(ctx, "minute:sk-default:0"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.SetTTL(ctx, "minute:sk-default:0", 0); err != nil {
		t.Fatalf("set ttl: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	v, err := s.Get(ctx, "minute:sk-default:0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected expired key to read as zero, got %d", v)
	}
}

func TestMemStoreDecrementConcurrencyGauge(t *testing.T) {
	s := NewMemStore(50 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Increment(ctx, "concurrent:sk-default"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := s.Increment(ctx, "concurrent:sk-default"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	v, err := s.Decrement(ctx, "concurrent:sk-default")
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected concurrency gauge 1 after one decrement of two, got %d", v)
	}
}
