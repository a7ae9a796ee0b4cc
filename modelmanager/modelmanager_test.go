package modelmanager

import (
	"context"
	"testing"

	"github.com/relayforge/gateway/catalogstore"
)

func TestSeedPopulatesDefaultsOnce(t *testing.T) {
	store := catalogstore.NewMemStore()
	mgr := New(store)
	ctx := context.Background()

	if err := mgr.Seed(ctx, "sk-admin-test"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	model, err := mgr.Get(ctx, "gpt-4o")
	if err != nil || model == nil {
		t.Fatalf("expected seeded gpt-4o model, got %v, err %v", model, err)
	}
	if model.CapabilityLevel != 3 || model.Provider != "openai" {
		t.Fatalf("unexpected seeded model: %+v", model)
	}

	cred, err := mgr.GetCredential(ctx, "sk-default")
	if err != nil || cred == nil {
		t.Fatalf("expected seeded sk-default credential, got %v, err %v", cred, err)
	}
	if cred.Balance != 100.0 {
		t.Fatalf("expected seed balance 100.0, got %v", cred.Balance)
	}

	// Re-seeding must not duplicate.
	if err := mgr.Seed(ctx, "sk-admin-test"); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	active, err := mgr.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 4 {
		t.Fatalf("expected 4 seeded models after re-seed, got %d", len(active))
	}
}

func TestFindLowerTierPicksHighestQualifyingBelowCurrent(t *testing.T) {
	store := catalogstore.NewMemStore()
	mgr := New(store)
	ctx := context.Background()
	if err := mgr.Seed(ctx, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	lower, err := mgr.FindLowerTier(ctx, 3, Capabilities{Text: true, Image: true})
	if err != nil {
		t.Fatalf("find lower tier: %v", err)
	}
	if lower == nil {
		t.Fatalf("expected a lower-tier model to be found")
	}
	if lower.CapabilityLevel != 1 {
		t.Fatalf("expected capability level 1, got %d", lower.CapabilityLevel)
	}
	// Tie-break: grok-2-vision-1212 < grok-vision-beta lexicographically.
	if lower.ModelID != "grok-2-vision-1212" {
		t.Fatalf("expected lexicographically-first tie-break, got %s", lower.ModelID)
	}
}

func TestFindLowerTierReturnsNilWhenNoneQualifies(t *testing.T) {
	store := catalogstore.NewMemStore()
	mgr := New(store)
	ctx := context.Background()
	if err := mgr.Seed(ctx, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	lower, err := mgr.FindLowerTier(ctx, 1, Capabilities{Text: true, Image: true})
	if err != nil {
		t.Fatalf("find lower tier: %v", err)
	}
	if lower != nil {
		t.Fatalf("expected no model below capability level 1, got %+v", lower)
	}
}
