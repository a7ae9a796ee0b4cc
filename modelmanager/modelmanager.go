package modelmanager

import (
	"context"
	"sort"

	"github.com/relayforge/gateway/billing"
	"github.com/relayforge/gateway/catalogstore"
	"github.com/relayforge/gateway/paramvalidator"
	"github.com/relayforge/gateway/pipelineerr"
)

// Manager implements C7 over a catalogstore.Store.
type Manager struct {
	store catalogstore.Store
}

// New builds a Manager.
func New(store catalogstore.Store) *Manager {
	return &Manager{store: store}
}

// Get returns the active-or-inactive model record for modelID, or nil
// if none exists.
func (m *Manager) Get(ctx context.Context, modelID string) (*Model, error) {
	doc, err := m.store.FindOne(ctx, catalogstore.Models, catalogstore.Document{"model_id": modelID})
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.Internal, "failed to read model record", err)
	}
	if doc == nil {
		return nil, nil
	}
	model, err := modelFromDocument(doc)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.Internal, "failed to decode model record", err)
	}
	return &model, nil
}

// GetCredential returns the credential record for apiKey, or nil if
// none exists.
func (m *Manager) GetCredential(ctx context.Context, apiKey string) (*Credential, error) {
	doc, err := m.store.FindOne(ctx, catalogstore.Credentials, catalogstore.Document{"api_key": apiKey})
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.Internal, "failed to read credential record", err)
	}
	if doc == nil {
		return nil, nil
	}
	cred := credentialFromDocument(doc)
	return &cred, nil
}

// ListActive returns every model record with status=active.
func (m *Manager) ListActive(ctx context.Context) ([]Model, error) {
	docs, err := m.store.Find(ctx, catalogstore.Models, catalogstore.Document{"status": "active"}, nil)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.Internal, "failed to list active models", err)
	}
	models := make([]Model, 0, len(docs))
	for _, doc := range docs {
		model, err := modelFromDocument(doc)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.Internal, "failed to decode model record", err)
		}
		models = append(models, model)
	}
	return models, nil
}

// Update merges patch into the model record's top-level fields —
// the admin path's only means of mutating a model.
func (m *Manager) Update(ctx context.Context, modelID string, patch catalogstore.Document) error {
	if err := m.store.UpdateOne(ctx, catalogstore.Models, catalogstore.Document{"model_id": modelID}, patch); err != nil {
		return pipelineerr.Wrap(pipelineerr.Internal, "failed to update model record", err)
	}
	return nil
}

// FindLowerTier returns the highest-capability-level active model
// strictly below currentLevel that still satisfies every true flag in
// required, per §4.7. Ties break on capability level first, then
// lexicographic model_id.
func (m *Manager) FindLowerTier(ctx context.Context, currentLevel int, required Capabilities) (*Model, error) {
	active, err := m.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []Model
	for _, model := range active {
		if model.CapabilityLevel < currentLevel && model.Capabilities.satisfies(required) {
			candidates = append(candidates, model)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CapabilityLevel != candidates[j].CapabilityLevel {
			return candidates[i].CapabilityLevel > candidates[j].CapabilityLevel
		}
		return candidates[i].ModelID < candidates[j].ModelID
	})
	return &candidates[0], nil
}

// Seed bulk-inserts the built-in default models and credentials on
// first start, per §4.7 — only when their respective collections are
// empty. adminKey is the operator-configured admin credential key; if
// empty, the seed admin credential is skipped.
func (m *Manager) Seed(ctx context.Context, adminKey string) error {
	existingModels, err := m.store.Find(ctx, catalogstore.Models, catalogstore.Document{}, nil)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.Internal, "failed to check existing models", err)
	}
	if len(existingModels) == 0 {
		for _, model := range defaultModels() {
			if err := m.store.Insert(ctx, catalogstore.Models, modelToDocument(model)); err != nil && err != catalogstore.ErrDuplicateKey {
				return pipelineerr.Wrap(pipelineerr.Internal, "failed to seed default models", err)
			}
		}
	}

	existingCreds, err := m.store.Find(ctx, catalogstore.Credentials, catalogstore.Document{}, nil)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.Internal, "failed to check existing credentials", err)
	}
	if len(existingCreds) == 0 {
		for _, cred := range defaultCredentials(adminKey) {
			if err := m.store.Insert(ctx, catalogstore.Credentials, credentialToDocument(cred)); err != nil && err != catalogstore.ErrDuplicateKey {
				return pipelineerr.Wrap(pipelineerr.Internal, "failed to seed default credentials", err)
			}
		}
	}
	return nil
}

// defaultModels reproduces original_source's _init_default_models
// numbers exactly so the fallback and balance scenarios in spec.md §8
// reproduce: two capability-level-3 flagship models and two
// capability-level-1 fallback models.
func defaultModels() []Model {
	floatPtr := func(f float64) *float64 { return &f }
	intPtr := func(i int) *int { return &i }

	standardParams := map[string]paramvalidator.ParamSchema{
		"temperature": paramvalidator.FloatParam{Min: floatPtr(0), Max: floatPtr(2), Default: floatPtr(1.0)},
		"top_p":       paramvalidator.FloatParam{Min: floatPtr(0), Max: floatPtr(1), Default: floatPtr(1.0)},
		"max_tokens":  paramvalidator.IntParam{Min: intPtr(1), Default: intPtr(1024)},
	}

	return []Model{
		{
			ModelID: "gpt-4o", Provider: "openai", CapabilityLevel: 3,
			Capabilities: Capabilities{Text: true, Image: true, Reply: true},
			Pricing:      billing.Pricing{InputPrice: 15, OutputPrice: 50, ImageInputPrice: 0.00765},
			MaxTokens:    128000, Parameters: standardParams, Status: "active",
		},
		{
			ModelID: "claude-3.5-sonnet", Provider: "anthropic", CapabilityLevel: 3,
			Capabilities: Capabilities{Text: true, Image: true, Reply: true},
			Pricing:      billing.Pricing{InputPrice: 15, OutputPrice: 50, ImageInputPrice: 0.00765},
			MaxTokens:    128000, Parameters: standardParams, Status: "active",
		},
		{
			ModelID: "grok-vision-beta", Provider: "xai", CapabilityLevel: 1,
			Capabilities: Capabilities{Text: true, Image: true, Reply: true},
			Pricing:      billing.Pricing{InputPrice: 5, OutputPrice: 5, ImageInputPrice: 15.0},
			MaxTokens:    8192, Parameters: standardParams, Status: "active",
		},
		{
			ModelID: "grok-2-vision-1212", Provider: "xai", CapabilityLevel: 1,
			Capabilities: Capabilities{Text: true, Image: true, Reply: true},
			Pricing:      billing.Pricing{InputPrice: 2, OutputPrice: 2, ImageInputPrice: 10.0},
			MaxTokens:    32768, Parameters: standardParams, Status: "active",
		},
	}
}

// defaultCredentials reproduces _init_default_api_keys: an admin
// credential with a starting balance of 1000.0 and a default
// normal-tier credential keyed "sk-default" with a starting balance of
// 100.0. Both share the same DEFAULT_RETRY_CONFIG (fallback enabled),
// matching the happy-path and fallback scenarios in spec.md §8.
func defaultCredentials(adminKey string) []Credential {
	creds := []Credential{
		{
			APIKey: "sk-default", Tier: TierNormal, Balance: 100.0,
			RateLimits: RateLimits{PerMinute: 60, PerDay: 10000, PerMonth: 100000, Concurrent: 10},
			Retry:      RetryConfig{MaxRetries: 3, RetryDelayMS: 1000, FallbackToLowerTier: true},
			Status:     "active",
		},
	}
	if adminKey != "" {
		creds = append(creds, Credential{
			APIKey: adminKey, Tier: TierAdmin, Balance: 1000.0,
			RateLimits: RateLimits{PerMinute: 100, PerDay: 100000, PerMonth: 1000000, Concurrent: 20},
			Retry:      RetryConfig{MaxRetries: 3, RetryDelayMS: 1000, FallbackToLowerTier: true},
			Status:     "active",
		})
	}
	return creds
}
