// Package modelmanager implements C7: catalogue reads, default-seed,
// and lower-tier search over the model and credential collections,
// grounded on original_source/app/models/model_manager.py.
package modelmanager

import (
	"github.com/relayforge/gateway/billing"
	"github.com/relayforge/gateway/paramvalidator"
)

// Capabilities is the model record's text/image/reply boolean mapping.
type Capabilities struct {
	Text  bool
	Image bool
	Reply bool
}

// satisfies reports whether m covers every true flag in required.
func (m Capabilities) satisfies(required Capabilities) bool {
	if required.Text && !m.Text {
		return false
	}
	if required.Image && !m.Image {
		return false
	}
	if required.Reply && !m.Reply {
		return false
	}
	return true
}

// Model is a catalogue model record (§3). Immutable from the
// pipeline's view — mutated only via Update.
type Model struct {
	ModelID         string
	Provider        string
	CapabilityLevel int
	Capabilities    Capabilities
	Pricing         billing.Pricing
	MaxTokens       int
	Parameters      map[string]paramvalidator.ParamSchema
	Status          string // "active" | "inactive"
}

func (m Model) isActive() bool { return m.Status == "active" }

// Tier identifies a credential's rate-limit/retry class.
type Tier string

const (
	TierLimit  Tier = "limit"
	TierNormal Tier = "normal"
	TierAdmin  Tier = "admin"
)

// RateLimits mirrors config.RateLimitTier, duplicated here so
// modelmanager doesn't import config for a handful of ints.
type RateLimits struct {
	PerMinute  int
	PerDay     int
	PerMonth   int
	Concurrent int
}

// RetryConfig is a credential's dispatch retry/fallback policy.
type RetryConfig struct {
	MaxRetries          int
	RetryDelayMS        int
	FallbackToLowerTier bool
}

// Credential is a catalogue credential record (§3). Balance is mutated
// only by the Billing Ledger.
type Credential struct {
	APIKey     string
	Tier       Tier
	Balance    float64
	RateLimits RateLimits
	Retry      RetryConfig
	Status     string // "active" | "disabled"
}

func (c Credential) isActive() bool { return c.Status == "active" }
