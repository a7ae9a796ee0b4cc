package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()
	cfg := Load()

	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %s", cfg.Addr)
	}
	if cfg.APIKeyPrefix != "sk-" {
		t.Fatalf("expected default api key prefix sk-, got %s", cfg.APIKeyPrefix)
	}
	if cfg.DefaultRetry.MaxRetries != 3 {
		t.Fatalf("expected default max retries 3, got %d", cfg.DefaultRetry.MaxRetries)
	}
	if !cfg.DefaultRetry.FallbackToLowerTier {
		t.Fatalf("expected fallback to lower tier enabled by default")
	}

	normal, ok := cfg.DefaultRateLimits["normal"]
	if !ok {
		t.Fatalf("expected a normal rate limit tier")
	}
	if normal.RequestsPerMinute != 60 || normal.ConcurrentRequests != 10 {
		t.Fatalf("unexpected normal tier: %+v", normal)
	}
}

func TestLoadOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("GATEWAY_ADDR", ":9090")
	os.Setenv("ENV", "production")
	os.Setenv("RETRY_MAX_RETRIES", "5")
	defer os.Clearenv()

	cfg := Load()
	if cfg.Addr != ":9090" {
		t.Fatalf("expected overridden addr :9090, got %s", cfg.Addr)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected IsProduction() true")
	}
	if cfg.DefaultRetry.MaxRetries != 5 {
		t.Fatalf("expected overridden max retries 5, got %d", cfg.DefaultRetry.MaxRetries)
	}
}

func TestProviderTimeoutFallsBackToDefault(t *testing.T) {
	os.Clearenv()
	cfg := Load()
	if got := cfg.ProviderTimeout("unknown-provider"); got != cfg.DefaultTimeout {
		t.Fatalf("expected unknown provider to use default timeout, got %v", got)
	}
	if got := cfg.ProviderTimeout("openai"); got != cfg.ProviderTimeouts["openai"] {
		t.Fatalf("expected configured openai timeout, got %v", got)
	}
}
