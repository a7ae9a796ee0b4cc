package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/relayforge/gateway/catalogstore"
	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/counterstore"
	"github.com/relayforge/gateway/modelmanager"
	"github.com/relayforge/gateway/pipelineerr"
	"github.com/relayforge/gateway/provider"
	"github.com/relayforge/gateway/ratelimit"
	"github.com/rs/zerolog"
)

type stubAdapter struct {
	usage chatmodel.Usage
	err   error
}

func (s stubAdapter) Complete(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error) {
	if s.err != nil {
		return chatmodel.Response{}, s.err
	}
	return chatmodel.Response{
		ID: "stub-1", Object: "chat.completion", Model: req.Model,
		Choices: []chatmodel.Choice{{Index: 0, Message: chatmodel.ResponseMessage{Role: "assistant", Content: "hi there"}, FinishReason: "stop"}},
		Usage:   s.usage,
	}, nil
}

// flakyAdapter fails the first N calls, then succeeds.
type flakyAdapter struct {
	failCount int
	calls     int
	usage     chatmodel.Usage
}

func (f *flakyAdapter) Complete(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error) {
	f.calls++
	if f.calls <= f.failCount {
		return chatmodel.Response{}, pipelineerr.New(pipelineerr.UpstreamError, "upstream unavailable")
	}
	return chatmodel.Response{
		ID: "stub-retry", Object: "chat.completion", Model: req.Model,
		Choices: []chatmodel.Choice{{Index: 0, Message: chatmodel.ResponseMessage{Role: "assistant", Content: "recovered"}, FinishReason: "stop"}},
		Usage:   f.usage,
	}, nil
}

func newTestPipeline(t *testing.T, registry *provider.Registry) (*Pipeline, catalogstore.Store) {
	t.Helper()
	store := catalogstore.NewMemStore()
	mgr := modelmanager.New(store)
	if err := mgr.Seed(context.Background(), "sk-admin-test"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	limiter := ratelimit.New(counterstore.NewMemStore(time.Second))
	return New(store, limiter, mgr, registry, zerolog.Nop()), store
}

func TestHandleHappyPath(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register("openai", stubAdapter{usage: chatmodel.Usage{PromptTokens: 5, CompletionTokens: 10, TotalTokens: 15}})
	p, store := newTestPipeline(t, registry)

	req := chatmodel.Request{Model: "gpt-4o", Messages: []chatmodel.Message{{Role: "user", Raw: "hi"}}}
	resp, err := p.Handle(context.Background(), req, "sk-default")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "hi there" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	cred, err := store.FindOne(context.Background(), catalogstore.Credentials, catalogstore.Document{"api_key": "sk-default"})
	if err != nil || cred == nil {
		t.Fatalf("find credential: %v", err)
	}
	balance := cred["balance"].(float64)
	want := 100.0 - (5.0/1e6*15 + 10.0/1e6*50)
	if math.Abs(balance-want) > 1e-9 {
		t.Fatalf("balance = %v, want %v", balance, want)
	}

	txs, err := store.Find(context.Background(), catalogstore.Transactions, catalogstore.Document{}, nil)
	if err != nil || len(txs) != 1 {
		t.Fatalf("expected exactly one transaction, got %d (%v)", len(txs), err)
	}

	logs, err := store.Find(context.Background(), catalogstore.Requests, catalogstore.Document{"status": "completed"}, nil)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one completed request log, got %d (%v)", len(logs), err)
	}
}

func TestHandleRetriesThenSucceeds(t *testing.T) {
	registry := provider.NewRegistry()
	flaky := &flakyAdapter{failCount: 2, usage: chatmodel.Usage{PromptTokens: 5, CompletionTokens: 10}}
	registry.Register("openai", flaky)
	p, store := newTestPipeline(t, registry)

	ctx := context.Background()
	if err := store.UpdateOne(ctx, catalogstore.Credentials, catalogstore.Document{"api_key": "sk-default"},
		catalogstore.Document{"retry": map[string]interface{}{"max_retries": 3, "retry_delay_ms": 0, "fallback_to_lower_tier": true}},
	); err != nil {
		t.Fatalf("setup: %v", err)
	}

	req := chatmodel.Request{Model: "gpt-4o", Messages: []chatmodel.Message{{Role: "user", Raw: "hi"}}}
	resp, err := p.Handle(ctx, req, "sk-default")
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if resp.Choices[0].Message.Content != "recovered" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected exactly 3 dispatch attempts, got %d", flaky.calls)
	}

	logs, err := store.Find(ctx, catalogstore.Requests, catalogstore.Document{"status": "completed"}, nil)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one completed request log, got %d (%v)", len(logs), err)
	}
	attempts, _ := logs[0]["retry_attempts"].([]interface{})
	if len(attempts) != 3 {
		t.Fatalf("expected 3 retry attempts logged, got %d", len(attempts))
	}

	txs, err := store.Find(ctx, catalogstore.Transactions, catalogstore.Document{}, nil)
	if err != nil || len(txs) != 1 {
		t.Fatalf("expected exactly one transaction, got %d (%v)", len(txs), err)
	}
}

func TestHandleInsufficientBalanceWithoutFallback(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register("openai", stubAdapter{usage: chatmodel.Usage{PromptTokens: 5, CompletionTokens: 10}})
	p, store := newTestPipeline(t, registry)

	ctx := context.Background()
	if err := store.UpdateOne(ctx, catalogstore.Credentials, catalogstore.Document{"api_key": "sk-default"},
		catalogstore.Document{"balance": 0.0001, "retry": map[string]interface{}{"max_retries": 3, "retry_delay_ms": 0, "fallback_to_lower_tier": false}},
	); err != nil {
		t.Fatalf("setup: %v", err)
	}

	req := chatmodel.Request{Model: "gpt-4o", Messages: []chatmodel.Message{{Role: "user", Raw: "hi"}}}
	_, err := p.Handle(ctx, req, "sk-default")
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.InsufficientBalance {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}

	txs, err := store.Find(ctx, catalogstore.Transactions, catalogstore.Document{}, nil)
	if err != nil || len(txs) != 0 {
		t.Fatalf("expected no transaction rows, got %d (%v)", len(txs), err)
	}
}

func TestHandleInsufficientBalanceWithFallback(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register("openai", stubAdapter{err: pipelineerr.New(pipelineerr.UpstreamError, "should not be called")})
	registry.Register("xai", stubAdapter{usage: chatmodel.Usage{PromptTokens: 5, CompletionTokens: 10}})
	p, store := newTestPipeline(t, registry)

	ctx := context.Background()
	// Enough for the grok-2-vision-1212 fallback estimate (~0.079) but
	// short of the gpt-4o estimate (~7.68) at the seeded pricing and
	// max_tokens.
	if err := store.UpdateOne(ctx, catalogstore.Credentials, catalogstore.Document{"api_key": "sk-default"},
		catalogstore.Document{"balance": 0.1},
	); err != nil {
		t.Fatalf("setup: %v", err)
	}

	req := chatmodel.Request{Model: "gpt-4o", Messages: []chatmodel.Message{{Role: "user", Raw: "hi"}}}
	resp, err := p.Handle(ctx, req, "sk-default")
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if resp.Model != "grok-2-vision-1212" {
		t.Fatalf("expected substitution to the lower-tier model, got %s", resp.Model)
	}
}

func TestHandleUnknownCredentialIsAuthError(t *testing.T) {
	registry := provider.NewRegistry()
	p, _ := newTestPipeline(t, registry)

	req := chatmodel.Request{Model: "gpt-4o", Messages: []chatmodel.Message{{Role: "user", Raw: "hi"}}}
	_, err := p.Handle(context.Background(), req, "sk-missing")
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.AuthError {
		t.Fatalf("expected AuthError, got %v", err)
	}
}
