package billing

import (
	"context"
	"math"
	"testing"

	"github.com/relayforge/gateway/catalogstore"
	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/pipelineerr"
)

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFinaliseMatchesHappyPathScenario(t *testing.T) {
	pricing := Pricing{InputPrice: 15, OutputPrice: 50}
	usage := chatmodel.Usage{PromptTokens: 5, CompletionTokens: 10, TotalTokens: 15}

	got := Finalise(usage, pricing)
	want := 5.0/1e6*15 + 10.0/1e6*50

	if !approxEqual(got, want) {
		t.Fatalf("finalise = %v, want %v", got, want)
	}
}

func TestEstimateAppliesSafetyMarginAndImageCost(t *testing.T) {
	pricing := Pricing{InputPrice: 15, OutputPrice: 50, ImageInputPrice: 0.01}
	req := chatmodel.Request{
		Messages: []chatmodel.Message{
			{Role: "user", IsList: true, Items: []chatmodel.ContentItem{
				{Type: "text", Text: "describe this"},
				{Type: "image_url", ImageURL: &chatmodel.ImageURLPart{URL: "https://example.com/a.png"}},
			}},
		},
	}

	got := Estimate(req, 100, pricing)
	if got <= 0 {
		t.Fatalf("expected positive estimate, got %v", got)
	}
	// "describe this" + "image_url" stringifies to 22 chars -> 6 tokens.
	wantEstimate := 1.2 * (6.0*15/1e6 + 100.0*50/1e6 + 1*0.01)
	if !approxEqual(got, wantEstimate) {
		t.Fatalf("estimate = %v, want %v (20%% margin over input, output and image cost)", got, wantEstimate)
	}

	withoutImage := Estimate(chatmodel.Request{
		Messages: []chatmodel.Message{{Role: "user", Raw: "describe this"}},
	}, 100, pricing)
	if got <= withoutImage {
		t.Fatalf("expected image cost to increase the estimate: %v <= %v", got, withoutImage)
	}
}

func TestDeductAppendsTransactionAndUpdatesBalance(t *testing.T) {
	store := catalogstore.NewMemStore()
	ctx := context.Background()
	if err := store.Insert(ctx, catalogstore.Credentials, catalogstore.Document{"api_key": "sk-default", "balance": 100.0}); err != nil {
		t.Fatalf("seed credential: %v", err)
	}

	cost := 5.75e-4
	if err := Deduct(ctx, store, "sk-default", cost, "req-1"); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	doc, err := store.FindOne(ctx, catalogstore.Credentials, catalogstore.Document{"api_key": "sk-default"})
	if err != nil || doc == nil {
		t.Fatalf("find credential after deduct: %v", err)
	}
	balance := doc["balance"].(float64)
	if !approxEqual(balance, 100.0-cost) {
		t.Fatalf("balance = %v, want %v", balance, 100.0-cost)
	}

	txs, err := store.Find(ctx, catalogstore.Transactions, catalogstore.Document{"credential": "sk-default"}, nil)
	if err != nil {
		t.Fatalf("find transactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected exactly one transaction entry, got %d", len(txs))
	}
	if txs[0]["new_balance"].(float64)+txs[0]["amount"].(float64) != txs[0]["previous_balance"].(float64) {
		t.Fatalf("ledger conservation violated: %+v", txs[0])
	}
}

func TestCheckBalanceUnknownCredentialIsAuthError(t *testing.T) {
	store := catalogstore.NewMemStore()
	_, err := CheckBalance(context.Background(), store, "sk-missing", 1.0)
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.AuthError {
		t.Fatalf("expected AuthError for unknown credential, got %v", err)
	}
}
