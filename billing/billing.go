// Package billing implements C5: cost estimation, balance checks, cost
// finalisation, and the deduction/transaction-audit pair of §4.5,
// grounded on original_source/app/core/billing.py's
// check_balance/calculate_cost/deduct_balance/_log_transaction, against
// the Catalogue Store's credentials/transactions collections instead of
// a Mongo client.
package billing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/relayforge/gateway/catalogstore"
	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/pipelineerr"
)

// Pricing is the per-model price table §4.5's formulas read from.
// Prices are USD per 1e6 tokens, except ImageInputPrice which is a flat
// per-image charge.
type Pricing struct {
	InputPrice      float64
	OutputPrice     float64
	ImageInputPrice float64
}

// estimateMargin is the 20% safety margin §4.5 applies to cover
// token-count estimation error.
const estimateMargin = 1.2

// TransactionEntry is one balance mutation: timestamp, credential,
// amount, previous balance, new balance, kind. Mirrors the teacher's
// metering.Transaction record shape.
type TransactionEntry struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"request_id"`
	Credential      string    `json:"credential"`
	Amount          float64   `json:"amount"`
	PreviousBalance float64   `json:"previous_balance"`
	NewBalance      float64   `json:"new_balance"`
	Kind            string    `json:"kind"` // "deduction" | "credit"
	Timestamp       time.Time `json:"timestamp"`
}

// Estimate computes the pre-dispatch cost bound per §4.5: the sum of a
// stringified-content input cost, a worst-case output cost at
// maxTokens, and a flat per-image cost, inflated by a 20% margin.
func Estimate(req chatmodel.Request, maxTokens int, pricing Pricing) float64 {
	var inputTokens float64
	var imageCount int
	for _, msg := range req.Messages {
		inputTokens += math.Ceil(float64(len(msg.StringContent())) / 4)
		for _, item := range msg.Items {
			if item.Type == "image_url" {
				imageCount++
			}
		}
	}

	inputCost := inputTokens * pricing.InputPrice / 1e6
	outputCost := float64(maxTokens) * pricing.OutputPrice / 1e6
	imageCost := float64(imageCount) * pricing.ImageInputPrice

	return estimateMargin * (inputCost + outputCost + imageCost)
}

// Finalise computes the settled cost from actual usage per §4.5. Image
// cost is not re-applied — it was approximated at estimate time only.
func Finalise(usage chatmodel.Usage, pricing Pricing) float64 {
	return pricing.InputPrice*float64(usage.PromptTokens)/1e6 + pricing.OutputPrice*float64(usage.CompletionTokens)/1e6
}

// CheckBalance reads the credential's current balance and reports
// whether it covers estimated. Advisory only — no hold is placed, and a
// race against a concurrent deduct is bounded by the rate limiter's
// concurrency cap rather than prevented here.
func CheckBalance(ctx context.Context, store catalogstore.Store, credentialKey string, estimated float64) (bool, error) {
	balance, err := readBalance(ctx, store, credentialKey)
	if err != nil {
		return false, err
	}
	return balance >= estimated, nil
}

// Deduct reads the current balance, writes balance-cost, and appends a
// transaction entry. May drive the balance negative under a race
// (§7) — deduction is not held against a reservation.
func Deduct(ctx context.Context, store catalogstore.Store, credentialKey string, cost float64, requestID string) error {
	previous, err := readBalance(ctx, store, credentialKey)
	if err != nil {
		return err
	}
	newBalance := previous - cost

	if err := store.UpdateOne(ctx, catalogstore.Credentials,
		catalogstore.Document{"api_key": credentialKey},
		catalogstore.Document{"balance": newBalance},
	); err != nil {
		return pipelineerr.Wrap(pipelineerr.Internal, "failed to update credential balance", err)
	}

	entry := TransactionEntry{
		ID:              uuid.NewString(),
		RequestID:       requestID,
		Credential:      credentialKey,
		Amount:          cost,
		PreviousBalance: previous,
		NewBalance:      newBalance,
		Kind:            "deduction",
		Timestamp:       time.Now().UTC(),
	}
	if err := store.Insert(ctx, catalogstore.Transactions, toDocument(entry)); err != nil {
		return pipelineerr.Wrap(pipelineerr.Internal, "failed to append transaction entry", err)
	}
	return nil
}

func readBalance(ctx context.Context, store catalogstore.Store, credentialKey string) (float64, error) {
	doc, err := store.FindOne(ctx, catalogstore.Credentials, catalogstore.Document{"api_key": credentialKey})
	if err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.Internal, "failed to read credential", err)
	}
	if doc == nil {
		return 0, pipelineerr.New(pipelineerr.AuthError, "unknown credential")
	}
	balance, ok := doc["balance"].(float64)
	if !ok {
		return 0, pipelineerr.New(pipelineerr.Internal, fmt.Sprintf("credential %s has no numeric balance", credentialKey))
	}
	return balance, nil
}

func toDocument(entry TransactionEntry) catalogstore.Document {
	return catalogstore.Document{
		"id":               entry.ID,
		"request_id":       entry.RequestID,
		"credential":       entry.Credential,
		"amount":           entry.Amount,
		"previous_balance": entry.PreviousBalance,
		"new_balance":      entry.NewBalance,
		"kind":             entry.Kind,
		"timestamp":        entry.Timestamp,
	}
}
