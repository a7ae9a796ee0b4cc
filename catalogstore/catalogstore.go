// Package catalogstore implements C2, the persistent document store for
// model definitions, credential records, request logs, and transaction
// logs.
package catalogstore

import (
	"context"
	"errors"
)

// Collection names, matching §4.2 exactly.
const (
	Models       = "models"
	Credentials  = "credentials"
	Requests     = "requests"
	Transactions = "transactions"
)

// ErrDuplicateKey is returned by Insert when a unique index
// (models.model_id, credentials.api_key) is violated.
var ErrDuplicateKey = errors.New("catalogstore: duplicate key")

// Document is a schemaless record. Top-level keys are matched by
// FindOne/Find/UpdateOne's query maps using plain equality.
type Document map[string]interface{}

// SortSpec orders Find results by one field.
type SortSpec struct {
	Field      string
	Descending bool
}

// Store abstracts the document-store contract of §4.2: find_one,
// insert, update_one, find. No transactional guarantee across
// collections is required — §7 describes the compensating path the
// Billing Ledger and Pipeline take instead.
type Store interface {
	// FindOne returns the first document matching query, or nil if none.
	FindOne(ctx context.Context, collection string, query Document) (Document, error)
	// Insert appends a document. Returns ErrDuplicateKey if it violates a
	// unique index.
	Insert(ctx context.Context, collection string, doc Document) error
	// UpdateOne merges patch into the first document matching query.
	UpdateOne(ctx context.Context, collection string, query Document, patch Document) error
	// Find returns all documents matching query, ordered by sort.
	Find(ctx context.Context, collection string, query Document, sort []SortSpec) ([]Document, error)
}
