package catalogstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// collectionTables maps collection names to their backing table. Each
// table has a uniquely-keyed `key` column (model_id/api_key/request_id/
// transaction id), a `data` JSONB payload column, and `created_at`.
var collectionTables = map[string]string{
	Models:       "models",
	Credentials:  "credentials",
	Requests:     "requests",
	Transactions: "transactions",
}

// StoreMetrics instruments every Catalogue Store operation, grounded on
// the repository-metrics pattern used elsewhere in the corpus.
type StoreMetrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

func newStoreMetrics() *StoreMetrics {
	return &StoreMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_catalogstore_query_duration_seconds",
				Help:    "Duration of catalogue store queries",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"collection", "operation"},
		),
		QueryErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_catalogstore_query_errors_total",
				Help: "Total catalogue store query errors",
			},
			[]string{"collection", "operation"},
		),
	}
}

// PostgresStore implements Store atop Postgres via pgx, one table per
// collection holding a JSONB payload column plus the indexed columns
// needed for uniqueness and sort, grounded on the pgxpool +
// promauto-instrumented repository pattern used for alert history
// storage elsewhere in the corpus.
type PostgresStore struct {
	pool    *pgxpool.Pool
	metrics *StoreMetrics
}

// NewPostgresStore wraps an already-connected pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, metrics: newStoreMetrics()}
}

func keyColumn(collection string) string {
	switch collection {
	case Models:
		return "model_id"
	case Credentials:
		return "api_key"
	case Requests:
		return "request_id"
	case Transactions:
		return "id"
	default:
		return "key"
	}
}

func (s *PostgresStore) instrument(collection, operation string, start time.Time, err error) {
	s.metrics.QueryDuration.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
	if err != nil && err != pgx.ErrNoRows {
		s.metrics.QueryErrors.WithLabelValues(collection, operation).Inc()
	}
}

func (s *PostgresStore) FindOne(ctx context.Context, collection string, query Document) (Document, error) {
	start := time.Now()
	table, ok := collectionTables[collection]
	if !ok {
		return nil, fmt.Errorf("catalogstore: unknown collection %q", collection)
	}

	filter, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf("SELECT data FROM %s WHERE data @> $1::jsonb LIMIT 1", table)
	var raw []byte
	err = s.pool.QueryRow(ctx, sqlText, filter).Scan(&raw)
	defer s.instrument(collection, "find_one", start, err)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalogstore: find_one %s: %w", collection, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalogstore: decode %s: %w", collection, err)
	}
	return doc, nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection string, doc Document) error {
	start := time.Now()
	table, ok := collectionTables[collection]
	if !ok {
		return fmt.Errorf("catalogstore: unknown collection %q", collection)
	}

	key := keyColumn(table)
	keyVal, _ := doc[key]
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	sqlText := fmt.Sprintf(
		"INSERT INTO %s (%s, data, created_at) VALUES ($1, $2::jsonb, now())",
		table, key,
	)
	_, err = s.pool.Exec(ctx, sqlText, keyVal, payload)
	defer s.instrument(collection, "insert", start, err)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("catalogstore: insert %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) UpdateOne(ctx context.Context, collection string, query Document, patch Document) error {
	start := time.Now()
	table, ok := collectionTables[collection]
	if !ok {
		return fmt.Errorf("catalogstore: unknown collection %q", collection)
	}

	existing, err := s.FindOne(ctx, collection, query)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	for k, v := range patch {
		existing[k] = v
	}
	payload, err := json.Marshal(existing)
	if err != nil {
		return err
	}

	key := keyColumn(table)
	sqlText := fmt.Sprintf("UPDATE %s SET data = $1::jsonb WHERE %s = $2", table, key)
	_, err = s.pool.Exec(ctx, sqlText, payload, existing[key])
	defer s.instrument(collection, "update_one", start, err)
	if err != nil {
		return fmt.Errorf("catalogstore: update_one %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, collection string, query Document, sortSpec []SortSpec) ([]Document, error) {
	start := time.Now()
	table, ok := collectionTables[collection]
	if !ok {
		return nil, fmt.Errorf("catalogstore: unknown collection %q", collection)
	}

	filter, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	sqlText := fmt.Sprintf("SELECT data FROM %s WHERE data @> $1::jsonb", table)
	if len(sortSpec) > 0 {
		clauses := make([]string, 0, len(sortSpec))
		for _, spec := range sortSpec {
			dir := "ASC"
			if spec.Descending {
				dir = "DESC"
			}
			clauses = append(clauses, fmt.Sprintf("(data->>'%s')::numeric %s", spec.Field, dir))
		}
		sqlText += " ORDER BY " + strings.Join(clauses, ", ")
	}

	rows, err := s.pool.Query(ctx, sqlText, filter)
	defer s.instrument(collection, "find", start, err)
	if err != nil {
		return nil, fmt.Errorf("catalogstore: find %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("catalogstore: scan %s: %w", collection, err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("catalogstore: decode %s: %w", collection, err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505") || strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}
