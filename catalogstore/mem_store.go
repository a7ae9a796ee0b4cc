package catalogstore

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-process Catalogue Store for unit tests and for
// environments without a live Postgres instance, mirroring the
// teacher's "Redis optional, degrade gracefully" posture for the
// Counter Store.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]Document
}

// NewMemStore returns an empty in-process store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]Document)}
}

func matches(doc Document, query Document) bool {
	for k, want := range query {
		if got, ok := doc[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func clone(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func (s *MemStore) uniqueField(collection string) string {
	switch collection {
	case Models:
		return "model_id"
	case Credentials:
		return "api_key"
	default:
		return ""
	}
}

func (s *MemStore) FindOne(_ context.Context, collection string, query Document) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.data[collection] {
		if matches(doc, query) {
			return clone(doc), nil
		}
	}
	return nil, nil
}

func (s *MemStore) Insert(_ context.Context, collection string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if field := s.uniqueField(collection); field != "" {
		if want, ok := doc[field]; ok {
			for _, existing := range s.data[collection] {
				if existing[field] == want {
					return ErrDuplicateKey
				}
			}
		}
	}
	s.data[collection] = append(s.data[collection], clone(doc))
	return nil
}

func (s *MemStore) UpdateOne(_ context.Context, collection string, query Document, patch Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.data[collection] {
		if matches(doc, query) {
			for k, v := range patch {
				doc[k] = v
			}
			return nil
		}
	}
	return nil
}

func (s *MemStore) Find(_ context.Context, collection string, query Document, sortSpec []SortSpec) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.data[collection] {
		if matches(doc, query) {
			out = append(out, clone(doc))
		}
	}

	if len(sortSpec) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, spec := range sortSpec {
				vi, vj := out[i][spec.Field], out[j][spec.Field]
				less, eq := compare(vi, vj)
				if eq {
					continue
				}
				if spec.Descending {
					return !less
				}
				return less
			}
			return false
		})
	}
	return out, nil
}

// compare returns (a < b, a == b) for int, int64, float64 and string
// values (e.g. capability_level); values of any other type compare as
// equal.
func compare(a, b interface{}) (less bool, equal bool) {
	switch av := a.(type) {
	case int:
		bv, _ := b.(int)
		return av < bv, av == bv
	case int64:
		bv, _ := b.(int64)
		return av < bv, av == bv
	case float64:
		bv, _ := b.(float64)
		return av < bv, av == bv
	case string:
		bv, _ := b.(string)
		return av < bv, av == bv
	default:
		return false, true
	}
}
