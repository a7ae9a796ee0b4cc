// Package provider implements C6: the upstream adapter interface and
// one implementation per supported LLM provider, grounded on the
// teacher's provider package and original_source/app/providers/*.
package provider

import (
	"context"
	"sync"

	"github.com/relayforge/gateway/chatmodel"
)

// Adapter executes a canonical request against one upstream and
// normalises its response back into the canonical shape. Adapters are
// stateless after construction — safe for concurrent use — and never
// retry internally; retry and fallback are exclusively the pipeline's
// job (§4.8 step 6).
type Adapter interface {
	// Complete sends req to the upstream and returns its canonical
	// response. Any upstream failure — transport error, non-2xx status,
	// malformed body — is returned as a pipelineerr UpstreamError.
	Complete(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error)
}

// Registry maps a provider tag (the model catalogue's "provider"
// field) to its adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces the adapter for a provider tag.
func (r *Registry) Register(tag string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[tag] = adapter
}

// Get returns the adapter registered for tag.
func (r *Registry) Get(tag string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[tag]
	return a, ok
}
