package provider

import (
	"context"
	"time"

	"github.com/relayforge/gateway/chatmodel"
)

const mistralBaseURL = "https://api.mistral.ai/v1"

// MistralAdapter wraps OpenAIAdapter: Mistral's chat completions API is
// wire-compatible with OpenAI's, differing only in base URL and model
// list, mirroring the teacher's mistral.go reusing the OpenAI request
// shape.
type MistralAdapter struct {
	inner *OpenAIAdapter
}

// NewMistralAdapter builds a Mistral adapter.
func NewMistralAdapter(apiKey string, timeout time.Duration) *MistralAdapter {
	return &MistralAdapter{inner: NewOpenAIAdapter(mistralBaseURL, apiKey, timeout)}
}

// Complete implements Adapter.
func (a *MistralAdapter) Complete(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error) {
	return a.inner.Complete(ctx, req)
}
