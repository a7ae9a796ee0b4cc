package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/pipelineerr"
)

func TestOpenAIAdapterCompleteHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "cmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": []map[string]interface{}{{
				"index": 0, "finish_reason": "stop",
				"message": map[string]string{"role": "assistant", "content": "hi there"},
			}},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 10, "total_tokens": 15},
		})
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL, "test-key", 5*time.Second)
	req := chatmodel.Request{Model: "gpt-4o", Messages: []chatmodel.Message{{Role: "user", Raw: "hi"}}}

	resp, err := adapter.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "hi there" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestOpenAIAdapterCompleteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	adapter := NewOpenAIAdapter(server.URL, "test-key", 5*time.Second)
	req := chatmodel.Request{Model: "gpt-4o", Messages: []chatmodel.Message{{Role: "user", Raw: "hi"}}}

	_, err := adapter.Complete(context.Background(), req)
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.UpstreamError {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestWireContentRendersMultipartMessage(t *testing.T) {
	msg := chatmodel.Message{
		Role:   "user",
		IsList: true,
		Items: []chatmodel.ContentItem{
			{Type: "text", Text: "describe"},
			{Type: "image_url", ImageURL: &chatmodel.ImageURLPart{URL: "https://example.com/a.png", Detail: "high"}},
		},
	}
	content := wireContent(msg)
	parts, ok := content.([]map[string]interface{})
	if !ok || len(parts) != 2 {
		t.Fatalf("expected 2 rendered parts, got %#v", content)
	}
	if parts[0]["type"] != "text" {
		t.Fatalf("expected first part to be text: %#v", parts[0])
	}
}
