package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/pipelineerr"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicAdapter implements Adapter against the Anthropic Messages
// API, which differs from the canonical OpenAI-shaped schema in auth
// header, top-level max_tokens requirement, system-message handling,
// and inline (not remote-URL) image content.
type AnthropicAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAnthropicAdapter builds an Anthropic adapter.
func NewAnthropicAdapter(baseURL, apiKey string, timeout time.Duration) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return &AnthropicAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []anthropicContentBlock
}

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

const defaultAnthropicMaxTokens = 1024

// Complete implements Adapter.
func (a *AnthropicAdapter) Complete(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error) {
	wire := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   defaultAnthropicMaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.MaxTokens != nil {
		wire.MaxTokens = *req.MaxTokens
	}

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			wire.System = msg.StringContent()
			continue
		}
		content, err := a.convertContent(ctx, msg)
		if err != nil {
			return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to inline image content for anthropic", err)
		}
		wire.Messages = append(wire.Messages, anthropicMessage{Role: msg.Role, Content: content})
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to marshal anthropic request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to build anthropic request", err)
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "anthropic request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return chatmodel.Response{}, pipelineerr.New(pipelineerr.UpstreamError, fmt.Sprintf("anthropic returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	var wireResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to decode anthropic response", err)
	}

	var text string
	for _, block := range wireResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return chatmodel.Response{
		ID:      wireResp.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   wireResp.Model,
		Choices: []chatmodel.Choice{{
			Index:        0,
			Message:      chatmodel.ResponseMessage{Role: "assistant", Content: text},
			FinishReason: mapAnthropicStopReason(wireResp.StopReason),
		}},
		Usage: chatmodel.Usage{
			PromptTokens:     wireResp.Usage.InputTokens,
			CompletionTokens: wireResp.Usage.OutputTokens,
			TotalTokens:      wireResp.Usage.InputTokens + wireResp.Usage.OutputTokens,
		},
	}, nil
}

// convertContent renders a canonical message's content in Anthropic's
// shape, inlining any remote image URL to base64 — Messages API
// content blocks require inline image data, unlike OpenAI's
// remote-URL-accepting image_url part.
func (a *AnthropicAdapter) convertContent(ctx context.Context, msg chatmodel.Message) (interface{}, error) {
	if !msg.IsList {
		return msg.Raw, nil
	}
	blocks := make([]anthropicContentBlock, 0, len(msg.Items))
	for _, item := range msg.Items {
		switch item.Type {
		case "text":
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: item.Text})
		case "image_url":
			mediaType, data, err := inlineImage(ctx, a.client, item.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, anthropicContentBlock{
				Type:   "image",
				Source: &anthropicImageSource{Type: "base64", MediaType: mediaType, Data: data},
			})
		}
	}
	return blocks, nil
}

func mapAnthropicStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}

func (a *AnthropicAdapter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}
