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

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter implements Adapter against the OpenAI chat completions
// API. xAI and any OpenAI-wire-compatible upstream reuse this type
// pointed at a different base URL, since both just wrap an
// OpenAI-shaped client.
type OpenAIAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAIAdapter builds an adapter for the given base URL and key.
func NewOpenAIAdapter(baseURL, apiKey string, timeout time.Duration) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAIAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		},
	}
}

type openAIRequest struct {
	Model            string          `json:"model"`
	Messages         []openAIMessage `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	ResponseFormat   *chatmodel.ResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openAIResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete implements Adapter.
func (a *OpenAIAdapter) Complete(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error) {
	wire := openAIRequest{
		Model:            req.Model,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		ResponseFormat:   req.ResponseFormat,
	}
	for _, msg := range req.Messages {
		wire.Messages = append(wire.Messages, openAIMessage{Role: msg.Role, Content: wireContent(msg)})
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to marshal openai request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to build openai request", err)
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "openai request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return chatmodel.Response{}, pipelineerr.New(pipelineerr.UpstreamError, fmt.Sprintf("openai returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	var wireResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to decode openai response", err)
	}

	out := chatmodel.Response{
		ID: wireResp.ID, Object: wireResp.Object, Created: wireResp.Created, Model: wireResp.Model,
		Usage: chatmodel.Usage{
			PromptTokens:     wireResp.Usage.PromptTokens,
			CompletionTokens: wireResp.Usage.CompletionTokens,
			TotalTokens:      wireResp.Usage.TotalTokens,
		},
	}
	for _, c := range wireResp.Choices {
		out.Choices = append(out.Choices, chatmodel.Choice{
			Index:        c.Index,
			Message:      chatmodel.ResponseMessage{Role: c.Message.Role, Content: c.Message.Content},
			FinishReason: c.FinishReason,
		})
	}
	return out, nil
}

func (a *OpenAIAdapter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
}

// wireContent renders a canonical message's content as either a plain
// string or the OpenAI-shaped content-part list, inlining remote image
// URLs is left to the upstream — OpenAI's API accepts image_url parts
// with a remote URL directly, unlike Anthropic's data-URI requirement.
func wireContent(msg chatmodel.Message) interface{} {
	if !msg.IsList {
		return msg.Raw
	}
	parts := make([]map[string]interface{}, 0, len(msg.Items))
	for _, item := range msg.Items {
		switch item.Type {
		case "text":
			parts = append(parts, map[string]interface{}{"type": "text", "text": item.Text})
		case "image_url":
			part := map[string]interface{}{"type": "image_url", "image_url": map[string]string{"url": item.ImageURL.URL}}
			if item.ImageURL.Detail != "" {
				part["image_url"].(map[string]string)["detail"] = item.ImageURL.Detail
			}
			parts = append(parts, part)
		}
	}
	return parts
}
