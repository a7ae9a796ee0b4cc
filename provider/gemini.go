package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/pipelineerr"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAdapter implements Adapter against Google's Generative Language
// API, which uses a distinct generateContent wire shape: role mapping
// (assistant→model), a parts list per message, and inline_data image
// parts rather than a fetchable URL.
type GeminiAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGeminiAdapter builds a Gemini adapter.
func NewGeminiAdapter(baseURL, apiKey string, timeout time.Duration) *GeminiAdapter {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiAdapter{
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

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
		Index        int           `json:"index"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

func roleToGemini(role string) string {
	switch role {
	case "assistant":
		return "model"
	case "system":
		return "user"
	default:
		return role
	}
}

func roleFromGemini(role string) string {
	if role == "model" {
		return "assistant"
	}
	return role
}

// Complete implements Adapter.
func (a *GeminiAdapter) Complete(ctx context.Context, req chatmodel.Request) (chatmodel.Response, error) {
	wire := geminiRequest{}
	for _, msg := range req.Messages {
		parts, err := a.convertParts(ctx, msg)
		if err != nil {
			return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to inline image content for gemini", err)
		}
		wire.Contents = append(wire.Contents, geminiContent{Role: roleToGemini(msg.Role), Parts: parts})
	}
	if req.MaxTokens != nil || req.Temperature != nil || req.TopP != nil {
		wire.GenerationConfig = &geminiGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
		}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to marshal gemini request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, req.Model, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to build gemini request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "gemini request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return chatmodel.Response{}, pipelineerr.New(pipelineerr.UpstreamError, fmt.Sprintf("gemini returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	var wireResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return chatmodel.Response{}, pipelineerr.Wrap(pipelineerr.UpstreamError, "failed to decode gemini response", err)
	}

	out := chatmodel.Response{
		ID:      fmt.Sprintf("gemini-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
	}
	for _, c := range wireResp.Candidates {
		text := ""
		for _, part := range c.Content.Parts {
			text += part.Text
		}
		finishReason := strings.ToLower(c.FinishReason)
		switch finishReason {
		case "", "stop":
			finishReason = "stop"
		case "max_tokens":
			finishReason = "length"
		}
		out.Choices = append(out.Choices, chatmodel.Choice{
			Index:        c.Index,
			Message:      chatmodel.ResponseMessage{Role: roleFromGemini(c.Content.Role), Content: text},
			FinishReason: finishReason,
		})
	}
	if wireResp.UsageMetadata != nil {
		out.Usage = chatmodel.Usage{
			PromptTokens:     wireResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: wireResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wireResp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

func (a *GeminiAdapter) convertParts(ctx context.Context, msg chatmodel.Message) ([]geminiPart, error) {
	if !msg.IsList {
		return []geminiPart{{Text: msg.Raw}}, nil
	}
	parts := make([]geminiPart, 0, len(msg.Items))
	for _, item := range msg.Items {
		switch item.Type {
		case "text":
			parts = append(parts, geminiPart{Text: item.Text})
		case "image_url":
			mimeType, data, err := inlineImage(ctx, a.client, item.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mimeType, Data: data}})
		}
	}
	return parts, nil
}
