package paramvalidator

import (
	"testing"

	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/pipelineerr"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func strPtr(s string) *string     { return &s }

func gpt4oSchema() map[string]ParamSchema {
	return map[string]ParamSchema{
		"temperature":     FloatParam{Min: floatPtr(0), Max: floatPtr(2), Default: floatPtr(1.0)},
		"max_tokens":      IntParam{Min: intPtr(1), Max: intPtr(4096), Default: intPtr(2048)},
		"response_format": EnumParam{Values: []string{"text", "json_object"}, Default: strPtr("text")},
	}
}

func baseRequest() chatmodel.Request {
	return chatmodel.Request{
		Model:    "gpt-4o",
		Messages: []chatmodel.Message{{Role: "user", Raw: "hi"}},
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	out, err := Validate(baseRequest(), true, gpt4oSchema())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out.Temperature == nil || *out.Temperature != 1.0 {
		t.Fatalf("expected default temperature 1.0, got %v", out.Temperature)
	}
	if out.MaxTokens == nil || *out.MaxTokens != 2048 {
		t.Fatalf("expected default max_tokens 2048, got %v", out.MaxTokens)
	}
}

func TestValidateEnforcesBounds(t *testing.T) {
	req := baseRequest()
	over := 5.0
	req.Temperature = &over

	_, err := Validate(req, true, gpt4oSchema())
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.BadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
	if pe.Message != "Parameter 'temperature' must be <= 2" {
		t.Fatalf("unexpected message: %s", pe.Message)
	}
}

func TestValidateRejectsUnknownEnumValue(t *testing.T) {
	req := baseRequest()
	req.ResponseFormat = &chatmodel.ResponseFormat{Type: "yaml"}

	_, err := Validate(req, true, gpt4oSchema())
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.BadRequest {
		t.Fatalf("expected BadRequest for invalid enum value, got %v", err)
	}
}

func TestValidateRejectsImageWhenUnsupported(t *testing.T) {
	req := baseRequest()
	req.Messages[0].IsList = true
	req.Messages[0].Items = []chatmodel.ContentItem{
		{Type: "image_url", ImageURL: &chatmodel.ImageURLPart{URL: "https://example.com/a.png"}},
	}

	_, err := Validate(req, false, gpt4oSchema())
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.BadRequest {
		t.Fatalf("expected BadRequest for unsupported image input, got %v", err)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	schema := gpt4oSchema()

	once, err := Validate(baseRequest(), true, schema)
	if err != nil {
		t.Fatalf("validate once: %v", err)
	}
	twice, err := Validate(once, true, schema)
	if err != nil {
		t.Fatalf("validate twice: %v", err)
	}
	if *once.Temperature != *twice.Temperature || *once.MaxTokens != *twice.MaxTokens {
		t.Fatalf("validate is not idempotent: once=%+v twice=%+v", once, twice)
	}
}

func TestValidateRejectsEmptyMessages(t *testing.T) {
	req := chatmodel.Request{Model: "gpt-4o"}
	_, err := Validate(req, true, gpt4oSchema())
	pe, ok := pipelineerr.As(err)
	if !ok || pe.Kind != pipelineerr.BadRequest {
		t.Fatalf("expected BadRequest for empty messages, got %v", err)
	}
}
