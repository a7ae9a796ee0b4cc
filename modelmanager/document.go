package modelmanager

import (
	"fmt"

	"github.com/relayforge/gateway/billing"
	"github.com/relayforge/gateway/catalogstore"
	"github.com/relayforge/gateway/paramvalidator"
)

func modelToDocument(m Model) catalogstore.Document {
	params := make(map[string]interface{}, len(m.Parameters))
	for name, schema := range m.Parameters {
		params[name] = paramSchemaToDocument(schema)
	}
	return catalogstore.Document{
		"model_id":         m.ModelID,
		"provider":         m.Provider,
		"capability_level": m.CapabilityLevel,
		"capabilities": map[string]interface{}{
			"text": m.Capabilities.Text, "image": m.Capabilities.Image, "reply": m.Capabilities.Reply,
		},
		"pricing": map[string]interface{}{
			"input_price": m.Pricing.InputPrice, "output_price": m.Pricing.OutputPrice,
			"image_input_price": m.Pricing.ImageInputPrice,
		},
		"max_tokens": m.MaxTokens,
		"parameters": params,
		"status":     m.Status,
	}
}

func modelFromDocument(doc catalogstore.Document) (Model, error) {
	m := Model{
		ModelID:         asString(doc["model_id"]),
		Provider:        asString(doc["provider"]),
		CapabilityLevel: asInt(doc["capability_level"]),
		MaxTokens:       asInt(doc["max_tokens"]),
		Status:          asString(doc["status"]),
	}
	if caps, ok := doc["capabilities"].(map[string]interface{}); ok {
		m.Capabilities = Capabilities{Text: asBool(caps["text"]), Image: asBool(caps["image"]), Reply: asBool(caps["reply"])}
	}
	if pricing, ok := doc["pricing"].(map[string]interface{}); ok {
		m.Pricing = billing.Pricing{
			InputPrice:      asFloat(pricing["input_price"]),
			OutputPrice:     asFloat(pricing["output_price"]),
			ImageInputPrice: asFloat(pricing["image_input_price"]),
		}
	}
	if params, ok := doc["parameters"].(map[string]interface{}); ok {
		m.Parameters = make(map[string]paramvalidator.ParamSchema, len(params))
		for name, raw := range params {
			schema, err := paramSchemaFromDocument(raw)
			if err != nil {
				return Model{}, fmt.Errorf("model %s parameter %s: %w", m.ModelID, name, err)
			}
			m.Parameters[name] = schema
		}
	}
	return m, nil
}

// paramSchemaToDocument encodes a ParamSchema variant as a
// discriminated map so it round-trips through the schemaless document
// store.
func paramSchemaToDocument(schema paramvalidator.ParamSchema) map[string]interface{} {
	switch p := schema.(type) {
	case paramvalidator.FloatParam:
		return map[string]interface{}{"kind": "float", "min": ptrOrNil(p.Min), "max": ptrOrNil(p.Max), "default": ptrOrNil(p.Default)}
	case paramvalidator.IntParam:
		return map[string]interface{}{"kind": "int", "min": ptrOrNil(p.Min), "max": ptrOrNil(p.Max), "default": ptrOrNil(p.Default)}
	case paramvalidator.EnumParam:
		return map[string]interface{}{"kind": "enum", "values": p.Values, "default": ptrOrNilStr(p.Default)}
	default:
		return map[string]interface{}{"kind": "unknown"}
	}
}

func paramSchemaFromDocument(raw interface{}) (paramvalidator.ParamSchema, error) {
	doc, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("malformed parameter schema document")
	}
	switch doc["kind"] {
	case "float":
		return paramvalidator.FloatParam{Min: floatPtrOf(doc["min"]), Max: floatPtrOf(doc["max"]), Default: floatPtrOf(doc["default"])}, nil
	case "int":
		return paramvalidator.IntParam{Min: intPtrOf(doc["min"]), Max: intPtrOf(doc["max"]), Default: intPtrOf(doc["default"])}, nil
	case "enum":
		return paramvalidator.EnumParam{Values: asStringSlice(doc["values"]), Default: strPtrOf(doc["default"])}, nil
	default:
		return nil, fmt.Errorf("unknown parameter schema kind %v", doc["kind"])
	}
}

func credentialToDocument(c Credential) catalogstore.Document {
	return catalogstore.Document{
		"api_key": c.APIKey,
		"tier":    string(c.Tier),
		"balance": c.Balance,
		"rate_limits": map[string]interface{}{
			"per_minute": c.RateLimits.PerMinute, "per_day": c.RateLimits.PerDay,
			"per_month": c.RateLimits.PerMonth, "concurrent": c.RateLimits.Concurrent,
		},
		"retry": map[string]interface{}{
			"max_retries": c.Retry.MaxRetries, "retry_delay_ms": c.Retry.RetryDelayMS,
			"fallback_to_lower_tier": c.Retry.FallbackToLowerTier,
		},
		"status": c.Status,
	}
}

func credentialFromDocument(doc catalogstore.Document) Credential {
	c := Credential{
		APIKey:  asString(doc["api_key"]),
		Tier:    Tier(asString(doc["tier"])),
		Balance: asFloat(doc["balance"]),
		Status:  asString(doc["status"]),
	}
	if rl, ok := doc["rate_limits"].(map[string]interface{}); ok {
		c.RateLimits = RateLimits{
			PerMinute: asInt(rl["per_minute"]), PerDay: asInt(rl["per_day"]),
			PerMonth: asInt(rl["per_month"]), Concurrent: asInt(rl["concurrent"]),
		}
	}
	if rc, ok := doc["retry"].(map[string]interface{}); ok {
		c.Retry = RetryConfig{
			MaxRetries: asInt(rc["max_retries"]), RetryDelayMS: asInt(rc["retry_delay_ms"]),
			FallbackToLowerTier: asBool(rc["fallback_to_lower_tier"]),
		}
	}
	return c
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// asStringSlice handles both the native []string a MemStore hands back
// and the []interface{} a Postgres JSONB round-trip decodes an array
// into.
func asStringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			out = append(out, asString(e))
		}
		return out
	default:
		return nil
	}
}

func ptrOrNil(p interface{}) interface{} {
	switch v := p.(type) {
	case *float64:
		if v == nil {
			return nil
		}
		return *v
	case *int:
		if v == nil {
			return nil
		}
		return *v
	default:
		return nil
	}
}

func ptrOrNilStr(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtrOf(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f := asFloat(v)
	return &f
}

func intPtrOf(v interface{}) *int {
	if v == nil {
		return nil
	}
	i := asInt(v)
	return &i
}

func strPtrOf(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
