// Package paramvalidator implements C4: the tagged-variant redesign of
// the model's dynamic parameter schema (§9) and the pure validate
// function of §4.4.
package paramvalidator

import (
	"fmt"

	"github.com/relayforge/gateway/chatmodel"
	"github.com/relayforge/gateway/pipelineerr"
)

// ParamSchema is the closed sum type a model's parameter schema is
// built from — FloatParam, IntParam, EnumParam — replacing the
// source's nested-map schema so coercion is total and errors are
// localised to one variant.
type ParamSchema interface {
	isParamSchema()
	// Coerce validates and converts value to this parameter's declared
	// type, or returns an error with the exact wording §4.4/the source
	// use.
	Coerce(name string, value interface{}) (interface{}, error)
	// DefaultValue returns the schema's default, if any.
	DefaultValue() (interface{}, bool)
}

// FloatParam is a bounded floating-point parameter.
type FloatParam struct {
	Min     *float64
	Max     *float64
	Default *float64
}

func (FloatParam) isParamSchema() {}

func (p FloatParam) DefaultValue() (interface{}, bool) {
	if p.Default == nil {
		return nil, false
	}
	return *p.Default, true
}

func (p FloatParam) Coerce(name string, value interface{}) (interface{}, error) {
	f, err := toFloat(value)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("Parameter '%s' has invalid type. Expected float", name))
	}
	if p.Min != nil && f < *p.Min {
		return nil, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("Parameter '%s' must be >= %v", name, *p.Min))
	}
	if p.Max != nil && f > *p.Max {
		return nil, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("Parameter '%s' must be <= %v", name, *p.Max))
	}
	return f, nil
}

// IntParam is a bounded integer parameter. Coerce accepts a numeric
// floating form by truncation, matching the source's int(float(value)).
type IntParam struct {
	Min     *int
	Max     *int
	Default *int
}

func (IntParam) isParamSchema() {}

func (p IntParam) DefaultValue() (interface{}, bool) {
	if p.Default == nil {
		return nil, false
	}
	return *p.Default, true
}

func (p IntParam) Coerce(name string, value interface{}) (interface{}, error) {
	f, err := toFloat(value)
	if err != nil {
		return nil, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("Parameter '%s' has invalid type. Expected int", name))
	}
	i := int(f) // truncation, not rounding — matches int(float(value))
	if p.Min != nil && i < *p.Min {
		return nil, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("Parameter '%s' must be >= %d", name, *p.Min))
	}
	if p.Max != nil && i > *p.Max {
		return nil, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("Parameter '%s' must be <= %d", name, *p.Max))
	}
	return i, nil
}

// EnumParam restricts a parameter to a fixed allowed set.
type EnumParam struct {
	Values  []string
	Default *string
}

func (EnumParam) isParamSchema() {}

func (p EnumParam) DefaultValue() (interface{}, bool) {
	if p.Default == nil {
		return nil, false
	}
	return *p.Default, true
}

func (p EnumParam) Coerce(name string, value interface{}) (interface{}, error) {
	s, ok := value.(string)
	if !ok {
		return nil, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("Parameter '%s' has invalid type. Expected enum", name))
	}
	for _, allowed := range p.Values {
		if s == allowed {
			return s, nil
		}
	}
	return nil, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("Parameter '%s' must be one of: %v", name, p.Values))
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("not numeric")
	}
}

var validRoles = map[string]bool{"system": true, "user": true, "assistant": true, "function": true}

// Validate implements §4.4. supportsImage comes from the model's
// capabilities.image flag; schema is the model's declared parameter
// schema. The function is pure: it returns a new Request rather than
// mutating its argument.
func Validate(req chatmodel.Request, supportsImage bool, schema map[string]ParamSchema) (chatmodel.Request, error) {
	if len(req.Messages) == 0 {
		return req, pipelineerr.New(pipelineerr.BadRequest, "messages must be a non-empty sequence")
	}
	for _, msg := range req.Messages {
		if !validRoles[msg.Role] {
			return req, pipelineerr.New(pipelineerr.BadRequest, fmt.Sprintf("invalid message role '%s'", msg.Role))
		}
		if msg.HasImage() && !supportsImage {
			return req, pipelineerr.New(pipelineerr.BadRequest, "model does not support image input")
		}
	}

	out := req
	out.Extra = cloneExtra(req.Extra)

	for name, paramSchema := range schema {
		value, present := lookupParam(req, name)
		if !present || value == nil {
			if def, ok := paramSchema.DefaultValue(); ok {
				setParam(&out, name, def)
			}
			continue
		}
		coerced, err := paramSchema.Coerce(name, value)
		if err != nil {
			return req, err
		}
		setParam(&out, name, coerced)
	}

	return out, nil
}

// lookupParam reads a top-level canonical field or an Extra entry by
// name.
func lookupParam(req chatmodel.Request, name string) (interface{}, bool) {
	switch name {
	case "temperature":
		if req.Temperature == nil {
			return nil, false
		}
		return *req.Temperature, true
	case "max_tokens":
		if req.MaxTokens == nil {
			return nil, false
		}
		return *req.MaxTokens, true
	case "top_p":
		if req.TopP == nil {
			return nil, false
		}
		return *req.TopP, true
	case "frequency_penalty":
		if req.FrequencyPenalty == nil {
			return nil, false
		}
		return *req.FrequencyPenalty, true
	case "presence_penalty":
		if req.PresencePenalty == nil {
			return nil, false
		}
		return *req.PresencePenalty, true
	case "response_format":
		if req.ResponseFormat == nil {
			return nil, false
		}
		return req.ResponseFormat.Type, true
	default:
		v, ok := req.Extra[name]
		return v, ok
	}
}

func setParam(req *chatmodel.Request, name string, value interface{}) {
	switch name {
	case "temperature":
		f := toF(value)
		req.Temperature = &f
	case "max_tokens":
		i := toI(value)
		req.MaxTokens = &i
	case "top_p":
		f := toF(value)
		req.TopP = &f
	case "frequency_penalty":
		f := toF(value)
		req.FrequencyPenalty = &f
	case "presence_penalty":
		f := toF(value)
		req.PresencePenalty = &f
	case "response_format":
		if s, ok := value.(string); ok {
			req.ResponseFormat = &chatmodel.ResponseFormat{Type: s}
		}
	default:
		if req.Extra == nil {
			req.Extra = make(map[string]interface{})
		}
		req.Extra[name] = value
	}
}

func toF(value interface{}) float64 {
	f, _ := toFloat(value)
	return f
}

func toI(value interface{}) int {
	f, _ := toFloat(value)
	return int(f)
}

func cloneExtra(extra map[string]interface{}) map[string]interface{} {
	if extra == nil {
		return nil
	}
	out := make(map[string]interface{}, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}
