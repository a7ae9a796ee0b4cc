package chatmodel

import "encoding/json"

// knownRequestFields lists the canonical top-level request parameters;
// everything else lands in Request.Extra per §4.4's "unknown
// parameters are passed through untouched."
var knownRequestFields = map[string]bool{
	"model": true, "messages": true, "temperature": true, "max_tokens": true,
	"top_p": true, "frequency_penalty": true, "presence_penalty": true,
	"response_format": true, "stream": true,
}

// UnmarshalJSON decodes the canonical request, capturing any top-level
// field the canonical shape doesn't name into Extra.
func (r *Request) UnmarshalJSON(data []byte) error {
	type alias Request
	aux := struct{ *alias }{(*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := make(map[string]interface{})
	for k, v := range raw {
		if knownRequestFields[k] {
			continue
		}
		var decoded interface{}
		if err := json.Unmarshal(v, &decoded); err != nil {
			return err
		}
		extra[k] = decoded
	}
	r.Extra = extra
	return nil
}

// MarshalJSON re-serializes the canonical request, folding Extra back
// into the top level.
func (r Request) MarshalJSON() ([]byte, error) {
	type alias Request
	base, err := json.Marshal(alias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes a message whose content is either a plain
// string or a list of typed content items.
func (m *Message) UnmarshalJSON(data []byte) error {
	var shape struct {
		Role    string          `json:"role"`
		Name    string          `json:"name"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	m.Role = shape.Role
	m.Name = shape.Name

	if len(shape.Content) == 0 {
		return nil
	}
	if shape.Content[0] == '"' {
		return json.Unmarshal(shape.Content, &m.Raw)
	}
	m.IsList = true
	return json.Unmarshal(shape.Content, &m.Items)
}

// MarshalJSON re-serializes a message back to string-or-list content.
func (m Message) MarshalJSON() ([]byte, error) {
	shape := struct {
		Role    string      `json:"role"`
		Name    string      `json:"name,omitempty"`
		Content interface{} `json:"content"`
	}{Role: m.Role, Name: m.Name}
	if m.IsList {
		shape.Content = m.Items
	} else {
		shape.Content = m.Raw
	}
	return json.Marshal(shape)
}
