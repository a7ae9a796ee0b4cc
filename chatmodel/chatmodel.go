// Package chatmodel defines the canonical chat-completion request and
// response shapes shared by the parameter validator, the provider
// adapters, and the pipeline — the provider-agnostic JSON the HTTP
// edge accepts and produces per §6.
package chatmodel

// ContentItem is one element of a multi-part message content list.
type ContentItem struct {
	Type     string        `json:"type"` // "text" | "image_url"
	Text     string        `json:"text,omitempty"`
	ImageURL *ImageURLPart `json:"image_url,omitempty"`
}

// ImageURLPart carries a remote or inline image reference.
type ImageURLPart struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Message is one canonical chat message. Content is either a plain
// string or a []ContentItem — Raw holds the content when the client
// sent a string; when it sent a list, IsList is set and Items holds it.
type Message struct {
	Role    string        `json:"role"`
	Raw     string        `json:"-"`
	Items   []ContentItem `json:"-"`
	IsList  bool          `json:"-"`
	Name    string        `json:"name,omitempty"`
}

// HasImage reports whether the message carries an image_url content
// item.
func (m Message) HasImage() bool {
	for _, item := range m.Items {
		if item.Type == "image_url" {
			return true
		}
	}
	return false
}

// StringContent renders the message content as a single string, the
// same coercion the original's cost estimator applies to non-string
// content before measuring its length.
func (m Message) StringContent() string {
	if !m.IsList {
		return m.Raw
	}
	out := ""
	for _, item := range m.Items {
		if item.Type == "text" {
			out += item.Text
		} else {
			out += item.Type
		}
	}
	return out
}

// ResponseFormat constrains the shape of the model's reply.
type ResponseFormat struct {
	Type string `json:"type"` // "text" | "json_object"
}

// Request is the canonical chat-completion request.
type Request struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`
	Stream           bool            `json:"stream,omitempty"`

	// Extra carries any top-level parameters the canonical shape above
	// doesn't name — unknown parameters are passed through untouched
	// per §4.4.
	Extra map[string]interface{} `json:"-"`
}

// Choice is one completion candidate.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant message returned in a choice.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting for a completed request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the canonical chat-completion response.
type Response struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	Choices           []Choice `json:"choices"`
	Usage             Usage    `json:"usage"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
}

// CountMessageTypes returns a role→count map, the shape the original
// request handler computes for the request log's message_types field.
func CountMessageTypes(messages []Message) map[string]int {
	counts := make(map[string]int)
	for _, m := range messages {
		counts[m.Role]++
	}
	return counts
}
