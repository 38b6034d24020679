// Package chat defines the canonical chat-completion data model, the
// provider contract, and the durable streaming session that lets a
// record-and-replay host resume interrupted streams transparently.
package chat

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ImageDetail is the fidelity hint providers accept for image inputs.
type ImageDetail string

const (
	ImageDetailLow  ImageDetail = "low"
	ImageDetailHigh ImageDetail = "high"
	ImageDetailAuto ImageDetail = "auto"
)

var (
	textJSON        = []byte(`{"type":"text"}`)
	imageJSON       = []byte(`{"type":"image"}`)
	messageJSON     = []byte(`{"type":"message"}`)
	responseJSON    = []byte(`{"type":"response"}`)
	toolResultsJSON = []byte(`{"type":"tool_results"}`)
)

// ContentPart is one piece of message content. Concrete variants are
// Text and Image.
type ContentPart interface {
	contentPart()
}

// Text is a plain text content part.
type Text struct {
	Text string `json:"text"`
}

func (Text) contentPart() {}

// Image references an image either by URL or as inline bytes. Exactly
// one of URL and Data is set.
type Image struct {
	URL      string       `json:"url,omitempty"`
	Data     []byte       `json:"data,omitempty"`
	MimeType string       `json:"mime_type,omitempty"`
	Detail   *ImageDetail `json:"detail,omitempty"`
}

func (Image) contentPart() {}

// MarshalJSON implements custom JSON marshaling for Text
func (t Text) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(textJSON, "text", t.Text)
}

// UnmarshalJSON implements custom JSON unmarshaling for Text
func (t *Text) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	t.Text = gjson.GetBytes(data, "text").String()
	return nil
}

// MarshalJSON implements custom JSON marshaling for Image
func (i Image) MarshalJSON() ([]byte, error) {
	type alias Image
	raw, err := json.Marshal(alias(i))
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(raw, "type", "image")
}

// UnmarshalJSON implements custom JSON unmarshaling for Image
func (i *Image) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	type alias Image
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*i = Image(a)
	return nil
}

// UnmarshalContentPart decodes a single type-tagged content part.
func UnmarshalContentPart(data []byte) (ContentPart, error) {
	switch typ := gjson.GetBytes(data, "type").String(); typ {
	case "text":
		var t Text
		if err := t.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return t, nil
	case "image":
		var img Image
		if err := img.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unknown content part type: %q", typ)
	}
}

func unmarshalContentParts(arr gjson.Result) ([]ContentPart, error) {
	items := arr.Array()
	if len(items) == 0 {
		return nil, nil
	}
	parts := make([]ContentPart, 0, len(items))
	for _, item := range items {
		part, err := UnmarshalContentPart([]byte(item.Raw))
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// TextContent concatenates the textual parts of a content list.
func TextContent(parts []ContentPart) string {
	var out string
	for _, part := range parts {
		if t, ok := part.(Text); ok {
			out += t.Text
		}
	}
	return out
}

// ToolCall is a fully assembled tool invocation produced by a model.
// ArgumentsJSON may be the empty string when the model supplied no
// arguments at all.
type ToolCall struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ArgumentsJSON string `json:"arguments_json"`
}

// ToolResult carries the outcome of executing a tool call back to the
// model on the next turn.
type ToolResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ResultJSON string `json:"result_json,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolDefinition describes a tool the model may invoke.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Config carries the per-call generation parameters. Nil pointer
// fields mean "provider default".
type Config struct {
	Model           string            `json:"model"`
	Temperature     *float64          `json:"temperature,omitempty"`
	MaxTokens       *uint32           `json:"max_tokens,omitempty"`
	StopSequences   []string          `json:"stop_sequences,omitempty"`
	Tools           []ToolDefinition  `json:"tools,omitempty"`
	ToolChoice      *string           `json:"tool_choice,omitempty"`
	ProviderOptions map[string]string `json:"provider_options,omitempty"`
}

// Event is one entry of a conversation transcript. Concrete variants
// are Message, Response and ToolResults.
type Event interface {
	chatEvent()
}

// Message is a request-side transcript entry.
type Message struct {
	Role    Role          `json:"role"`
	Name    *string       `json:"name,omitempty"`
	Content []ContentPart `json:"content"`
}

func (Message) chatEvent() {}

// ToolResults feeds the outcomes of one or more tool calls back into
// the transcript.
type ToolResults []ToolResult

func (ToolResults) chatEvent() {}

// UserText is shorthand for a single-part user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{Text{Text: text}}}
}

// SystemText is shorthand for a single-part system message.
func SystemText(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{Text{Text: text}}}
}

// MarshalJSON implements custom JSON marshaling for Message
func (m Message) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(messageJSON, "role", string(m.Role))
	if err != nil {
		return nil, err
	}
	if m.Name != nil {
		if result, err = sjson.SetBytes(result, "name", *m.Name); err != nil {
			return nil, err
		}
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(result, "content", content)
}

// UnmarshalJSON implements custom JSON unmarshaling for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	parsed := gjson.ParseBytes(data)
	m.Role = Role(parsed.Get("role").String())
	if name := parsed.Get("name"); name.Exists() {
		value := name.String()
		m.Name = &value
	}
	content, err := unmarshalContentParts(parsed.Get("content"))
	if err != nil {
		return err
	}
	m.Content = content
	return nil
}

// MarshalJSON implements custom JSON marshaling for ToolResults
func (t ToolResults) MarshalJSON() ([]byte, error) {
	results, err := json.Marshal([]ToolResult(t))
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(toolResultsJSON, "results", results)
}

// UnmarshalJSON implements custom JSON unmarshaling for ToolResults
func (t *ToolResults) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	results := gjson.GetBytes(data, "results")
	if !results.Exists() {
		*t = nil
		return nil
	}
	return json.Unmarshal([]byte(results.Raw), (*[]ToolResult)(t))
}

// UnmarshalEvent decodes a single type-tagged transcript event.
func UnmarshalEvent(data []byte) (Event, error) {
	switch typ := gjson.GetBytes(data, "type").String(); typ {
	case "message":
		var m Message
		if err := m.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return m, nil
	case "response":
		var r Response
		if err := r.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return r, nil
	case "tool_results":
		var t ToolResults
		if err := t.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", typ)
	}
}

// UnmarshalEvents decodes a JSON array of type-tagged events.
func UnmarshalEvents(data []byte) ([]Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	items := gjson.ParseBytes(data).Array()
	if len(items) == 0 {
		return nil, nil
	}
	events := make([]Event, 0, len(items))
	for _, item := range items {
		event, err := UnmarshalEvent([]byte(item.Raw))
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
