package ollama

import (
	"encoding/base64"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/pkg/jsonx"
	"github.com/casualjim/loom/pkg/uuidx"
)

type request struct {
	Model    string         `json:"model"`
	Messages []message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Tools    []tool         `json:"tools,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type toolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// chatLine is one NDJSON line; the non-streaming response uses the
// same shape with done always true.
type chatLine struct {
	Model              string   `json:"model"`
	CreatedAt          string   `json:"created_at"`
	Message            *message `json:"message"`
	Done               bool     `json:"done"`
	DoneReason         string   `json:"done_reason"`
	TotalDuration      *uint64  `json:"total_duration"`
	LoadDuration       *uint64  `json:"load_duration"`
	PromptEvalCount    *uint32  `json:"prompt_eval_count"`
	PromptEvalDuration *uint64  `json:"prompt_eval_duration"`
	EvalCount          *uint32  `json:"eval_count"`
	EvalDuration       *uint64  `json:"eval_duration"`
	Context            []int64  `json:"context"`
}

func buildRequest(events []chat.Event, config chat.Config, stream bool) (*request, error) {
	req := &request{Model: config.Model, Stream: stream}

	for _, event := range events {
		switch ev := event.(type) {
		case chat.Message:
			msg := message{Role: string(ev.Role), Content: chat.TextContent(ev.Content)}
			for _, part := range ev.Content {
				if img, ok := part.(chat.Image); ok && len(img.Data) > 0 {
					msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(img.Data))
				}
			}
			req.Messages = append(req.Messages, msg)
		case chat.Response:
			msg := message{Role: "assistant", Content: chat.TextContent(ev.Content)}
			for _, call := range ev.ToolCalls {
				tc := toolCall{}
				tc.Function.Name = call.Name
				args := call.ArgumentsJSON
				if args == "" {
					args = "{}"
				}
				tc.Function.Arguments = json.RawMessage(args)
				msg.ToolCalls = append(msg.ToolCalls, tc)
			}
			req.Messages = append(req.Messages, msg)
		case chat.ToolResults:
			for _, result := range ev {
				req.Messages = append(req.Messages, message{Role: "tool", Content: result.ResultJSON})
			}
		}
	}

	for _, def := range config.Tools {
		schema, err := jsonx.ToDynamicJSON(def.Parameters)
		if err != nil {
			return nil, loom.Errorf(loom.InvalidRequest, "tool %s has an invalid schema: %v", def.Name, err)
		}
		req.Tools = append(req.Tools, tool{
			Type:     "function",
			Function: toolFunction{Name: def.Name, Description: def.Description, Parameters: schema},
		})
	}

	options := map[string]any{}
	if config.Temperature != nil {
		options["temperature"] = *config.Temperature
	}
	if config.MaxTokens != nil {
		options["num_predict"] = *config.MaxTokens
	}
	if len(config.StopSequences) > 0 {
		options["stop"] = config.StopSequences
	}
	for _, key := range []string{"top_k", "top_p", "repeat_penalty", "seed"} {
		if raw, ok := config.ProviderOptions[key]; ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				options[key] = v
			}
		}
	}
	if len(options) > 0 {
		req.Options = options
	}
	return req, nil
}

func (l *chatLine) usage() *chat.Usage {
	// Absent counters default to zero rather than nil so replayed usage
	// is always comparable.
	input := uint32(0)
	if l.PromptEvalCount != nil {
		input = *l.PromptEvalCount
	}
	output := uint32(0)
	if l.EvalCount != nil {
		output = *l.EvalCount
	}
	return &chat.Usage{
		InputTokens:  swag.Uint32(input),
		OutputTokens: swag.Uint32(output),
		TotalTokens:  swag.Uint32(input + output),
	}
}

// providerMetadata renders the timing counters the daemon reports.
// Only fields that are actually present make it into the JSON.
func (l *chatLine) providerMetadata() *string {
	meta := map[string]any{}
	if l.TotalDuration != nil {
		meta["total_duration"] = *l.TotalDuration
	}
	if l.LoadDuration != nil {
		meta["load_duration"] = *l.LoadDuration
	}
	if l.PromptEvalDuration != nil {
		meta["prompt_eval_duration"] = *l.PromptEvalDuration
	}
	if l.EvalDuration != nil {
		meta["eval_duration"] = *l.EvalDuration
	}
	if len(l.Context) > 0 {
		meta["context"] = l.Context
	}
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return swag.String(string(raw))
}

func (l *chatLine) metadata() chat.ResponseMetadata {
	reason := chat.FinishStop
	switch l.DoneReason {
	case "length":
		reason = chat.FinishLength
	case "tool_calls":
		reason = chat.FinishToolCalls
	}
	md := chat.ResponseMetadata{
		FinishReason:         &reason,
		Usage:                l.usage(),
		ProviderID:           swag.String("ollama"),
		ProviderMetadataJSON: l.providerMetadata(),
	}
	if l.CreatedAt != "" {
		if ts, err := strfmt.ParseDateTime(l.CreatedAt); err == nil {
			md.Timestamp = &ts
		}
	}
	return md
}

func (l *chatLine) deltas() []chat.StreamEvent {
	if l.Message == nil {
		return nil
	}
	var events []chat.StreamEvent
	if l.Message.Content != "" {
		events = append(events, chat.Delta{Content: []chat.ContentPart{chat.Text{Text: l.Message.Content}}})
	}
	if len(l.Message.ToolCalls) > 0 {
		calls := make([]chat.ToolCall, 0, len(l.Message.ToolCalls))
		for _, tc := range l.Message.ToolCalls {
			calls = append(calls, chat.ToolCall{
				ID:            uuidx.NewString(),
				Name:          tc.Function.Name,
				ArgumentsJSON: string(tc.Function.Arguments),
			})
		}
		events = append(events, chat.Delta{ToolCalls: calls})
	}
	return events
}

func (l *chatLine) toResponse() (*chat.Response, error) {
	out := &chat.Response{ID: uuidx.NewString(), Metadata: l.metadata()}
	if l.Message != nil {
		if l.Message.Content != "" {
			out.Content = []chat.ContentPart{chat.Text{Text: l.Message.Content}}
		}
		for _, tc := range l.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
				ID:            uuidx.NewString(),
				Name:          tc.Function.Name,
				ArgumentsJSON: string(tc.Function.Arguments),
			})
		}
	}
	return out, nil
}
