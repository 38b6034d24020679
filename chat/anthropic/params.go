package anthropic

import (
	"encoding/base64"

	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/pkg/jsonx"
)

// Anthropic requires max_tokens; this is the fallback when the caller
// does not set one.
const defaultMaxTokens uint32 = 4096

type request struct {
	Model         string            `json:"model"`
	System        string            `json:"system,omitempty"`
	Messages      []message         `json:"messages"`
	MaxTokens     uint32            `json:"max_tokens"`
	Temperature   *float64          `json:"temperature,omitempty"`
	StopSequences []string          `json:"stop_sequences,omitempty"`
	Tools         []tool            `json:"tools,omitempty"`
	ToolChoice    map[string]string `json:"tool_choice,omitempty"`
	TopK          *int64            `json:"top_k,omitempty"`
	TopP          *float64          `json:"top_p,omitempty"`
	Stream        bool              `json:"stream,omitempty"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type string `json:"type"`
	// text
	Text string `json:"text,omitempty"`
	// image
	Source *imageSource `json:"source,omitempty"`
	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

type tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type usage struct {
	InputTokens  *uint32 `json:"input_tokens,omitempty"`
	OutputTokens *uint32 `json:"output_tokens,omitempty"`
}

type apiResponse struct {
	ID         string  `json:"id"`
	Model      string  `json:"model"`
	Content    []block `json:"content"`
	StopReason string  `json:"stop_reason"`
	Usage      *usage  `json:"usage"`
}

func buildRequest(events []chat.Event, config chat.Config, stream bool) (*request, error) {
	req := &request{
		Model:         config.Model,
		MaxTokens:     defaultMaxTokens,
		Temperature:   config.Temperature,
		StopSequences: config.StopSequences,
		Stream:        stream,
	}
	if config.MaxTokens != nil {
		req.MaxTokens = *config.MaxTokens
	}

	for _, event := range events {
		switch ev := event.(type) {
		case chat.Message:
			if ev.Role == chat.RoleSystem {
				// Anthropic takes instructions out of band.
				req.System += chat.TextContent(ev.Content)
				continue
			}
			req.Messages = append(req.Messages, message{
				Role:    roleName(ev.Role),
				Content: contentBlocks(ev.Content),
			})
		case chat.Response:
			content := contentBlocks(ev.Content)
			for _, call := range ev.ToolCalls {
				input := json.RawMessage(call.ArgumentsJSON)
				if call.ArgumentsJSON == "" {
					input = json.RawMessage(`{}`)
				}
				content = append(content, block{Type: "tool_use", ID: call.ID, Name: call.Name, Input: input})
			}
			req.Messages = append(req.Messages, message{Role: "assistant", Content: content})
		case chat.ToolResults:
			blocks := make([]block, 0, len(ev))
			for _, result := range ev {
				blocks = append(blocks, block{
					Type:      "tool_result",
					ToolUseID: result.ID,
					Content:   result.ResultJSON,
					IsError:   result.IsError,
				})
			}
			req.Messages = append(req.Messages, message{Role: "user", Content: blocks})
		}
	}

	for _, def := range config.Tools {
		schema, err := jsonx.ToDynamicJSON(def.Parameters)
		if err != nil {
			return nil, loom.Errorf(loom.InvalidRequest, "tool %s has an invalid schema: %v", def.Name, err)
		}
		req.Tools = append(req.Tools, tool{Name: def.Name, Description: def.Description, InputSchema: schema})
	}
	if config.ToolChoice != nil {
		switch choice := *config.ToolChoice; choice {
		case "auto", "any", "none":
			req.ToolChoice = map[string]string{"type": choice}
		default:
			req.ToolChoice = map[string]string{"type": "tool", "name": choice}
		}
	}

	if raw, ok := config.ProviderOptions["top_k"]; ok {
		var v int64
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			req.TopK = &v
		}
	}
	if raw, ok := config.ProviderOptions["top_p"]; ok {
		var v float64
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			req.TopP = &v
		}
	}
	return req, nil
}

func roleName(role chat.Role) string {
	if role == chat.RoleAssistant {
		return "assistant"
	}
	return "user"
}

func contentBlocks(parts []chat.ContentPart) []block {
	blocks := make([]block, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case chat.Text:
			blocks = append(blocks, block{Type: "text", Text: p.Text})
		case chat.Image:
			source := &imageSource{}
			if p.URL != "" {
				source.Type = "url"
				source.URL = p.URL
			} else {
				source.Type = "base64"
				source.MediaType = p.MimeType
				source.Data = base64.StdEncoding.EncodeToString(p.Data)
			}
			blocks = append(blocks, block{Type: "image", Source: source})
		}
	}
	return blocks
}

func stopReason(reason string) chat.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return chat.FinishStop
	case "max_tokens":
		return chat.FinishLength
	case "tool_use":
		return chat.FinishToolCalls
	case "":
		return chat.FinishOther
	default:
		return chat.FinishOther
	}
}

func (u *usage) toUsage() *chat.Usage {
	if u == nil {
		return nil
	}
	out := &chat.Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
	if u.InputTokens != nil && u.OutputTokens != nil {
		out.TotalTokens = swag.Uint32(*u.InputTokens + *u.OutputTokens)
	}
	return out
}

func (r *apiResponse) toResponse() (*chat.Response, error) {
	out := &chat.Response{ID: r.ID}
	for _, blk := range r.Content {
		switch blk.Type {
		case "text":
			out.Content = append(out.Content, chat.Text{Text: blk.Text})
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
				ID:            blk.ID,
				Name:          blk.Name,
				ArgumentsJSON: string(blk.Input),
			})
		}
	}
	reason := stopReason(r.StopReason)
	out.Metadata = chat.ResponseMetadata{
		FinishReason: &reason,
		Usage:        r.Usage.toUsage(),
		ProviderID:   swag.String("anthropic"),
	}
	return out, nil
}
