package grok

import (
	"encoding/base64"
	"fmt"

	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/pkg/jsonx"
)

type request struct {
	Model         string         `json:"model"`
	Messages      []message      `json:"messages"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     *uint32        `json:"max_tokens,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Tools         []tool         `json:"tools,omitempty"`
	ToolChoice    any            `json:"tool_choice,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type message struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
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
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type usage struct {
	PromptTokens     *uint32 `json:"prompt_tokens,omitempty"`
	CompletionTokens *uint32 `json:"completion_tokens,omitempty"`
	TotalTokens      *uint32 `json:"total_tokens,omitempty"`
}

type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

func buildRequest(events []chat.Event, config chat.Config, stream bool) (*request, error) {
	req := &request{
		Model:       config.Model,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
		Stop:        config.StopSequences,
		Stream:      stream,
	}
	if stream {
		// Without this the terminal usage chunk never arrives.
		req.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	for _, event := range events {
		switch ev := event.(type) {
		case chat.Message:
			req.Messages = append(req.Messages, message{
				Role:    string(ev.Role),
				Name:    swag.StringValue(ev.Name),
				Content: messageContent(ev.Content),
			})
		case chat.Response:
			msg := message{Role: "assistant"}
			if text := chat.TextContent(ev.Content); text != "" {
				msg.Content = text
			}
			for _, call := range ev.ToolCalls {
				tc := toolCall{ID: call.ID, Type: "function"}
				tc.Function.Name = call.Name
				tc.Function.Arguments = call.ArgumentsJSON
				msg.ToolCalls = append(msg.ToolCalls, tc)
			}
			req.Messages = append(req.Messages, msg)
		case chat.ToolResults:
			for _, result := range ev {
				req.Messages = append(req.Messages, message{
					Role:       "tool",
					Content:    result.ResultJSON,
					ToolCallID: result.ID,
				})
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
	if config.ToolChoice != nil {
		switch choice := *config.ToolChoice; choice {
		case "auto", "none", "required":
			req.ToolChoice = choice
		default:
			req.ToolChoice = map[string]any{
				"type":     "function",
				"function": map[string]string{"name": choice},
			}
		}
	}
	return req, nil
}

// messageContent keeps the plain-string shape for text-only messages
// and switches to the parts array only when an image is present.
func messageContent(parts []chat.ContentPart) any {
	hasImage := false
	for _, part := range parts {
		if _, ok := part.(chat.Image); ok {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return chat.TextContent(parts)
	}

	out := make([]contentPart, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case chat.Text:
			out = append(out, contentPart{Type: "text", Text: p.Text})
		case chat.Image:
			url := p.URL
			if url == "" {
				url = fmt.Sprintf("data:%s;base64,%s", p.MimeType, base64.StdEncoding.EncodeToString(p.Data))
			}
			detail := ""
			if p.Detail != nil {
				detail = string(*p.Detail)
			}
			out = append(out, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url, Detail: detail}})
		}
	}
	return out
}

func finishReason(reason string) chat.FinishReason {
	switch reason {
	case "stop":
		return chat.FinishStop
	case "length":
		return chat.FinishLength
	case "tool_calls", "function_call":
		return chat.FinishToolCalls
	case "content_filter":
		return chat.FinishContentFilter
	default:
		return chat.FinishOther
	}
}

func (u *usage) toUsage() *chat.Usage {
	if u == nil {
		return nil
	}
	return &chat.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}

func (r *apiResponse) toResponse() (*chat.Response, error) {
	if len(r.Choices) == 0 {
		return nil, loom.InternalErrorf("response carries no choices: %s", mustJSON(r))
	}
	choice := r.Choices[0]
	out := &chat.Response{ID: r.ID}
	if choice.Message.Content != "" {
		out.Content = []chat.ContentPart{chat.Text{Text: choice.Message.Content}}
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:            tc.ID,
			Name:          tc.Function.Name,
			ArgumentsJSON: tc.Function.Arguments,
		})
	}
	reason := finishReason(choice.FinishReason)
	out.Metadata = chat.ResponseMetadata{
		FinishReason: &reason,
		Usage:        r.Usage.toUsage(),
		ProviderID:   swag.String("grok"),
	}
	return out, nil
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
