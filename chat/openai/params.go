package openai

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-openapi/swag"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/pkg/jsonx"
)

func buildParams(events []chat.Event, config chat.Config, stream bool) (openai.ChatCompletionNewParams, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, event := range events {
		switch ev := event.(type) {
		case chat.Message:
			messages = append(messages, messageParam(ev))
		case chat.Response:
			messages = append(messages, responseParam(ev))
		case chat.ToolResults:
			for _, result := range ev {
				messages = append(messages, openai.ToolMessage(result.ID, result.ResultJSON))
			}
		}
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(config.Model),
		N:        openai.Int(1),
	}
	if config.Temperature != nil {
		params.Temperature = openai.Float(*config.Temperature)
	}
	if config.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*config.MaxTokens))
	}
	if len(config.StopSequences) > 0 {
		params.Stop = openai.F[openai.ChatCompletionNewParamsStopUnion](
			openai.ChatCompletionNewParamsStopArray(config.StopSequences),
		)
	}
	if stream {
		params.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		})
	}

	if len(config.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(config.Tools))
		for i, def := range config.Tools {
			schema, err := jsonx.ToDynamicJSON(def.Parameters)
			if err != nil {
				return params, loom.Errorf(loom.InvalidRequest, "tool %s has an invalid schema: %v", def.Name, err)
			}
			fn := openai.FunctionDefinitionParam{
				Name:       openai.String(def.Name),
				Parameters: openai.F(shared.FunctionParameters(schema)),
			}
			if def.Description != "" {
				fn.Description = openai.String(def.Description)
			}
			tools[i] = openai.ChatCompletionToolParam{
				Type:     openai.F(openai.ChatCompletionToolTypeFunction),
				Function: openai.F(fn),
			}
		}
		params.Tools = openai.F(tools)
	}

	if config.ToolChoice != nil {
		switch choice := *config.ToolChoice; choice {
		case "auto", "none", "required":
			params.ToolChoice = openai.F[openai.ChatCompletionToolChoiceOptionUnionParam](
				openai.ChatCompletionToolChoiceOptionBehavior(choice),
			)
		default:
			params.ToolChoice = openai.F[openai.ChatCompletionToolChoiceOptionUnionParam](
				openai.ChatCompletionNamedToolChoiceParam{
					Type: openai.F(openai.ChatCompletionNamedToolChoiceTypeFunction),
					Function: openai.F(openai.ChatCompletionNamedToolChoiceFunctionParam{
						Name: openai.String(choice),
					}),
				},
			)
		}
	}
	return params, nil
}

func messageParam(msg chat.Message) openai.ChatCompletionMessageParamUnion {
	text := chat.TextContent(msg.Content)
	switch msg.Role {
	case chat.RoleSystem:
		return openai.SystemMessage(text)
	case chat.RoleAssistant:
		return openai.AssistantMessage(text)
	}

	hasImage := false
	for _, part := range msg.Content {
		if _, ok := part.(chat.Image); ok {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return openai.UserMessage(text)
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Content))
	for _, part := range msg.Content {
		switch p := part.(type) {
		case chat.Text:
			parts = append(parts, openai.TextPart(p.Text))
		case chat.Image:
			url := p.URL
			if url == "" {
				url = fmt.Sprintf("data:%s;base64,%s", p.MimeType, base64.StdEncoding.EncodeToString(p.Data))
			}
			image := openai.ChatCompletionContentPartImageImageURLParam{URL: openai.String(url)}
			if p.Detail != nil {
				image.Detail = openai.F(openai.ChatCompletionContentPartImageImageURLDetail(*p.Detail))
			}
			parts = append(parts, openai.ChatCompletionContentPartImageParam{
				Type:     openai.F(openai.ChatCompletionContentPartImageTypeImageURL),
				ImageURL: openai.F(image),
			})
		}
	}
	return openai.UserMessageParts(parts...)
}

func responseParam(resp chat.Response) openai.ChatCompletionMessageParamUnion {
	am := openai.ChatCompletionAssistantMessageParam{
		Role: openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
	}
	if text := chat.TextContent(resp.Content); text != "" {
		am.Content.Value = append(am.Content.Value, openai.TextPart(text))
	}
	if len(resp.ToolCalls) > 0 {
		calls := make([]openai.ChatCompletionMessageToolCallParam, len(resp.ToolCalls))
		for i, call := range resp.ToolCalls {
			calls[i] = openai.ChatCompletionMessageToolCallParam{
				ID:   openai.String(call.ID),
				Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
				Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      openai.String(call.Name),
					Arguments: openai.String(call.ArgumentsJSON),
				}),
			}
		}
		am.ToolCalls = openai.F(calls)
	}
	return am
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

func toResponse(completion *openai.ChatCompletion) (*chat.Response, error) {
	if len(completion.Choices) == 0 {
		return nil, loom.InternalErrorf("completion %s carries no choices", completion.ID)
	}
	choice := completion.Choices[0]
	out := &chat.Response{ID: completion.ID}
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
	reason := finishReason(string(choice.FinishReason))
	out.Metadata = chat.ResponseMetadata{
		FinishReason: &reason,
		ProviderID:   swag.String("openai"),
		Usage: &chat.Usage{
			InputTokens:  swag.Uint32(uint32(completion.Usage.PromptTokens)),
			OutputTokens: swag.Uint32(uint32(completion.Usage.CompletionTokens)),
			TotalTokens:  swag.Uint32(uint32(completion.Usage.TotalTokens)),
		},
	}
	return out, nil
}

// asError maps SDK failures onto the taxonomy, keeping the provider's
// response body when there is one.
func asError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return loom.ErrorFromResponse(apierr.StatusCode, apierr.JSON.RawJSON())
	}
	return loom.InternalErrorf("openai request failed: %v", err)
}
