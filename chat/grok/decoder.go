package grok

import (
	"fmt"

	"github.com/go-openapi/swag"
	"github.com/tidwall/gjson"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

// decoder normalizes chat.completion.chunk events. The provider splits
// finalization in two: the finish_reason rides the last choice-bearing
// chunk, the usage arrives alone in a terminal chunk with an empty
// choices array. Both halves are folded into a single Finish.
type decoder struct {
	chat.StreamBase
	finishReason *chat.FinishReason
}

func newDecoder(source wire.Source) *decoder {
	return &decoder{StreamBase: chat.NewStreamBase(source)}
}

func (d *decoder) DecodeChunk(raw string) (chat.StreamEvent, error) {
	parsed := gjson.Parse(raw)
	if parsed.Get("object").String() != "chat.completion.chunk" {
		return nil, nil
	}

	if choices := parsed.Get("choices"); choices.Exists() && len(choices.Array()) > 0 {
		choice := choices.Array()[0]
		if reason := choice.Get("finish_reason"); reason.Exists() && reason.String() != "" {
			mapped := finishReason(reason.String())
			d.finishReason = &mapped
		}

		var delta chat.Delta
		if text := choice.Get("delta.content"); text.Exists() && text.String() != "" {
			delta.Content = []chat.ContentPart{chat.Text{Text: text.String()}}
		}
		for _, tc := range choice.Get("delta.tool_calls").Array() {
			delta.ToolCalls = append(delta.ToolCalls, chat.ToolCall{
				ID:            tc.Get("id").String(),
				Name:          tc.Get("function.name").String(),
				ArgumentsJSON: tc.Get("function.arguments").String(),
			})
		}
		if len(delta.Content) == 0 && len(delta.ToolCalls) == 0 {
			return nil, nil
		}
		return delta, nil
	}

	if u := parsed.Get("usage"); u.Exists() && u.IsObject() {
		metadata := chat.ResponseMetadata{
			FinishReason: d.finishReason,
			ProviderID:   swag.String("grok"),
			Usage: &chat.Usage{
				InputTokens:  optUint32(u.Get("prompt_tokens")),
				OutputTokens: optUint32(u.Get("completion_tokens")),
				TotalTokens:  optUint32(u.Get("total_tokens")),
			},
		}
		return chat.Finish{Metadata: metadata}, nil
	}

	return nil, fmt.Errorf("chunk carries neither choices nor usage: %s", raw)
}

func optUint32(v gjson.Result) *uint32 {
	if !v.Exists() {
		return nil
	}
	return swag.Uint32(uint32(v.Uint()))
}
