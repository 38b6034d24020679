package openai

import (
	"github.com/go-openapi/swag"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

// fragment accumulates one tool call's arguments across chunks. The
// first chunk for an index carries the id and name; later chunks
// append argument text only.
type fragment struct {
	id   string
	name string
	args string
}

// decoder normalizes chat.completion.chunk JSON. Tool-call fragments
// are keyed by index and flushed when the choice reports its
// finish_reason; the terminal usage-only chunk becomes the Finish.
type decoder struct {
	chat.StreamBase
	fragments    *orderedmap.OrderedMap[int64, *fragment]
	finishReason *chat.FinishReason
}

func newDecoder(source wire.Source) *decoder {
	return &decoder{
		StreamBase: chat.NewStreamBase(source),
		fragments:  orderedmap.New[int64, *fragment](),
	}
}

func (d *decoder) DecodeChunk(raw string) (chat.StreamEvent, error) {
	parsed := gjson.Parse(raw)
	if parsed.Get("object").String() != "chat.completion.chunk" {
		return nil, nil
	}

	if choices := parsed.Get("choices"); len(choices.Array()) > 0 {
		choice := choices.Array()[0]
		var delta chat.Delta

		if text := choice.Get("delta.content"); text.String() != "" {
			delta.Content = []chat.ContentPart{chat.Text{Text: text.String()}}
		}
		for _, tc := range choice.Get("delta.tool_calls").Array() {
			index := tc.Get("index").Int()
			frag, ok := d.fragments.Get(index)
			if !ok {
				frag = &fragment{}
				d.fragments.Set(index, frag)
			}
			if id := tc.Get("id"); id.Exists() {
				frag.id = id.String()
			}
			if name := tc.Get("function.name"); name.Exists() {
				frag.name = name.String()
			}
			frag.args += tc.Get("function.arguments").String()
		}

		if reason := choice.Get("finish_reason"); reason.Exists() && reason.String() != "" {
			mapped := finishReason(reason.String())
			d.finishReason = &mapped
			delta.ToolCalls = append(delta.ToolCalls, d.flushFragments()...)
		}

		if len(delta.Content) == 0 && len(delta.ToolCalls) == 0 {
			return nil, nil
		}
		return delta, nil
	}

	if u := parsed.Get("usage"); u.Exists() && u.IsObject() {
		return chat.Finish{Metadata: chat.ResponseMetadata{
			FinishReason: d.finishReason,
			ProviderID:   swag.String("openai"),
			Usage: &chat.Usage{
				InputTokens:  swag.Uint32(uint32(u.Get("prompt_tokens").Uint())),
				OutputTokens: swag.Uint32(uint32(u.Get("completion_tokens").Uint())),
				TotalTokens:  swag.Uint32(uint32(u.Get("total_tokens").Uint())),
			},
		}}, nil
	}

	return nil, nil
}

// flushFragments drains the accumulators in arrival order.
func (d *decoder) flushFragments() []chat.ToolCall {
	if d.fragments.Len() == 0 {
		return nil
	}
	calls := make([]chat.ToolCall, 0, d.fragments.Len())
	for pair := d.fragments.Oldest(); pair != nil; pair = pair.Next() {
		calls = append(calls, chat.ToolCall{
			ID:            pair.Value.id,
			Name:          pair.Value.name,
			ArgumentsJSON: pair.Value.args,
		})
	}
	d.fragments = orderedmap.New[int64, *fragment]()
	return calls
}
