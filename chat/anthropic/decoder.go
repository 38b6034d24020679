package anthropic

import (
	"fmt"

	"github.com/go-openapi/swag"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

// fragment is a tool call being assembled across input_json_delta
// chunks. The accumulator may legitimately stay empty.
type fragment struct {
	id   string
	name string
	json string
}

// decoder is the Messages API streaming state machine. Tool-call
// fragments are keyed by content block index and emitted on
// content_block_stop; stop_reason and usage arrive on message_delta and
// are merged into the Finish produced by message_stop.
type decoder struct {
	chat.StreamBase
	fragments *orderedmap.OrderedMap[int64, *fragment]
	metadata  chat.ResponseMetadata
}

func newDecoder(source wire.Source) *decoder {
	return &decoder{
		StreamBase: chat.NewStreamBase(source),
		fragments:  orderedmap.New[int64, *fragment](),
		metadata:   chat.ResponseMetadata{ProviderID: swag.String("anthropic")},
	}
}

func (d *decoder) DecodeChunk(raw string) (chat.StreamEvent, error) {
	parsed := gjson.Parse(raw)
	typ := parsed.Get("type")
	if !typ.Exists() {
		return nil, fmt.Errorf("chunk carries no type: %s", raw)
	}

	switch typ.String() {
	case "content_block_start":
		blk := parsed.Get("content_block")
		if blk.Get("type").String() == "tool_use" {
			d.fragments.Set(parsed.Get("index").Int(), &fragment{
				id:   blk.Get("id").String(),
				name: blk.Get("name").String(),
			})
		}
		return nil, nil

	case "content_block_delta":
		delta := parsed.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			return chat.Delta{Content: []chat.ContentPart{chat.Text{Text: delta.Get("text").String()}}}, nil
		case "input_json_delta":
			if frag, ok := d.fragments.Get(parsed.Get("index").Int()); ok {
				frag.json += delta.Get("partial_json").String()
			}
			return nil, nil
		}
		return nil, nil

	case "content_block_stop":
		index := parsed.Get("index").Int()
		frag, ok := d.fragments.Get(index)
		if !ok {
			return nil, nil
		}
		d.fragments.Delete(index)
		return chat.Delta{ToolCalls: []chat.ToolCall{{
			ID:            frag.id,
			Name:          frag.name,
			ArgumentsJSON: frag.json,
		}}}, nil

	case "message_delta":
		if reason := parsed.Get("delta.stop_reason"); reason.Exists() {
			mapped := stopReason(reason.String())
			d.metadata.FinishReason = &mapped
		}
		if u := parsed.Get("usage"); u.Exists() {
			d.mergeUsage(u)
		}
		return nil, nil

	case "message_stop":
		return chat.Finish{Metadata: d.metadata}, nil

	case "error":
		return nil, fmt.Errorf("provider stream error: %s", parsed.Get("error.message").String())

	default:
		// ping, message_start and anything newer carry nothing we report.
		return nil, nil
	}
}

func (d *decoder) mergeUsage(u gjson.Result) {
	if d.metadata.Usage == nil {
		d.metadata.Usage = &chat.Usage{}
	}
	if v := u.Get("input_tokens"); v.Exists() {
		d.metadata.Usage.InputTokens = swag.Uint32(uint32(v.Uint()))
	}
	if v := u.Get("output_tokens"); v.Exists() {
		d.metadata.Usage.OutputTokens = swag.Uint32(uint32(v.Uint()))
	}
}
