package ollama

import (
	json "github.com/goccy/go-json"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

// decoder turns NDJSON lines into canonical events. Message lines
// become deltas; the done:true line finalizes the stream with token
// counts and the daemon's timing counters as provider metadata. The
// final line's message is always empty, so the done marker maps to
// exactly one Finish.
type decoder struct {
	chat.StreamBase
}

func newDecoder(source wire.Source) *decoder {
	return &decoder{StreamBase: chat.NewStreamBase(source)}
}

func (d *decoder) DecodeChunk(raw string) (chat.StreamEvent, error) {
	var line chatLine
	if err := json.Unmarshal([]byte(raw), &line); err != nil {
		return nil, err
	}

	if line.Done {
		return chat.Finish{Metadata: line.metadata()}, nil
	}

	deltas := line.deltas()
	switch len(deltas) {
	case 0:
		return nil, nil
	case 1:
		return deltas[0], nil
	}
	// Content and tool calls on one line: merge into a single delta.
	merged := chat.Delta{}
	for _, event := range deltas {
		delta := event.(chat.Delta)
		merged.Content = append(merged.Content, delta.Content...)
		merged.ToolCalls = append(merged.ToolCalls, delta.ToolCalls...)
	}
	return merged, nil
}
