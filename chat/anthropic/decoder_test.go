package anthropic

import (
	"testing"

	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

func scripted(chunks ...string) *decoder {
	data := make([]wire.Chunk, len(chunks))
	for i, c := range chunks {
		data[i] = wire.Chunk{Data: c}
	}
	return newDecoder(wire.NewScript(data...))
}

func decodeAll(t *testing.T, d *decoder) []chat.StreamEvent {
	t.Helper()
	stream := chat.NewProviderStream(d)
	var all []chat.StreamEvent
	for {
		events, err := stream.GetNext()
		require.NoError(t, err)
		if len(events) == 0 {
			return all
		}
		all = append(all, events...)
	}
}

func TestDecoder_TextThenToolCall(t *testing.T) {
	d := scripted(
		`{"type":"message_start","message":{"id":"msg_1"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"The answer is "}}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"t1","name":"calc"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"a\":"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"1}"}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"input_tokens":5,"output_tokens":7}}`,
		`{"type":"message_stop"}`,
	)

	events := decodeAll(t, d)
	require.Len(t, events, 3)

	text, ok := events[0].(chat.Delta)
	require.True(t, ok)
	assert.Equal(t, "The answer is ", chat.TextContent(text.Content))

	call, ok := events[1].(chat.Delta)
	require.True(t, ok)
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, chat.ToolCall{ID: "t1", Name: "calc", ArgumentsJSON: `{"a":1}`}, call.ToolCalls[0])

	finish, ok := events[2].(chat.Finish)
	require.True(t, ok)
	require.NotNil(t, finish.Metadata.FinishReason)
	assert.Equal(t, chat.FinishToolCalls, *finish.Metadata.FinishReason)
	require.NotNil(t, finish.Metadata.Usage)
	assert.Equal(t, uint32(5), swag.Uint32Value(finish.Metadata.Usage.InputTokens))
	assert.Equal(t, uint32(7), swag.Uint32Value(finish.Metadata.Usage.OutputTokens))
}

func TestDecoder_EmptyToolArguments(t *testing.T) {
	d := scripted(
		`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"t1","name":"ping"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_stop"}`,
	)

	events := decodeAll(t, d)
	require.Len(t, events, 2)
	call := events[0].(chat.Delta)
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, "", call.ToolCalls[0].ArgumentsJSON)
}

func TestDecoder_UnknownChunksChangeNothing(t *testing.T) {
	d := scripted(
		`{"type":"ping"}`,
		`{"type":"shiny_new_event","payload":{"x":1}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hi"}}`,
		`{"type":"message_stop"}`,
	)

	events := decodeAll(t, d)
	require.Len(t, events, 2)
	assert.Equal(t, "hi", chat.TextContent(events[0].(chat.Delta).Content))
}

func TestDecoder_TextBlockStopEmitsNothing(t *testing.T) {
	event, err := scripted().DecodeChunk(`{"type":"content_block_stop","index":0}`)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestDecoder_MissingTypeIsAnError(t *testing.T) {
	_, err := scripted().DecodeChunk(`{"index":0}`)
	require.Error(t, err)
}

func TestDecoder_ErrorEventFailsStream(t *testing.T) {
	_, err := scripted().DecodeChunk(`{"type":"error","error":{"message":"overloaded"}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}
