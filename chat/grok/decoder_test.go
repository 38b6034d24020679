package grok

import (
	"testing"

	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

func decodeAll(t *testing.T, chunks ...string) []chat.StreamEvent {
	t.Helper()
	data := make([]wire.Chunk, len(chunks))
	for i, c := range chunks {
		data[i] = wire.Chunk{Data: c}
	}
	stream := chat.NewProviderStream(newDecoder(wire.NewScript(data...)))
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

func TestDecoder_FinishReasonAndUsageAreMerged(t *testing.T) {
	events := decodeAll(t,
		`{"object":"chat.completion.chunk","choices":[{"delta":{"content":"Hello"}}]}`,
		`{"object":"chat.completion.chunk","choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`{"object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`,
		`[DONE]`,
	)

	require.Len(t, events, 2)
	assert.Equal(t, "Hello", chat.TextContent(events[0].(chat.Delta).Content))

	finish, ok := events[1].(chat.Finish)
	require.True(t, ok)
	require.NotNil(t, finish.Metadata.FinishReason, "finish_reason from the earlier chunk must survive")
	assert.Equal(t, chat.FinishStop, *finish.Metadata.FinishReason)
	require.NotNil(t, finish.Metadata.Usage)
	assert.Equal(t, uint32(4), swag.Uint32Value(finish.Metadata.Usage.InputTokens))
	assert.Equal(t, uint32(6), swag.Uint32Value(finish.Metadata.Usage.TotalTokens))
}

func TestDecoder_ToolCallDeltas(t *testing.T) {
	events := decodeAll(t,
		`{"object":"chat.completion.chunk","choices":[{"delta":{"tool_calls":[{"id":"t1","function":{"name":"calc","arguments":"{\"a\":1}"}}]},"finish_reason":"tool_calls"}]}`,
		`{"object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`,
	)

	require.Len(t, events, 2)
	delta := events[0].(chat.Delta)
	require.Len(t, delta.ToolCalls, 1)
	assert.Equal(t, chat.ToolCall{ID: "t1", Name: "calc", ArgumentsJSON: `{"a":1}`}, delta.ToolCalls[0])

	finish := events[1].(chat.Finish)
	require.NotNil(t, finish.Metadata.FinishReason)
	assert.Equal(t, chat.FinishToolCalls, *finish.Metadata.FinishReason)
}

func TestDecoder_ForeignObjectsAreIgnored(t *testing.T) {
	d := newDecoder(wire.NewScript())
	event, err := d.DecodeChunk(`{"object":"something.else"}`)
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestDecoder_EmptyDeltaEmitsNothing(t *testing.T) {
	d := newDecoder(wire.NewScript())
	event, err := d.DecodeChunk(`{"object":"chat.completion.chunk","choices":[{"delta":{}}]}`)
	require.NoError(t, err)
	assert.Nil(t, event)
}
