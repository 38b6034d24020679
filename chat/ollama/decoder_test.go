package ollama

import (
	"testing"

	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

func decodeAll(t *testing.T, lines ...string) []chat.StreamEvent {
	t.Helper()
	data := make([]wire.Chunk, len(lines))
	for i, l := range lines {
		data[i] = wire.Chunk{Data: l}
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

func TestDecoder_DoneLineFinalizes(t *testing.T) {
	events := decodeAll(t,
		`{"model":"llama3","created_at":"2024-05-01T10:00:00Z","message":{"role":"assistant","content":"Hi"},"done":false}`,
		`{"model":"llama3","created_at":"2024-05-01T10:00:01Z","message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":10,"eval_count":20,"total_duration":1}`,
	)

	require.Len(t, events, 2)
	assert.Equal(t, "Hi", chat.TextContent(events[0].(chat.Delta).Content))

	finish, ok := events[1].(chat.Finish)
	require.True(t, ok)
	require.NotNil(t, finish.Metadata.Usage)
	assert.Equal(t, uint32(10), swag.Uint32Value(finish.Metadata.Usage.InputTokens))
	assert.Equal(t, uint32(20), swag.Uint32Value(finish.Metadata.Usage.OutputTokens), "output tokens come from eval_count")
	assert.Equal(t, uint32(30), swag.Uint32Value(finish.Metadata.Usage.TotalTokens))

	require.NotNil(t, finish.Metadata.ProviderMetadataJSON)
	assert.Equal(t, int64(1), gjson.Get(*finish.Metadata.ProviderMetadataJSON, "total_duration").Int())

	require.NotNil(t, finish.Metadata.FinishReason)
	assert.Equal(t, chat.FinishStop, *finish.Metadata.FinishReason)
	require.NotNil(t, finish.Metadata.ProviderID)
	assert.Equal(t, "ollama", *finish.Metadata.ProviderID)
	assert.NotNil(t, finish.Metadata.Timestamp)
}

func TestDecoder_AbsentCountersDefaultToZero(t *testing.T) {
	events := decodeAll(t, `{"done":true}`)

	require.Len(t, events, 1)
	finish := events[0].(chat.Finish)
	require.NotNil(t, finish.Metadata.Usage)
	assert.Equal(t, uint32(0), swag.Uint32Value(finish.Metadata.Usage.InputTokens))
	assert.Equal(t, uint32(0), swag.Uint32Value(finish.Metadata.Usage.OutputTokens))
	assert.Nil(t, finish.Metadata.ProviderMetadataJSON, "no counters, no metadata blob")
}

func TestDecoder_ToolCallLine(t *testing.T) {
	events := decodeAll(t,
		`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"calc","arguments":{"a":1}}}]},"done":false}`,
		`{"done":true}`,
	)

	require.Len(t, events, 2)
	delta := events[0].(chat.Delta)
	require.Len(t, delta.ToolCalls, 1)
	assert.Equal(t, "calc", delta.ToolCalls[0].Name)
	assert.JSONEq(t, `{"a":1}`, delta.ToolCalls[0].ArgumentsJSON)
	assert.NotEmpty(t, delta.ToolCalls[0].ID)
}

func TestDecoder_MalformedLineFailsStream(t *testing.T) {
	d := newDecoder(wire.NewScript())
	_, err := d.DecodeChunk(`{not json`)
	require.Error(t, err)
}
