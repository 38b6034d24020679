package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

func TestSession_SendAppendsResponse(t *testing.T) {
	session := chat.NewSession(&scriptProvider{}, chat.SystemText("be brief"))
	session.AddMessage(chat.UserText("hi"))

	response, err := session.Send(context.Background(), chat.Config{Model: "test-model"})
	require.NoError(t, err)

	events := session.Events()
	require.Len(t, events, 3)
	assert.Equal(t, *response, events[2])
}

func TestSession_StreamFoldsDeltasIntoResponse(t *testing.T) {
	provider := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		return chat.NewProviderStream(newLineDecoder(wire.NewScript(
			data(
				`{"text":"The answer is "}`,
				`{"call":{"id":"t1","name":"calc","args":"{\"a\":1}"}}`,
				`{"done":true,"in":5,"out":7}`,
			)...,
		)))
	}}
	session := chat.NewSession(provider, chat.UserText("compute"))

	stream := session.Stream(context.Background(), chat.Config{Model: "test-model"})
	_, err := drain(t, stream)
	require.NoError(t, err)

	events := session.Events()
	require.Len(t, events, 2)
	response, ok := events[1].(chat.Response)
	require.True(t, ok)
	assert.Equal(t, "The answer is ", chat.TextContent(response.Content))
	require.Len(t, response.ToolCalls, 1)
	assert.Equal(t, "calc", response.ToolCalls[0].Name)
	require.NotNil(t, response.Metadata.FinishReason)
	assert.NotEmpty(t, response.ID)
}

func TestSession_ToolResultsJoinTranscript(t *testing.T) {
	session := chat.NewSession(&scriptProvider{}, chat.UserText("compute"))
	session.AddToolResults(chat.ToolResult{ID: "t1", Name: "calc", ResultJSON: `{"sum":2}`})

	events := session.Events()
	require.Len(t, events, 2)
	results, ok := events[1].(chat.ToolResults)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "calc", results[0].Name)
}

func TestSession_StreamErrorLeavesTranscriptUntouched(t *testing.T) {
	provider := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		return chat.NewProviderStream(newLineDecoder(wire.NewScript(data(`{"bad":true}`)...)))
	}}
	session := chat.NewSession(provider, chat.UserText("hi"))

	stream := session.Stream(context.Background(), chat.Config{Model: "test-model"})
	_, err := drain(t, stream)
	require.Error(t, err)
	assert.Len(t, session.Events(), 1)
}
