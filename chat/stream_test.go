package chat_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

// lineDecoder is a minimal decoder over a toy chunk grammar:
// {"text": s} yields a Delta, {"done": true} yields a Finish,
// {"noise": …} is ignored, {"bad": …} is a decode failure.
type lineDecoder struct {
	chat.StreamBase
}

func newLineDecoder(source wire.Source) *lineDecoder {
	return &lineDecoder{StreamBase: chat.NewStreamBase(source)}
}

func (d *lineDecoder) DecodeChunk(raw string) (chat.StreamEvent, error) {
	parsed := gjson.Parse(raw)
	switch {
	case parsed.Get("text").Exists():
		return chat.Delta{Content: []chat.ContentPart{chat.Text{Text: parsed.Get("text").String()}}}, nil
	case parsed.Get("call").Exists():
		call := parsed.Get("call")
		return chat.Delta{ToolCalls: []chat.ToolCall{{
			ID:            call.Get("id").String(),
			Name:          call.Get("name").String(),
			ArgumentsJSON: call.Get("args").String(),
		}}}, nil
	case parsed.Get("done").Bool():
		reason := chat.FinishStop
		usage := &chat.Usage{
			InputTokens:  swag.Uint32(uint32(parsed.Get("in").Uint())),
			OutputTokens: swag.Uint32(uint32(parsed.Get("out").Uint())),
		}
		return chat.Finish{Metadata: chat.ResponseMetadata{FinishReason: &reason, Usage: usage}}, nil
	case parsed.Get("noise").Exists():
		return nil, nil
	case parsed.Get("bad").Exists():
		return nil, fmt.Errorf("unparseable chunk")
	}
	return nil, nil
}

func data(chunks ...string) []wire.Chunk {
	out := make([]wire.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = wire.Chunk{Data: c}
	}
	return out
}

// scriptProvider replays one canned chunk script per Stream call and
// records the transcript it was called with.
type scriptProvider struct {
	scripts [][]wire.Chunk
	calls   [][]chat.Event
}

func (p *scriptProvider) Send(ctx context.Context, events []chat.Event, config chat.Config) (*chat.Response, error) {
	return &chat.Response{
		ID:      "resp-1",
		Content: []chat.ContentPart{chat.Text{Text: "canned"}},
	}, nil
}

func (p *scriptProvider) Stream(ctx context.Context, events []chat.Event, config chat.Config) chat.Stream {
	call := len(p.calls)
	p.calls = append(p.calls, events)
	if call >= len(p.scripts) {
		return chat.NewFailedStream(loom.InternalErrorf("no script for call %d", call))
	}
	return chat.NewProviderStream(newLineDecoder(wire.NewScript(p.scripts[call]...)))
}

func collectText(events []chat.StreamEvent) string {
	var out string
	for _, event := range events {
		if delta, ok := event.(chat.Delta); ok {
			out += chat.TextContent(delta.Content)
		}
	}
	return out
}

func drain(t *testing.T, stream chat.Stream) ([]chat.StreamEvent, error) {
	t.Helper()
	var all []chat.StreamEvent
	for {
		events, err := stream.GetNext()
		if err != nil {
			return all, err
		}
		if len(events) == 0 {
			return all, nil
		}
		all = append(all, events...)
	}
}

func TestProviderStream_DeliversDeltasThenFinish(t *testing.T) {
	stream := chat.NewProviderStream(newLineDecoder(wire.NewScript(
		data(`{"text":"Hello"}`, `{"text":", world"}`, `{"done":true,"in":3,"out":5}`)...,
	)))

	events, err := drain(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Hello, world", collectText(events))

	finish, ok := events[2].(chat.Finish)
	require.True(t, ok)
	require.NotNil(t, finish.Metadata.FinishReason)
	assert.Equal(t, chat.FinishStop, *finish.Metadata.FinishReason)
	require.NotNil(t, finish.Metadata.Usage)
	assert.Equal(t, uint32(3), swag.Uint32Value(finish.Metadata.Usage.InputTokens))
	assert.Equal(t, uint32(5), swag.Uint32Value(finish.Metadata.Usage.OutputTokens))
}

func TestProviderStream_FinishedStaysFinished(t *testing.T) {
	stream := chat.NewProviderStream(newLineDecoder(wire.NewScript(
		data(`{"text":"a"}`, `{"done":true}`)...,
	)))

	_, err := drain(t, stream)
	require.NoError(t, err)

	for range 3 {
		events, ready, err := stream.PollNext()
		require.NoError(t, err)
		assert.True(t, ready)
		assert.Empty(t, events)
	}
}

func TestProviderStream_UnknownChunksAreIgnored(t *testing.T) {
	stream := chat.NewProviderStream(newLineDecoder(wire.NewScript(
		data(`{"noise":1}`, `{"text":"x"}`, `{"noise":2}`, `[DONE]`, `{"done":true}`)...,
	)))

	events, err := drain(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "x", collectText(events))
}

func TestProviderStream_DecodeErrorIsInternalAndFinal(t *testing.T) {
	stream := chat.NewProviderStream(newLineDecoder(wire.NewScript(
		data(`{"text":"x"}`, `{"bad":true}`, `{"text":"never"}`)...,
	)))

	events, ready, err := stream.PollNext()
	require.NoError(t, err, "decoded prefix is delivered before the failure")
	assert.True(t, ready)
	assert.Equal(t, "x", collectText(events))

	_, _, err = stream.PollNext()
	require.Error(t, err)
	assert.Equal(t, loom.InternalError, loom.CodeOf(err))

	// The failure is sticky.
	_, ready, err = stream.PollNext()
	assert.True(t, ready)
	require.Error(t, err)
	assert.Equal(t, loom.InternalError, loom.CodeOf(err))
	assert.True(t, stream.Subscribe().IsReady())
}

func TestProviderStream_TransportFailureEndsStream(t *testing.T) {
	boom := errors.New("connection reset")
	stream := chat.NewProviderStream(newLineDecoder(wire.NewScript(
		wire.Chunk{Data: `{"text":"x"}`}, wire.Chunk{Err: boom},
	)))

	events, ready, err := stream.PollNext()
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, "x", collectText(events))

	_, _, err = stream.PollNext()
	require.Error(t, err)
}

func TestProviderStream_PendingThenReady(t *testing.T) {
	source := wire.NewChanSource(4)
	stream := chat.NewProviderStream(newLineDecoder(source))

	_, ready, err := stream.PollNext()
	require.NoError(t, err)
	assert.False(t, ready, "nothing produced yet")

	require.True(t, source.Emit(wire.Chunk{Data: `{"text":"hi"}`}))
	stream.Subscribe().Block()

	events, ready, err := stream.PollNext()
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, "hi", collectText(events))

	source.End()
	events, ready, err = stream.PollNext()
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Empty(t, events)
}

func TestNewFailedStream(t *testing.T) {
	stream := chat.NewFailedStream(loom.Errorf(loom.AuthenticationFailed, "missing key"))

	_, ready, err := stream.PollNext()
	assert.True(t, ready)
	require.Error(t, err)
	assert.Equal(t, loom.AuthenticationFailed, loom.CodeOf(err))
	assert.True(t, stream.Subscribe().IsReady())
	assert.NoError(t, stream.Close())
}
