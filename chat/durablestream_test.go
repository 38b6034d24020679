package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/oplog/memlog"
	"github.com/casualjim/loom/wire"
)

// fakeProvider hands out streams from a callback and records every
// transcript it is asked to stream.
type fakeProvider struct {
	streamFn func(events []chat.Event) chat.Stream
	calls    [][]chat.Event
}

func (p *fakeProvider) Send(ctx context.Context, events []chat.Event, config chat.Config) (*chat.Response, error) {
	return nil, loom.Unsupportedf("send not scripted")
}

func (p *fakeProvider) Stream(ctx context.Context, events []chat.Event, config chat.Config) chat.Stream {
	p.calls = append(p.calls, events)
	return p.streamFn(events)
}

func askWeather() []chat.Event {
	return []chat.Event{chat.UserText("What is the weather like?")}
}

func TestDurableStream_LiveRecordsStartAndPolls(t *testing.T) {
	host := memlog.New()
	provider := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		return chat.NewProviderStream(newLineDecoder(wire.NewScript(
			data(`{"text":"Hello"}`, `{"done":true,"in":2,"out":4}`)...,
		)))
	}}

	stream := chat.NewDurable(host, provider).Stream(context.Background(), askWeather(), chat.Config{Model: "test-model"})
	events, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", collectText(events))

	entries := host.Log().Entries()
	require.GreaterOrEqual(t, len(entries), 2)
	assert.Equal(t, "stream", entries[0].Name)
	assert.Equal(t, "loom_chat", entries[0].Namespace)
	for _, entry := range entries[1:] {
		assert.Equal(t, "stream_poll_next", entry.Name)
	}
}

func TestDurableStream_ReplayReproducesWithoutProviderTraffic(t *testing.T) {
	host := memlog.New()
	live := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		return chat.NewProviderStream(newLineDecoder(wire.NewScript(
			data(`{"text":"Hello, "}`, `{"text":"world"}`, `{"call":{"id":"t1","name":"calc","args":"{\"a\":1}"}}`, `{"done":true,"in":5,"out":7}`)...,
		)))
	}}

	liveStream := chat.NewDurable(host, live).Stream(context.Background(), askWeather(), chat.Config{Model: "test-model"})
	liveEvents, err := drain(t, liveStream)
	require.NoError(t, err)

	replayProvider := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		t.Fatal("provider must not be invoked during replay")
		return nil
	}}
	replayStream := chat.NewDurable(memlog.Attach(host.Log()), replayProvider).Stream(context.Background(), askWeather(), chat.Config{Model: "test-model"})
	replayEvents, err := drain(t, replayStream)
	require.NoError(t, err)

	assert.Empty(t, replayProvider.calls)
	require.Equal(t, len(liveEvents), len(replayEvents))
	assert.Equal(t, collectText(liveEvents), collectText(replayEvents))

	liveFinish, ok := liveEvents[len(liveEvents)-1].(chat.Finish)
	require.True(t, ok)
	replayFinish, ok := replayEvents[len(replayEvents)-1].(chat.Finish)
	require.True(t, ok)
	assert.Equal(t, liveFinish.Metadata, replayFinish.Metadata)

	var liveCalls, replayCalls []chat.ToolCall
	for _, ev := range liveEvents {
		if d, ok := ev.(chat.Delta); ok {
			liveCalls = append(liveCalls, d.ToolCalls...)
		}
	}
	for _, ev := range replayEvents {
		if d, ok := ev.(chat.Delta); ok {
			replayCalls = append(replayCalls, d.ToolCalls...)
		}
	}
	assert.Equal(t, liveCalls, replayCalls)
}

func TestDurableStream_ResumesInterruptedStreamWithRetryPrompt(t *testing.T) {
	host := memlog.New()
	source := wire.NewChanSource(4)
	live := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		return chat.NewProviderStream(newLineDecoder(source))
	}}

	original := askWeather()
	stream := chat.NewDurable(host, live).Stream(context.Background(), original, chat.Config{Model: "test-model"})

	require.True(t, source.Emit(wire.Chunk{Data: `{"text":"Hel"}`}))
	events, ready, err := stream.PollNext()
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, "Hel", collectText(events))

	require.True(t, source.Emit(wire.Chunk{Data: `{"text":"lo "}`}))
	events, ready, err = stream.PollNext()
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, "lo ", collectText(events))

	// The workflow crashes here: the stream is abandoned mid-flight and
	// the session is rehydrated from the recorded log.
	continuation := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		return chat.NewProviderStream(newLineDecoder(wire.NewScript(
			data(`{"text":"world"}`, `{"done":true}`)...,
		)))
	}}
	resumed := chat.NewDurable(memlog.Attach(host.Log()), continuation).Stream(context.Background(), original, chat.Config{Model: "test-model"})
	all, err := drain(t, resumed)
	require.NoError(t, err)

	// Callers observe one seamless stream.
	assert.Equal(t, "Hello world", collectText(all))
	_, finished := all[len(all)-1].(chat.Finish)
	assert.True(t, finished)

	// The provider was re-invoked exactly once, with a retry prompt that
	// echoes the original question and the prefix already delivered.
	require.Len(t, continuation.calls, 1)
	prompt := continuation.calls[0]
	require.GreaterOrEqual(t, len(prompt), 4)

	first, ok := prompt[0].(chat.Message)
	require.True(t, ok)
	assert.Equal(t, chat.RoleSystem, first.Role)
	assert.Contains(t, chat.TextContent(first.Content), "interrupted")

	assert.Contains(t, prompt, original[0])

	last, ok := prompt[len(prompt)-1].(chat.Message)
	require.True(t, ok)
	assert.Equal(t, chat.RoleUser, last.Role)
	assert.Contains(t, chat.TextContent(last.Content), "Hello ")
}

func TestDurableStream_FinishedStopsWritingEntries(t *testing.T) {
	host := memlog.New()
	provider := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		return chat.NewProviderStream(newLineDecoder(wire.NewScript(data(`{"done":true}`)...)))
	}}

	stream := chat.NewDurable(host, provider).Stream(context.Background(), askWeather(), chat.Config{Model: "test-model"})
	_, err := drain(t, stream)
	require.NoError(t, err)

	recorded := host.Log().Len()
	for range 3 {
		events, ready, err := stream.PollNext()
		require.NoError(t, err)
		assert.True(t, ready)
		assert.Empty(t, events)
	}
	assert.Equal(t, recorded, host.Log().Len(), "polls after finish append nothing")
}

func TestDurableStream_MidStreamFailureResumesOnRehydration(t *testing.T) {
	host := memlog.New()
	provider := &fakeProvider{streamFn: func([]chat.Event) chat.Stream {
		return chat.NewProviderStream(newLineDecoder(wire.NewScript(
			wire.Chunk{Data: `{"text":"Once upon "}`},
			wire.Chunk{Err: loom.Errorf(loom.RateLimitExceeded, "slow down")},
		)))
	}}

	stream := chat.NewDurable(host, provider).Stream(context.Background(), askWeather(), chat.Config{Model: "test-model"})

	events, ready, err := stream.PollNext()
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, "Once upon ", collectText(events))

	_, _, err = stream.PollNext()
	require.Error(t, err)
	assert.Equal(t, loom.RateLimitExceeded, loom.CodeOf(err))

	// The failed poll is not in the log; a rehydrated session picks up
	// from the delivered prefix via the retry prompt.
	continuation := &fakeProvider{streamFn: func(events []chat.Event) chat.Stream {
		last, ok := events[len(events)-1].(chat.Message)
		require.True(t, ok)
		text := chat.TextContent(last.Content)
		require.Contains(t, text, "Here is the partial response that was successfully received:")
		require.Contains(t, text, "Once upon ")
		return chat.NewProviderStream(newLineDecoder(wire.NewScript(
			data(`{"text":"a time."}`, `{"done":true}`)...,
		)))
	}}
	resumed := chat.NewDurable(memlog.Attach(host.Log()), continuation).Stream(context.Background(), askWeather(), chat.Config{Model: "test-model"})
	all, err := drain(t, resumed)
	require.NoError(t, err)

	assert.Equal(t, "Once upon a time.", collectText(all))
	require.Len(t, continuation.calls, 1)
}

func TestDurableSend_ReplaysResponse(t *testing.T) {
	host := memlog.New()
	first, err := chat.NewDurable(host, &scriptProvider{}).Send(context.Background(), askWeather(), chat.Config{Model: "test-model"})
	require.NoError(t, err)

	second, err := chat.NewDurable(memlog.Attach(host.Log()), nil).Send(context.Background(), askWeather(), chat.Config{Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
