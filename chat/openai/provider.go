// Package openai adapts the OpenAI chat completions API through the
// official SDK. Raw chunk JSON from the SDK's stream is fed through
// the same decoder discipline as the hand-rolled SSE providers, so
// tool-call argument fragments assemble identically everywhere.
package openai

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/wire"
)

const apiKeyEnv = "OPENAI_API_KEY"

// Provider talks to the OpenAI chat completions API.
type Provider struct {
	client   *openai.Client
	checkEnv bool
}

// New creates a provider. Without explicit options the SDK reads
// OPENAI_API_KEY, and calls fail up front when it is unset.
func New(options ...option.RequestOption) *Provider {
	return &Provider{
		client:   openai.NewClient(options...),
		checkEnv: len(options) == 0,
	}
}

func (p *Provider) ensureKey() *loom.Error {
	if !p.checkEnv {
		return nil
	}
	if os.Getenv(apiKeyEnv) == "" {
		return loom.Errorf(loom.AuthenticationFailed, "missing config key: %s", apiKeyEnv)
	}
	return nil
}

// Send performs a one-shot completion.
func (p *Provider) Send(ctx context.Context, events []chat.Event, config chat.Config) (*chat.Response, error) {
	if cerr := p.ensureKey(); cerr != nil {
		return nil, cerr
	}
	params, err := buildParams(events, config, false)
	if err != nil {
		return nil, err
	}
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, asError(err)
	}
	return toResponse(completion)
}

// Stream opens a streaming completion. A pump goroutine moves raw
// chunk JSON from the SDK stream into a chunk source for the decoder.
func (p *Provider) Stream(ctx context.Context, events []chat.Event, config chat.Config) chat.Stream {
	if cerr := p.ensureKey(); cerr != nil {
		return chat.NewFailedStream(cerr)
	}
	params, err := buildParams(events, config, true)
	if err != nil {
		return chat.NewFailedStream(err)
	}

	strm := p.client.Chat.Completions.NewStreaming(ctx, params)
	source := wire.NewChanSource(16)
	source.OnClose(strm.Close)

	go func() {
		for strm.Next() {
			chunk := strm.Current()
			if !source.Emit(wire.Chunk{Data: chunk.JSON.RawJSON()}) {
				return
			}
		}
		if err := strm.Err(); err != nil && !errors.Is(err, io.EOF) {
			if !source.Fail(asError(err)) {
				return
			}
		}
		source.End()
	}()

	return chat.NewProviderStream(newDecoder(source))
}
