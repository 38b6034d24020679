// Package lorem is an offline chat provider generating lorem ipsum.
// It needs no credentials and exists for examples, development and
// tests that want a real Stream without network access. Models must be
// named "lorem-*"; anything else is rejected the way a remote provider
// would reject an unknown model.
package lorem

import (
	"context"
	"strings"

	loremgen "github.com/bozaro/golorem"
	"github.com/go-openapi/swag"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/pkg/uuidx"
	"github.com/casualjim/loom/wire"
)

const modelPrefix = "lorem-"

// Provider generates placeholder text.
type Provider struct {
	generator *loremgen.Lorem
	// Sentences per response.
	Sentences int
}

// New creates a provider emitting three sentences per completion.
func New() *Provider {
	return &Provider{generator: loremgen.New(), Sentences: 3}
}

func (p *Provider) checkModel(model string) *loom.Error {
	if !strings.HasPrefix(model, modelPrefix) {
		return loom.Errorf(loom.ModelNotFound, "model %q is not served here, expected %s*", model, modelPrefix)
	}
	return nil
}

func (p *Provider) generate() string {
	sentences := make([]string, p.Sentences)
	for i := range sentences {
		sentences[i] = p.generator.Sentence(5, 12)
	}
	return strings.Join(sentences, " ")
}

func promptWords(events []chat.Event) int {
	words := 0
	for _, event := range events {
		if msg, ok := event.(chat.Message); ok {
			words += len(strings.Fields(chat.TextContent(msg.Content)))
		}
	}
	return words
}

func (p *Provider) metadata(events []chat.Event, text string) chat.ResponseMetadata {
	reason := chat.FinishStop
	input := uint32(promptWords(events))
	output := uint32(len(strings.Fields(text)))
	return chat.ResponseMetadata{
		FinishReason: &reason,
		ProviderID:   swag.String("lorem"),
		Usage: &chat.Usage{
			InputTokens:  swag.Uint32(input),
			OutputTokens: swag.Uint32(output),
			TotalTokens:  swag.Uint32(input + output),
		},
	}
}

// Send produces a complete response in one call.
func (p *Provider) Send(ctx context.Context, events []chat.Event, config chat.Config) (*chat.Response, error) {
	if err := p.checkModel(config.Model); err != nil {
		return nil, err
	}
	text := p.generate()
	return &chat.Response{
		ID:       uuidx.NewString(),
		Content:  []chat.ContentPart{chat.Text{Text: text}},
		Metadata: p.metadata(events, text),
	}, nil
}

// Stream delivers the same text word by word.
func (p *Provider) Stream(ctx context.Context, events []chat.Event, config chat.Config) chat.Stream {
	if err := p.checkModel(config.Model); err != nil {
		return chat.NewFailedStream(err)
	}
	text := p.generate()
	words := strings.SplitAfter(text, " ")
	chunks := make([]wire.Chunk, 0, len(words)+1)
	for _, word := range words {
		chunks = append(chunks, wire.Chunk{Data: word})
	}
	chunks = append(chunks, wire.Chunk{Data: endOfText})
	return chat.NewProviderStream(&decoder{
		StreamBase: chat.NewStreamBase(wire.NewScript(chunks...)),
		metadata:   p.metadata(events, text),
	})
}

// endOfText terminates the scripted stream; it cannot collide with
// generated text, which is plain ASCII words.
const endOfText = "\x04"

// decoder treats every chunk as literal text until the terminator,
// which carries the precomputed finish metadata.
type decoder struct {
	chat.StreamBase
	metadata chat.ResponseMetadata
}

func (d *decoder) DecodeChunk(raw string) (chat.StreamEvent, error) {
	if raw == endOfText {
		return chat.Finish{Metadata: d.metadata}, nil
	}
	return chat.Delta{Content: []chat.ContentPart{chat.Text{Text: raw}}}, nil
}
