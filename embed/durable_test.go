package embed

import (
	"context"
	"testing"

	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/oplog/memlog"
)

type fakeProvider struct {
	generateFn func(ctx context.Context, inputs []Input, config Config) (*Response, error)
	rerankFn   func(ctx context.Context, query string, documents []string, config Config) (*RerankResponse, error)
	calls      int
}

func (f *fakeProvider) Generate(ctx context.Context, inputs []Input, config Config) (*Response, error) {
	f.calls++
	return f.generateFn(ctx, inputs, config)
}

func (f *fakeProvider) Rerank(ctx context.Context, query string, documents []string, config Config) (*RerankResponse, error) {
	f.calls++
	return f.rerankFn(ctx, query, documents, config)
}

func TestDurableGenerate_RecordsAndReplays(t *testing.T) {
	want := &Response{
		Embeddings: []Embedding{{Index: 0, Vector: Vector{Floats: []float32{0.25, -0.5}}}},
		Usage:      &Usage{InputTokens: swag.Uint32(3), TotalTokens: swag.Uint32(3)},
		Model:      "text-embedding-3-small",
	}
	provider := &fakeProvider{
		generateFn: func(context.Context, []Input, Config) (*Response, error) { return want, nil },
	}
	host := memlog.New()

	live, err := NewDurable(host, provider).Generate(context.Background(), []Input{Text{Text: "hello"}}, Config{})
	require.NoError(t, err)
	assert.Equal(t, want, live)
	require.Equal(t, 1, host.Log().Len())
	assert.Equal(t, "loom_embed", host.Log().Entries()[0].Namespace)
	assert.Equal(t, "generate", host.Log().Entries()[0].Name)

	burned := &fakeProvider{
		generateFn: func(context.Context, []Input, Config) (*Response, error) {
			t.Fatal("provider invoked during replay")
			return nil, nil
		},
	}
	replayed, err := NewDurable(memlog.Attach(host.Log()), burned).Generate(context.Background(), []Input{Text{Text: "hello"}}, Config{})
	require.NoError(t, err)
	assert.Equal(t, want, replayed)
	assert.Zero(t, burned.calls)
}

func TestDurableRerank_ErrorReplaysVerbatim(t *testing.T) {
	provider := &fakeProvider{
		rerankFn: func(context.Context, string, []string, Config) (*RerankResponse, error) {
			return nil, loom.Unsupportedf("rerank is not supported by OpenAI")
		},
	}
	host := memlog.New()
	d := NewDurable(host, provider)

	_, err := d.Rerank(context.Background(), "q", []string{"a", "b"}, Config{})
	require.Error(t, err)
	assert.Equal(t, loom.Unsupported, loom.CodeOf(err))
	require.Equal(t, 1, host.Log().Len())

	_, rerr := NewDurable(memlog.Attach(host.Log()), &fakeProvider{}).Rerank(context.Background(), "q", []string{"a", "b"}, Config{})
	require.Error(t, rerr)
	assert.Equal(t, loom.Unsupported, loom.CodeOf(rerr))
	assert.EqualError(t, rerr, err.Error())
}
