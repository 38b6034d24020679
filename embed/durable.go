package embed

import (
	"context"

	"github.com/casualjim/loom/durable"
)

const oplogNamespace = "loom_embed"

type generateInput struct {
	Inputs []Input `json:"inputs"`
	Config Config  `json:"config"`
}

type rerankInput struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Config    Config   `json:"config"`
}

// DurableProvider wraps an embeddings provider so that Generate and
// Rerank are recorded as WriteRemote calls and reproduced on replay,
// errors included.
type DurableProvider struct {
	host  durable.Host
	inner Provider
}

// NewDurable wraps a provider with the durable call discipline.
func NewDurable(host durable.Host, provider Provider) *DurableProvider {
	return &DurableProvider{host: host, inner: provider}
}

func (d *DurableProvider) Generate(ctx context.Context, inputs []Input, config Config) (*Response, error) {
	return durable.Wrap(d.host, oplogNamespace, "generate", durable.WriteRemote,
		generateInput{Inputs: inputs, Config: config},
		func() (*Response, error) {
			return d.inner.Generate(ctx, inputs, config)
		})
}

func (d *DurableProvider) Rerank(ctx context.Context, query string, documents []string, config Config) (*RerankResponse, error) {
	return durable.Wrap(d.host, oplogNamespace, "rerank", durable.WriteRemote,
		rerankInput{Query: query, Documents: documents, Config: config},
		func() (*RerankResponse, error) {
			return d.inner.Rerank(ctx, query, documents, config)
		})
}
