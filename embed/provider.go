package embed

import (
	"context"

	"github.com/casualjim/loom/internal/registry"
)

// Provider is an embeddings backend. Providers that cannot rerank
// return an Unsupported error from Rerank.
type Provider interface {
	Generate(ctx context.Context, inputs []Input, config Config) (*Response, error)
	Rerank(ctx context.Context, query string, documents []string, config Config) (*RerankResponse, error)
}

var providers = registry.New[Provider]()

// Register adds a named provider to the package catalog, replacing any
// previous registration under the same name.
func Register(name string, provider Provider) {
	providers.Add(name, provider)
}

// Lookup retrieves a registered provider by name.
func Lookup(name string) (Provider, bool) {
	return providers.Get(name)
}
