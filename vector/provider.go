package vector

import (
	"context"

	"github.com/casualjim/loom/internal/registry"
)

// Provider is a vector store backend. An empty namespace means the
// store's default namespace. GetVector returns nil without error when
// the ID does not exist.
type Provider interface {
	UpsertVectors(ctx context.Context, collection string, records []Record, namespace string) (*BatchResult, error)
	GetVector(ctx context.Context, collection, id, namespace string) (*Record, error)
	GetVectors(ctx context.Context, collection string, ids []string, namespace string) ([]Record, error)
	DeleteVectors(ctx context.Context, collection string, ids []string, namespace string) (uint32, error)
	SearchVectors(ctx context.Context, collection string, query Query, options SearchOptions) ([]SearchResult, error)
	CountVectors(ctx context.Context, collection, filterJSON, namespace string) (uint64, error)
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
