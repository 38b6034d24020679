package websearch

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/casualjim/loom/internal/registry"
)

// Session is a paginated search in progress. NextPage returns the next
// batch of results; an empty batch means the provider is out of pages.
// State returns the provider cursor as an opaque JSON blob; a session
// restored from that blob continues exactly where this one stands.
// Sessions are not safe for concurrent use.
type Session interface {
	NextPage(ctx context.Context) ([]SearchResult, error)
	Metadata() *SearchMetadata
	State() json.RawMessage
}

// Provider is a web search backend. Restore rebuilds a session from a
// cursor previously obtained via Session.State; it must not perform
// network requests.
type Provider interface {
	StartSearch(ctx context.Context, params SearchParams) (Session, error)
	SearchOnce(ctx context.Context, params SearchParams) ([]SearchResult, *SearchMetadata, error)
	Restore(params SearchParams, state json.RawMessage) (Session, error)
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
