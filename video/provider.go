package video

import (
	"context"

	"github.com/casualjim/loom/internal/registry"
)

// Provider is a video generation backend. Generate submits a job and
// returns its ID; Poll reports where the job stands; Cancel asks the
// provider to stop it, returning a human-readable acknowledgement.
// Providers without a cancel API return Unsupported.
type Provider interface {
	Generate(ctx context.Context, input Input, config Config) (string, error)
	Poll(ctx context.Context, jobID string) (*Result, error)
	Cancel(ctx context.Context, jobID string) (string, error)
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
