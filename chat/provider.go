package chat

import (
	"context"

	"github.com/casualjim/loom/internal/registry"
)

// Provider is a chat completion backend. Send performs a one-shot
// completion; Stream opens a streaming completion. Stream never
// returns an error directly: construction failures surface as a
// finished stream whose PollNext yields the error.
type Provider interface {
	Send(ctx context.Context, events []Event, config Config) (*Response, error)
	Stream(ctx context.Context, events []Event, config Config) Stream
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
