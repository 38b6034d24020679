package stt

import (
	"context"

	"github.com/casualjim/loom/internal/registry"
)

// Provider is a transcription backend. TranscribeMany never fails as a
// whole because of one bad request; per-request errors land in the
// MultiResult failure list.
type Provider interface {
	Transcribe(ctx context.Context, request Request) (*Result, error)
	TranscribeMany(ctx context.Context, requests []Request) (*MultiResult, error)
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
