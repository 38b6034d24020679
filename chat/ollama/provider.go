// Package ollama adapts a local Ollama daemon to the chat capability.
// The daemon streams newline-delimited JSON and needs no credentials;
// the endpoint comes from OLLAMA_BASE_URL when set.
package ollama

import (
	"context"
	"net/http"
	"os"

	"github.com/fogfish/opts"

	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/pkg/httpx"
	"github.com/casualjim/loom/wire"
)

const (
	baseURLEnv     = "OLLAMA_BASE_URL"
	defaultBaseURL = "http://localhost:11434"
)

// Provider talks to an Ollama daemon.
type Provider struct {
	BaseURL    string
	HTTPClient *http.Client
}

var (
	// WithBaseURL overrides the daemon address.
	WithBaseURL = opts.ForName[Provider, string]("BaseURL")
	// WithHTTPClient swaps the transport.
	WithHTTPClient = opts.ForName[Provider, *http.Client]("HTTPClient")
)

// New creates a provider with the given options applied over defaults.
func New(options ...opts.Option[Provider]) (*Provider, error) {
	base := defaultBaseURL
	if fromEnv := os.Getenv(baseURLEnv); fromEnv != "" {
		base = fromEnv
	}
	p := &Provider{BaseURL: base, HTTPClient: http.DefaultClient}
	if err := opts.Apply(p, options); err != nil {
		return nil, err
	}
	return p, nil
}

// Send performs a one-shot completion.
func (p *Provider) Send(ctx context.Context, events []chat.Event, config chat.Config) (*chat.Response, error) {
	payload, err := buildRequest(events, config, false)
	if err != nil {
		return nil, err
	}
	res, err := httpx.PostJSON(ctx, p.HTTPClient, p.BaseURL+"/api/chat", nil, payload)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, httpx.Error(res)
	}
	var body chatLine
	if err := httpx.DecodeJSON(res, &body); err != nil {
		return nil, err
	}
	return body.toResponse()
}

// Stream opens a streaming completion over NDJSON.
func (p *Provider) Stream(ctx context.Context, events []chat.Event, config chat.Config) chat.Stream {
	payload, err := buildRequest(events, config, true)
	if err != nil {
		return chat.NewFailedStream(err)
	}
	res, err := httpx.PostJSON(ctx, p.HTTPClient, p.BaseURL+"/api/chat", nil, payload)
	if err != nil {
		return chat.NewFailedStream(err)
	}
	if res.StatusCode != http.StatusOK {
		return chat.NewFailedStream(httpx.Error(res))
	}
	return chat.NewProviderStream(newDecoder(wire.NewNDJSON(res.Body)))
}
