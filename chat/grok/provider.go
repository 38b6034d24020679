// Package grok adapts the xAI chat completions API. The wire shape is
// OpenAI-compatible: bearer auth, SSE streaming, usage delivered in a
// final chunk after the last choice when stream_options asks for it.
package grok

import (
	"context"
	"net/http"

	"github.com/fogfish/opts"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/chat"
	"github.com/casualjim/loom/pkg/httpx"
	"github.com/casualjim/loom/wire"
)

const (
	apiKeyEnv      = "XAI_API_KEY"
	defaultBaseURL = "https://api.x.ai/v1"
)

// Provider talks to the xAI chat completions API.
type Provider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

var (
	// WithBaseURL overrides the API endpoint, usually to point at a stub.
	WithBaseURL = opts.ForName[Provider, string]("BaseURL")
	// WithAPIKey sets the key explicitly instead of reading XAI_API_KEY.
	WithAPIKey = opts.ForName[Provider, string]("APIKey")
	// WithHTTPClient swaps the transport.
	WithHTTPClient = opts.ForName[Provider, *http.Client]("HTTPClient")
)

// New creates a provider with the given options applied over defaults.
func New(options ...opts.Option[Provider]) (*Provider, error) {
	p := &Provider{BaseURL: defaultBaseURL, HTTPClient: http.DefaultClient}
	if err := opts.Apply(p, options); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) apiKey() (string, *loom.Error) {
	if p.APIKey != "" {
		return p.APIKey, nil
	}
	return loom.ConfigKey(apiKeyEnv)
}

func (p *Provider) headers(key string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + key}}
}

// Send performs a one-shot completion.
func (p *Provider) Send(ctx context.Context, events []chat.Event, config chat.Config) (*chat.Response, error) {
	key, cerr := p.apiKey()
	if cerr != nil {
		return nil, cerr
	}
	payload, err := buildRequest(events, config, false)
	if err != nil {
		return nil, err
	}
	res, err := httpx.PostJSON(ctx, p.HTTPClient, p.BaseURL+"/chat/completions", p.headers(key), payload)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, httpx.Error(res)
	}
	var body apiResponse
	if err := httpx.DecodeJSON(res, &body); err != nil {
		return nil, err
	}
	return body.toResponse()
}

// Stream opens a streaming completion.
func (p *Provider) Stream(ctx context.Context, events []chat.Event, config chat.Config) chat.Stream {
	key, cerr := p.apiKey()
	if cerr != nil {
		return chat.NewFailedStream(cerr)
	}
	payload, err := buildRequest(events, config, true)
	if err != nil {
		return chat.NewFailedStream(err)
	}
	res, err := httpx.PostJSON(ctx, p.HTTPClient, p.BaseURL+"/chat/completions", p.headers(key), payload)
	if err != nil {
		return chat.NewFailedStream(err)
	}
	if res.StatusCode != http.StatusOK {
		return chat.NewFailedStream(httpx.Error(res))
	}
	return chat.NewProviderStream(newDecoder(wire.NewSSE(res)))
}
