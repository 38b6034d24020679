// Package openai adapts the OpenAI embeddings endpoint to the embed
// capability. OpenAI has no rerank endpoint, so Rerank reports
// Unsupported.
package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/embed"
	"github.com/casualjim/loom/pkg/httpx"
)

const (
	apiKeyEnv      = "OPENAI_API_KEY"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
)

// Provider talks to the OpenAI embeddings API.
type Provider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

var (
	// WithBaseURL overrides the API endpoint, usually to point at a stub.
	WithBaseURL = opts.ForName[Provider, string]("BaseURL")
	// WithAPIKey sets the key explicitly instead of reading OPENAI_API_KEY.
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

type apiRequest struct {
	Input          string  `json:"input"`
	Model          string  `json:"model"`
	EncodingFormat string  `json:"encoding_format,omitempty"`
	Dimensions     *uint32 `json:"dimensions,omitempty"`
	User           string  `json:"user,omitempty"`
}

type apiResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string          `json:"object"`
		Embedding json.RawMessage `json:"embedding"`
		Index     uint32          `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens uint32 `json:"prompt_tokens"`
		TotalTokens  uint32 `json:"total_tokens"`
	} `json:"usage"`
}

func buildRequest(inputs []embed.Input, config embed.Config) (*apiRequest, error) {
	var text strings.Builder
	for _, input := range inputs {
		switch part := input.(type) {
		case embed.Text:
			text.WriteString(part.Text)
		case embed.Image:
			return nil, loom.Unsupportedf("image embeddings are not supported by OpenAI")
		}
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}

	format := "float"
	if config.OutputFormat != nil {
		switch *config.OutputFormat {
		case embed.FloatArray:
			format = "float"
		case embed.Base64:
			format = "base64"
		default:
			return nil, loom.Unsupportedf("OpenAI only supports float and base64 output formats")
		}
	}

	return &apiRequest{
		Input:          text.String(),
		Model:          model,
		EncodingFormat: format,
		Dimensions:     config.Dimensions,
		User:           config.User,
	}, nil
}

func (r apiResponse) toResponse() (*embed.Response, error) {
	embeddings := make([]embed.Embedding, 0, len(r.Data))
	for _, item := range r.Data {
		var vector embed.Vector
		// The embedding field is either a float array or a base64 string,
		// depending on the requested encoding_format.
		raw := gjson.ParseBytes(item.Embedding)
		if raw.IsArray() {
			if err := json.Unmarshal(item.Embedding, &vector.Floats); err != nil {
				return nil, loom.InternalErrorf("decoding embedding vector: %v", err)
			}
		} else {
			vector.Base64 = raw.String()
		}
		embeddings = append(embeddings, embed.Embedding{Index: item.Index, Vector: vector})
	}
	usage := embed.Usage{
		InputTokens: &r.Usage.PromptTokens,
		TotalTokens: &r.Usage.TotalTokens,
	}
	return &embed.Response{
		Embeddings: embeddings,
		Usage:      &usage,
		Model:      r.Model,
	}, nil
}

// Generate embeds the concatenated text inputs.
func (p *Provider) Generate(ctx context.Context, inputs []embed.Input, config embed.Config) (*embed.Response, error) {
	key, cerr := p.apiKey()
	if cerr != nil {
		return nil, cerr
	}
	payload, err := buildRequest(inputs, config)
	if err != nil {
		return nil, err
	}
	headers := http.Header{"Authorization": []string{"Bearer " + key}}
	res, err := httpx.PostJSON(ctx, p.HTTPClient, p.BaseURL+"/embeddings", headers, payload)
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

// Rerank is not offered by OpenAI.
func (p *Provider) Rerank(ctx context.Context, query string, documents []string, config embed.Config) (*embed.RerankResponse, error) {
	return nil, loom.Unsupportedf("rerank is not supported by OpenAI")
}
