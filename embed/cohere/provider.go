// Package cohere adapts the Cohere v2 embed and rerank endpoints to
// the embed capability.
package cohere

import (
	"context"
	"net/http"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/tidwall/sjson"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/embed"
	"github.com/casualjim/loom/pkg/httpx"
)

const (
	apiKeyEnv         = "COHERE_API_KEY"
	defaultBaseURL    = "https://api.cohere.ai/v2"
	defaultEmbedModel = "embed-english-v3.0"
	defaultRankModel  = "rerank-v3.5"
)

// Provider talks to the Cohere v2 API.
type Provider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

var (
	// WithBaseURL overrides the API endpoint, usually to point at a stub.
	WithBaseURL = opts.ForName[Provider, string]("BaseURL")
	// WithAPIKey sets the key explicitly instead of reading COHERE_API_KEY.
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

func (p *Provider) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	key, cerr := p.apiKey()
	if cerr != nil {
		return nil, cerr
	}
	headers := http.Header{"Authorization": []string{"Bearer " + key}}
	res, err := httpx.PostJSON(ctx, p.HTTPClient, p.BaseURL+path, headers, payload)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, httpx.Error(res)
	}
	return res, nil
}

// Generate embeds the inputs. Text and image inputs cannot be mixed in
// one call.
func (p *Provider) Generate(ctx context.Context, inputs []embed.Input, config embed.Config) (*embed.Response, error) {
	payload, err := buildEmbedRequest(inputs, config)
	if err != nil {
		return nil, err
	}
	res, err := p.post(ctx, "/embed", payload)
	if err != nil {
		return nil, err
	}
	var body embedResponse
	if err := httpx.DecodeJSON(res, &body); err != nil {
		return nil, err
	}
	return body.toResponse(payload.Model)
}

// Rerank scores the documents against the query.
func (p *Provider) Rerank(ctx context.Context, query string, documents []string, config embed.Config) (*embed.RerankResponse, error) {
	model := config.Model
	if model == "" {
		model = defaultRankModel
	}
	payload := rerankRequest{Model: model, Query: query, Documents: documents}
	res, err := p.post(ctx, "/rerank", payload)
	if err != nil {
		return nil, err
	}
	var body rerankResponse
	if err := httpx.DecodeJSON(res, &body); err != nil {
		return nil, err
	}
	return body.toResponse(model)
}

type embedRequest struct {
	Model           string   `json:"model"`
	InputType       string   `json:"input_type"`
	Texts           []string `json:"texts,omitempty"`
	Images          []string `json:"images,omitempty"`
	OutputDimension *uint32  `json:"output_dimension,omitempty"`
	EmbeddingTypes  []string `json:"embedding_types,omitempty"`
}

func inputType(config embed.Config) (string, error) {
	if config.TaskType == nil {
		return "search_query", nil
	}
	switch *config.TaskType {
	case embed.RetrievalQuery:
		return "search_query", nil
	case embed.RetrievalDocument:
		return "search_document", nil
	case embed.Classification:
		return "classification", nil
	case embed.Clustering:
		return "clustering", nil
	default:
		return "", loom.Unsupportedf("task type %q is not supported by Cohere", *config.TaskType)
	}
}

func buildEmbedRequest(inputs []embed.Input, config embed.Config) (*embedRequest, error) {
	var texts, images []string
	for _, input := range inputs {
		switch part := input.(type) {
		case embed.Text:
			texts = append(texts, part.Text)
		case embed.Image:
			images = append(images, part.URL)
		}
	}
	if len(texts) > 0 && len(images) > 0 {
		return nil, loom.Unsupportedf("Cohere embeds text or images per call, not both")
	}

	kind := "image"
	if len(images) == 0 {
		var err error
		if kind, err = inputType(config); err != nil {
			return nil, err
		}
	}

	model := config.Model
	if model == "" {
		model = defaultEmbedModel
	}

	var types []string
	if config.OutputDtype != nil {
		types = []string{string(*config.OutputDtype)}
	}

	return &embedRequest{
		Model:           model,
		InputType:       kind,
		Texts:           texts,
		Images:          images,
		OutputDimension: config.Dimensions,
		EmbeddingTypes:  types,
	}, nil
}

type billedUnits struct {
	InputTokens  *uint32 `json:"input_tokens,omitempty"`
	OutputTokens *uint32 `json:"output_tokens,omitempty"`
}

type meta struct {
	BilledUnits *billedUnits `json:"billed_units,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}

func (m *meta) usage() *embed.Usage {
	if m == nil || m.BilledUnits == nil {
		return nil
	}
	return &embed.Usage{
		InputTokens: m.BilledUnits.InputTokens,
		TotalTokens: m.BilledUnits.OutputTokens,
	}
}

type embedResponse struct {
	ID         string `json:"id"`
	Embeddings struct {
		Float   [][]float32 `json:"float,omitempty"`
		Int8    [][]int8    `json:"int8,omitempty"`
		Uint8   [][]uint8   `json:"uint8,omitempty"`
		Binary  [][]int8    `json:"binary,omitempty"`
		Ubinary [][]uint8   `json:"ubinary,omitempty"`
	} `json:"embeddings"`
	Meta *meta `json:"meta,omitempty"`
}

func (r embedResponse) toResponse(model string) (*embed.Response, error) {
	var embeddings []embed.Embedding
	for index, vector := range r.Embeddings.Float {
		embeddings = append(embeddings, embed.Embedding{Index: uint32(index), Vector: embed.Vector{Floats: vector}})
	}
	for index, vector := range r.Embeddings.Int8 {
		embeddings = append(embeddings, embed.Embedding{Index: uint32(index), Vector: embed.Vector{Int8: vector}})
	}
	for index, vector := range r.Embeddings.Uint8 {
		embeddings = append(embeddings, embed.Embedding{Index: uint32(index), Vector: embed.Vector{Uint8: vector}})
	}
	for index, vector := range r.Embeddings.Binary {
		embeddings = append(embeddings, embed.Embedding{Index: uint32(index), Vector: embed.Vector{Int8: vector}})
	}
	for index, vector := range r.Embeddings.Ubinary {
		embeddings = append(embeddings, embed.Embedding{Index: uint32(index), Vector: embed.Vector{Uint8: vector}})
	}
	return &embed.Response{
		Embeddings:           embeddings,
		Usage:                r.Meta.usage(),
		Model:                model,
		ProviderMetadataJSON: providerMetadata(r.ID, r.Meta),
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	ID      string `json:"id,omitempty"`
	Results []struct {
		Index          uint32  `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Meta *meta `json:"meta,omitempty"`
}

func (r rerankResponse) toResponse(model string) (*embed.RerankResponse, error) {
	results := make([]embed.RerankResult, 0, len(r.Results))
	for _, item := range r.Results {
		results = append(results, embed.RerankResult{Index: item.Index, RelevanceScore: item.RelevanceScore})
	}
	return &embed.RerankResponse{
		Results:              results,
		Usage:                r.Meta.usage(),
		Model:                model,
		ProviderMetadataJSON: providerMetadata(r.ID, r.Meta),
	}, nil
}

func providerMetadata(id string, m *meta) string {
	if id == "" && m == nil {
		return ""
	}
	blob, _ := sjson.Set(`{}`, "id", id)
	if m != nil {
		raw, err := json.Marshal(m)
		if err == nil {
			blob, _ = sjson.SetRaw(blob, "meta", string(raw))
		}
	}
	return blob
}
