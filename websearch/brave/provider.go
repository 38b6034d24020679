// Package brave adapts the Brave Search API to the websearch
// capability. Pagination is offset based, so the session cursor is just
// the next offset and restoring a session never costs a request.
package brave

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/pkg/httpx"
	"github.com/casualjim/loom/websearch"
)

const (
	apiKeyEnv      = "BRAVE_API_KEY"
	defaultBaseURL = "https://api.search.brave.com/res/v1"
	defaultCount   = 10
	// The API rejects offsets beyond this page.
	maxOffset = 9
)

// Provider talks to the Brave web search endpoint.
type Provider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

var (
	// WithBaseURL overrides the API endpoint, usually to point at a stub.
	WithBaseURL = opts.ForName[Provider, string]("BaseURL")
	// WithAPIKey sets the key explicitly instead of reading BRAVE_API_KEY.
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

type cursor struct {
	Offset    uint32 `json:"offset"`
	Page      uint32 `json:"page"`
	Exhausted bool   `json:"exhausted"`
}

type session struct {
	provider *Provider
	params   websearch.SearchParams
	cursor   cursor
	total    *uint64
}

// StartSearch validates the parameters and opens a session positioned
// before the first page. No request is issued until NextPage.
func (p *Provider) StartSearch(ctx context.Context, params websearch.SearchParams) (websearch.Session, error) {
	if params.Query == "" {
		return nil, loom.Errorf(loom.InvalidRequest, "query must not be empty")
	}
	if _, err := p.apiKey(); err != nil {
		return nil, err
	}
	return &session{provider: p, params: params}, nil
}

// SearchOnce fetches the first page and returns it with its metadata.
func (p *Provider) SearchOnce(ctx context.Context, params websearch.SearchParams) ([]websearch.SearchResult, *websearch.SearchMetadata, error) {
	s, err := p.StartSearch(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.NextPage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return results, s.Metadata(), nil
}

// Restore rebuilds a session around a previously recorded cursor.
func (p *Provider) Restore(params websearch.SearchParams, state json.RawMessage) (websearch.Session, error) {
	s := &session{provider: p, params: params}
	if len(state) > 0 {
		if err := json.Unmarshal(state, &s.cursor); err != nil {
			return nil, loom.InternalErrorf("decoding search cursor: %v", err)
		}
	}
	return s, nil
}

type apiResponse struct {
	Query struct {
		Original string `json:"original"`
	} `json:"query"`
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
			Profile     struct {
				Name string `json:"name"`
			} `json:"profile"`
			MetaURL struct {
				Hostname string `json:"hostname"`
			} `json:"meta_url"`
		} `json:"results"`
	} `json:"web"`
}

func (s *session) query() url.Values {
	values := url.Values{}
	values.Set("q", s.params.Query)
	count := uint32(defaultCount)
	if s.params.MaxResults != nil && *s.params.MaxResults > 0 {
		count = min(*s.params.MaxResults, 20)
	}
	values.Set("count", strconv.FormatUint(uint64(count), 10))
	if s.cursor.Offset > 0 {
		values.Set("offset", strconv.FormatUint(uint64(s.cursor.Offset), 10))
	}
	if s.params.SafeSearch != nil {
		values.Set("safesearch", string(*s.params.SafeSearch))
	}
	if s.params.Language != "" {
		values.Set("search_lang", s.params.Language)
	}
	if s.params.Region != "" {
		values.Set("country", s.params.Region)
	}
	if s.params.TimeRange != nil {
		switch *s.params.TimeRange {
		case websearch.PastDay:
			values.Set("freshness", "pd")
		case websearch.PastWeek:
			values.Set("freshness", "pw")
		case websearch.PastMonth:
			values.Set("freshness", "pm")
		case websearch.PastYear:
			values.Set("freshness", "py")
		}
	}
	return values
}

// NextPage fetches the page at the current offset and advances the
// cursor. An empty result list marks the session exhausted.
func (s *session) NextPage(ctx context.Context) ([]websearch.SearchResult, error) {
	if s.cursor.Exhausted {
		return nil, nil
	}
	key, cerr := s.provider.apiKey()
	if cerr != nil {
		return nil, cerr
	}

	headers := http.Header{
		"X-Subscription-Token": []string{key},
		"Accept":               []string{"application/json"},
	}
	endpoint := s.provider.BaseURL + "/web/search?" + s.query().Encode()
	res, err := httpx.Do(ctx, s.provider.HTTPClient, http.MethodGet, endpoint, headers, nil)
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

	results := make([]websearch.SearchResult, 0, len(body.Web.Results))
	for _, item := range body.Web.Results {
		results = append(results, websearch.SearchResult{
			Title:         item.Title,
			URL:           item.URL,
			Snippet:       item.Description,
			DisplayURL:    item.MetaURL.Hostname,
			Source:        item.Profile.Name,
			DatePublished: item.Age,
		})
	}

	s.cursor.Page++
	if len(results) == 0 || s.cursor.Offset >= maxOffset {
		s.cursor.Exhausted = true
	} else {
		s.cursor.Offset++
	}
	return results, nil
}

func (s *session) Metadata() *websearch.SearchMetadata {
	return &websearch.SearchMetadata{
		Query:        s.params.Query,
		TotalResults: s.total,
		CurrentPage:  s.cursor.Page,
		NextOffset:   s.cursor.Offset,
	}
}

func (s *session) State() json.RawMessage {
	raw, _ := json.Marshal(s.cursor)
	return raw
}
