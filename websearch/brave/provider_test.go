package brave

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-openapi/swag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/websearch"
)

func searchStub(t *testing.T, pages int) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/web/search", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Subscription-Token"))
		queries = append(queries, r.URL.RawQuery)

		offset := r.URL.Query().Get("offset")
		if offset == "" {
			offset = "0"
		}
		results := `[]`
		if len(queries) <= pages {
			results = fmt.Sprintf(`[{
				"title": "result at offset %[1]s",
				"url": "https://example.com/%[1]s",
				"description": "snippet %[1]s",
				"meta_url": {"hostname": "example.com"},
				"profile": {"name": "Example"}
			}]`, offset)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"query": {"original": "go"}, "web": {"results": %s}}`, results)
	}))
	t.Cleanup(server.Close)
	return server, &queries
}

func TestNextPage_AdvancesOffset(t *testing.T) {
	server, queries := searchStub(t, 3)
	p, err := New(WithBaseURL(server.URL), WithAPIKey("secret"))
	require.NoError(t, err)

	safe := websearch.SafeSearchStrict
	s, err := p.StartSearch(context.Background(), websearch.SearchParams{
		Query:      "durable execution",
		SafeSearch: &safe,
		Language:   "en",
		MaxResults: swag.Uint32(5),
	})
	require.NoError(t, err)

	first, err := s.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "result at offset 0", first[0].Title)
	assert.Equal(t, "example.com", first[0].DisplayURL)

	second, err := s.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "result at offset 1", second[0].Title)

	require.Len(t, *queries, 2)
	firstQuery := (*queries)[0]
	assert.Contains(t, firstQuery, "q=durable+execution")
	assert.Contains(t, firstQuery, "count=5")
	assert.Contains(t, firstQuery, "safesearch=strict")
	assert.Contains(t, firstQuery, "search_lang=en")
	assert.NotContains(t, firstQuery, "offset=")
	assert.Contains(t, (*queries)[1], "offset=1")

	metadata := s.Metadata()
	require.NotNil(t, metadata)
	assert.Equal(t, uint32(2), metadata.CurrentPage)
	assert.Equal(t, uint32(2), metadata.NextOffset)
}

func TestNextPage_EmptyPageExhaustsSession(t *testing.T) {
	server, queries := searchStub(t, 1)
	p, err := New(WithBaseURL(server.URL), WithAPIKey("secret"))
	require.NoError(t, err)

	s, err := p.StartSearch(context.Background(), websearch.SearchParams{Query: "go"})
	require.NoError(t, err)

	_, err = s.NextPage(context.Background())
	require.NoError(t, err)
	empty, err := s.NextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Exhausted sessions answer locally.
	again, err := s.NextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Len(t, *queries, 2)
}

func TestRestore_ContinuesFromCursorWithoutRequests(t *testing.T) {
	server, queries := searchStub(t, 5)
	p, err := New(WithBaseURL(server.URL), WithAPIKey("secret"))
	require.NoError(t, err)

	params := websearch.SearchParams{Query: "go"}
	s, err := p.StartSearch(context.Background(), params)
	require.NoError(t, err)
	_, err = s.NextPage(context.Background())
	require.NoError(t, err)

	restored, err := p.Restore(params, s.State())
	require.NoError(t, err)
	assert.Len(t, *queries, 1)

	page, err := restored.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "result at offset 1", page[0].Title)
}

func TestStartSearch_Validation(t *testing.T) {
	p, err := New(WithAPIKey("secret"))
	require.NoError(t, err)

	_, serr := p.StartSearch(context.Background(), websearch.SearchParams{})
	require.Error(t, serr)
	assert.Equal(t, loom.InvalidRequest, loom.CodeOf(serr))

	t.Setenv(apiKeyEnv, "")
	bare, err := New()
	require.NoError(t, err)
	_, serr = bare.StartSearch(context.Background(), websearch.SearchParams{Query: "go"})
	require.Error(t, serr)
	assert.Equal(t, loom.AuthenticationFailed, loom.CodeOf(serr))
}

func TestState_RoundTrips(t *testing.T) {
	p, err := New(WithAPIKey("secret"))
	require.NoError(t, err)

	s, err := p.StartSearch(context.Background(), websearch.SearchParams{Query: "go"})
	require.NoError(t, err)

	state := s.State()
	assert.Equal(t, int64(0), gjson.GetBytes(state, "offset").Int())
	assert.False(t, gjson.GetBytes(state, "exhausted").Bool())

	restored, err := p.Restore(websearch.SearchParams{Query: "go"}, state)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), restored.Metadata().NextOffset)
}
