// Package websearch is the web search capability: paginated search
// sessions behind a uniform provider interface, with durable wrappers
// that record every page fetch so a rehydrated workflow resumes from
// the provider cursor instead of repeating requests.
package websearch

// SafeSearch filters adult content.
type SafeSearch string

const (
	SafeSearchOff      SafeSearch = "off"
	SafeSearchModerate SafeSearch = "moderate"
	SafeSearchStrict   SafeSearch = "strict"
)

// TimeRange restricts results by recency.
type TimeRange string

const (
	PastDay   TimeRange = "day"
	PastWeek  TimeRange = "week"
	PastMonth TimeRange = "month"
	PastYear  TimeRange = "year"
)

// SearchParams describes one search. Only Query is required.
type SearchParams struct {
	Query          string      `json:"query"`
	SafeSearch     *SafeSearch `json:"safe_search,omitempty"`
	Language       string      `json:"language,omitempty"`
	Region         string      `json:"region,omitempty"`
	MaxResults     *uint32     `json:"max_results,omitempty"`
	TimeRange      *TimeRange  `json:"time_range,omitempty"`
	IncludeDomains []string    `json:"include_domains,omitempty"`
	ExcludeDomains []string    `json:"exclude_domains,omitempty"`
}

// SearchResult is one hit.
type SearchResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Snippet       string   `json:"snippet"`
	DisplayURL    string   `json:"display_url,omitempty"`
	Source        string   `json:"source,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	DatePublished string   `json:"date_published,omitempty"`
}

// SearchMetadata describes where a session currently stands.
type SearchMetadata struct {
	Query        string  `json:"query"`
	TotalResults *uint64 `json:"total_results,omitempty"`
	SearchTimeMS *uint64 `json:"search_time_ms,omitempty"`
	CurrentPage  uint32  `json:"current_page"`
	NextOffset   uint32  `json:"next_offset"`
}
