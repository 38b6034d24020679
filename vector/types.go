// Package vector is the vector store capability: a uniform provider
// interface over vector databases plus durable wrappers that record
// mutations as writes and queries as reads. No concrete store is
// bundled; hosts plug in their own client behind the Provider
// interface.
package vector

// Record is one stored vector. MetadataJSON carries the payload
// attached to the vector as an opaque JSON blob.
type Record struct {
	ID           string    `json:"id"`
	Values       []float32 `json:"values,omitempty"`
	MetadataJSON string    `json:"metadata_json,omitempty"`
}

// BatchResult reports how an upsert batch fared.
type BatchResult struct {
	Upserted uint32 `json:"upserted"`
	Failed   uint32 `json:"failed,omitempty"`
}

// Query is what a search runs against: either a literal vector or the
// ID of a stored one. Exactly one field is set.
type Query struct {
	Vector []float32 `json:"vector,omitempty"`
	ID     string    `json:"id,omitempty"`
}

// SearchOptions tunes a similarity search. FilterJSON is the provider's
// native filter expression as an opaque JSON blob.
type SearchOptions struct {
	Limit           uint32   `json:"limit"`
	Namespace       string   `json:"namespace,omitempty"`
	FilterJSON      string   `json:"filter_json,omitempty"`
	IncludeValues   bool     `json:"include_values,omitempty"`
	IncludeMetadata bool     `json:"include_metadata,omitempty"`
	MinScore        *float32 `json:"min_score,omitempty"`
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ID           string    `json:"id"`
	Score        float32   `json:"score"`
	Values       []float32 `json:"values,omitempty"`
	MetadataJSON string    `json:"metadata_json,omitempty"`
}
