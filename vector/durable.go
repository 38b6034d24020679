package vector

import (
	"context"

	"github.com/casualjim/loom/durable"
)

const oplogNamespace = "loom_vector"

type upsertInput struct {
	Collection string   `json:"collection"`
	Records    []Record `json:"records"`
	Namespace  string   `json:"namespace,omitempty"`
}

type idsInput struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
	Namespace  string   `json:"namespace,omitempty"`
}

type idInput struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Namespace  string `json:"namespace,omitempty"`
}

type searchInput struct {
	Collection string        `json:"collection"`
	Query      Query         `json:"query"`
	Options    SearchOptions `json:"options"`
}

type countInput struct {
	Collection string `json:"collection"`
	FilterJSON string `json:"filter_json,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
}

// DurableProvider wraps a vector store with the durable discipline:
// upserts and deletes are WriteRemote calls, lookups, searches and
// counts are ReadRemote calls, and every outcome replays verbatim.
type DurableProvider struct {
	host  durable.Host
	inner Provider
}

// NewDurable wraps a provider with the durable call discipline.
func NewDurable(host durable.Host, provider Provider) *DurableProvider {
	return &DurableProvider{host: host, inner: provider}
}

func (d *DurableProvider) UpsertVectors(ctx context.Context, collection string, records []Record, namespace string) (*BatchResult, error) {
	return durable.Wrap(d.host, oplogNamespace, "upsert_vectors", durable.WriteRemote,
		upsertInput{Collection: collection, Records: records, Namespace: namespace},
		func() (*BatchResult, error) {
			return d.inner.UpsertVectors(ctx, collection, records, namespace)
		})
}

func (d *DurableProvider) GetVector(ctx context.Context, collection, id, namespace string) (*Record, error) {
	return durable.Wrap(d.host, oplogNamespace, "get_vector", durable.ReadRemote,
		idInput{Collection: collection, ID: id, Namespace: namespace},
		func() (*Record, error) {
			return d.inner.GetVector(ctx, collection, id, namespace)
		})
}

func (d *DurableProvider) GetVectors(ctx context.Context, collection string, ids []string, namespace string) ([]Record, error) {
	return durable.Wrap(d.host, oplogNamespace, "get_vectors", durable.ReadRemote,
		idsInput{Collection: collection, IDs: ids, Namespace: namespace},
		func() ([]Record, error) {
			return d.inner.GetVectors(ctx, collection, ids, namespace)
		})
}

func (d *DurableProvider) DeleteVectors(ctx context.Context, collection string, ids []string, namespace string) (uint32, error) {
	return durable.Wrap(d.host, oplogNamespace, "delete_vectors", durable.WriteRemote,
		idsInput{Collection: collection, IDs: ids, Namespace: namespace},
		func() (uint32, error) {
			return d.inner.DeleteVectors(ctx, collection, ids, namespace)
		})
}

func (d *DurableProvider) SearchVectors(ctx context.Context, collection string, query Query, options SearchOptions) ([]SearchResult, error) {
	return durable.Wrap(d.host, oplogNamespace, "search_vectors", durable.ReadRemote,
		searchInput{Collection: collection, Query: query, Options: options},
		func() ([]SearchResult, error) {
			return d.inner.SearchVectors(ctx, collection, query, options)
		})
}

func (d *DurableProvider) CountVectors(ctx context.Context, collection, filterJSON, namespace string) (uint64, error) {
	return durable.Wrap(d.host, oplogNamespace, "count_vectors", durable.ReadRemote,
		countInput{Collection: collection, FilterJSON: filterJSON, Namespace: namespace},
		func() (uint64, error) {
			return d.inner.CountVectors(ctx, collection, filterJSON, namespace)
		})
}
