package websearch

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/casualjim/loom/durable"
)

const oplogNamespace = "loom_websearch"

type onceResult struct {
	Results  []SearchResult  `json:"results"`
	Metadata *SearchMetadata `json:"metadata,omitempty"`
}

type pageRecord struct {
	Results []SearchResult  `json:"results"`
	State   json.RawMessage `json:"state"`
}

// DurableProvider wraps a search provider with the durable discipline:
// SearchOnce and StartSearch are WriteRemote calls, every page fetched
// through a session is a ReadRemote call persisting the results and the
// provider cursor they left behind.
type DurableProvider struct {
	host  durable.Host
	inner Provider
}

// NewDurable wraps a provider with the durable call discipline.
func NewDurable(host durable.Host, provider Provider) *DurableProvider {
	return &DurableProvider{host: host, inner: provider}
}

// SearchOnce performs a single-page search as a one-shot durable call.
func (d *DurableProvider) SearchOnce(ctx context.Context, params SearchParams) ([]SearchResult, *SearchMetadata, error) {
	out, err := durable.Wrap(d.host, oplogNamespace, "search_once", durable.WriteRemote, params,
		func() (onceResult, error) {
			results, metadata, err := d.inner.SearchOnce(ctx, params)
			return onceResult{Results: results, Metadata: metadata}, err
		})
	if err != nil {
		return nil, nil, err
	}
	return out.Results, out.Metadata, nil
}

// StartSearch opens a durable search session. The start is recorded as
// a WriteRemote call persisting the initial provider cursor; failures
// to open the session are persisted and replayed like any one-shot
// error.
func (d *DurableProvider) StartSearch(ctx context.Context, params SearchParams) (*DurableSession, error) {
	fn := d.host.Begin(oplogNamespace, "start_search", durable.WriteRemote)

	if d.host.IsLive() {
		var live Session
		var err error
		d.host.WithPersistenceLevel(durable.PersistNothing, func() {
			live, err = d.inner.StartSearch(ctx, params)
		})
		if err != nil {
			fn.Persist(durable.EncodeInput(params), durable.EncodeResult(json.RawMessage(nil), err))
			return nil, err
		}
		state := live.State()
		fn.Persist(durable.EncodeInput(params), durable.EncodeResult(state, nil))
		return &DurableSession{host: d.host, provider: d.inner, params: params, state: state, live: live}, nil
	}

	raw, rerr := fn.Replay()
	if rerr != nil {
		return nil, durable.ReplayError(oplogNamespace, "start_search", rerr)
	}
	state, derr := durable.DecodeResult[json.RawMessage](raw)
	if derr != nil {
		return nil, derr
	}
	return &DurableSession{host: d.host, provider: d.inner, params: params, state: state}, nil
}

// DurableSession is the replayable pagination cursor. While the host
// replays, every NextPage is read back from the log and the recorded
// cursor is carried along; on the first NextPage after the log runs out
// the live session is rebuilt from that cursor and pagination continues
// against the provider.
type DurableSession struct {
	host     durable.Host
	provider Provider
	params   SearchParams
	state    json.RawMessage
	live     Session
}

// NextPage fetches the next batch of results as a ReadRemote durable
// call. Errors are persisted and replayed verbatim.
func (s *DurableSession) NextPage(ctx context.Context) ([]SearchResult, error) {
	fn := s.host.Begin(oplogNamespace, "next_page", durable.ReadRemote)

	if s.host.IsLive() {
		if s.live == nil {
			restored, err := s.provider.Restore(s.params, s.state)
			if err != nil {
				return nil, err
			}
			s.live = restored
		}
		var results []SearchResult
		var err error
		s.host.WithPersistenceLevel(durable.PersistNothing, func() {
			results, err = s.live.NextPage(ctx)
		})
		if err != nil {
			fn.Persist(nil, durable.EncodeResult(pageRecord{}, err))
			return nil, err
		}
		s.state = s.live.State()
		fn.Persist(nil, durable.EncodeResult(pageRecord{Results: results, State: s.state}, nil))
		return results, nil
	}

	raw, rerr := fn.Replay()
	if rerr != nil {
		return nil, durable.ReplayError(oplogNamespace, "next_page", rerr)
	}
	record, derr := durable.DecodeResult[pageRecord](raw)
	if derr != nil {
		return nil, derr
	}
	s.state = record.State
	return record.Results, nil
}

// Metadata reports the session position without touching the oplog. In
// replay mode the position comes from a session rebuilt around the
// recorded cursor.
func (s *DurableSession) Metadata() *SearchMetadata {
	if s.live != nil {
		var metadata *SearchMetadata
		s.host.WithPersistenceLevel(durable.PersistNothing, func() {
			metadata = s.live.Metadata()
		})
		return metadata
	}
	restored, err := s.provider.Restore(s.params, s.state)
	if err != nil {
		return nil
	}
	return restored.Metadata()
}
