package chat

import (
	"context"

	"github.com/casualjim/loom/durable"
)

// Oplog function names under this namespace mirror the capability
// operations one to one.
const oplogNamespace = "loom_chat"

type callInput struct {
	Events []Event `json:"events"`
	Config Config  `json:"config"`
}

// DurableProvider makes a chat provider replayable: Send becomes a
// one-shot durable call, Stream becomes a DurableStream. The host
// decides whether operations run against the network or against the
// recorded log.
type DurableProvider struct {
	host  durable.Host
	inner Provider
}

// NewDurable wraps a provider with the durable call discipline.
func NewDurable(host durable.Host, provider Provider) *DurableProvider {
	return &DurableProvider{host: host, inner: provider}
}

// Send performs a one-shot completion as a WriteRemote durable call.
// In live mode the provider runs inside a PersistNothing scope and the
// outcome is persisted, errors included; in replay mode the recorded
// outcome is reproduced without touching the provider.
func (d *DurableProvider) Send(ctx context.Context, events []Event, config Config) (*Response, error) {
	return durable.Wrap(d.host, oplogNamespace, "send", durable.WriteRemote, callInput{Events: events, Config: config},
		func() (*Response, error) {
			return d.inner.Send(ctx, events, config)
		})
}

// Stream opens a durable streaming session. The start is recorded as a
// WriteRemote call persisting the initial replay state; every PollNext
// afterwards is a ReadRemote call.
func (d *DurableProvider) Stream(ctx context.Context, events []Event, config Config) Stream {
	fn := d.host.Begin(oplogNamespace, "stream", durable.WriteRemote)

	if d.host.IsLive() {
		var live Stream
		d.host.WithPersistenceLevel(durable.PersistNothing, func() {
			live = d.inner.Stream(ctx, events, config)
		})
		state := ReplayState{Version: ReplayStateVersion, Events: events, Config: config}
		fn.Persist(durable.EncodeInput(callInput{Events: events, Config: config}), durable.EncodeResult(state, nil))
		return &DurableStream{host: d.host, provider: d.inner, ctx: ctx, state: state, live: live}
	}

	raw, rerr := fn.Replay()
	if rerr != nil {
		return NewFailedStream(durable.ReplayError(oplogNamespace, "stream", rerr))
	}
	state, derr := durable.DecodeResult[ReplayState](raw)
	if derr != nil {
		return NewFailedStream(derr)
	}
	if state.Version != ReplayStateVersion {
		return NewFailedStream(durable.ReplayError(oplogNamespace, "stream",
			errUnsupportedReplayVersion(state.Version)))
	}
	return &DurableStream{host: d.host, provider: d.inner, ctx: ctx, state: state, finished: state.Finished}
}
