package chat

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/durable"
	"github.com/casualjim/loom/wire"
)

// ReplayStateVersion is the schema version stamped into persisted
// stream snapshots. Logs written at a different version are rejected
// rather than misread.
const ReplayStateVersion = 1

// ReplayState is the serializable snapshot a streaming session
// persists after every poll. It carries everything needed to rebuild
// the session after a crash: the original request, the deltas already
// delivered, and whether the stream had finished.
type ReplayState struct {
	Version  int     `json:"version"`
	Events   []Event `json:"events"`
	Config   Config  `json:"config"`
	Partial  []Delta `json:"partial,omitempty"`
	Finished bool    `json:"finished,omitempty"`
}

// UnmarshalJSON implements custom JSON unmarshaling for ReplayState
func (rs *ReplayState) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	parsed := gjson.ParseBytes(data)
	rs.Version = int(parsed.Get("version").Int())
	if events := parsed.Get("events"); events.Exists() {
		decoded, err := UnmarshalEvents([]byte(events.Raw))
		if err != nil {
			return err
		}
		rs.Events = decoded
	}
	if config := parsed.Get("config"); config.Exists() {
		if err := json.Unmarshal([]byte(config.Raw), &rs.Config); err != nil {
			return err
		}
	}
	if partial := parsed.Get("partial"); partial.Exists() {
		if err := json.Unmarshal([]byte(partial.Raw), &rs.Partial); err != nil {
			return err
		}
	}
	rs.Finished = parsed.Get("finished").Bool()
	return nil
}

func errUnsupportedReplayVersion(version int) error {
	return fmt.Errorf("unsupported stream replay state version %d (want %d)", version, ReplayStateVersion)
}

// pollRecord is the oplog payload of one PollNext: what was delivered
// to the caller this tick plus the snapshot to resume from.
type pollRecord struct {
	Events []StreamEvent `json:"events,omitempty"`
	Ready  bool          `json:"ready"`
	State  ReplayState   `json:"state"`
}

// UnmarshalJSON implements custom JSON unmarshaling for pollRecord
func (p *pollRecord) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	parsed := gjson.ParseBytes(data)
	if events := parsed.Get("events"); events.Exists() {
		decoded, err := UnmarshalStreamEvents([]byte(events.Raw))
		if err != nil {
			return err
		}
		p.Events = decoded
	}
	p.Ready = parsed.Get("ready").Bool()
	if state := parsed.Get("state"); state.Exists() {
		return p.State.UnmarshalJSON([]byte(state.Raw))
	}
	return nil
}

// DurableStream is the replayable streaming session. While the host
// replays, polls are answered from the log without any provider
// traffic. When the log runs out before the stream finished, the
// session reconstructs a live stream, asking the provider to continue
// from the recorded prefix via a retry prompt; that transition happens
// at most once and callers never observe the seam.
type DurableStream struct {
	host     durable.Host
	provider Provider
	ctx      context.Context
	state    ReplayState
	live     Stream
	finished bool
	failure  error
}

func (d *DurableStream) PollNext() ([]StreamEvent, bool, error) {
	if d.failure != nil {
		return nil, true, d.failure
	}
	if d.finished {
		return nil, true, nil
	}

	fn := d.host.Begin(oplogNamespace, "stream_poll_next", durable.ReadRemote)

	if !d.host.IsLive() {
		raw, rerr := fn.Replay()
		if rerr != nil {
			d.failure = durable.ReplayError(oplogNamespace, "stream_poll_next", rerr)
			return nil, true, d.failure
		}
		record, derr := durable.DecodeResult[pollRecord](raw)
		if derr != nil {
			d.failure = loom.AsError(derr)
			return nil, true, d.failure
		}
		d.state = record.State
		d.finished = record.State.Finished
		return record.Events, record.Ready, nil
	}

	if d.live == nil {
		d.resume()
	}

	var events []StreamEvent
	var ready bool
	var err error
	d.host.WithPersistenceLevel(durable.PersistNothing, func() {
		events, ready, err = d.live.PollNext()
	})
	if err != nil {
		// Not persisted: the log ends at the last good poll, so a
		// rehydrated session resumes from there with a retry prompt
		// instead of replaying the failure.
		d.failure = loom.AsError(err)
		return nil, true, d.failure
	}
	if ready {
		d.absorb(events)
	}
	fn.Persist(durable.EncodeInput(struct{}{}), durable.EncodeResult(pollRecord{Events: events, Ready: ready, State: d.state}, nil))
	return events, ready, nil
}

// resume builds the live stream after the recorded log ran dry. With
// deltas already delivered the request is rewritten as a retry prompt
// so the model continues instead of starting over.
func (d *DurableStream) resume() {
	events := d.state.Events
	if len(d.state.Partial) > 0 {
		events = RetryPrompt(d.state.Events, d.state.Partial)
	}
	d.host.WithPersistenceLevel(durable.PersistNothing, func() {
		d.live = d.provider.Stream(d.ctx, events, d.state.Config)
	})
}

func (d *DurableStream) absorb(events []StreamEvent) {
	for _, event := range events {
		switch ev := event.(type) {
		case Delta:
			d.state.Partial = append(d.state.Partial, ev)
		case Finish:
			d.state.Finished = true
			d.finished = true
		}
	}
	// A ready poll with nothing in it is the end-of-stream signal.
	if len(events) == 0 {
		d.state.Finished = true
		d.finished = true
	}
}

func (d *DurableStream) GetNext() ([]StreamEvent, error) {
	for {
		events, ready, err := d.PollNext()
		if err != nil {
			return nil, err
		}
		if ready {
			return events, nil
		}
		d.Subscribe().Block()
	}
}

func (d *DurableStream) Subscribe() wire.Pollable {
	if d.live != nil && !d.finished && d.failure == nil {
		return d.live.Subscribe()
	}
	return wire.ReadyPollable()
}

// Close shuts down the live half, if any, without emitting oplog
// records.
func (d *DurableStream) Close() error {
	if d.live == nil {
		return nil
	}
	var err error
	d.host.WithPersistenceLevel(durable.PersistNothing, func() {
		err = d.live.Close()
	})
	return err
}
