package chat

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/wire"
)

var (
	deltaJSON  = []byte(`{"type":"delta"}`)
	finishJSON = []byte(`{"type":"finish"}`)
)

// StreamEvent is one canonical streaming event. Concrete variants are
// Delta and Finish.
type StreamEvent interface {
	chatStreamEvent()
}

// Delta carries incremental content and/or completed tool calls for
// one tick of the stream.
type Delta struct {
	Content   []ContentPart `json:"content,omitempty"`
	ToolCalls []ToolCall    `json:"tool_calls,omitempty"`
}

func (Delta) chatStreamEvent() {}

// Finish closes the stream with the finalization metadata.
type Finish struct {
	Metadata ResponseMetadata `json:"metadata"`
}

func (Finish) chatStreamEvent() {}

// MarshalJSON implements custom JSON marshaling for Delta
func (d Delta) MarshalJSON() ([]byte, error) {
	result := deltaJSON
	if len(d.Content) > 0 {
		content, err := json.Marshal(d.Content)
		if err != nil {
			return nil, err
		}
		if result, err = sjson.SetRawBytes(result, "content", content); err != nil {
			return nil, err
		}
	}
	if len(d.ToolCalls) > 0 {
		calls, err := json.Marshal(d.ToolCalls)
		if err != nil {
			return nil, err
		}
		if result, err = sjson.SetRawBytes(result, "tool_calls", calls); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Delta
func (d *Delta) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	parsed := gjson.ParseBytes(data)
	content, err := unmarshalContentParts(parsed.Get("content"))
	if err != nil {
		return err
	}
	d.Content = content
	if calls := parsed.Get("tool_calls"); calls.Exists() {
		if err := json.Unmarshal([]byte(calls.Raw), &d.ToolCalls); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling for Finish
func (f Finish) MarshalJSON() ([]byte, error) {
	metadata, err := json.Marshal(f.Metadata)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(finishJSON, "metadata", metadata)
}

// UnmarshalJSON implements custom JSON unmarshaling for Finish
func (f *Finish) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	metadata := gjson.GetBytes(data, "metadata")
	if !metadata.Exists() {
		return nil
	}
	return json.Unmarshal([]byte(metadata.Raw), &f.Metadata)
}

// UnmarshalStreamEvent decodes a single type-tagged stream event.
func UnmarshalStreamEvent(data []byte) (StreamEvent, error) {
	switch typ := gjson.GetBytes(data, "type").String(); typ {
	case "delta":
		var d Delta
		if err := d.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return d, nil
	case "finish":
		var f Finish
		if err := f.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown stream event type: %q", typ)
	}
}

// UnmarshalStreamEvents decodes a JSON array of type-tagged stream
// events.
func UnmarshalStreamEvents(data []byte) ([]StreamEvent, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	items := gjson.ParseBytes(data).Array()
	if len(items) == 0 {
		return nil, nil
	}
	events := make([]StreamEvent, 0, len(items))
	for _, item := range items {
		event, err := UnmarshalStreamEvent([]byte(item.Raw))
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// Stream is the caller-facing side of a chat completion stream.
//
// PollNext never blocks: ready reports whether anything was decided
// this tick. A ready result with no events and no error means the
// stream is finished, and stays that way on every later call. A
// not-ready result means the caller should Block on Subscribe before
// polling again. Streams are not safe for concurrent use.
type Stream interface {
	PollNext() (events []StreamEvent, ready bool, err error)
	GetNext() ([]StreamEvent, error)
	Subscribe() wire.Pollable
	Close() error
}

// StreamState is what a provider decoder brings to the generic stream
// plumbing: a chunk source plus the per-provider state machine that
// turns raw chunks into canonical events. DecodeChunk returns a nil
// event for chunks that carry nothing reportable.
type StreamState interface {
	Failure() error
	SetFailure(err error)
	IsFinished() bool
	SetFinished()
	Source() wire.Source
	DecodeChunk(raw string) (StreamEvent, error)
}

// StreamBase is the common half of a StreamState. Provider decoders
// embed it and implement DecodeChunk.
type StreamBase struct {
	source   wire.Source
	finished bool
	failure  error
}

// NewStreamBase wraps a chunk source.
func NewStreamBase(source wire.Source) StreamBase {
	return StreamBase{source: source}
}

func (b *StreamBase) Failure() error       { return b.failure }
func (b *StreamBase) SetFailure(err error) { b.failure = err }
func (b *StreamBase) IsFinished() bool     { return b.finished }
func (b *StreamBase) SetFinished()         { b.finished = true }
func (b *StreamBase) Source() wire.Source  { return b.source }

// ProviderStream drives a StreamState against its chunk source. It is
// the live-mode Stream implementation shared by every provider.
type ProviderStream struct {
	state StreamState
}

// NewProviderStream wraps a provider decoder state.
func NewProviderStream(state StreamState) *ProviderStream {
	return &ProviderStream{state: state}
}

func (p *ProviderStream) PollNext() ([]StreamEvent, bool, error) {
	if err := p.state.Failure(); err != nil {
		return nil, true, err
	}
	if p.state.IsFinished() {
		return nil, true, nil
	}

	var events []StreamEvent
	source := p.state.Source()
	for {
		data, state, err := source.PollNext()
		if err != nil {
			p.state.SetFailure(err)
			p.state.SetFinished()
			// Deliver what was already decoded; the failure is sticky and
			// surfaces on the next poll.
			if len(events) > 0 {
				return events, true, nil
			}
			return nil, true, err
		}
		switch state {
		case wire.Pending:
			if len(events) == 0 {
				return nil, false, nil
			}
			return events, true, nil
		case wire.End:
			p.state.SetFinished()
			return events, true, nil
		case wire.Ready:
			if data == "" || data == "[DONE]" {
				continue
			}
			event, err := p.state.DecodeChunk(data)
			if err != nil {
				failure := loom.InternalErrorf("decoding stream chunk: %v", err)
				p.state.SetFailure(failure)
				p.state.SetFinished()
				if len(events) > 0 {
					return events, true, nil
				}
				return nil, true, failure
			}
			if event == nil {
				continue
			}
			events = append(events, event)
			if _, done := event.(Finish); done {
				p.state.SetFinished()
				return events, true, nil
			}
		}
	}
}

func (p *ProviderStream) GetNext() ([]StreamEvent, error) {
	for {
		events, ready, err := p.PollNext()
		if err != nil {
			return nil, err
		}
		if ready {
			return events, nil
		}
		p.Subscribe().Block()
	}
}

func (p *ProviderStream) Subscribe() wire.Pollable {
	if p.state.IsFinished() || p.state.Failure() != nil {
		return wire.ReadyPollable()
	}
	return p.state.Source().Subscribe()
}

func (p *ProviderStream) Close() error {
	return p.state.Source().Close()
}

// failedStream reports a construction-time error on every poll.
type failedStream struct {
	err error
}

// NewFailedStream returns a finished Stream that yields err forever.
// Providers use it when a stream cannot even be started, for example
// when a credential is missing.
func NewFailedStream(err error) Stream {
	return failedStream{err: loom.AsError(err)}
}

func (f failedStream) PollNext() ([]StreamEvent, bool, error) { return nil, true, f.err }
func (f failedStream) GetNext() ([]StreamEvent, error)        { return nil, f.err }
func (f failedStream) Subscribe() wire.Pollable               { return wire.ReadyPollable() }
func (f failedStream) Close() error                           { return nil }
