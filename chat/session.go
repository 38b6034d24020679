package chat

import (
	"context"

	"github.com/casualjim/loom/pkg/uuidx"
	"github.com/casualjim/loom/wire"
)

// Session owns a growing transcript against a single provider. Send
// and Stream both append the assistant's completed response to the
// transcript so the next turn sees the full history. Sessions are not
// safe for concurrent use.
type Session struct {
	provider Provider
	events   []Event
}

// NewSession starts a transcript with the given initial events.
func NewSession(provider Provider, initial ...Event) *Session {
	return &Session{provider: provider, events: append([]Event(nil), initial...)}
}

// AddEvent appends an arbitrary transcript event.
func (s *Session) AddEvent(event Event) {
	s.events = append(s.events, event)
}

// AddMessage appends a request-side message.
func (s *Session) AddMessage(message Message) {
	s.events = append(s.events, message)
}

// AddToolResults appends tool execution outcomes.
func (s *Session) AddToolResults(results ...ToolResult) {
	s.events = append(s.events, ToolResults(results))
}

// Events returns a copy of the transcript so far.
func (s *Session) Events() []Event {
	return append([]Event(nil), s.events...)
}

// SetEvents replaces the transcript wholesale.
func (s *Session) SetEvents(events []Event) {
	s.events = append([]Event(nil), events...)
}

// Send performs a one-shot completion over the current transcript and
// appends the response on success.
func (s *Session) Send(ctx context.Context, config Config) (*Response, error) {
	response, err := s.provider.Send(ctx, s.events, config)
	if err != nil {
		return nil, err
	}
	s.events = append(s.events, *response)
	return response, nil
}

// Stream opens a streaming completion over the current transcript.
// The returned stream folds deltas into a final Response that is
// appended to the transcript when the stream finishes cleanly.
func (s *Session) Stream(ctx context.Context, config Config) Stream {
	return &sessionStream{
		inner:   s.provider.Stream(ctx, s.events, config),
		session: s,
	}
}

type sessionStream struct {
	inner     Stream
	session   *Session
	content   []ContentPart
	toolCalls []ToolCall
	recorded  bool
}

func (ss *sessionStream) absorb(events []StreamEvent) {
	for _, event := range events {
		switch ev := event.(type) {
		case Delta:
			ss.content = append(ss.content, ev.Content...)
			ss.toolCalls = append(ss.toolCalls, ev.ToolCalls...)
		case Finish:
			if ss.recorded {
				continue
			}
			ss.recorded = true
			ss.session.events = append(ss.session.events, Response{
				ID:        uuidx.NewString(),
				Content:   ss.content,
				ToolCalls: ss.toolCalls,
				Metadata:  ev.Metadata,
			})
		}
	}
}

func (ss *sessionStream) PollNext() ([]StreamEvent, bool, error) {
	events, ready, err := ss.inner.PollNext()
	if err != nil {
		return nil, ready, err
	}
	if ready {
		ss.absorb(events)
	}
	return events, ready, err
}

func (ss *sessionStream) GetNext() ([]StreamEvent, error) {
	events, err := ss.inner.GetNext()
	if err != nil {
		return nil, err
	}
	ss.absorb(events)
	return events, nil
}

func (ss *sessionStream) Subscribe() wire.Pollable {
	return ss.inner.Subscribe()
}

func (ss *sessionStream) Close() error {
	return ss.inner.Close()
}
