// Package wire defines the pull-based chunk source abstraction the streaming
// sessions are built on, along with adapters for the chunk formats providers
// actually emit: server-sent events, newline-delimited JSON, and in-process
// channels for natively typed event streams.
//
// Sources are cooperatively polled: PollNext never blocks, and callers that
// got nothing must Block on the Pollable returned by Subscribe before
// retrying. A source is owned by exactly one session; none of the types here
// are safe for concurrent use.
package wire

// State reports the outcome of a PollNext call.
type State int

const (
	// Pending means no chunk is available yet; Subscribe().Block() before
	// polling again.
	Pending State = iota
	// Ready means a chunk was delivered.
	Ready
	// End means the source is exhausted; no further chunks will arrive.
	End
)

// Chunk is one unit produced by a source: either a raw payload string or a
// transport failure.
type Chunk struct {
	Data string
	Err  error
}

// Source is a pull-based stream of provider-emitted chunks. PollNext returns
// the next chunk without blocking; a non-nil error means the transport
// failed and the source is exhausted (state is End).
type Source interface {
	PollNext() (string, State, error)
	Subscribe() Pollable
	Close() error
}

// Pollable is a readiness token compatible with a cooperative scheduler.
// Block returns once the owner may make progress; IsReady reports whether it
// would return immediately.
type Pollable interface {
	Block()
	IsReady() bool
}

type pollable struct {
	block   func()
	isReady func() bool
}

func (p pollable) Block()        { p.block() }
func (p pollable) IsReady() bool { return p.isReady() }

// NewPollable builds a Pollable from a block and a readiness function.
func NewPollable(block func(), isReady func() bool) Pollable {
	return pollable{block: block, isReady: isReady}
}

// ReadyPollable returns a token that is always ready. Sessions hand it out
// when there is nothing to wait for, e.g. a failed or replaying stream.
func ReadyPollable() Pollable {
	return pollable{block: func() {}, isReady: func() bool { return true }}
}
