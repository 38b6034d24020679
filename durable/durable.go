// Package durable turns fallible remote operations into replayable ones.
//
// A host runtime owns an append-only, per-workflow operation log. While a
// workflow executes live, every durable call records its input and outcome
// in that log before returning; when the workflow is rehydrated, the same
// calls are answered from the log without any network I/O. The Host
// interface is the entire contract this package consumes: the oplog
// substrate itself is a host primitive and is not implemented here
// (reference substrates for development and tests live under oplog/).
package durable

// FunctionKind classifies a durable call for the oplog.
type FunctionKind int

const (
	// ReadRemote marks an idempotent remote read, such as pulling the next
	// page or chunk of an already-started operation.
	ReadRemote FunctionKind = iota
	// WriteRemote marks a remote effect, such as starting a generation.
	WriteRemote
)

func (k FunctionKind) String() string {
	switch k {
	case ReadRemote:
		return "read-remote"
	case WriteRemote:
		return "write-remote"
	default:
		return "unknown"
	}
}

// PersistenceLevel scopes how nested durable calls behave.
type PersistenceLevel int

const (
	// PersistAll is the default: every durable call appends one record.
	PersistAll PersistenceLevel = iota
	// PersistNothing suppresses oplog writes. An outer durable boundary
	// enters this level around its operation so that inner non-deterministic
	// side effects (HTTP, stream reads) are not double-recorded: the outer
	// boundary already captures the final outcome.
	PersistNothing
)

// Function is one named durable call in flight against the oplog.
type Function interface {
	// Persist appends the single record for this call: its input and the
	// eventual outcome, both already encoded. It must be called exactly once
	// per live call, and is a no-op inside a PersistNothing scope.
	Persist(input, result []byte)

	// Replay returns the recorded result for this call. The host is
	// expected to verify that the next record actually belongs to this
	// function; a mismatch or exhausted log is an error.
	Replay() ([]byte, error)
}

// Host is the oplog abstraction provided by the runtime.
type Host interface {
	// IsLive reports whether the workflow is executing live (side effects
	// happen) or replaying from the log (results are reconstructed).
	IsLive() bool

	// Begin opens a durable call named namespace::name.
	Begin(namespace, name string, kind FunctionKind) Function

	// WithPersistenceLevel runs fn under the given persistence level,
	// restoring the previous level afterwards. Levels nest.
	WithPersistenceLevel(level PersistenceLevel, fn func())
}
