// Package memlog is the in-memory reference implementation of the durable
// host contract. It exists for tests and local experiments: a Log survives
// across simulated activations, and every activation attached to it first
// replays what the log already holds, then goes live and appends.
package memlog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/casualjim/loom/durable"
)

// Entry is one recorded durable call.
type Entry struct {
	Namespace string
	Name      string
	Kind      durable.FunctionKind
	Input     []byte
	Result    []byte
}

// Log is the append-only per-workflow record. It may be shared across
// sequential activations; appends are serialized.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Len returns the number of recorded calls.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the recorded calls.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *Log) at(i int) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Host is one activation of a workflow against a log. It is live once every
// entry recorded before the activation started has been replayed.
type Host struct {
	log      *Log
	replayTo int
	cursor   int
	suppress int
}

// New creates a host over a fresh, empty log: live from the first call.
func New() *Host {
	return Attach(NewLog())
}

// Attach creates a host that replays everything already in log before going
// live. This is what a rehydrated workflow activation looks like.
func Attach(log *Log) *Host {
	return &Host{log: log, replayTo: log.Len()}
}

// Log returns the underlying log, for attaching the next activation.
func (h *Host) Log() *Log {
	return h.log
}

// IsLive implements durable.Host.
func (h *Host) IsLive() bool {
	return h.cursor >= h.replayTo
}

// Begin implements durable.Host.
func (h *Host) Begin(namespace, name string, kind durable.FunctionKind) durable.Function {
	return &function{host: h, namespace: namespace, name: name, kind: kind}
}

// WithPersistenceLevel implements durable.Host.
func (h *Host) WithPersistenceLevel(level durable.PersistenceLevel, fn func()) {
	if level == durable.PersistNothing {
		h.suppress++
		defer func() { h.suppress-- }()
	}
	fn()
}

type function struct {
	host      *Host
	namespace string
	name      string
	kind      durable.FunctionKind
}

func (f *function) Persist(input, result []byte) {
	if f.host.suppress > 0 {
		return
	}
	f.host.log.append(Entry{
		Namespace: f.namespace,
		Name:      f.name,
		Kind:      f.kind,
		Input:     input,
		Result:    result,
	})
}

func (f *function) Replay() ([]byte, error) {
	if f.host.IsLive() {
		return nil, errors.New("memlog: replay requested in live mode")
	}
	e, ok := f.host.log.at(f.host.cursor)
	if !ok {
		return nil, errors.New("memlog: oplog exhausted")
	}
	if e.Namespace != f.namespace || e.Name != f.name || e.Kind != f.kind {
		return nil, fmt.Errorf("memlog: replay mismatch at %d: recorded %s::%s (%s), requested %s::%s (%s)",
			f.host.cursor, e.Namespace, e.Name, e.Kind, f.namespace, f.name, f.kind)
	}
	f.host.cursor++
	return e.Result, nil
}
