// Package temporalog adapts a Temporal workflow context to the durable host
// contract. Each durable call becomes one side effect in the workflow
// history: recorded on the live pass, reproduced without re-execution when
// the workflow replays. Inputs are not stored here; Temporal already keeps
// workflow arguments in history.
package temporalog

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/casualjim/loom/durable"
)

type record struct {
	Namespace string               `json:"namespace"`
	Name      string               `json:"name"`
	Kind      durable.FunctionKind `json:"kind"`
	Result    []byte               `json:"result"`
}

// Host implements durable.Host over a workflow context. Create one per
// workflow execution and thread it through the durable providers.
type Host struct {
	ctx      workflow.Context
	suppress int
}

// New wraps a workflow context. The host must only be used from the
// workflow goroutine that owns ctx.
func New(ctx workflow.Context) *Host {
	return &Host{ctx: ctx}
}

// IsLive implements durable.Host.
func (h *Host) IsLive() bool {
	return !workflow.IsReplaying(h.ctx)
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
	rec := record{
		Namespace: f.namespace,
		Name:      f.name,
		Kind:      f.kind,
		Result:    result,
	}
	workflow.SideEffect(f.host.ctx, func(workflow.Context) interface{} {
		return rec
	})
}

func (f *function) Replay() ([]byte, error) {
	if f.host.IsLive() {
		return nil, errors.New("temporalog: replay requested in live mode")
	}
	// During replay the closure is never invoked; the recorded value is
	// decoded from history. Call sites line up because live and replay take
	// exactly one side effect per durable call, in the same order.
	val := workflow.SideEffect(f.host.ctx, func(workflow.Context) interface{} {
		return record{}
	})
	var rec record
	if err := val.Get(&rec); err != nil {
		return nil, fmt.Errorf("temporalog: decode history value: %w", err)
	}
	if rec.Namespace != f.namespace || rec.Name != f.name || rec.Kind != f.kind {
		return nil, fmt.Errorf("temporalog: replay mismatch: recorded %s::%s (%s), requested %s::%s (%s)",
			rec.Namespace, rec.Name, rec.Kind, f.namespace, f.name, f.kind)
	}
	return rec.Result, nil
}
