package durable

// Wrap executes one request/response remote operation durably.
//
// Live: the operation runs inside a PersistNothing scope (so its own side
// effects do not produce redundant records), then exactly one oplog entry
// holding the input and the Ok/Err outcome is appended before control
// returns. Replay: the operation is never invoked; the recorded outcome is
// reproduced, errors included.
func Wrap[I, O any](h Host, namespace, name string, kind FunctionKind, input I, op func() (O, error)) (O, error) {
	fn := h.Begin(namespace, name, kind)

	if h.IsLive() {
		var out O
		var err error
		h.WithPersistenceLevel(PersistNothing, func() {
			out, err = op()
		})
		fn.Persist(EncodeInput(input), EncodeResult(out, err))
		return out, err
	}

	raw, rerr := fn.Replay()
	if rerr != nil {
		var zero O
		return zero, ReplayError(namespace, name, rerr)
	}
	return DecodeResult[O](raw)
}
