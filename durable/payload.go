package durable

import (
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/pkg/stdx"
)

// Oplog payloads use a common envelope so any consumer of the log can read
// them: the input value as-is, and the result as either {"ok": value} or
// {"err": {code, message, provider_error_json}}. Errors are persisted
// verbatim and re-raised identically on replay.

// EncodeInput renders a durable call's input for the oplog. The values fed
// here are the caller's own request types; failing to marshal one is a
// programming error, not a runtime condition.
func EncodeInput[I any](input I) []byte {
	return stdx.Must1(json.Marshal(input))
}

// EncodeResult renders a durable call's outcome for the oplog.
func EncodeResult[O any](out O, err error) []byte {
	if err != nil {
		return stdx.Must1(sjson.SetBytes([]byte(`{}`), "err", loom.AsError(err)))
	}
	return stdx.Must1(sjson.SetBytes([]byte(`{}`), "ok", out))
}

// DecodeResult reverses EncodeResult. A payload that is neither an ok nor an
// err envelope means the log entry is corrupt, which is fatal for the
// workflow and surfaces as an internal error.
func DecodeResult[O any](raw []byte) (O, error) {
	var zero O
	if !gjson.ValidBytes(raw) {
		return zero, loom.InternalErrorf("corrupt oplog payload: invalid json")
	}
	if errv := gjson.GetBytes(raw, "err"); errv.Exists() {
		var le loom.Error
		if uerr := json.Unmarshal([]byte(errv.Raw), &le); uerr != nil {
			return zero, loom.InternalErrorf("corrupt oplog payload: %v", uerr)
		}
		return zero, &le
	}
	okv := gjson.GetBytes(raw, "ok")
	if !okv.Exists() {
		return zero, loom.InternalErrorf("corrupt oplog payload: missing ok and err")
	}
	var out O
	if uerr := json.Unmarshal([]byte(okv.Raw), &out); uerr != nil {
		return zero, loom.InternalErrorf("corrupt oplog payload: %v", uerr)
	}
	return out, nil
}

// ReplayError wraps a host replay failure (entry missing or mismatched) as
// a fatal internal error. A log that diverges from the code replaying it
// cannot be recovered from.
func ReplayError(namespace, name string, err error) error {
	return loom.InternalErrorf("replay failed for %s::%s: %v", namespace, name, err)
}
