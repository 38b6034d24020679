package wire

import (
	"errors"
	"io"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// NewSSE turns the body of a streaming HTTP response into a Source yielding
// one chunk per server-sent event's data payload. Event names are not
// surfaced; every provider speaking SSE tags its payloads with a JSON type
// field, which is what the decoders dispatch on.
func NewSSE(res *http.Response) *ChanSource {
	src := NewChanSource(16)
	src.OnClose(func() error { return res.Body.Close() })

	go func() {
		dec := ssestream.NewDecoder(res)
		for dec.Next() {
			if !src.Emit(Chunk{Data: string(dec.Event().Data)}) {
				return
			}
		}
		if err := dec.Err(); err != nil && !errors.Is(err, io.EOF) {
			if !src.Fail(err) {
				return
			}
		}
		src.End()
	}()

	return src
}
