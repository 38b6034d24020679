package wire

import (
	"bufio"
	"io"
	"strings"
)

// ndjsonMaxLine bounds a single NDJSON line; ollama done-markers carrying a
// full context array can get large.
const ndjsonMaxLine = 1 << 20

// NewNDJSON turns a newline-delimited JSON body into a Source yielding one
// chunk per non-empty line.
func NewNDJSON(body io.ReadCloser) *ChanSource {
	src := NewChanSource(16)
	src.OnClose(body.Close)

	go func() {
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), ndjsonMaxLine)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !src.Emit(Chunk{Data: line}) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if !src.Fail(err) {
				return
			}
		}
		src.End()
	}()

	return src
}
