// Package httpx carries the HTTP plumbing the REST providers share.
package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/casualjim/loom"
)

const maxErrorBody = 1 << 20

// Do issues a request with a JSON body and the given extra headers. Transport
// failures come back as internal errors; HTTP-level failures are left to the
// caller, which knows whether a body is expected.
func Do(ctx context.Context, client *http.Client, method, url string, headers http.Header, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, loom.InternalErrorf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, loom.InternalErrorf("request failed: %v", err)
	}
	return res, nil
}

// PostJSON marshals payload and POSTs it.
func PostJSON(ctx context.Context, client *http.Client, url string, headers http.Header, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, loom.InternalErrorf("encoding request: %v", err)
	}
	return Do(ctx, client, http.MethodPost, url, headers, body)
}

// Error drains a non-2xx response into the error taxonomy, keeping the
// provider's body verbatim.
func Error(res *http.Response) *loom.Error {
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return loom.ErrorFromResponse(res.StatusCode, string(body))
}

// DecodeJSON reads a successful response body into out and closes it.
func DecodeJSON(res *http.Response, out any) error {
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return loom.InternalErrorf("decoding response: %v", err)
	}
	return nil
}
