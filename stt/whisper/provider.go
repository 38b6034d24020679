// Package whisper adapts the OpenAI audio transcription endpoint to the
// stt capability. Audio is uploaded as a multipart form; responses are
// requested in verbose_json so segments and timing come back with the
// text.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/fogfish/opts"
	"github.com/tidwall/sjson"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/pkg/httpx"
	"github.com/casualjim/loom/stt"
)

const (
	apiKeyEnv      = "OPENAI_API_KEY"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "whisper-1"
)

// Provider talks to the OpenAI transcription API.
type Provider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

var (
	// WithBaseURL overrides the API endpoint, usually to point at a stub.
	WithBaseURL = opts.ForName[Provider, string]("BaseURL")
	// WithAPIKey sets the key explicitly instead of reading OPENAI_API_KEY.
	WithAPIKey = opts.ForName[Provider, string]("APIKey")
	// WithHTTPClient swaps the transport.
	WithHTTPClient = opts.ForName[Provider, *http.Client]("HTTPClient")
)

// New creates a provider with the given options applied over defaults.
func New(options ...opts.Option[Provider]) (*Provider, error) {
	p := &Provider{BaseURL: defaultBaseURL, HTTPClient: http.DefaultClient}
	if err := opts.Apply(p, options); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) apiKey() (string, *loom.Error) {
	if p.APIKey != "" {
		return p.APIKey, nil
	}
	return loom.ConfigKey(apiKeyEnv)
}

type apiResponse struct {
	Task     string  `json:"task"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func encodeForm(request stt.Request) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	file, err := form.CreateFormFile("file", fmt.Sprintf("%s.%s", request.RequestID, request.Format))
	if err != nil {
		return nil, "", loom.InternalErrorf("encoding form: %v", err)
	}
	if _, err := file.Write(request.Audio); err != nil {
		return nil, "", loom.InternalErrorf("encoding form: %v", err)
	}

	model := defaultModel
	fields := map[string]string{"response_format": "verbose_json"}
	if o := request.Options; o != nil {
		if o.Model != "" {
			model = o.Model
		}
		if o.Language != "" {
			fields["language"] = o.Language
		}
		if o.Prompt != "" {
			fields["prompt"] = o.Prompt
		}
		if o.Temperature != nil {
			fields["temperature"] = strconv.FormatFloat(*o.Temperature, 'f', -1, 64)
		}
	}
	fields["model"] = model
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return nil, "", loom.InternalErrorf("encoding form: %v", err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", loom.InternalErrorf("encoding form: %v", err)
	}
	return buf.Bytes(), form.FormDataContentType(), nil
}

// Transcribe uploads one audio payload and returns its transcript.
func (p *Provider) Transcribe(ctx context.Context, request stt.Request) (*stt.Result, error) {
	key, cerr := p.apiKey()
	if cerr != nil {
		return nil, cerr
	}
	if len(request.Audio) == 0 {
		return nil, loom.Errorf(loom.InvalidRequest, "request %s carries no audio", request.RequestID)
	}

	body, contentType, err := encodeForm(request)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/audio/transcriptions", bytes.NewReader(body))
	if err != nil {
		return nil, loom.InternalErrorf("building request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+key)

	res, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, loom.InternalErrorf("request failed: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, httpx.Error(res)
	}
	var parsed apiResponse
	if err := httpx.DecodeJSON(res, &parsed); err != nil {
		return nil, err
	}
	return parsed.toResult(request.RequestID), nil
}

// TranscribeMany uploads each request in turn. A failing request does
// not abort the rest; its error is reported alongside the successes.
func (p *Provider) TranscribeMany(ctx context.Context, requests []stt.Request) (*stt.MultiResult, error) {
	out := &stt.MultiResult{}
	for _, request := range requests {
		result, err := p.Transcribe(ctx, request)
		if err != nil {
			out.Failures = append(out.Failures, stt.Failure{
				RequestID: request.RequestID,
				Error:     *loom.AsError(err),
			})
			continue
		}
		out.Results = append(out.Results, *result)
	}
	return out, nil
}

func (r apiResponse) toResult(requestID string) *stt.Result {
	segments := make([]stt.Segment, 0, len(r.Segments))
	for _, segment := range r.Segments {
		segments = append(segments, stt.Segment{
			Text:         segment.Text,
			StartSeconds: segment.Start,
			EndSeconds:   segment.End,
		})
	}
	metadata := ""
	if r.Task != "" {
		metadata, _ = sjson.Set(`{}`, "task", r.Task)
	}
	return &stt.Result{
		RequestID:            requestID,
		Text:                 r.Text,
		Language:             r.Language,
		DurationSeconds:      r.Duration,
		Segments:             segments,
		ProviderMetadataJSON: metadata,
	}
}
