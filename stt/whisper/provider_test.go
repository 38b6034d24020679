package whisper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/stt"
)

func transcriptionStub(t *testing.T, status int, body string) (*httptest.Server, *[]map[string]string) {
	t.Helper()
	var forms []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form := map[string]string{}
		for key, values := range r.MultipartForm.Value {
			form[key] = values[0]
		}
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		form["__filename"] = header.Filename
		forms = append(forms, form)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &forms
}

func TestTranscribe_ShapesFormAndParsesVerboseJSON(t *testing.T) {
	server, forms := transcriptionStub(t, http.StatusOK, `{
		"task": "transcribe",
		"language": "english",
		"duration": 2.5,
		"text": "hello there",
		"segments": [
			{"start": 0.0, "end": 1.2, "text": "hello"},
			{"start": 1.2, "end": 2.5, "text": " there"}
		]
	}`)

	p, err := New(WithBaseURL(server.URL), WithAPIKey("sk-test"))
	require.NoError(t, err)

	temp := 0.2
	result, err := p.Transcribe(context.Background(), stt.Request{
		RequestID: "req-1",
		Audio:     []byte("RIFFfake"),
		Format:    stt.WAV,
		Options:   &stt.Options{Language: "en", Prompt: "greetings", Temperature: &temp},
	})
	require.NoError(t, err)

	require.Len(t, *forms, 1)
	form := (*forms)[0]
	assert.Equal(t, "req-1.wav", form["__filename"])
	assert.Equal(t, "whisper-1", form["model"])
	assert.Equal(t, "verbose_json", form["response_format"])
	assert.Equal(t, "en", form["language"])
	assert.Equal(t, "greetings", form["prompt"])
	assert.Equal(t, "0.2", form["temperature"])

	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, "english", result.Language)
	assert.InDelta(t, 2.5, result.DurationSeconds, 1e-9)
	require.Len(t, result.Segments, 2)
	assert.InDelta(t, 1.2, result.Segments[0].EndSeconds, 1e-9)
	assert.Contains(t, result.ProviderMetadataJSON, "transcribe")
}

func TestTranscribe_EmptyAudioFailsBeforeHTTP(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	t.Cleanup(server.Close)

	p, err := New(WithBaseURL(server.URL), WithAPIKey("sk-test"))
	require.NoError(t, err)

	_, terr := p.Transcribe(context.Background(), stt.Request{RequestID: "req-1", Format: stt.MP3})
	require.Error(t, terr)
	assert.Equal(t, loom.InvalidRequest, loom.CodeOf(terr))
	assert.Zero(t, hits)
}

func TestTranscribeMany_CollectsFailuresPerRequest(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"task": "transcribe", "text": "first", "language": "english", "duration": 1}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down"}}`))
	}))
	t.Cleanup(server.Close)

	p, err := New(WithBaseURL(server.URL), WithAPIKey("sk-test"))
	require.NoError(t, err)

	out, err := p.TranscribeMany(context.Background(), []stt.Request{
		{RequestID: "a", Audio: []byte("x"), Format: stt.MP3},
		{RequestID: "b", Audio: []byte("y"), Format: stt.MP3},
	})
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	assert.Equal(t, "a", out.Results[0].RequestID)
	assert.Equal(t, "first", out.Results[0].Text)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, "b", out.Failures[0].RequestID)
	assert.Equal(t, loom.RateLimitExceeded, out.Failures[0].Error.Code)
	assert.Contains(t, out.Failures[0].Error.ProviderErrorJSON, "slow down")
}

func TestTranscribe_MissingKeyFailsBeforeHTTP(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	t.Cleanup(server.Close)
	t.Setenv(apiKeyEnv, "")

	p, err := New(WithBaseURL(server.URL))
	require.NoError(t, err)

	_, terr := p.Transcribe(context.Background(), stt.Request{RequestID: "a", Audio: []byte("x"), Format: stt.MP3})
	require.Error(t, terr)
	assert.Equal(t, loom.AuthenticationFailed, loom.CodeOf(terr))
	assert.Zero(t, hits)
}
