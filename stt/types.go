// Package stt is the speech-to-text capability: a uniform transcription
// provider interface plus the durable call wrappers that make single and
// batch transcription replayable against a recorded oplog.
package stt

import (
	"github.com/casualjim/loom"
)

// AudioFormat names the container of the uploaded audio.
type AudioFormat string

const (
	WAV  AudioFormat = "wav"
	MP3  AudioFormat = "mp3"
	FLAC AudioFormat = "flac"
	OGG  AudioFormat = "ogg"
	M4A  AudioFormat = "m4a"
	WEBM AudioFormat = "webm"
)

// Options tunes a transcription. All fields are optional.
type Options struct {
	// Language is an ISO 639-1 hint; providers auto-detect when unset.
	Language string `json:"language,omitempty"`
	// Model overrides the provider's default transcription model.
	Model string `json:"model,omitempty"`
	// Prompt primes the decoder with expected vocabulary or style.
	Prompt string `json:"prompt,omitempty"`
	// Temperature widens the sampling when the decoder is stuck.
	Temperature *float64 `json:"temperature,omitempty"`
}

// Request is one piece of audio to transcribe. RequestID correlates
// results and failures in batch calls; audio bytes are persisted with
// the durable call input.
type Request struct {
	RequestID string      `json:"request_id"`
	Audio     []byte      `json:"audio"`
	Format    AudioFormat `json:"format"`
	Options   *Options    `json:"options,omitempty"`
}

// Segment is one timed slice of the transcript.
type Segment struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Result is a completed transcription.
type Result struct {
	RequestID            string    `json:"request_id"`
	Text                 string    `json:"text"`
	Language             string    `json:"language,omitempty"`
	DurationSeconds      float64   `json:"duration_seconds,omitempty"`
	Segments             []Segment `json:"segments,omitempty"`
	ProviderMetadataJSON string    `json:"provider_metadata_json,omitempty"`
}

// Failure records why one request of a batch did not transcribe.
type Failure struct {
	RequestID string     `json:"request_id"`
	Error     loom.Error `json:"error"`
}

// MultiResult is the outcome of a batch transcription. Failures do not
// abort the batch; each request succeeds or fails on its own.
type MultiResult struct {
	Results  []Result  `json:"results"`
	Failures []Failure `json:"failures,omitempty"`
}
