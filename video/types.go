// Package video is the video generation capability: asynchronous jobs
// behind a uniform provider interface, with durable wrappers recording
// job submission as a write and every poll as a read.
package video

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Input is what a generation starts from. Concrete variants are Text
// and Image.
type Input interface {
	videoInput()
}

// Text generates from a prompt alone.
type Text struct {
	Prompt string `json:"prompt"`
}

func (Text) videoInput() {}

// Image generates from a first-frame image with an optional prompt.
// Either URL or Data is set.
type Image struct {
	Prompt   string `json:"prompt,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

func (Image) videoInput() {}

var (
	videoTextJSON  = []byte(`{"type":"text"}`)
	videoImageJSON = []byte(`{"type":"image"}`)
)

// MarshalJSON implements custom JSON marshaling for Text
func (t Text) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(videoTextJSON, "prompt", t.Prompt)
}

// MarshalJSON implements custom JSON marshaling for Image
func (i Image) MarshalJSON() ([]byte, error) {
	out := videoImageJSON
	var err error
	if i.Prompt != "" {
		if out, err = sjson.SetBytes(out, "prompt", i.Prompt); err != nil {
			return nil, err
		}
	}
	if i.URL != "" {
		if out, err = sjson.SetBytes(out, "url", i.URL); err != nil {
			return nil, err
		}
	}
	if len(i.Data) > 0 {
		if out, err = sjson.SetBytes(out, "data", i.Data); err != nil {
			return nil, err
		}
	}
	if i.MimeType != "" {
		if out, err = sjson.SetBytes(out, "mime_type", i.MimeType); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UnmarshalInput decodes a single type-tagged input.
func UnmarshalInput(data []byte) (Input, error) {
	parsed := gjson.ParseBytes(data)
	switch typ := parsed.Get("type").String(); typ {
	case "text":
		return Text{Prompt: parsed.Get("prompt").String()}, nil
	case "image":
		img := Image{
			Prompt:   parsed.Get("prompt").String(),
			URL:      parsed.Get("url").String(),
			MimeType: parsed.Get("mime_type").String(),
		}
		if data := parsed.Get("data"); data.Exists() {
			// []byte round-trips through base64 in JSON.
			var blob []byte
			if err := json.Unmarshal([]byte(data.Raw), &blob); err != nil {
				return nil, err
			}
			img.Data = blob
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unknown video input type: %q", typ)
	}
}

// JobStatus is where an asynchronous generation stands.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// Config tunes a generation. All fields are optional.
type Config struct {
	Model           string            `json:"model,omitempty"`
	NegativePrompt  string            `json:"negative_prompt,omitempty"`
	AspectRatio     string            `json:"aspect_ratio,omitempty"`
	Resolution      string            `json:"resolution,omitempty"`
	DurationSeconds *int32            `json:"duration_seconds,omitempty"`
	Seed            *int32            `json:"seed,omitempty"`
	GenerateAudio   *bool             `json:"generate_audio,omitempty"`
	ProviderOptions map[string]string `json:"provider_options,omitempty"`
}

// Video is one finished artifact. Either URI or Data is populated.
type Video struct {
	URI      string `json:"uri,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Result is a snapshot of a job. Videos is populated once the status is
// succeeded; ErrorMessage once it is failed.
type Result struct {
	JobID                string    `json:"job_id"`
	Status               JobStatus `json:"status"`
	Videos               []Video   `json:"videos,omitempty"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	ProviderMetadataJSON string    `json:"provider_metadata_json,omitempty"`
}
