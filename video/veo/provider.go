// Package veo adapts Google's Veo long-running video operations to the
// video capability via the Gen AI SDK. A generation job is the
// operation name; polling fetches the operation until it is done. Veo
// exposes no cancellation, so Cancel reports Unsupported.
package veo

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"
	"google.golang.org/genai"

	"github.com/casualjim/loom"
	"github.com/casualjim/loom/video"
)

const defaultModel = "veo-3.0-generate-001"

// Provider drives Veo through a Gen AI client.
type Provider struct {
	client *genai.Client
}

// New creates a provider. With an empty API key the SDK falls back to
// its environment configuration (GEMINI_API_KEY or GOOGLE_API_KEY).
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, loom.InternalErrorf("creating genai client: %v", err)
	}
	return &Provider{client: client}, nil
}

// NewWithClient wraps an existing Gen AI client.
func NewWithClient(client *genai.Client) *Provider {
	return &Provider{client: client}
}

// Generate submits a generation job and returns the operation name.
func (p *Provider) Generate(ctx context.Context, input video.Input, config video.Config) (string, error) {
	model := config.Model
	if model == "" {
		model = defaultModel
	}

	var prompt string
	var image *genai.Image
	switch in := input.(type) {
	case video.Text:
		prompt = in.Prompt
	case video.Image:
		prompt = in.Prompt
		image = &genai.Image{GCSURI: in.URL, ImageBytes: in.Data, MIMEType: in.MimeType}
	default:
		return "", loom.Errorf(loom.InvalidRequest, "unsupported input type %T", input)
	}

	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		NegativePrompt: config.NegativePrompt,
		AspectRatio:    config.AspectRatio,
		Resolution:     config.Resolution,
		Seed:           config.Seed,
		GenerateAudio:  config.GenerateAudio,
	}
	if config.DurationSeconds != nil {
		cfg.DurationSeconds = config.DurationSeconds
	}

	operation, err := p.client.Models.GenerateVideos(ctx, model, prompt, image, cfg)
	if err != nil {
		return "", asError(err)
	}
	return operation.Name, nil
}

// Poll fetches the operation and maps it to a job snapshot.
func (p *Provider) Poll(ctx context.Context, jobID string) (*video.Result, error) {
	if jobID == "" {
		return nil, loom.Errorf(loom.InvalidRequest, "job id must not be empty")
	}
	operation, err := p.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: jobID}, nil)
	if err != nil {
		return nil, asError(err)
	}
	return toResult(jobID, operation), nil
}

// Cancel is not offered by the Veo operations API.
func (p *Provider) Cancel(ctx context.Context, jobID string) (string, error) {
	return "", loom.Unsupportedf("Veo does not support cancelling video jobs")
}

func toResult(jobID string, operation *genai.GenerateVideosOperation) *video.Result {
	result := &video.Result{JobID: jobID, Status: video.StatusRunning}
	if !operation.Done {
		return result
	}
	if operation.Error != nil {
		result.Status = video.StatusFailed
		if blob, err := json.Marshal(operation.Error); err == nil {
			result.ProviderMetadataJSON = string(blob)
		}
		if message, ok := operation.Error["message"].(string); ok {
			result.ErrorMessage = message
		} else {
			result.ErrorMessage = "video generation failed"
		}
		return result
	}
	result.Status = video.StatusSucceeded
	if operation.Response != nil {
		for _, generated := range operation.Response.GeneratedVideos {
			if generated == nil || generated.Video == nil {
				continue
			}
			result.Videos = append(result.Videos, video.Video{
				URI:      generated.Video.URI,
				Data:     generated.Video.VideoBytes,
				MimeType: generated.Video.MIMEType,
			})
		}
	}
	return result
}

func asError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &loom.Error{
			Code:              loom.ErrorCodeFromStatus(apiErr.Code),
			Message:           apiErr.Message,
			ProviderErrorJSON: apiErr.Error(),
		}
	}
	return loom.InternalErrorf("request failed: %v", err)
}
