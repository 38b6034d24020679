package video

import (
	"context"

	"github.com/casualjim/loom/durable"
)

const oplogNamespace = "loom_video"

type generateInput struct {
	Input  Input  `json:"input"`
	Config Config `json:"config"`
}

type jobInput struct {
	JobID string `json:"job_id"`
}

// DurableProvider wraps a video provider with the durable discipline:
// job submission and cancellation are WriteRemote calls, polling is a
// ReadRemote call, and all outcomes replay verbatim.
type DurableProvider struct {
	host  durable.Host
	inner Provider
}

// NewDurable wraps a provider with the durable call discipline.
func NewDurable(host durable.Host, provider Provider) *DurableProvider {
	return &DurableProvider{host: host, inner: provider}
}

func (d *DurableProvider) Generate(ctx context.Context, input Input, config Config) (string, error) {
	return durable.Wrap(d.host, oplogNamespace, "generate", durable.WriteRemote,
		generateInput{Input: input, Config: config},
		func() (string, error) {
			return d.inner.Generate(ctx, input, config)
		})
}

func (d *DurableProvider) Poll(ctx context.Context, jobID string) (*Result, error) {
	return durable.Wrap(d.host, oplogNamespace, "poll", durable.ReadRemote,
		jobInput{JobID: jobID},
		func() (*Result, error) {
			return d.inner.Poll(ctx, jobID)
		})
}

func (d *DurableProvider) Cancel(ctx context.Context, jobID string) (string, error) {
	return durable.Wrap(d.host, oplogNamespace, "cancel", durable.WriteRemote,
		jobInput{JobID: jobID},
		func() (string, error) {
			return d.inner.Cancel(ctx, jobID)
		})
}
