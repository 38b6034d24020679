package stt

import (
	"context"

	"github.com/casualjim/loom/durable"
)

const oplogNamespace = "loom_stt"

type transcribeInput struct {
	Request Request `json:"request"`
}

type transcribeManyInput struct {
	Requests []Request `json:"requests"`
}

// DurableProvider wraps a transcription provider so that Transcribe and
// TranscribeMany are recorded as WriteRemote calls and reproduced on
// replay, errors included. The audio bytes travel with the persisted
// input so oplog consumers see the full request.
type DurableProvider struct {
	host  durable.Host
	inner Provider
}

// NewDurable wraps a provider with the durable call discipline.
func NewDurable(host durable.Host, provider Provider) *DurableProvider {
	return &DurableProvider{host: host, inner: provider}
}

func (d *DurableProvider) Transcribe(ctx context.Context, request Request) (*Result, error) {
	return durable.Wrap(d.host, oplogNamespace, "transcribe", durable.WriteRemote,
		transcribeInput{Request: request},
		func() (*Result, error) {
			return d.inner.Transcribe(ctx, request)
		})
}

func (d *DurableProvider) TranscribeMany(ctx context.Context, requests []Request) (*MultiResult, error) {
	return durable.Wrap(d.host, oplogNamespace, "transcribe_many", durable.WriteRemote,
		transcribeManyInput{Requests: requests},
		func() (*MultiResult, error) {
			return d.inner.TranscribeMany(ctx, requests)
		})
}
