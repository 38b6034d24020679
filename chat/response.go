package chat

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FinishReason reports why the model stopped generating.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
)

// Usage is the token accounting for one completion. Nil fields mean
// the provider did not report that counter.
type Usage struct {
	InputTokens  *uint32 `json:"input_tokens,omitempty"`
	OutputTokens *uint32 `json:"output_tokens,omitempty"`
	TotalTokens  *uint32 `json:"total_tokens,omitempty"`
}

// ResponseMetadata is the finalization record of a completion. All
// fields are optional; decoders fill in what the provider reports.
type ResponseMetadata struct {
	FinishReason         *FinishReason    `json:"finish_reason,omitempty"`
	Usage                *Usage           `json:"usage,omitempty"`
	ProviderID           *string          `json:"provider_id,omitempty"`
	Timestamp            *strfmt.DateTime `json:"timestamp,omitempty"`
	ProviderMetadataJSON *string          `json:"provider_metadata_json,omitempty"`
}

// Merge folds non-nil fields of other into a copy of m. Providers that
// split finalization across chunks use this to assemble one record.
func (m ResponseMetadata) Merge(other ResponseMetadata) ResponseMetadata {
	if other.FinishReason != nil {
		m.FinishReason = other.FinishReason
	}
	if other.Usage != nil {
		m.Usage = other.Usage
	}
	if other.ProviderID != nil {
		m.ProviderID = other.ProviderID
	}
	if other.Timestamp != nil {
		m.Timestamp = other.Timestamp
	}
	if other.ProviderMetadataJSON != nil {
		m.ProviderMetadataJSON = other.ProviderMetadataJSON
	}
	return m
}

// Response is a completed model turn. It doubles as a transcript
// event so multi-turn conversations can replay prior assistant output
// verbatim.
type Response struct {
	ID        string           `json:"id"`
	Content   []ContentPart    `json:"content"`
	ToolCalls []ToolCall       `json:"tool_calls,omitempty"`
	Metadata  ResponseMetadata `json:"metadata"`
}

func (Response) chatEvent() {}

// MarshalJSON implements custom JSON marshaling for Response
func (r Response) MarshalJSON() ([]byte, error) {
	result, err := sjson.SetBytes(responseJSON, "id", r.ID)
	if err != nil {
		return nil, err
	}
	content, err := json.Marshal(r.Content)
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetRawBytes(result, "content", content); err != nil {
		return nil, err
	}
	if len(r.ToolCalls) > 0 {
		calls, err := json.Marshal(r.ToolCalls)
		if err != nil {
			return nil, err
		}
		if result, err = sjson.SetRawBytes(result, "tool_calls", calls); err != nil {
			return nil, err
		}
	}
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(result, "metadata", metadata)
}

// UnmarshalJSON implements custom JSON unmarshaling for Response
func (r *Response) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	parsed := gjson.ParseBytes(data)
	r.ID = parsed.Get("id").String()

	content, err := unmarshalContentParts(parsed.Get("content"))
	if err != nil {
		return err
	}
	r.Content = content

	if calls := parsed.Get("tool_calls"); calls.Exists() {
		if err := json.Unmarshal([]byte(calls.Raw), &r.ToolCalls); err != nil {
			return err
		}
	}
	if metadata := parsed.Get("metadata"); metadata.Exists() {
		if err := json.Unmarshal([]byte(metadata.Raw), &r.Metadata); err != nil {
			return err
		}
	}
	return nil
}
