// Package embed is the embeddings and reranking capability: a uniform
// provider interface plus the durable call wrappers that make both
// operations replayable against a recorded oplog.
package embed

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Input is one embeddable item. Concrete variants are Text and Image.
type Input interface {
	embedInput()
}

// Text is a plain text input.
type Text struct {
	Text string `json:"text"`
}

func (Text) embedInput() {}

// Image is an input referenced by URL. Providers that cannot embed
// images reject it with Unsupported.
type Image struct {
	URL string `json:"url"`
}

func (Image) embedInput() {}

var (
	embedTextJSON  = []byte(`{"type":"text"}`)
	embedImageJSON = []byte(`{"type":"image"}`)
)

// MarshalJSON implements custom JSON marshaling for Text
func (t Text) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(embedTextJSON, "text", t.Text)
}

// MarshalJSON implements custom JSON marshaling for Image
func (i Image) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(embedImageJSON, "url", i.URL)
}

// UnmarshalInput decodes a single type-tagged input.
func UnmarshalInput(data []byte) (Input, error) {
	parsed := gjson.ParseBytes(data)
	switch typ := parsed.Get("type").String(); typ {
	case "text":
		return Text{Text: parsed.Get("text").String()}, nil
	case "image":
		return Image{URL: parsed.Get("url").String()}, nil
	default:
		return nil, fmt.Errorf("unknown input type: %q", typ)
	}
}

// UnmarshalInputs decodes a JSON array of type-tagged inputs.
func UnmarshalInputs(data []byte) ([]Input, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	items := gjson.ParseBytes(data).Array()
	if len(items) == 0 {
		return nil, nil
	}
	inputs := make([]Input, 0, len(items))
	for _, item := range items {
		input, err := UnmarshalInput([]byte(item.Raw))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

// TaskType hints the provider at the downstream use of the vectors.
type TaskType string

const (
	RetrievalQuery     TaskType = "retrieval_query"
	RetrievalDocument  TaskType = "retrieval_document"
	SemanticSimilarity TaskType = "semantic_similarity"
	Classification     TaskType = "classification"
	Clustering         TaskType = "clustering"
)

// OutputFormat selects the wire encoding of the returned vectors.
type OutputFormat string

const (
	FloatArray OutputFormat = "float_array"
	Base64     OutputFormat = "base64"
)

// OutputDtype selects the element type of the returned vectors.
type OutputDtype string

const (
	DtypeFloat   OutputDtype = "float"
	DtypeInt8    OutputDtype = "int8"
	DtypeUint8   OutputDtype = "uint8"
	DtypeBinary  OutputDtype = "binary"
	DtypeUbinary OutputDtype = "ubinary"
)

// Config carries the per-call parameters shared by Generate and Rerank.
type Config struct {
	Model           string            `json:"model,omitempty"`
	TaskType        *TaskType         `json:"task_type,omitempty"`
	Dimensions      *uint32           `json:"dimensions,omitempty"`
	Truncation      *bool             `json:"truncation,omitempty"`
	OutputFormat    *OutputFormat     `json:"output_format,omitempty"`
	OutputDtype     *OutputDtype      `json:"output_dtype,omitempty"`
	User            string            `json:"user,omitempty"`
	ProviderOptions map[string]string `json:"provider_options,omitempty"`
}

// Vector holds one embedding in whichever encoding the provider
// returned. Exactly one field is populated.
type Vector struct {
	Floats []float32 `json:"floats,omitempty"`
	Int8   []int8    `json:"int8,omitempty"`
	Uint8  []uint8   `json:"uint8,omitempty"`
	Base64 string    `json:"base64,omitempty"`
}

// Embedding pairs a vector with the index of the input it embeds.
type Embedding struct {
	Index  uint32 `json:"index"`
	Vector Vector `json:"vector"`
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	InputTokens *uint32 `json:"input_tokens,omitempty"`
	TotalTokens *uint32 `json:"total_tokens,omitempty"`
}

// Response is the outcome of a Generate call.
type Response struct {
	Embeddings           []Embedding `json:"embeddings"`
	Usage                *Usage      `json:"usage,omitempty"`
	Model                string      `json:"model"`
	ProviderMetadataJSON string      `json:"provider_metadata_json,omitempty"`
}

// RerankResult scores one document against the query.
type RerankResult struct {
	Index          uint32  `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
	Document       *string `json:"document,omitempty"`
}

// RerankResponse is the outcome of a Rerank call.
type RerankResponse struct {
	Results              []RerankResult `json:"results"`
	Usage                *Usage         `json:"usage,omitempty"`
	Model                string         `json:"model"`
	ProviderMetadataJSON string         `json:"provider_metadata_json,omitempty"`
}

// TextInputs extracts the text items from a mixed input list.
func TextInputs(inputs []Input) []string {
	var texts []string
	for _, input := range inputs {
		if t, ok := input.(Text); ok {
			texts = append(texts, t.Text)
		}
	}
	return texts
}
