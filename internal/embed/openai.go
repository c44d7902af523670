package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/incidentradar/internal/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIBatchSize = 64

// OpenAI embeds through the OpenAI embeddings API or any compatible server
// (text-embeddings-inference, vLLM, Ollama).
type OpenAI struct {
	client     openai.Client
	model      string
	dimensions int
}

func NewOpenAI(cfg config.EmbeddingConfig) *OpenAI {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, option.WithAPIKey("unused"))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: cfg.Model, dimensions: cfg.Dimensions}
}

// Model names the model and, when the request shortens vectors, the requested
// length, so indexes built at different lengths never match.
func (e *OpenAI) Model() string {
	if d := e.Dimensions(); d > 0 {
		return fmt.Sprintf("%s@%d", e.model, d)
	}
	return e.model
}

func (e *OpenAI) Dimensions() int {
	if e.dimensions > 0 && isDimensionable(e.model) {
		return e.dimensions
	}
	return 0
}

func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := min(start+openAIBatchSize, len(texts))

		params := openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			Model: openai.EmbeddingModel(e.model),
		}
		if d := e.Dimensions(); d > 0 {
			params.Dimensions = openai.Int(int64(d))
		}

		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(resp.Data))
		}
		for _, d := range resp.Data {
			idx := start + int(d.Index)
			if idx < start || idx >= end {
				return nil, fmt.Errorf("embed batch %d-%d: index %d out of range", start, end, d.Index)
			}
			v := make([]float32, len(d.Embedding))
			for i, x := range d.Embedding {
				v[i] = float32(x)
			}
			out[idx] = Normalize(v)
		}
	}
	return out, nil
}

// isDimensionable reports whether the model accepts a dimensions parameter.
func isDimensionable(model string) bool {
	switch openai.EmbeddingModel(model) {
	case openai.EmbeddingModelTextEmbedding3Small, openai.EmbeddingModelTextEmbedding3Large:
		return true
	}
	return false
}
