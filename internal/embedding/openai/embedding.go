// Package openai provides a ports.Embedding implementation backed by the
// OpenAI Embeddings API via github.com/openai/openai-go, mirroring the
// adapter shape of internal/capability/providers/openai's chat client.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingsClient captures the subset of the openai-go client used by the
// adapter, satisfied by the real client's Embeddings service or a test
// double.
type EmbeddingsClient interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Embedder implements ports.Embedding via the OpenAI Embeddings API.
type Embedder struct {
	embeddings EmbeddingsClient
	model      string
}

// New builds an OpenAI-backed embedder using model (e.g.
// "text-embedding-3-small").
func New(embeddings EmbeddingsClient, model string) (*Embedder, error) {
	if embeddings == nil {
		return nil, errors.New("embedding/openai: embeddings client is required")
	}
	if model == "" {
		return nil, errors.New("embedding/openai: model is required")
	}
	return &Embedder{embeddings: embeddings, model: model}, nil
}

// NewFromAPIKey constructs an embedder using the default openai-go HTTP
// client.
func NewFromAPIKey(apiKey, model string) (*Embedder, error) {
	if apiKey == "" {
		return nil, errors.New("embedding/openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Embeddings, model)
}

// Embed implements ports.Embedding.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding/openai: create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding/openai: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
