package domain

import (
	"context"
	"fmt"
)

// KeyPrefix is the default namespace for keys written by tagrec.
const KeyPrefix = "tagrec:"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single call.
// The result is aligned to the input; a batch either fully succeeds or fully fails.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbeddingSpace identifies the vector space an encoder produces.
// Vectors from different spaces must never be compared.
type EmbeddingSpace struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// Equal reports whether two spaces are interchangeable.
func (s EmbeddingSpace) Equal(other EmbeddingSpace) bool {
	return s.Model == other.Model && s.Dimensions == other.Dimensions
}

func (s EmbeddingSpace) String() string {
	return fmt.Sprintf("%s/%d", s.Model, s.Dimensions)
}

// BatchFallback calls Embed once per text for providers without native batching.
// The first failure aborts the whole batch.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	embeddings := make([][]float32, len(texts))
	var totalPrompt, totalTokens int

	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("fallback embed [%d]: %w", i, err)
		}
		embeddings[i] = res.Embedding
		totalPrompt += res.PromptTokens
		totalTokens += res.TotalTokens
	}

	return BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

// EmbedAll routes to BatchEmbed when the embedder supports it, otherwise to BatchFallback.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		return res, nil
	}
	return BatchFallback(ctx, e, texts)
}
