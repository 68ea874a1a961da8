// Package hashing is a dependency-free text encoder based on feature hashing.
//
// Text is lowercased and split into rune unigrams and bigrams (which suits
// Chinese text with no word boundaries) plus ASCII word tokens. Each feature is
// hashed with xxhash64 into one of D buckets with a sign taken from the hash,
// and the result is L2-normalized. Identical text always yields the identical
// vector, and texts sharing many n-grams land close in cosine space.
package hashing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/metrics"
)

// Model is the version string of this feature scheme. Changing the features
// must change it so persisted indexes are detected as stale.
const Model = "hashing-ngram-v1"

const providerName = "hashing"

// DefaultDimensions is used when the configured dimension is not positive.
const DefaultDimensions = 512

const (
	weightUnigram = 1.0
	weightBigram  = 1.5
	weightWord    = 1.0
)

// Embedder implements domain.Embedder and domain.BatchEmbedder in-process.
type Embedder struct {
	dim int
}

// New creates a hashing encoder with dim buckets.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &Embedder{dim: dim}
}

// Space returns the embedding space fingerprint.
func (e *Embedder) Space() domain.EmbeddingSpace {
	return domain.EmbeddingSpace{Model: Model, Dimensions: e.dim}
}

// Embed vectorizes text. Blank text yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("hashing embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	start := time.Now()
	vec := e.vectorize(text)
	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, Model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, Model).Observe(time.Since(start).Seconds())
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// BatchEmbed vectorizes texts in order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	metrics.EmbeddingBatchSize.WithLabelValues(providerName).Observe(float64(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		res, err := e.Embed(ctx, t)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = res.Embedding
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

// HealthCheck always succeeds; there is nothing remote to reach.
func (e *Embedder) HealthCheck(_ context.Context) error { return nil }

func (e *Embedder) vectorize(text string) []float32 {
	acc := make([]float64, e.dim)
	forEachFeature(strings.ToLower(text), func(feature string, weight float64) {
		h := xxhash.Sum64String(feature)
		idx := h % uint64(e.dim)
		if h>>63 == 1 {
			acc[idx] -= weight
		} else {
			acc[idx] += weight
		}
	})

	var norm float64
	for _, x := range acc {
		norm += x * x
	}
	vec := make([]float32, e.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, x := range acc {
		vec[i] = float32(x / norm)
	}
	return vec
}

// forEachFeature emits unigrams and bigrams over runs of letters and digits,
// and whole ASCII alphanumeric words (with inner dots, e.g. "4.2").
func forEachFeature(text string, emit func(feature string, weight float64)) {
	var prev rune
	havePrev := false
	var word strings.Builder

	flushWord := func() {
		if word.Len() > 0 {
			emit("w:"+strings.Trim(word.String(), "."), weightWord)
			word.Reset()
		}
	}

	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			if r == '.' && word.Len() > 0 {
				word.WriteRune(r)
				havePrev = false
				continue
			}
			flushWord()
			havePrev = false
			continue
		}

		emit("u:"+string(r), weightUnigram)
		if havePrev {
			emit("b:"+string(prev)+string(r), weightBigram)
		}
		prev, havePrev = r, true

		if r < unicode.MaxASCII {
			word.WriteRune(r)
		} else {
			flushWord()
		}
	}
	flushWord()
}
