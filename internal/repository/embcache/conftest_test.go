package embcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/db"
	"github.com/kailas-cloud/tagrec/internal/domain"
)

// fakeEncoder returns a distinct unit-ish vector per text and records batch calls.
type fakeEncoder struct {
	dims       int
	err        error
	calls      int
	batchTexts [][]string
	tokens     int // per text
	short      bool
}

func (f *fakeEncoder) vec(text string) []float32 {
	v := make([]float32, f.dims)
	v[len(text)%f.dims] = 1
	return v
}

func (f *fakeEncoder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vec(text), PromptTokens: f.tokens, TotalTokens: f.tokens}, nil
}

func (f *fakeEncoder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.calls++
	f.batchTexts = append(f.batchTexts, texts)
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vec(t)
	}
	if f.short {
		out = out[:len(out)-1]
	}
	n := f.tokens * len(texts)
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: n, TotalTokens: n}, nil
}

// memKV is an in-memory store with injectable failures.
type memKV struct {
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

var testSpace = domain.EmbeddingSpace{Model: "hashing-ngram-v1", Dimensions: 4}

func newTestCache(t *testing.T) (*CachedEmbedder, *fakeEncoder, *memKV) {
	t.Helper()
	enc := &fakeEncoder{dims: testSpace.Dimensions, tokens: 3}
	kv := newMemKV()
	return New(enc, testSpace, kv, nil, zap.NewNop()), enc, kv
}
