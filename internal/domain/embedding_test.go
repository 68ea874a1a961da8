package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (EmbeddingResult, error) {
	s.calls++
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchResult BatchEmbeddingResult
	batchErr    error
	batchTexts  []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batchResult, s.batchErr
}

func TestBatchFallback_Success(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 5,
		TotalTokens:  5,
	}}

	res, err := BatchFallback(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", res.TotalTokens)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestBatchFallback_FailsWhole(t *testing.T) {
	inner := &stubEmbedder{err: errors.New("backend down")}

	res, err := BatchFallback(context.Background(), inner, []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Embeddings != nil {
		t.Errorf("expected no partial result, got %v", res.Embeddings)
	}
	if inner.calls != 1 {
		t.Errorf("expected abort after first failure, got %d calls", inner.calls)
	}
}

func TestEmbedAll_UsesNativeBatch(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{
		Embeddings: [][]float32{{1}, {2}},
	}}

	res, err := EmbedAll(context.Background(), inner, []string{"x", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if len(inner.batchTexts) != 2 {
		t.Errorf("expected batch call with 2 texts, got %v", inner.batchTexts)
	}
	if inner.calls != 0 {
		t.Errorf("single Embed should not be called, got %d", inner.calls)
	}
}

func TestEmbedAll_BatchError(t *testing.T) {
	inner := &stubBatchEmbedder{batchErr: ErrEmbeddingProviderError}

	_, err := EmbedAll(context.Background(), inner, []string{"x"})
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedAll_Fallback(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}}}

	res, err := EmbedAll(context.Background(), inner, []string{"x", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || inner.calls != 2 {
		t.Errorf("expected per-text fallback, got %d embeddings / %d calls", len(res.Embeddings), inner.calls)
	}
}

func TestEmbeddingSpace_Equal(t *testing.T) {
	a := EmbeddingSpace{Model: "hashing-ngram-v1", Dimensions: 384}
	if !a.Equal(EmbeddingSpace{Model: "hashing-ngram-v1", Dimensions: 384}) {
		t.Error("expected equal spaces")
	}
	if a.Equal(EmbeddingSpace{Model: "hashing-ngram-v1", Dimensions: 256}) {
		t.Error("different dimensions must not be equal")
	}
	if a.Equal(EmbeddingSpace{Model: "other", Dimensions: 384}) {
		t.Error("different models must not be equal")
	}
	if a.String() != "hashing-ngram-v1/384" {
		t.Errorf("unexpected string %q", a.String())
	}
}

func TestDimensionError(t *testing.T) {
	err := NewDimensionError(384, 3)
	if !errors.Is(err, ErrVectorDimMismatch) {
		t.Fatal("expected ErrVectorDimMismatch in chain")
	}
	var de *DimensionError
	if !errors.As(err, &de) || de.Expected != 384 || de.Actual != 3 {
		t.Errorf("unexpected dimension error: %v", err)
	}
}

func TestCompletion_OK(t *testing.T) {
	if !(Completion{Content: "{}"}).OK() {
		t.Error("completion without error should be OK")
	}
	if (Completion{Err: ErrRemoteReasoning}).OK() {
		t.Error("completion with error should not be OK")
	}
}
