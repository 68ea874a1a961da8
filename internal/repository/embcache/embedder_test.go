package embcache

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/db"
	"github.com/kailas-cloud/tagrec/internal/domain"
)

func TestEmbed_MissThenHit(t *testing.T) {
	ce, enc, kv := newTestCache(t)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "车厢长四米二")
	if err != nil {
		t.Fatalf("first embed: %v", err)
	}
	if first.TotalTokens != 3 || kv.sets != 1 {
		t.Fatalf("miss: tokens=%d sets=%d", first.TotalTokens, kv.sets)
	}

	second, err := ce.Embed(ctx, "车厢长四米二")
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}
	if enc.calls != 1 {
		t.Errorf("encoder calls = %d, want 1", enc.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit should report zero tokens, got %d", second.TotalTokens)
	}
	for i := range first.Embedding {
		if first.Embedding[i] != second.Embedding[i] {
			t.Fatalf("cached vector differs: %v vs %v", first.Embedding, second.Embedding)
		}
	}
}

func TestEmbed_InnerError(t *testing.T) {
	ce, enc, kv := newTestCache(t)
	enc.err = errors.New("provider down")

	if _, err := ce.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error from inner encoder")
	}
	if kv.sets != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_CacheFailuresDegradeToMiss(t *testing.T) {
	ce, enc, kv := newTestCache(t)
	kv.getErr = errors.New("connection reset")
	kv.setErr = errors.New("read only replica")

	res, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("cache errors must not fail the call: %v", err)
	}
	if len(res.Embedding) != testSpace.Dimensions || enc.calls != 1 {
		t.Errorf("res = %v, calls = %d", res.Embedding, enc.calls)
	}
}

func TestEmbed_DiscardsBadEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry []byte
	}{
		{"not float32 aligned", []byte{1, 2, 3}},
		{"wrong dimension", db.EncodeVector([]float32{1, 0})},
		{"empty", []byte{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ce, enc, kv := newTestCache(t)
			kv.data[ce.cacheKey("x")] = tc.entry

			res, err := ce.Embed(context.Background(), "x")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if enc.calls != 1 || len(res.Embedding) != testSpace.Dimensions {
				t.Errorf("expected fresh embedding, calls=%d vec=%v", enc.calls, res.Embedding)
			}
			if len(kv.data[ce.cacheKey("x")]) != 4*testSpace.Dimensions {
				t.Error("bad entry should be overwritten")
			}
		})
	}
}

func TestBatchEmbed_OnlyMissesReachEncoder(t *testing.T) {
	ce, enc, kv := newTestCache(t)
	ctx := context.Background()
	kv.data[ce.cacheKey("hit")] = db.EncodeVector([]float32{0, 0, 0, 9})

	res, err := ce.BatchEmbed(ctx, []string{"miss1", "hit", "miss22"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("embeddings = %d, want 3", len(res.Embeddings))
	}
	if res.Embeddings[1][3] != 9 {
		t.Errorf("position 1 should be the cached vector, got %v", res.Embeddings[1])
	}
	if len(enc.batchTexts) != 1 {
		t.Fatalf("batch calls = %d, want 1", len(enc.batchTexts))
	}
	if got := enc.batchTexts[0]; len(got) != 2 || got[0] != "miss1" || got[1] != "miss22" {
		t.Errorf("encoder saw %v", got)
	}
	if res.TotalTokens != 6 {
		t.Errorf("tokens = %d, want 6", res.TotalTokens)
	}
	if kv.sets != 2 {
		t.Errorf("sets = %d, want 2", kv.sets)
	}
}

func TestBatchEmbed_DuplicateTexts(t *testing.T) {
	ce, enc, _ := newTestCache(t)
	ctx := context.Background()

	res, err := ce.BatchEmbed(ctx, []string{"a", "bb", "a", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := enc.batchTexts[0]; len(got) != 2 {
		t.Fatalf("encoder should see each text once, got %v", got)
	}
	for _, i := range []int{2, 3} {
		if res.Embeddings[i] == nil || res.Embeddings[i][1] != res.Embeddings[0][1] {
			t.Errorf("position %d = %v, want copy of position 0", i, res.Embeddings[i])
		}
	}

	// all cached now, still aligned
	res, err = ce.BatchEmbed(ctx, []string{"bb", "a", "bb"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enc.batchTexts) != 1 || res.TotalTokens != 0 {
		t.Errorf("all-hit batch reached encoder: calls=%d tokens=%d", len(enc.batchTexts), res.TotalTokens)
	}
	for i, v := range res.Embeddings {
		if v == nil {
			t.Errorf("position %d empty", i)
		}
	}
}

func TestBatchEmbed_Errors(t *testing.T) {
	t.Run("inner failure", func(t *testing.T) {
		ce, enc, _ := newTestCache(t)
		enc.err = errors.New("api down")
		if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("count mismatch", func(t *testing.T) {
		ce, enc, kv := newTestCache(t)
		enc.short = true
		_, err := ce.BatchEmbed(context.Background(), []string{"a", "bb"})
		if !errors.Is(err, domain.ErrEmbeddingProviderError) {
			t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
		}
		if kv.sets != 0 {
			t.Error("nothing should be cached on mismatch")
		}
	})
}

func TestBatchEmbed_Empty(t *testing.T) {
	ce, enc, _ := newTestCache(t)
	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil || enc.calls != 0 {
		t.Fatalf("res=%+v err=%v calls=%d", res, err, enc.calls)
	}
}

func TestCacheKey_NamespacedBySpace(t *testing.T) {
	kv := newMemKV()
	enc := &fakeEncoder{dims: 4}
	a := New(enc, domain.EmbeddingSpace{Model: "m", Dimensions: 4}, kv, nil, zap.NewNop())
	b := New(enc, domain.EmbeddingSpace{Model: "m", Dimensions: 8}, kv, nil, zap.NewNop())
	c := New(enc, domain.EmbeddingSpace{Model: "n", Dimensions: 4}, kv, nil, zap.NewNop())

	if a.cacheKey("t") == b.cacheKey("t") || a.cacheKey("t") == c.cacheKey("t") {
		t.Fatal("different spaces must not share cache keys")
	}
	if a.cacheKey("t") != a.cacheKey("t") {
		t.Fatal("cache key must be deterministic")
	}
}

func TestCounter(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	enc := &fakeEncoder{dims: testSpace.Dimensions}
	ce := New(enc, testSpace, newMemKV(), counter, zap.NewNop())
	ctx := context.Background()

	_, _ = ce.Embed(ctx, "x")
	_, _ = ce.Embed(ctx, "x")
	_, _ = ce.BatchEmbed(ctx, []string{"x", "yy", "x"})

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
}
