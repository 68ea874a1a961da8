package vectorindex

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/tagrec/internal/db/bolt"
	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/domain/vector"
)

var testSpace = domain.EmbeddingSpace{Model: "test-model", Dimensions: 2}

func openBolt(t *testing.T) *bolt.Store {
	t.Helper()
	s, err := bolt.Open(filepath.Join(t.TempDir(), "index.db"), time.Second)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBolt_UpsertQuery(t *testing.T) {
	ctx := context.Background()
	idx := NewBolt(openBolt(t), "conversations", testSpace)

	entries := []vector.Entry{
		{RecordID: 3, Vector: []float32{1, 0}, Text: "east", Tags: []string{"a"}, BatchID: 7},
		{RecordID: 1, Vector: []float32{0, 1}, Text: "north", Tags: []string{"b"}},
		{RecordID: 2, Vector: []float32{1, 1}, Text: "north-east", Tags: []string{"a", "b"}},
	}
	if err := idx.UpsertBatch(ctx, entries); err != nil {
		t.Fatalf("upsert batch: %v", err)
	}

	got, err := idx.Query(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(got))
	}
	if got[0].RecordID != 3 || got[0].Distance > 1e-6 || got[0].BatchID != 7 || got[0].Text != "east" {
		t.Errorf("nearest = %+v", got[0])
	}
	if got[1].RecordID != 2 || len(got[1].Tags) != 2 {
		t.Errorf("second = %+v", got[1])
	}

	n, err := idx.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestBolt_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewBolt(openBolt(t), "c", testSpace)

	for _, text := range []string{"v1", "v2"} {
		if err := idx.Upsert(ctx, vector.Entry{RecordID: 5, Vector: []float32{1, 0}, Text: text}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	n, _ := idx.Count(ctx)
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	got, _ := idx.Query(ctx, []float32{1, 0}, 1)
	if got[0].Text != "v2" {
		t.Errorf("text = %q, want v2", got[0].Text)
	}
}

func TestBolt_TieBreakByRecordID(t *testing.T) {
	ctx := context.Background()
	idx := NewBolt(openBolt(t), "c", testSpace)

	_ = idx.UpsertBatch(ctx, []vector.Entry{
		{RecordID: 9, Vector: []float32{0, 1}},
		{RecordID: 4, Vector: []float32{0, 2}},
		{RecordID: 6, Vector: []float32{0, 3}},
	})
	got, err := idx.Query(ctx, []float32{0, 1}, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for i, want := range []int64{4, 6, 9} {
		if got[i].RecordID != want {
			t.Fatalf("order = %v, want 4,6,9", got)
		}
	}
}

func TestBolt_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewBolt(openBolt(t), "c", testSpace)

	err := idx.UpsertBatch(ctx, []vector.Entry{
		{RecordID: 1, Vector: []float32{1, 0}},
		{RecordID: 2, Vector: []float32{1, 0, 0}},
	})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	// nothing written on a rejected batch
	if n, _ := idx.Count(ctx); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	if _, err := idx.Query(ctx, []float32{1}, 1); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("query: expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestBolt_QueryEmptyAndInvalidK(t *testing.T) {
	ctx := context.Background()
	idx := NewBolt(openBolt(t), "c", testSpace)

	got, err := idx.Query(ctx, []float32{1, 0}, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty query = %v, %v", got, err)
	}
	if _, err := idx.Query(ctx, []float32{1, 0}, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBolt_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	idx := NewBolt(openBolt(t), "c", testSpace)

	_ = idx.UpsertBatch(ctx, []vector.Entry{
		{RecordID: 1, Vector: []float32{1, 0}},
		{RecordID: 2, Vector: []float32{0, 1}},
	})
	if err := idx.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := idx.Delete(ctx, 42); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Fatalf("count after clear = %d", n)
	}
}

func TestBolt_StaleAfterModelChange(t *testing.T) {
	ctx := context.Background()
	store := openBolt(t)

	old := NewBolt(store, "c", testSpace)
	if err := old.Upsert(ctx, vector.Entry{RecordID: 1, Vector: []float32{1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	idx := NewBolt(store, "c", domain.EmbeddingSpace{Model: "other-model", Dimensions: 2})
	stale, err := idx.Stale(ctx)
	if err != nil || !stale {
		t.Fatalf("stale = %v, %v", stale, err)
	}
	if _, err := idx.Query(ctx, []float32{1, 0}, 1); !errors.Is(err, domain.ErrIndexStale) {
		t.Fatalf("query: expected ErrIndexStale, got %v", err)
	}
	if err := idx.Upsert(ctx, vector.Entry{RecordID: 2, Vector: []float32{0, 1}}); !errors.Is(err, domain.ErrIndexStale) {
		t.Fatalf("upsert: expected ErrIndexStale, got %v", err)
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if stale, _ := idx.Stale(ctx); stale {
		t.Fatal("index should be fresh after clear")
	}
	if err := idx.Upsert(ctx, vector.Entry{RecordID: 2, Vector: []float32{0, 1}}); err != nil {
		t.Fatalf("upsert after clear: %v", err)
	}
}

func TestBolt_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := bolt.Open(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	_ = NewBolt(s, "c", testSpace).Upsert(ctx, vector.Entry{RecordID: 1, Vector: []float32{1, 0}, Tags: []string{"x"}})
	_ = s.Close()

	s, err = bolt.Open(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := NewBolt(s, "c", testSpace).Query(ctx, []float32{1, 0}, 1)
	if err != nil || len(got) != 1 || got[0].Tags[0] != "x" {
		t.Fatalf("after reopen = %v, %v", got, err)
	}
}
