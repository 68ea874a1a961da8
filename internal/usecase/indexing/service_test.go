package indexing

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/tagrec/internal/domain"
	domrec "github.com/kailas-cloud/tagrec/internal/domain/record"
	"github.com/kailas-cloud/tagrec/internal/encoder/hashing"
)

func TestBuild_IndexesTaggedApproved(t *testing.T) {
	ctx := context.Background()
	enc := hashing.New(64)
	idx := newBoltIndex(t, enc)
	svc := New(idx, corpus(), enc, 1)

	report, err := svc.Build(ctx)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.Indexed != 2 {
		t.Fatalf("indexed = %d, want 2", report.Indexed)
	}

	q, _ := enc.Embed(ctx, "我是厢货，有尾板")
	got, err := idx.Query(ctx, q.Embedding, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].RecordID != 2 || got[0].Distance > 1e-6 {
		t.Fatalf("nearest = %+v", got)
	}
	if len(got[0].Tags) != 2 || got[0].BatchID != 1 {
		t.Errorf("entry lost metadata: %+v", got[0])
	}

	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Errorf("count after clear = %d", n)
	}
}

func TestBuild_RebuildReplacesEntries(t *testing.T) {
	ctx := context.Background()
	enc := hashing.New(32)
	idx := newBoltIndex(t, enc)
	records := corpus()
	svc := New(idx, records, enc, 0)

	if _, err := svc.Build(ctx); err != nil {
		t.Fatalf("build: %v", err)
	}
	records.records = records.records[1:]
	if _, err := svc.Build(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestBuild_NoTaggedRecords(t *testing.T) {
	enc := hashing.New(16)
	svc := New(newBoltIndex(t, enc), &mockRecords{records: []domrec.Record{
		{ID: 1, Text: "x", Status: domrec.StatusApproved},
	}}, enc, 0)

	if _, err := svc.Build(context.Background()); !errors.Is(err, domain.ErrNoTaggedRecords) {
		t.Fatalf("expected ErrNoTaggedRecords, got %v", err)
	}
}

func TestBuild_EncodingFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	enc := hashing.New(16)
	idx := newBoltIndex(t, enc)
	svc := New(idx, corpus(), failingEmbedder{err: errors.New("sidecar down")}, 0)

	if _, err := svc.Build(ctx); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestBuild_ListError(t *testing.T) {
	enc := hashing.New(16)
	svc := New(newBoltIndex(t, enc), &mockRecords{listErr: errors.New("db locked")}, enc, 0)

	if _, err := svc.Build(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	enc := hashing.New(16)
	svc := New(newBoltIndex(t, enc), corpus(), enc, 0)

	if _, err := svc.Build(ctx); err != nil {
		t.Fatalf("build: %v", err)
	}
	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Entries != 2 || st.Dimensions != 16 || st.Collection != "conversations" || st.Backend != "bolt" {
		t.Errorf("stats = %+v", st)
	}
	if st.Model != hashing.Model || st.Stale {
		t.Errorf("space = %s stale=%v", st.Model, st.Stale)
	}
	if st.TotalRecords != 4 || st.ApprovedRecords != 3 {
		t.Errorf("records = %d/%d", st.TotalRecords, st.ApprovedRecords)
	}
}

func TestIndexRecord(t *testing.T) {
	ctx := context.Background()
	enc := hashing.New(16)
	idx := newBoltIndex(t, enc)
	records := corpus()
	svc := New(idx, records, enc, 0)

	indexed, err := svc.IndexRecord(ctx, 1)
	if err != nil || !indexed {
		t.Fatalf("index record 1: %v %v", indexed, err)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Fatalf("count = %d", n)
	}

	// tags removed upstream: the entry goes away
	records.records[0].Tags = nil
	indexed, err = svc.IndexRecord(ctx, 1)
	if err != nil || indexed {
		t.Fatalf("reindex untagged: %v %v", indexed, err)
	}
	if n, _ := idx.Count(ctx); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	if indexed, err := svc.IndexRecord(ctx, 3); err != nil || indexed {
		t.Errorf("pending record must not be indexed: %v %v", indexed, err)
	}
	if _, err := svc.IndexRecord(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveRecord_Absent(t *testing.T) {
	enc := hashing.New(16)
	svc := New(newBoltIndex(t, enc), corpus(), enc, 0)

	if err := svc.RemoveRecord(context.Background(), 42); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
}
