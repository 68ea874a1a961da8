package indexing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kailas-cloud/tagrec/internal/db/bolt"
	"github.com/kailas-cloud/tagrec/internal/domain"
	domrec "github.com/kailas-cloud/tagrec/internal/domain/record"
	"github.com/kailas-cloud/tagrec/internal/encoder/hashing"
	"github.com/kailas-cloud/tagrec/internal/repository/vectorindex"
)

// --- Mocks ---

type mockRecords struct {
	records []domrec.Record
	listErr error
}

func (m *mockRecords) Get(_ context.Context, id int64) (domrec.Record, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return domrec.Record{}, domain.ErrNotFound
}

func (m *mockRecords) ListApproved(_ context.Context) ([]domrec.Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domrec.Record
	for _, r := range m.records {
		if r.Status == domrec.StatusApproved {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRecords) Counts(_ context.Context) (int, int, error) {
	approved := 0
	for _, r := range m.records {
		if r.Status == domrec.StatusApproved {
			approved++
		}
	}
	return len(m.records), approved, nil
}

type failingEmbedder struct{ err error }

func (f failingEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, f.err
}

// --- Helpers ---

func newBoltIndex(t *testing.T, enc *hashing.Embedder) *vectorindex.Bolt {
	t.Helper()
	s, err := bolt.Open(filepath.Join(t.TempDir(), "index.db"), time.Second)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return vectorindex.NewBolt(s, "conversations", enc.Space())
}

func corpus() *mockRecords {
	return &mockRecords{records: []domrec.Record{
		{ID: 1, Text: "车厢长4.2米，高速费你出吗", Tags: []string{"车厢长X米"}, Status: domrec.StatusApproved, BatchID: 1},
		{ID: 2, Text: "我是厢货，有尾板", Tags: []string{"厢货", "尾板车"}, Status: domrec.StatusApproved, BatchID: 1},
		{ID: 3, Text: "还没审", Tags: []string{"平板"}, Status: domrec.StatusPending},
		{ID: 4, Text: "审过但没打标", Status: domrec.StatusApproved},
	}}
}
