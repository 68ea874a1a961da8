package indexing

import (
	"context"

	domrec "github.com/kailas-cloud/tagrec/internal/domain/record"
	"github.com/kailas-cloud/tagrec/internal/domain/vector"
	"github.com/kailas-cloud/tagrec/internal/repository/vectorindex"
)

// Index is the mutable side of the vector index.
type Index interface {
	Upsert(ctx context.Context, e vector.Entry) error
	UpsertBatch(ctx context.Context, entries []vector.Entry) error
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Stale(ctx context.Context) (bool, error)
	Info() vectorindex.Info
}

// RecordStore reads records to index.
type RecordStore interface {
	Get(ctx context.Context, id int64) (domrec.Record, error)
	ListApproved(ctx context.Context) ([]domrec.Record, error)
	Counts(ctx context.Context) (total, approved int, err error)
}
