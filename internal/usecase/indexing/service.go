// Package indexing rebuilds and maintains the vector index from approved records.
package indexing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain"
	domrec "github.com/kailas-cloud/tagrec/internal/domain/record"
	"github.com/kailas-cloud/tagrec/internal/domain/vector"
	"github.com/kailas-cloud/tagrec/internal/logger"
)

// DefaultMaxBatchSize is the number of entries written per upsert call.
const DefaultMaxBatchSize = 500

// BuildReport is the outcome of a full rebuild.
type BuildReport struct {
	Indexed int
}

// Stats describes the index and the record store behind it.
type Stats struct {
	Entries         int
	Dimensions      int
	Collection      string
	Backend         string
	Model           string
	Stale           bool
	TotalRecords    int
	ApprovedRecords int
}

// Service maintains the vector index.
type Service struct {
	index        Index
	records      RecordStore
	embed        domain.Embedder
	maxBatchSize int
}

// New creates an indexing service.
func New(index Index, records RecordStore, embed domain.Embedder, maxBatchSize int) *Service {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Service{index: index, records: records, embed: embed, maxBatchSize: maxBatchSize}
}

// Build clears the index and re-indexes every approved record with at least one tag.
// Encoding is all-or-nothing: a failed batch leaves the index empty.
func (s *Service) Build(ctx context.Context) (BuildReport, error) {
	log := logger.FromContext(ctx)

	if err := s.index.Clear(ctx); err != nil {
		return BuildReport{}, fmt.Errorf("clear index: %w", err)
	}

	approved, err := s.records.ListApproved(ctx)
	if err != nil {
		return BuildReport{}, fmt.Errorf("list approved records: %w", err)
	}

	tagged := approved[:0:0]
	for _, r := range approved {
		if r.Tagged() {
			tagged = append(tagged, r)
		}
	}
	if len(tagged) == 0 {
		return BuildReport{}, domain.ErrNoTaggedRecords
	}

	texts := make([]string, len(tagged))
	for i, r := range tagged {
		texts[i] = r.Text
	}
	emb, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return BuildReport{}, fmt.Errorf("encode records: %w", encodingError(err))
	}
	if len(emb.Embeddings) != len(tagged) {
		return BuildReport{}, fmt.Errorf("encode records: expected %d vectors, got %d: %w",
			len(tagged), len(emb.Embeddings), domain.ErrEmbeddingProviderError)
	}

	for offset := 0; offset < len(tagged); offset += s.maxBatchSize {
		end := min(offset+s.maxBatchSize, len(tagged))
		entries := make([]vector.Entry, 0, end-offset)
		for i := offset; i < end; i++ {
			entries = append(entries, entryFor(tagged[i], emb.Embeddings[i]))
		}
		if err := s.index.UpsertBatch(ctx, entries); err != nil {
			return BuildReport{}, fmt.Errorf("upsert batch at %d: %w", offset, err)
		}
	}

	log.Info("Vector index rebuilt",
		zap.Int("approved", len(approved)),
		zap.Int("indexed", len(tagged)),
	)
	return BuildReport{Indexed: len(tagged)}, nil
}

// Stats reports index and record-store counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	count, err := s.index.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count index: %w", err)
	}
	stale, err := s.index.Stale(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("check index space: %w", err)
	}
	total, approved, err := s.records.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count records: %w", err)
	}

	info := s.index.Info()
	return Stats{
		Entries:         count,
		Dimensions:      info.Dimensions,
		Collection:      info.Collection,
		Backend:         info.Backend,
		Model:           info.Model,
		Stale:           stale,
		TotalRecords:    total,
		ApprovedRecords: approved,
	}, nil
}

// IndexRecord re-indexes one record after its text or tags changed.
// A record that is no longer approved or has no tags is removed instead.
// It reports whether the record is now in the index.
func (s *Service) IndexRecord(ctx context.Context, id int64) (bool, error) {
	r, err := s.records.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get record %d: %w", id, err)
	}

	if r.Status != domrec.StatusApproved || !r.Tagged() {
		if err := s.index.Delete(ctx, id); err != nil {
			return false, fmt.Errorf("delete record %d: %w", id, err)
		}
		return false, nil
	}

	emb, err := s.embed.Embed(ctx, r.Text)
	if err != nil {
		return false, fmt.Errorf("encode record %d: %w", id, encodingError(err))
	}
	if err := s.index.Upsert(ctx, entryFor(r, emb.Embedding)); err != nil {
		return false, fmt.Errorf("upsert record %d: %w", id, err)
	}
	return true, nil
}

// RemoveRecord deletes one record from the index. Absent records are a no-op.
func (s *Service) RemoveRecord(ctx context.Context, id int64) error {
	if err := s.index.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	return nil
}

func entryFor(r domrec.Record, v []float32) vector.Entry {
	return vector.Entry{
		RecordID: r.ID,
		Vector:   v,
		Text:     r.Text,
		Tags:     r.Tags,
		BatchID:  r.BatchID,
	}
}

func encodingError(err error) error {
	if errors.Is(err, domain.ErrEmbeddingProviderError) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
}
