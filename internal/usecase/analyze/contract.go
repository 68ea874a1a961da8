package analyze

import (
	"context"

	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
)

// SimilarFinder returns neighbors above a similarity threshold, in index order.
type SimilarFinder interface {
	Similar(ctx context.Context, text string, topK int, minSimilarity float64) ([]recommendation.Match, error)
}

// BatchResolver maps an import batch id to its source file name.
type BatchResolver interface {
	BatchFileName(ctx context.Context, batchID int64) (string, error)
}
