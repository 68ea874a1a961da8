package chi

import (
	"context"

	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
	analyzeuc "github.com/kailas-cloud/tagrec/internal/usecase/analyze"
	healthuc "github.com/kailas-cloud/tagrec/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/tagrec/internal/usecase/indexing"
	recommenduc "github.com/kailas-cloud/tagrec/internal/usecase/recommend"
)

// Recommender serves similarity-only recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req recommenduc.Request) (recommendation.Result, error)
}

// Analyzer serves layered analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req analyzeuc.Request) (recommendation.Analysis, error)
}

// Indexer maintains the vector index.
type Indexer interface {
	Build(ctx context.Context) (indexinguc.BuildReport, error)
	Stats(ctx context.Context) (indexinguc.Stats, error)
	IndexRecord(ctx context.Context, id int64) (bool, error)
	RemoveRecord(ctx context.Context, id int64) error
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}
