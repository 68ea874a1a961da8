// Package analyze runs the layered tag analysis: prior-tag verification,
// content analysis and historical votes, fused into one ranked recommendation.
//
// The passes run strictly in order. Each pass adds the tags it settled to the
// pipeline's exclusion set so later passes never re-propose them. Only input
// resolution can fail a request; every pass failure degrades that pass and is
// recorded in the result.
package analyze

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain"
	domrec "github.com/kailas-cloud/tagrec/internal/domain/record"
	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
	"github.com/kailas-cloud/tagrec/internal/domain/vocabulary"
	"github.com/kailas-cloud/tagrec/internal/logger"
	"github.com/kailas-cloud/tagrec/internal/metrics"
)

// Config holds token budgets and historical-pass parameters.
// A HistoricalMinSimilarity of 0 keeps every neighbor.
type Config struct {
	VerifyMaxTokens         int
	ContentMaxTokens        int
	HistoricalTopK          int
	HistoricalMinSimilarity float64
}

// DefaultConfig returns the standard analyzer settings.
func DefaultConfig() Config {
	return Config{
		VerifyMaxTokens:         1500,
		ContentMaxTokens:        2000,
		HistoricalTopK:          10,
		HistoricalMinSimilarity: 0.3,
	}
}

// Request is one analysis request. RecordID <= 0 means no record.
type Request struct {
	RecordID int64
	Text     string
}

// Service is the layered tag analyzer.
type Service struct {
	reasoner domain.Reasoner
	similar  SimilarFinder
	records  domrec.Getter
	batches  BatchResolver
	vocab    *vocabulary.Vocabulary
	cfg      Config
}

// New creates an analyzer. records and batches may be nil.
func New(
	reasoner domain.Reasoner, similar SimilarFinder,
	records domrec.Getter, batches BatchResolver,
	vocab *vocabulary.Vocabulary, cfg Config,
) *Service {
	def := DefaultConfig()
	if cfg.VerifyMaxTokens <= 0 {
		cfg.VerifyMaxTokens = def.VerifyMaxTokens
	}
	if cfg.ContentMaxTokens <= 0 {
		cfg.ContentMaxTokens = def.ContentMaxTokens
	}
	if cfg.HistoricalTopK <= 0 {
		cfg.HistoricalTopK = def.HistoricalTopK
	}
	if cfg.HistoricalMinSimilarity < 0 {
		cfg.HistoricalMinSimilarity = def.HistoricalMinSimilarity
	}
	return &Service{
		reasoner: reasoner,
		similar:  similar,
		records:  records,
		batches:  batches,
		vocab:    vocab,
		cfg:      cfg,
	}
}

// pipeline threads per-request state through the passes.
type pipeline struct {
	text    string
	prior   []string
	exclude map[string]struct{}

	verification recommendation.Verification
	content      recommendation.ContentAnalysis
	historical   recommendation.Historical
}

func newPipeline(text string, prior []string) *pipeline {
	return &pipeline{
		text:    text,
		prior:   dedupe(prior),
		exclude: make(map[string]struct{}),
	}
}

func (p *pipeline) settle(tags []string) {
	for _, t := range tags {
		p.exclude[t] = struct{}{}
	}
}

func (p *pipeline) excluded(tag string) bool {
	_, ok := p.exclude[tag]
	return ok
}

// Analyze resolves the input and runs all passes. Only ErrMissingInput and
// ErrNotFound are returned; pass failures are absorbed into the result.
func (s *Service) Analyze(ctx context.Context, req Request) (recommendation.Analysis, error) {
	if req.RecordID > 0 {
		ctx = logger.With(ctx, zap.Int64("record_id", req.RecordID))
	}
	target, err := domrec.Resolve(ctx, s.records, req.RecordID, req.Text)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues("layered", "rejected").Inc()
		return recommendation.Analysis{}, err
	}

	p := newPipeline(target.Text, target.PriorTags())

	s.verifyPrior(ctx, p)
	p.settle(p.verification.Appropriate)

	s.analyzeContent(ctx, p)
	p.settle(p.content.Recommended)

	s.historicalVotes(ctx, p)

	res := fuse(p)
	metrics.RecommendationsTotal.WithLabelValues("layered", "success").Inc()
	logger.FromContext(ctx).Info("Layered analysis completed",
		zap.Int("prior_tags", len(p.prior)),
		zap.Int("prior_verified", len(p.verification.Appropriate)),
		zap.Int("content", len(p.content.Recommended)),
		zap.Int("historical", len(p.historical.Votes)),
		zap.Float64("confidence", res.Confidence),
	)
	return res, nil
}

func passOutcome(pass, outcome string) {
	metrics.AnalysisPassTotal.WithLabelValues(pass, outcome).Inc()
}

func dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
