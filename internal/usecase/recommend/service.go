// Package recommend ranks tags by how often they appear on similar approved records.
package recommend

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain"
	domrec "github.com/kailas-cloud/tagrec/internal/domain/record"
	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
	"github.com/kailas-cloud/tagrec/internal/domain/vector"
	"github.com/kailas-cloud/tagrec/internal/logger"
	"github.com/kailas-cloud/tagrec/internal/metrics"
)

const (
	maxConfidence  = 0.95
	maxExcerpts    = 3
	excerptRunes   = 200
	noMatchSummary = "no similar approved records found"
)

// Config holds request defaults and bounds. A MinSimilarity of 0 keeps every
// neighbor; start from DefaultConfig to get the standard threshold.
type Config struct {
	DefaultTopK   int
	MaxTopK       int
	MinSimilarity float64
}

// DefaultConfig returns the standard recommender settings.
func DefaultConfig() Config {
	return Config{DefaultTopK: 3, MaxTopK: 10, MinSimilarity: 0.5}
}

// Request is one similarity recommendation request.
// RecordID <= 0 means no record; TopK 0 and nil MinSimilarity take the defaults.
type Request struct {
	RecordID      int64
	Text          string
	TopK          int
	MinSimilarity *float64
}

// Service is the similarity recommender.
type Service struct {
	embed   domain.Embedder
	index   Index
	records domrec.Getter
	cfg     Config
}

// New creates a recommender. records may be nil when only text requests are served.
func New(embed domain.Embedder, index Index, records domrec.Getter, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = def.DefaultTopK
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = def.MaxTopK
	}
	if cfg.MinSimilarity < 0 {
		cfg.MinSimilarity = def.MinSimilarity
	}
	return &Service{embed: embed, index: index, records: records, cfg: cfg}
}

// Recommend resolves the request input and ranks tags from similar records.
func (s *Service) Recommend(ctx context.Context, req Request) (recommendation.Result, error) {
	topK, minSim, err := s.params(req)
	if err != nil {
		return recommendation.Result{}, err
	}

	if req.RecordID > 0 {
		ctx = logger.With(ctx, zap.Int64("record_id", req.RecordID))
	}
	target, err := domrec.Resolve(ctx, s.records, req.RecordID, req.Text)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues("similarity", "rejected").Inc()
		return recommendation.Result{}, err
	}

	matches, err := s.Similar(ctx, target.Text, topK, minSim)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues("similarity", "error").Inc()
		return recommendation.Result{}, err
	}

	res := Rank(matches)
	metrics.RecommendationsTotal.WithLabelValues("similarity", "success").Inc()
	logger.FromContext(ctx).Debug("Similarity recommendation built",
		zap.Int("neighbors", len(matches)),
		zap.Int("tags", len(res.Tags)),
		zap.Float64("confidence", res.Confidence),
	)
	return res, nil
}

func (s *Service) params(req Request) (int, float64, error) {
	topK := req.TopK
	if topK == 0 {
		topK = s.cfg.DefaultTopK
	}
	if topK < 1 || topK > s.cfg.MaxTopK {
		return 0, 0, fmt.Errorf("top_k must be between 1 and %d: %w", s.cfg.MaxTopK, domain.ErrInvalidArgument)
	}

	minSim := s.cfg.MinSimilarity
	if req.MinSimilarity != nil {
		minSim = *req.MinSimilarity
	}
	if math.IsNaN(minSim) || minSim < 0 || minSim > 1 {
		return 0, 0, fmt.Errorf("min_similarity must be in [0, 1]: %w", domain.ErrInvalidArgument)
	}
	return topK, minSim, nil
}

// Similar embeds text, queries the index and keeps neighbors with
// similarity >= minSimilarity, in index order.
func (s *Service) Similar(
	ctx context.Context, text string, topK int, minSimilarity float64,
) ([]recommendation.Match, error) {
	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingProviderError) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}
	// Text without letters or digits encodes to the zero vector; it has no precedent.
	if vector.IsZero(emb.Embedding) {
		return []recommendation.Match{}, nil
	}

	start := time.Now()
	neighbors, err := s.index.Query(ctx, emb.Embedding, topK)
	metrics.IndexQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	matches := make([]recommendation.Match, 0, len(neighbors))
	for _, n := range neighbors {
		sim := vector.Similarity(n.Distance)
		if sim < minSimilarity {
			continue
		}
		matches = append(matches, recommendation.Match{
			RecordID:   n.RecordID,
			Similarity: sim,
			Text:       n.Text,
			Tags:       n.Tags,
			BatchID:    n.BatchID,
		})
	}
	return matches, nil
}

// Rank turns retained neighbors into a recommendation. No matches is a
// successful result with zero confidence.
func Rank(matches []recommendation.Match) recommendation.Result {
	if len(matches) == 0 {
		return recommendation.Result{
			Tags:    []string{},
			Details: map[string]recommendation.TagVote{},
			Summary: noMatchSummary,
		}
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]recommendation.Match)
	var maxSim float64
	for _, m := range matches {
		maxSim = math.Max(maxSim, m.Similarity)
		for _, tag := range m.Tags {
			if tag == "" {
				continue
			}
			if _, ok := firstSeen[tag]; !ok {
				firstSeen[tag] = m
			}
			counts[tag]++
		}
	}

	freq := make([]recommendation.TagCount, 0, len(counts))
	for tag, n := range counts {
		freq = append(freq, recommendation.TagCount{Tag: tag, Count: n})
	}
	slices.SortFunc(freq, func(a, b recommendation.TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(b.Tag, a.Tag)
	})

	tags := make([]string, len(freq))
	details := make(map[string]recommendation.TagVote, len(freq))
	for i, tc := range freq {
		tags[i] = tc.Tag
		src := firstSeen[tc.Tag]
		details[tc.Tag] = recommendation.TagVote{
			Tag:       tc.Tag,
			Source:    recommendation.SourceHistorical,
			Weight:    float64(tc.Count),
			Rationale: fmt.Sprintf("tagged on %d of %d similar records", tc.Count, len(matches)),
			Provenance: &recommendation.Provenance{
				RecordID:   src.RecordID,
				Similarity: recommendation.Round(src.Similarity, 3),
			},
		}
	}

	excerpts := make([]recommendation.Excerpt, 0, maxExcerpts)
	for _, m := range matches[:min(maxExcerpts, len(matches))] {
		excerpts = append(excerpts, recommendation.Excerpt{
			RecordID:   m.RecordID,
			Text:       recommendation.Truncate(m.Text, excerptRunes),
			Tags:       m.Tags,
			Similarity: recommendation.Round(m.Similarity, 3),
		})
	}

	confidence := math.Min(maxConfidence, maxSim*(1+0.1*float64(len(matches))))

	return recommendation.Result{
		Tags:         tags,
		Details:      details,
		Confidence:   recommendation.Round(confidence, 3),
		Summary:      fmt.Sprintf("based on %d similar records", len(matches)),
		Excerpts:     excerpts,
		TagFrequency: freq,
	}
}
