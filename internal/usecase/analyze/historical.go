package analyze

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
	"github.com/kailas-cloud/tagrec/internal/logger"
)

const (
	passHistorical = "historical"
	unknownBatch   = "unknown"
	snippetRunes   = 100
)

// historicalVotes carries over vocabulary tags from similar approved records
// that no earlier pass settled. The first neighbor carrying a tag wins.
func (s *Service) historicalVotes(ctx context.Context, p *pipeline) {
	h := recommendation.Historical{Votes: []recommendation.HistoricalVote{}}
	defer func() { p.historical = h }()

	log := logger.FromContext(ctx)

	if s.similar == nil {
		passOutcome(passHistorical, "skipped")
		return
	}

	matches, err := s.similar.Similar(ctx, p.text, s.cfg.HistoricalTopK, s.cfg.HistoricalMinSimilarity)
	if err != nil {
		h.Error = err.Error()
		passOutcome(passHistorical, "degraded")
		log.Warn("Historical vote lookup failed", zap.Error(err))
		return
	}
	h.Neighbors = len(matches)

	files := make(map[int64]string)
	voted := make(map[string]struct{})
	for _, m := range matches {
		for _, tag := range m.Tags {
			if tag == "" || p.excluded(tag) {
				continue
			}
			if _, ok := voted[tag]; ok {
				continue
			}
			if !s.vocab.Contains(tag) {
				h.Dropped = appendUnique(h.Dropped, tag)
				continue
			}
			voted[tag] = struct{}{}
			h.Votes = append(h.Votes, recommendation.HistoricalVote{
				Tag:        tag,
				Provenance: s.provenance(ctx, m, files),
			})
		}
	}

	passOutcome(passHistorical, "ok")
	log.Debug("Historical votes collected",
		zap.Int("neighbors", h.Neighbors),
		zap.Int("votes", len(h.Votes)),
	)
}

func (s *Service) provenance(
	ctx context.Context, m recommendation.Match, files map[int64]string,
) recommendation.Provenance {
	file := s.batchFile(ctx, m.BatchID, files)

	reason := fmt.Sprintf("similarity %d%%", int(math.Round(m.Similarity*100)))
	if file != unknownBatch {
		reason += " - from batch: " + file
	}
	reason += fmt.Sprintf(" (record #%d)", m.RecordID)

	return recommendation.Provenance{
		RecordID:   m.RecordID,
		Similarity: recommendation.Round(m.Similarity, 3),
		BatchRef:   file,
		Snippet:    snippet(m.Text),
		Reason:     reason,
	}
}

// batchFile resolves a batch file name once per request.
func (s *Service) batchFile(ctx context.Context, batchID int64, files map[int64]string) string {
	if batchID <= 0 || s.batches == nil {
		return unknownBatch
	}
	if name, ok := files[batchID]; ok {
		return name
	}

	name, err := s.batches.BatchFileName(ctx, batchID)
	if err != nil || name == "" {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.FromContext(ctx).Warn("Batch lookup failed",
				zap.Int64("batch_id", batchID), zap.Error(err))
		}
		name = unknownBatch
	}
	files[batchID] = name
	return name
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) > snippetRunes {
		runes = runes[:snippetRunes]
	}
	return string(runes) + "..."
}
