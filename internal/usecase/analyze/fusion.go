package analyze

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
)

const (
	maxConfidence     = 0.98
	baseConfidence    = 0.7
	perTagConfidence  = 0.03
	maxSimilarDetails = 5

	defaultVerifiedReason = "prior tag verified as appropriate"
	defaultContentReason  = "recommended from content analysis"
)

// fuse merges the pass outputs. Votes are collected in precedence order, so on a
// collision the earlier pass keeps the tag and the later vote is recorded as suppressed.
func fuse(p *pipeline) recommendation.Analysis {
	var votes []recommendation.TagVote
	for _, tag := range p.verification.Appropriate {
		votes = append(votes, recommendation.TagVote{
			Tag:       tag,
			Source:    recommendation.SourcePriorVerified,
			Rationale: reasonOr(p.verification.Reasons, tag, defaultVerifiedReason),
		})
	}
	for _, tag := range p.content.Recommended {
		votes = append(votes, recommendation.TagVote{
			Tag:       tag,
			Source:    recommendation.SourceContentAnalysis,
			Rationale: reasonOr(p.content.Reasons, tag, defaultContentReason),
		})
	}
	similar := make([]recommendation.Provenance, 0, maxSimilarDetails)
	for _, hv := range p.historical.Votes {
		prov := hv.Provenance
		votes = append(votes, recommendation.TagVote{
			Tag:        hv.Tag,
			Source:     recommendation.SourceHistorical,
			Rationale:  prov.Reason,
			Provenance: &prov,
		})
		if len(similar) < maxSimilarDetails {
			similar = append(similar, prov)
		}
	}

	details := make(map[string]recommendation.TagVote, len(votes))
	kept := make([]recommendation.TagVote, 0, len(votes))
	var suppressed []recommendation.TagVote
	for _, v := range votes {
		v.Weight = v.Source.Score()
		if _, ok := details[v.Tag]; ok {
			suppressed = append(suppressed, v)
			continue
		}
		details[v.Tag] = v
		kept = append(kept, v)
	}

	slices.SortStableFunc(kept, func(a, b recommendation.TagVote) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	tags := make([]string, len(kept))
	for i, v := range kept {
		tags[i] = v.Tag
	}

	var auto []string
	switch {
	case len(p.verification.Appropriate) > 0:
		auto = append(auto, p.verification.Appropriate...)
	case len(p.content.Recommended) > 0:
		auto = append(auto, p.content.Recommended...)
	default:
		auto = []string{}
	}

	confidence := math.Min(maxConfidence, baseConfidence+perTagConfidence*float64(len(tags)))

	return recommendation.Analysis{
		Result: recommendation.Result{
			Tags:       tags,
			Details:    details,
			AutoSelect: auto,
			Confidence: recommendation.Round(confidence, 3),
			Summary: fmt.Sprintf("layered analysis: %d prior verified + %d from content + %d historical",
				len(p.verification.Appropriate), len(p.content.Recommended), len(p.historical.Votes)),
		},
		PriorTags:       p.prior,
		Verification:    p.verification,
		ContentAnalysis: p.content,
		Historical:      p.historical,
		Similar:         similar,
		Suppressed:      suppressed,
	}
}

func reasonOr(reasons map[string]string, tag, fallback string) string {
	if r, ok := reasons[tag]; ok && r != "" {
		return r
	}
	return fallback
}
