package analyze

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
	"github.com/kailas-cloud/tagrec/internal/logger"
)

const passContent = "content_analysis"

// analyzeContent asks the model for vocabulary tags supported by the text,
// excluding tags already settled by earlier passes.
func (s *Service) analyzeContent(ctx context.Context, p *pipeline) {
	c := recommendation.ContentAnalysis{
		Recommended: []string{},
		Reasons:     map[string]string{},
		Excluded:    append([]string(nil), p.verification.Appropriate...),
	}
	defer func() { p.content = c }()

	log := logger.FromContext(ctx)

	reply := s.reasoner.Complete(ctx, buildContentPrompt(p.text, c.Excluded, s.vocab), s.cfg.ContentMaxTokens)
	if !reply.OK() {
		c.RemoteError = reply.Err.Error()
		passOutcome(passContent, "degraded")
		log.Warn("Content analysis failed", zap.Error(reply.Err))
		return
	}

	out, err := decodeContent(reply.Content)
	if err != nil {
		c.ParseError = err.Error()
		passOutcome(passContent, "malformed")
		log.Warn("Content analysis reply malformed", zap.Error(err))
		return
	}

	seen := make(map[string]struct{}, len(out.Recommended))
	for _, t := range out.Recommended {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if p.excluded(t) || !s.vocab.Contains(t) {
			c.Dropped = append(c.Dropped, t)
			continue
		}
		c.Recommended = append(c.Recommended, t)
		if reason, ok := out.Reasons[t]; ok {
			c.Reasons[t] = reason
		}
	}

	passOutcome(passContent, "ok")
	log.Debug("Content analysis completed",
		zap.Strings("recommended", c.Recommended),
		zap.Strings("dropped", c.Dropped),
	)
}
