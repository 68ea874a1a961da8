package analyze

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain/recommendation"
	"github.com/kailas-cloud/tagrec/internal/logger"
)

const passVerify = "prior_verified"

// verifyPrior asks the model which prior tags fit the text. Anything it does
// not confirm is inappropriate; failures mark every prior tag inappropriate.
func (s *Service) verifyPrior(ctx context.Context, p *pipeline) {
	v := recommendation.Verification{
		Appropriate:   []string{},
		Inappropriate: []string{},
		Reasons:       map[string]string{},
	}
	defer func() { p.verification = v }()

	if len(p.prior) == 0 {
		v.Skipped = true
		passOutcome(passVerify, "skipped")
		return
	}

	log := logger.FromContext(ctx)

	reply := s.reasoner.Complete(ctx, buildVerifyPrompt(p.text, p.prior, s.vocab), s.cfg.VerifyMaxTokens)
	if !reply.OK() {
		v.Inappropriate = append(v.Inappropriate, p.prior...)
		v.RemoteError = reply.Err.Error()
		passOutcome(passVerify, "degraded")
		log.Warn("Prior tag verification failed", zap.Error(reply.Err))
		return
	}

	out, err := decodeVerify(reply.Content)
	if err != nil {
		v.Inappropriate = append(v.Inappropriate, p.prior...)
		v.ParseError = err.Error()
		passOutcome(passVerify, "malformed")
		log.Warn("Prior tag verification reply malformed", zap.Error(err))
		return
	}

	prior := make(map[string]struct{}, len(p.prior))
	for _, t := range p.prior {
		prior[t] = struct{}{}
	}
	rejected := make(map[string]struct{}, len(out.Inappropriate))
	for _, t := range out.Inappropriate {
		t = strings.TrimSpace(t)
		rejected[t] = struct{}{}
		if _, ok := prior[t]; !ok && t != "" {
			v.Dropped = appendUnique(v.Dropped, t)
		}
	}

	confirmed := make(map[string]struct{}, len(out.Appropriate))
	for _, t := range out.Appropriate {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := confirmed[t]; ok {
			continue
		}
		_, isPrior := prior[t]
		if !isPrior || !s.vocab.Contains(t) {
			v.Dropped = appendUnique(v.Dropped, t)
			continue
		}
		if _, ok := rejected[t]; ok {
			continue
		}
		confirmed[t] = struct{}{}
		v.Appropriate = append(v.Appropriate, t)
	}

	for _, t := range p.prior {
		if _, ok := confirmed[t]; !ok {
			v.Inappropriate = append(v.Inappropriate, t)
		}
	}
	for tag, reason := range out.Reasons {
		if _, ok := prior[tag]; ok {
			v.Reasons[tag] = reason
		}
	}

	passOutcome(passVerify, "ok")
	log.Debug("Prior tags verified",
		zap.Strings("appropriate", v.Appropriate),
		zap.Strings("inappropriate", v.Inappropriate),
	)
}

func appendUnique(list []string, tag string) []string {
	for _, t := range list {
		if t == tag {
			return list
		}
	}
	return append(list, tag)
}
