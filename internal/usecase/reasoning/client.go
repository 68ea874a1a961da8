// Package reasoning turns a remote completion provider into a domain.Reasoner
// that reports every failure as a value.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/metrics"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

// Config describes the provider behind the client.
type Config struct {
	Provider string
	Model    string
	// Configured is false when no credential is set; every call then fails fast.
	Configured bool
	Timeout    time.Duration
}

// Client is a bounded, non-retrying reasoning client.
type Client struct {
	inner  Provider
	cfg    Config
	logger *zap.Logger
}

var _ domain.Reasoner = (*Client)(nil)

// New creates a reasoning client. inner may be nil when cfg.Configured is false.
func New(inner Provider, cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{inner: inner, cfg: cfg, logger: logger}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool { return c.cfg.Configured && c.inner != nil }

// HealthCheck fails when the client has no credential. It does not call the provider.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.Configured() {
		return domain.ErrReasoningNotConfigured
	}
	return nil
}

// Complete performs one completion. It never returns a Go error or panics;
// failures arrive in Completion.Err.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (out domain.Completion) {
	if !c.Configured() {
		c.record("not_configured", 0)
		return domain.Completion{Err: domain.ErrReasoningNotConfigured}
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Reasoning provider panicked",
				zap.String("provider", c.cfg.Provider),
				zap.Any("panic", r),
			)
			out = domain.Completion{Err: fmt.Errorf("provider panic: %v: %w", r, domain.ErrRemoteReasoning)}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	content, err := c.inner.Complete(ctx, prompt, maxTokens)
	duration := time.Since(start)

	if err != nil {
		if !errors.Is(err, domain.ErrRemoteReasoning) {
			err = fmt.Errorf("%w: %w", domain.ErrRemoteReasoning, err)
		}
		c.record("error", duration)
		c.logger.Warn("Reasoning request failed",
			zap.String("provider", c.cfg.Provider),
			zap.String("model", c.cfg.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{Err: err}
	}

	c.record("success", duration)
	c.logger.Debug("Reasoning request completed",
		zap.String("provider", c.cfg.Provider),
		zap.String("model", c.cfg.Model),
		zap.Duration("duration", duration),
		zap.Int("max_tokens", maxTokens),
		zap.Int("response_len", len(content)),
	)
	return domain.Completion{Content: content}
}

func (c *Client) record(status string, duration time.Duration) {
	metrics.ReasoningRequestsTotal.WithLabelValues(c.cfg.Provider, c.cfg.Model, status).Inc()
	if duration > 0 {
		metrics.ReasoningRequestDuration.WithLabelValues(c.cfg.Provider, c.cfg.Model).Observe(duration.Seconds())
	}
}
