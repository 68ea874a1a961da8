package reasoning

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterReasoningMetrics()
	os.Exit(m.Run())
}

type mockProvider struct {
	completeFn func(ctx context.Context, prompt string, maxTokens int) (string, error)
	calls      int
}

func (m *mockProvider) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.calls++
	return m.completeFn(ctx, prompt, maxTokens)
}

func TestComplete_Success(t *testing.T) {
	p := &mockProvider{completeFn: func(_ context.Context, prompt string, maxTokens int) (string, error) {
		if prompt != "hello" || maxTokens != 1500 {
			t.Errorf("unexpected args: %q %d", prompt, maxTokens)
		}
		return "world", nil
	}}
	c := New(p, Config{Provider: "test", Model: "m-ok", Configured: true}, zap.NewNop())

	got := c.Complete(context.Background(), "hello", 1500)
	if !got.OK() || got.Content != "world" {
		t.Fatalf("unexpected completion: %+v", got)
	}
	if v := testutil.ToFloat64(metrics.ReasoningRequestsTotal.WithLabelValues("test", "m-ok", "success")); v != 1 {
		t.Errorf("success counter = %v, want 1", v)
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string, int) (string, error) { return "x", nil }}
	c := New(p, Config{Provider: "test", Model: "m"}, zap.NewNop())

	got := c.Complete(context.Background(), "hello", 10)
	if !errors.Is(got.Err, domain.ErrReasoningNotConfigured) {
		t.Fatalf("expected ErrReasoningNotConfigured, got %v", got.Err)
	}
	if p.calls != 0 {
		t.Error("provider must not be called without a credential")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, domain.ErrReasoningNotConfigured) {
		t.Errorf("health = %v", err)
	}
}

func TestComplete_ProviderErrorWrapped(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string, int) (string, error) {
		return "", errors.New("connection reset")
	}}
	c := New(p, Config{Provider: "test", Model: "m-err", Configured: true}, zap.NewNop())

	got := c.Complete(context.Background(), "hello", 10)
	if got.OK() || !errors.Is(got.Err, domain.ErrRemoteReasoning) {
		t.Fatalf("expected ErrRemoteReasoning, got %+v", got)
	}
	if p.calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", p.calls)
	}
}

func TestComplete_Timeout(t *testing.T) {
	p := &mockProvider{completeFn: func(ctx context.Context, _ string, _ int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	c := New(p, Config{Provider: "test", Model: "m", Configured: true, Timeout: 10 * time.Millisecond}, zap.NewNop())

	got := c.Complete(context.Background(), "hello", 10)
	if !errors.Is(got.Err, domain.ErrRemoteReasoning) || !errors.Is(got.Err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", got.Err)
	}
}

func TestComplete_PanicRecovered(t *testing.T) {
	p := &mockProvider{completeFn: func(context.Context, string, int) (string, error) {
		panic("boom")
	}}
	c := New(p, Config{Provider: "test", Model: "m", Configured: true}, zap.NewNop())

	got := c.Complete(context.Background(), "hello", 10)
	if !errors.Is(got.Err, domain.ErrRemoteReasoning) {
		t.Fatalf("expected ErrRemoteReasoning, got %v", got.Err)
	}
}
