// Package gemini provides a reasoning provider backed by the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/kailas-cloud/tagrec/internal/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Config holds Gemini provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	HTTPClient  *http.Client
}

// Completer wraps a genai.Client for single-turn text generation.
type Completer struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewCompleter creates a Gemini completion provider.
func NewCompleter(ctx context.Context, cfg Config) (*Completer, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Completer{client: client, model: cfg.Model, temperature: cfg.Temperature}, nil
}

// Model returns the configured model name.
func (c *Completer) Model() string { return c.model }

// Complete sends prompt as one user turn and returns the first candidate's text.
func (c *Completer) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	content := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{content}, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.temperature),
		MaxOutputTokens: int32(maxTokens), //nolint:gosec // token budgets are small
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w: %w", domain.ErrRemoteReasoning, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned: %w", domain.ErrRemoteReasoning)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty candidate: %w", domain.ErrRemoteReasoning)
	}
	return text, nil
}
