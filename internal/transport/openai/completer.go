package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/tagrec/internal/domain"
)

// GLMBaseURL is the OpenAI-compatible endpoint of the GLM platform.
const GLMBaseURL = "https://open.bigmodel.cn/api/paas/v4"

// Completer sends single-turn chat completions.
type Completer struct {
	client      *openai.Client
	model       string
	temperature float32
}

// CompleterConfig holds chat provider settings.
type CompleterConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// NewCompleter creates a chat completion provider.
func NewCompleter(cfg CompleterConfig) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Completer{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Model returns the configured model name.
func (c *Completer) Model() string { return c.model }

// Complete sends prompt as one user message and returns the first choice.
func (c *Completer) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", parseAPIError("chat", err, domain.ErrRemoteReasoning)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices: %w", domain.ErrRemoteReasoning)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("chat response is empty: %w", domain.ErrRemoteReasoning)
	}
	return content, nil
}
