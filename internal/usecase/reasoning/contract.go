package reasoning

import "context"

// Provider is a remote text-completion backend.
type Provider interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}
