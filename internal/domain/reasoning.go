package domain

import "context"

// Completion is the outcome of one remote text-completion call.
// A failed completion carries Err and no content; it is a value, not a Go error.
type Completion struct {
	Content string
	Err     error
}

// OK reports whether the call succeeded.
func (c Completion) OK() bool { return c.Err == nil }

// Reasoner performs a single bounded remote completion. It never returns an error
// past its boundary; failures are reported in the Completion.
type Reasoner interface {
	Complete(ctx context.Context, prompt string, maxTokens int) Completion
}
