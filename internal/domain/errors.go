package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")
	// ErrMissingInput signals a request with neither a record id nor text.
	ErrMissingInput = errors.New("record id or text is required")
	// ErrInvalidArgument signals an out-of-range request parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingProviderError signals an encoder failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexUnavailable signals an unreachable vector store.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrIndexStale signals an index built with a different embedding space.
	ErrIndexStale = errors.New("vector index built with a different embedding model, rebuild required")
	// ErrNoTaggedRecords signals an index build with nothing to index.
	ErrNoTaggedRecords = errors.New("no tagged records to index")

	// ErrRemoteReasoning signals a failed remote completion (non-2xx, timeout, network).
	ErrRemoteReasoning = errors.New("remote reasoning error")
	// ErrReasoningNotConfigured signals a missing reasoning credential.
	ErrReasoningNotConfigured = errors.New("reasoning provider not configured")
	// ErrMalformedResponse signals model output that does not match the expected shape.
	ErrMalformedResponse = errors.New("malformed model response")
)

// DimensionError wraps ErrVectorDimMismatch with the expected and actual sizes.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrVectorDimMismatch.Error(), e.Expected, e.Actual)
}

func (e *DimensionError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimensionError creates a dimension mismatch error.
func NewDimensionError(expected, actual int) error {
	return &DimensionError{Expected: expected, Actual: actual}
}
