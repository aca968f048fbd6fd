package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies an inference failure. The scheduler retries only
// transient kinds; a schema mismatch is structural and retrying the identical
// prompt is unlikely to fix it.
type FailureKind string

const (
	KindTimeout        FailureKind = "timeout"
	KindRateLimited    FailureKind = "rate_limited"
	KindSchemaMismatch FailureKind = "schema_mismatch"
	KindUnavailable    FailureKind = "unavailable"
	KindCancelled      FailureKind = "cancelled"
)

// InferenceError wraps a provider failure with its classification.
type InferenceError struct {
	Kind FailureKind
	Err  error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed (%s): %v", e.Kind, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying with backoff.
func (k FailureKind) Transient() bool {
	return k == KindTimeout || k == KindRateLimited
}

// KindOf extracts the failure kind from an error chain, defaulting to
// unavailable for unclassified errors.
func KindOf(err error) FailureKind {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindUnavailable
}

// classify maps raw provider errors onto the taxonomy. Providers surface rate
// limits and quota errors with different shapes; string matching on the
// well-known markers is the pragmatic common denominator.
func classify(err error) *InferenceError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &InferenceError{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &InferenceError{Kind: KindCancelled, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted"):
		return &InferenceError{Kind: KindRateLimited, Err: err}
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out"):
		return &InferenceError{Kind: KindTimeout, Err: err}
	default:
		return &InferenceError{Kind: KindUnavailable, Err: err}
	}
}
