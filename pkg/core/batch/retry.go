package batch

import (
	"context"
	"time"

	"agentic_signals/pkg/core/llm"
	"agentic_signals/pkg/models"
)

const (
	maxRetries       = 2
	baseRetryBackoff = 200 * time.Millisecond
)

// withRetry runs fn up to 1+maxRetries times, retrying only transient failure
// kinds (timeout, rate limited) with exponential backoff. Schema mismatches
// and validation errors surface immediately: re-asking an identical prompt
// that produced malformed output is wasted quota.
func withRetry(ctx context.Context, fn func(context.Context) (models.AnalysisResult, error)) (models.AnalysisResult, int, error) {
	var result models.AnalysisResult
	var err error

	attempts := 0
	backoff := baseRetryBackoff
	for {
		attempts++
		result, err = fn(ctx)
		if err == nil {
			return result, attempts, nil
		}
		if attempts > maxRetries || !llm.KindOf(err).Transient() {
			return models.AnalysisResult{}, attempts, err
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return models.AnalysisResult{}, attempts, ctx.Err()
		}
		backoff *= 2
	}
}
