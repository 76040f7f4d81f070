package provider

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds retries with linear backoff: retry n waits baseDelay*n.
type RetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

// NewLinearRetryPolicy builds a policy. maxRetries counts retries after the
// first attempt; a non-positive value means no retries.
func NewLinearRetryPolicy(maxRetries int, baseDelay time.Duration) *RetryPolicy {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &RetryPolicy{maxRetries: maxRetries, baseDelay: baseDelay}
}

// ShouldRetry decides whether the error is retryable at the given attempt
// (1-based). Context cancellation is never retried.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt > p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Backoff returns the wait before retry number attempt (1-based).
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.baseDelay * time.Duration(attempt)
}
