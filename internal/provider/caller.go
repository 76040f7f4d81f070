package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/metrics"
)

// Settings parameterizes one provider on the shared call path.
type Settings struct {
	// Delay is the fixed inter-request delay.
	Delay time.Duration
	// MaxRetries bounds retries after the first attempt.
	MaxRetries int
	// BaseBackoff is the linear backoff unit between retries.
	BaseBackoff time.Duration
}

// Caller routes every provider request through per-provider pacing and a
// bounded linear-backoff retry loop. It is injected into each client rather
// than kept as global state so tests can pace and sleep deterministically.
type Caller struct {
	pacer    *Pacer
	policies map[string]*RetryPolicy
	logger   *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewCaller builds a Caller from per-provider settings.
func NewCaller(settings map[string]Settings, logger *zap.Logger) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	pacer := NewPacer()
	policies := make(map[string]*RetryPolicy, len(settings))
	for name, s := range settings {
		pacer.Register(name, s.Delay)
		policies[name] = NewLinearRetryPolicy(s.MaxRetries, s.BaseBackoff)
	}
	return &Caller{
		pacer:    pacer,
		policies: policies,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Do executes fn under the provider's pacing and retry rules. Exhausting
// retries yields a *Error carrying the last failure.
func (c *Caller) Do(ctx context.Context, providerName string, fn func(context.Context) error) error {
	policy, ok := c.policies[providerName]
	if !ok {
		policy = NewLinearRetryPolicy(0, time.Second)
	}

	start := time.Now()
	var lastErr error
	attempt := 0
	for {
		attempt++
		if err := c.pacer.Wait(ctx, providerName); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			metrics.ObserveProviderCall(providerName, "ok", time.Since(start))
			return nil
		}
		if !policy.ShouldRetry(lastErr, attempt) {
			break
		}
		backoff := policy.Backoff(attempt)
		c.logger.Warn("provider call failed, retrying",
			zap.String("provider", providerName),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr),
		)
		if err := c.sleep(ctx, backoff); err != nil {
			return err
		}
	}
	metrics.ObserveProviderCall(providerName, "error", time.Since(start))
	return &Error{Provider: providerName, Attempts: attempt, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
