package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a fixed inter-request delay per provider. It is the single
// shared pacing point: every stage calls the same provider through the same
// limiter, so the per-provider rate invariant holds even if stages ever run
// concurrently.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPacer creates an empty Pacer.
func NewPacer() *Pacer {
	return &Pacer{limiters: make(map[string]*rate.Limiter)}
}

// Register sets the fixed delay for a provider. Burst is pinned to 1 so the
// limiter degenerates to simple pacing: at least delay between consecutive
// requests. A non-positive delay disables pacing for the provider.
func (p *Pacer) Register(providerName string, delay time.Duration) {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	p.mu.Lock()
	p.limiters[providerName] = rate.NewLimiter(limit, 1)
	p.mu.Unlock()
}

// Wait blocks until the provider's delay since its last request has elapsed,
// respecting the context.
func (p *Pacer) Wait(ctx context.Context, providerName string) error {
	p.mu.Lock()
	limiter, ok := p.limiters[providerName]
	if !ok {
		limiter = rate.NewLimiter(rate.Inf, 1)
		p.limiters[providerName] = limiter
	}
	p.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait for %s: %w", providerName, err)
	}
	return nil
}
