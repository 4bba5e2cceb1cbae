// Package ratelimit implements a token bucket rate limiter keeping request
// rates against the archive hosts polite.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vfrank66/lucas-download/internal/metrics"
)

// Limiter manages per-host rate limits. The calendar pages and the document
// images live on different hosts, so each gets its own bucket.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter. A non-positive RPS disables limiting.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the host of rawURL, respecting
// the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	err := limiter.Wait(ctx)
	if err == nil {
		// Measuring the whole Wait call is a good proxy for the delay the
		// limiter introduced; an immediately available token costs ~0.
		duration := time.Since(start)
		if duration > time.Millisecond {
			metrics.ObserveRateLimitDelay(host, duration)
		}
	}
	if err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
