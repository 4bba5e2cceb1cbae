package fetch

import "time"

// LinearRetryPolicy implements bounded retries with a linearly increasing
// delay. The total item count is bounded, so there is no need for unbounded
// exponential backoff.
type LinearRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewLinearRetryPolicy builds a policy with the given bounds, falling back
// to 3 attempts spaced from 1 second.
func NewLinearRetryPolicy(maxAttempts int, delay time.Duration) *LinearRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &LinearRetryPolicy{
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

// ShouldRetry decides whether another attempt is warranted. Only transient
// outcomes are ever retried.
func (p *LinearRetryPolicy) ShouldRetry(outcome Outcome, attempt int) bool {
	return outcome == OutcomeTransient && attempt < p.maxAttempts
}

// Backoff returns the wait before the attempt that follows attempt.
func (p *LinearRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.delay
}

// MaxAttempts returns the attempt bound.
func (p *LinearRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}
