package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLinearRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewLinearRetryPolicy(3, 50*time.Millisecond)
	require.True(t, p.ShouldRetry(OutcomeTransient, 1))
	require.True(t, p.ShouldRetry(OutcomeTransient, 2))
	require.False(t, p.ShouldRetry(OutcomeTransient, 3), "attempts are bounded")
	require.False(t, p.ShouldRetry(OutcomeFatal, 1))
	require.False(t, p.ShouldRetry(OutcomeNotFound, 1))
	require.False(t, p.ShouldRetry(OutcomeSuccess, 1))
}

func TestLinearRetryPolicyBackoffGrowsLinearly(t *testing.T) {
	t.Parallel()

	p := NewLinearRetryPolicy(5, 100*time.Millisecond)
	require.Equal(t, 100*time.Millisecond, p.Backoff(1))
	require.Equal(t, 200*time.Millisecond, p.Backoff(2))
	require.Equal(t, 300*time.Millisecond, p.Backoff(3))
	require.Equal(t, 100*time.Millisecond, p.Backoff(0), "attempt floor is 1")
}

func TestLinearRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewLinearRetryPolicy(0, 0)
	require.Equal(t, 3, p.MaxAttempts())
	require.Equal(t, time.Second, p.Backoff(1))
}
