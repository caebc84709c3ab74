package core

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// ExponentialRetryPolicy computes jittered backoff delays for failed jobs.
type ExponentialRetryPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewExponentialRetryPolicy builds a policy with sane defaults for job
// re-enqueues: one minute base, one hour cap.
func NewExponentialRetryPolicy() *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		baseDelay: time.Minute,
		maxDelay:  time.Hour,
	}
}

// NewRetryPolicy builds a policy with explicit delays, mainly for tests.
func NewRetryPolicy(base, maxDelay time.Duration) *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{baseDelay: base, maxDelay: maxDelay}
}

// Backoff returns the wait duration before the given retry attempt becomes
// eligible. attempt is zero-based: the first retry waits roughly baseDelay.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
