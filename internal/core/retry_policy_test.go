package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(100*time.Millisecond, time.Second)

	for attempt := 0; attempt < 8; attempt++ {
		d := p.Backoff(attempt)
		require.Positive(t, d)
		require.LessOrEqual(t, d, time.Second)
	}

	// The jittered delay stays within [half, full] of the uncapped target.
	first := p.Backoff(0)
	require.GreaterOrEqual(t, first, 50*time.Millisecond)
	require.LessOrEqual(t, first, 100*time.Millisecond)
}
