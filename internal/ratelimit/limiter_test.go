package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	l := New()
	defer l.Stop()

	assert.True(t, l.Allow("tenant-a", 1), "expected first request to be allowed")
}

func TestLimiter_UnlimitedWhenZero(t *testing.T) {
	l := New()
	defer l.Stop()

	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("tenant-a", 0), "expected unlimited tenant to always be allowed (iteration %d)", i)
	}
}

func TestLimiter_RejectsOverBurst(t *testing.T) {
	l := New()
	defer l.Stop()

	require.True(t, l.Allow("tenant-a", 1), "expected first request to be allowed")
	assert.False(t, l.Allow("tenant-a", 1), "expected immediate second request to be rejected for a 1 rps bucket")
}

func TestLimiter_Sweep(t *testing.T) {
	l := &Limiter{
		buckets:  make(map[string]*entry),
		idleTTL:  time.Millisecond,
		sweepInt: time.Hour,
		stop:     make(chan struct{}),
	}

	l.Allow("tenant-a", 5)
	time.Sleep(5 * time.Millisecond)
	l.sweep()

	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	assert.Equal(t, 0, n, "expected idle bucket to be swept")
}
