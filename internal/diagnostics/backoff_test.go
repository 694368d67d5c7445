package diagnostics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffSchedule(t *testing.T) {
	for i, base := range retrySchedule {
		d := Backoff(i + 1)
		require.GreaterOrEqual(t, d, time.Duration(float64(base)*0.8), "attempt %d", i+1)
		require.LessOrEqual(t, d, time.Duration(float64(base)*1.2), "attempt %d", i+1)
	}
}

func TestBackoffClampsPastSchedule(t *testing.T) {
	last := retrySchedule[len(retrySchedule)-1]
	for _, attempt := range []int{len(retrySchedule) + 1, 50, 1000} {
		d := Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(float64(last)*0.8))
		require.LessOrEqual(t, d, time.Duration(float64(last)*1.2))
	}
}

func TestBackoffBadAttempt(t *testing.T) {
	first := retrySchedule[0]
	for _, attempt := range []int{0, -1} {
		d := Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(float64(first)*0.8))
		require.LessOrEqual(t, d, time.Duration(float64(first)*1.2))
	}
}

func TestJitterBounds(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 100; i++ {
		d := jitter(base, 0.1)
		require.GreaterOrEqual(t, d, 9*time.Second)
		require.LessOrEqual(t, d, 11*time.Second)
	}
}
