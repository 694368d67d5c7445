package diagnostics

import (
	"math/rand"
	"time"
)

var retrySchedule = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
}

// Backoff returns how long to wait before retry number attempt
// (1-based). The schedule caps at an hour; ±20% jitter keeps a fleet of
// clients from retrying in lockstep.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	idx := attempt - 1
	if idx >= len(retrySchedule) {
		idx = len(retrySchedule) - 1
	}
	return jitter(retrySchedule[idx], 0.2)
}

// jitter spreads d by up to ±frac.
func jitter(d time.Duration, frac float64) time.Duration {
	f := 1 + frac*(2*rand.Float64()-1)
	return time.Duration(float64(d) * f)
}
