package agent

import (
	"math/rand"
	"time"
)

// backoffBase and backoffCap implement spec.md §4.5's "bounded
// exponential backoff (base 1s, cap 60s, jitter ±20%)" for state-machine
// retries, distinct from internal/wire.Client's retryablehttp backoff
// (which governs retries within a single HTTP call, not transitions
// between BOOT/DETECT/TUNNEL/REGISTER).
const (
	backoffBase = 1 * time.Second
	backoffCap  = 60 * time.Second
)

// nextBackoff returns the delay before retry attempt n (1-indexed),
// doubling from backoffBase up to backoffCap with ±20% jitter.
func nextBackoff(attempt int) time.Duration {
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			d = backoffCap
			break
		}
	}
	jitter := float64(d) * 0.2 * (rand.Float64()*2 - 1)
	d = time.Duration(float64(d) + jitter)
	if d < 0 {
		d = backoffBase
	}
	return d
}
