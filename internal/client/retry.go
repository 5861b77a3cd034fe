package client

import (
	"math/rand"
	"time"
)

// Config's MaxRetries/RetryDelay feed CalculateBackoff directly; there is no
// separate RetryConfig type here since Config already carries those fields
// for the one Client that needs them.

// CalculateBackoff returns the delay before retry attempt (0-based) after a
// failed call: baseDelay doubled per attempt, capped at maxDelay, with up to
// 25% jitter added so concurrent retries from multiple calls don't land on
// the same tick.
func CalculateBackoff(baseDelay time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	if delay <= 0 {
		return 0
	}

	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}
