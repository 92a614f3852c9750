// Package retry decides whether a failed agent dispatch should be
// tried again, substituted with a fallback agent, or given up on.
package retry

import "math/rand"

const (
	// DefaultBaseDelayMs seeds the backoff schedule when the caller
	// does not configure one.
	DefaultBaseDelayMs = 1000
	// DefaultMaxRetries bounds attempts per dispatch.
	DefaultMaxRetries = 3
	// BackoffCapMs is the ceiling for a single retry delay.
	BackoffCapMs = 30000

	jitterFraction = 0.1
)

// BackoffDelay returns the recommended wait in milliseconds before
// retry attemptNumber: baseDelayMs doubled per prior attempt, plus up
// to 10% random jitter, capped at BackoffCapMs. Jitter is additive
// only and randomized per call.
func BackoffDelay(attemptNumber int, baseDelayMs int) int {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	if baseDelayMs <= 0 {
		baseDelayMs = DefaultBaseDelayMs
	}
	delay := float64(baseDelayMs)
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= BackoffCapMs {
			return BackoffCapMs
		}
	}
	delay *= 1 + rand.Float64()*jitterFraction
	if delay > BackoffCapMs {
		return BackoffCapMs
	}
	return int(delay)
}
