// Package lifecycle implements the Job retry backoff and the per-
// configuration Lifecycle Manager decision procedure (spec.md §4.4, §4.6).
package lifecycle

import "time"

// maxBackoff is the retry backoff ceiling (spec.md §4.4).
const maxBackoff = 3600 * time.Second

// RetryBackoff computes 60·2^retryCount seconds, capped at 1 hour. Pure and
// deterministic so it is directly testable without a clock.
func RetryBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	backoff := 60 * time.Second
	for i := 0; i < retryCount; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
