package lifecycle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateState tracks the sliding per-hour sync count for one configuration,
// backed by golang.org/x/time/rate so the "max_syncs_per_hour" throttle
// (spec.md §4.6 step 4) shares the same limiter machinery the rest of the
// stack uses for outbound HTTP.
type RateState struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	maxHour int
}

// NewRateState builds a RateState that allows maxPerHour syncs per rolling
// hour, refilling continuously (maxPerHour tokens per 3600s) with a burst
// equal to the full hourly budget so a quiet hour can be spent at once.
func NewRateState(maxPerHour int) *RateState {
	if maxPerHour <= 0 {
		// Zero/negative disables throttling: an effectively unbounded rate.
		return &RateState{limiter: rate.NewLimiter(rate.Inf, 1), maxHour: 0}
	}
	perSecond := rate.Limit(float64(maxPerHour) / time.Hour.Seconds())
	return &RateState{limiter: rate.NewLimiter(perSecond, maxPerHour), maxHour: maxPerHour}
}

// Throttled reports whether the rate counter has reached max_syncs_per_hour
// (spec.md §4.6 step 4), without consuming a token.
func (s *RateState) Throttled() bool {
	if s.maxHour <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limiter.Tokens() < 1
}

// Consume increments the rate counter when a sync is admitted, before it
// runs.
func (s *RateState) Consume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter.Allow()
}
