// Package ratelimit tracks the vision service request budget and gates
// outbound calls. It monitors the X-RateLimit-Remaining and
// X-RateLimit-Reset response headers so that a fleet of clients sharing
// one API key backs off before the service starts rejecting calls.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "vision:rate_limit:remaining"
	RedisKeyResetTimestamp = "vision:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "vision:rate_limit:last_update"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks all calls when the remaining budget falls
	// below this value, leaving headroom for in-flight requests.
	ThresholdCritical = 5

	// ThresholdWarning applies throttling when the remaining budget
	// falls below this value.
	ThresholdWarning = 20

	// ThresholdHealthy indicates normal operation. At or above this
	// value no restrictions apply.
	ThresholdHealthy = 50
)

// State represents the current service request budget. It is shared
// across all client instances via Redis.
type State struct {
	// Remaining is the number of requests left in the current window,
	// from the X-RateLimit-Remaining header.
	Remaining int `json:"remaining"`

	// ResetAt is when the budget window resets, calculated from the
	// X-RateLimit-Reset header (seconds until reset).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if calls should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical
}

// NeedsThrottling returns true if calls should be throttled.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the budget window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field from the current Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
