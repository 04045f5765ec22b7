// Package ratelimit tracks upstream throttling so that every client sharing
// the same backing store backs off together after a 429.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyThrottledUntil = "jikan:rate_limit:throttled_until"
	RedisKeyThrottles      = "jikan:rate_limit:throttles"
	RedisKeyLastUpdate     = "jikan:rate_limit:last_update"
)

// MaxCooldown bounds a single recorded cooldown. Longer requests are clipped.
const MaxCooldown = 2 * time.Minute

// State is the current throttle state.
type State struct {
	// ThrottledUntil is the end of the active cooldown. Zero when none was recorded.
	ThrottledUntil time.Time `json:"throttled_until"`

	// Throttles counts cooldowns recorded since the counter last expired.
	Throttles int64 `json:"throttles"`

	// LastUpdate is when a cooldown was last recorded.
	LastUpdate time.Time `json:"last_update"`
}

// IsThrottled reports whether a cooldown is active at now.
func (s *State) IsThrottled(now time.Time) bool {
	return now.Before(s.ThrottledUntil)
}

// Remaining returns how long the cooldown still lasts at now, or 0.
func (s *State) Remaining(now time.Time) time.Duration {
	d := s.ThrottledUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}
