// Package ratelimit paces requests against the indicators API. A fixed pause
// is enforced between consecutive requests and a Retry-After header moves the
// next allowed request further out. Pacing state can be shared between
// processes on one host through Redis.
package ratelimit

import (
	"time"
)

// Redis key for shared pacer state.
const RedisKeyPacerState = "wdi:pacer:state"

// DefaultInterval is the pause between consecutive requests.
const DefaultInterval = 2 * time.Second

// StaleAfter is how long without a request before a window starts afresh.
const StaleAfter = 15 * time.Minute

// State is the pacing state persisted between requests.
type State struct {
	// LastRequest is when the most recent request was let through.
	LastRequest time.Time `json:"last_request"`

	// NextAllowed is the earliest time the next request may start.
	NextAllowed time.Time `json:"next_allowed"`

	// Requests counts requests let through since the state was created.
	Requests int `json:"requests"`

	// RetryAfter is the last delay announced by the server, zero if none.
	RetryAfter time.Duration `json:"retry_after"`
}

// WaitDuration returns how long a request starting at now has to wait.
// Returns 0 if the next allowed time has already passed.
func (s *State) WaitDuration(now time.Time) time.Duration {
	d := s.NextAllowed.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if no request was recorded within maxAge.
func (s *State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastRequest) > maxAge
}

// Record marks a request started at now and schedules the next one.
func (s *State) Record(now time.Time, interval time.Duration) {
	s.LastRequest = now
	s.Requests++
	if next := now.Add(interval); next.After(s.NextAllowed) {
		s.NextAllowed = next
	}
}

// Reserve claims the first request slot at or after now and returns how long
// the caller has to wait for it.
func (s *State) Reserve(now time.Time, interval time.Duration) time.Duration {
	start := now
	if s.NextAllowed.After(start) {
		start = s.NextAllowed
	}
	s.Record(start, interval)
	return start.Sub(now)
}

// Defer pushes NextAllowed to at least now+d.
func (s *State) Defer(now time.Time, d time.Duration) {
	s.RetryAfter = d
	if next := now.Add(d); next.After(s.NextAllowed) {
		s.NextAllowed = next
	}
}
