package ratelimit

import (
	"testing"
	"time"
)

func TestState_WaitDuration(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		next     time.Time
		expected time.Duration
	}{
		{name: "zero state", next: time.Time{}, expected: 0},
		{name: "in the past", next: now.Add(-time.Second), expected: 0},
		{name: "in the future", next: now.Add(1500 * time.Millisecond), expected: 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{NextAllowed: tt.next}
			if got := s.WaitDuration(now); got != tt.expected {
				t.Errorf("WaitDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsStale(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		last     time.Time
		maxAge   time.Duration
		expected bool
	}{
		{name: "fresh state", last: now, maxAge: 5 * time.Minute, expected: false},
		{name: "stale state", last: now.Add(-10 * time.Minute), maxAge: 5 * time.Minute, expected: true},
		{name: "just under max age", last: now.Add(-4 * time.Minute), maxAge: 5 * time.Minute, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{LastRequest: tt.last}
			if got := s.IsStale(now, tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_RecordKeepsLaterDeferral(t *testing.T) {
	now := time.Now()
	s := &State{}

	s.Defer(now, 30*time.Second)
	s.Record(now, 2*time.Second)

	if s.Requests != 1 {
		t.Errorf("Requests = %d, want 1", s.Requests)
	}
	if want := now.Add(30 * time.Second); !s.NextAllowed.Equal(want) {
		t.Errorf("NextAllowed = %v, want %v", s.NextAllowed, want)
	}
	if s.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", s.RetryAfter)
	}
}

func TestState_Reserve(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		next     time.Time
		wantWait time.Duration
		wantNext time.Time
	}{
		{name: "free slot", next: time.Time{}, wantWait: 0, wantNext: now.Add(2 * time.Second)},
		{name: "slot taken", next: now.Add(time.Second), wantWait: time.Second, wantNext: now.Add(3 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{NextAllowed: tt.next}
			if got := s.Reserve(now, 2*time.Second); got != tt.wantWait {
				t.Errorf("Reserve() = %v, want %v", got, tt.wantWait)
			}
			if !s.NextAllowed.Equal(tt.wantNext) {
				t.Errorf("NextAllowed = %v, want %v", s.NextAllowed, tt.wantNext)
			}
			if s.Requests != 1 {
				t.Errorf("Requests = %d, want 1", s.Requests)
			}
		})
	}
}
