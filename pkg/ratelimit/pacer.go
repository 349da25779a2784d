package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request pacing.
var (
	pacerWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wdi_pacer_waits_total",
		Help: "Total number of requests that had to wait for the pacer",
	})

	pacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wdi_pacer_wait_seconds",
		Help:    "Time spent waiting before a request",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	pacerRetryAfterTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wdi_pacer_retry_after_total",
		Help: "Total number of Retry-After headers honoured",
	})
)

// Pacer gates requests so that consecutive ones are at least interval apart.
type Pacer struct {
	store    Store
	interval time.Duration
	logger   zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer backed by store. A nil store means in-process state.
func NewPacer(store Store, interval time.Duration, logger zerolog.Logger) *Pacer {
	if store == nil {
		store = NewMemoryStore()
	}
	if interval < 0 {
		interval = 0
	}
	return &Pacer{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Interval returns the configured pause between requests.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// State returns the current pacing state.
func (p *Pacer) State(ctx context.Context) (*State, error) {
	return p.store.Get(ctx)
}

// Wait reserves the next request slot and blocks until it arrives. The slot
// is claimed atomically, so pacers sharing a store never get the same one.
// It returns early with the context error if ctx is cancelled; the slot stays
// taken.
func (p *Pacer) Wait(ctx context.Context) error {
	now := p.now()

	var wait, retryAfter time.Duration
	state, err := p.store.Update(ctx, func(s *State) {
		if s.WaitDuration(now) == 0 && !s.LastRequest.IsZero() && s.IsStale(now, StaleAfter) {
			*s = State{}
		}
		retryAfter = s.RetryAfter
		s.RetryAfter = 0
		wait = s.Reserve(now, p.interval)
	})
	if err != nil {
		return fmt.Errorf("reserve request slot: %w", err)
	}

	if wait <= 0 {
		return nil
	}

	event := p.logger.Warn().
		Dur("wait", wait).
		Int("requests", state.Requests)
	if retryAfter > 0 {
		event.Dur("retry_after", retryAfter).Msg("Waiting out Retry-After before next request")
	} else {
		event.Msg("Pausing before next request")
	}

	pacerWaitsTotal.Inc()
	pacerWaitSeconds.Observe(wait.Seconds())
	return p.sleep(ctx, wait)
}

// UpdateFromHeaders honours a Retry-After header on 429 and 503 responses by
// pushing the next allowed request time forward. Nothing is retried.
func (p *Pacer) UpdateFromHeaders(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests && statusCode != http.StatusServiceUnavailable {
		return nil
	}

	value := headers.Get("Retry-After")
	if value == "" {
		return nil
	}

	now := p.now()
	d, err := ParseRetryAfter(value, now)
	if err != nil {
		return err
	}

	state, err := p.store.Update(ctx, func(s *State) {
		s.Defer(now, d)
	})
	if err != nil {
		return fmt.Errorf("defer next request: %w", err)
	}

	pacerRetryAfterTotal.Inc()
	p.logger.Warn().
		Int("status", statusCode).
		Dur("retry_after", d).
		Time("next_allowed", state.NextAllowed).
		Msg("Server asked to slow down")

	return nil
}

// ParseRetryAfter parses delay-seconds or an HTTP date relative to now.
func ParseRetryAfter(value string, now time.Time) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("parse Retry-After header: negative delay %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, fmt.Errorf("parse Retry-After header: %w", err)
	}
	if d := at.Sub(now); d > 0 {
		return d, nil
	}
	return 0, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
