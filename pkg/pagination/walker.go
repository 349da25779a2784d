package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/wdi-report/pkg/dataset"
	"github.com/Sternrassler/wdi-report/pkg/logging"
)

// Config holds walker configuration.
type Config struct {
	// FollowPages requests pages 2..N when the first page reports more.
	FollowPages bool

	// MaxPages caps pages per endpoint; 0 means no cap.
	MaxPages int
}

// DefaultConfig follows every page.
func DefaultConfig() Config {
	return Config{
		FollowPages: true,
	}
}

// PageFetcher fetches a single page and returns its records and the total
// page count. Records may accompany an error.
type PageFetcher interface {
	FetchPage(ctx context.Context, endpoint string, pageNum int) (observations []dataset.Observation, totalPages int, err error)
}

// Walker fetches every page of one or more endpoints sequentially.
type Walker struct {
	fetcher PageFetcher
	config  Config
}

// NewWalker creates a new walker.
func NewWalker(fetcher PageFetcher, config Config) *Walker {
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}
	return &Walker{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll returns the records of every page of endpoint. On a failing page
// it stops and returns what it has together with the error.
func (w *Walker) FetchAll(ctx context.Context, endpoint string) ([]dataset.Observation, error) {
	start := time.Now()
	logger := logging.NewLogger("pagination")

	records, totalPages, err := w.fetcher.FetchPage(ctx, endpoint, 1)
	if err != nil {
		return records, fmt.Errorf("fetch page 1: %w", err)
	}

	last := totalPages
	if !w.config.FollowPages {
		last = 1
	}
	if w.config.MaxPages > 0 && last > w.config.MaxPages {
		logger.Warn().
			Str("endpoint", endpoint).
			Int("total_pages", totalPages).
			Int("max_pages", w.config.MaxPages).
			Msg("Page count capped")
		last = w.config.MaxPages
	}

	logger.Info().
		Str("endpoint", endpoint).
		Int("total_pages", totalPages).
		Int("fetching", max(last, 1)).
		Msg("Starting page fetch")

	for page := 2; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}

		obs, _, err := w.fetcher.FetchPage(ctx, endpoint, page)
		records = append(records, obs...)
		if err != nil {
			logger.Warn().
				Err(err).
				Int("page", page).
				Int("total_pages", totalPages).
				Msg("Page fetch failed - returning partial results")
			return records, fmt.Errorf("fetch page %d of %d: %w", page, totalPages, err)
		}
	}

	logger.Info().
		Str("endpoint", endpoint).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return records, nil
}

// Collect walks each endpoint in order and concatenates their records.
// Failures do not stop later endpoints; they are joined into the returned error.
func (w *Walker) Collect(ctx context.Context, endpoints []string) ([]dataset.Observation, error) {
	var (
		all  []dataset.Observation
		errs []error
	)

	for _, endpoint := range endpoints {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		records, err := w.FetchAll(ctx, endpoint)
		all = append(all, records...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return all, errors.Join(errs...)
}
