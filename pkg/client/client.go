// Package client provides the HTTP client for the World Bank Indicators API
// (v2) with request pacing, status classification and metrics.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/wdi-report/pkg/dataset"
	"github.com/Sternrassler/wdi-report/pkg/logging"
	"github.com/Sternrassler/wdi-report/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for indicator API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdi_requests_total",
		Help: "Total indicator API requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wdi_request_duration_seconds",
		Help:    "Indicator API request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdi_errors_total",
		Help: "Total indicator API errors by class",
	}, []string{"class"})

	observationsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wdi_observations_fetched_total",
		Help: "Total observation records received from the indicator API",
	})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// DefaultBaseURL is the root of the Indicators API.
const DefaultBaseURL = "https://api.worldbank.org/v2"

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Pacer spaces consecutive requests. When nil, New creates an in-process
	// pacer with ratelimit.DefaultInterval.
	Pacer *ratelimit.Pacer
}

// DefaultConfig returns the configuration used by the report job.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// Client fetches indicator pages.
type Client struct {
	httpClient *http.Client
	pacer      *ratelimit.Pacer
	config     Config
	logger     zerolog.Logger
}

// Page is one decoded response.
type Page struct {
	URL          string
	Info         dataset.PageInfo
	Observations []dataset.Observation
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	logger := logging.NewLogger("client")

	pacer := cfg.Pacer
	if pacer == nil {
		pacer = ratelimit.NewPacer(nil, ratelimit.DefaultInterval, logger)
	}
	logger.Debug().
		Str("base_url", cfg.BaseURL).
		Dur("pause", pacer.Interval()).
		Dur("timeout", cfg.Timeout).
		Msg("Client configured")

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		pacer:  pacer,
		config: cfg,
		logger: logger,
	}, nil
}

// Get fetches and decodes one page.
//
// A non-success status is logged and returned as a *NetworkError together
// with whatever records the body still held (none if it was empty or not
// decodable). A 200 carrying the API error envelope returns *APIError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	page := &Page{URL: rawURL}

	if err := c.pacer.Wait(ctx); err != nil {
		return page, fmt.Errorf("pace request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return page, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", rawURL).Msg("Executing indicator request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		class := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Error().Err(err).Str("url", rawURL).Msg("HTTP request failed")
		return page, &NetworkError{URL: rawURL, ErrorClass: class, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.pacer.UpdateFromHeaders(ctx, resp.StatusCode, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update pacer from headers")
	}

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		class := c.classifyError(resp, nil)
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Request error")

		if readErr == nil {
			if env, err := dataset.Decode(body); err == nil && env.Err() == nil {
				c.fill(page, env)
			}
		}
		return page, &NetworkError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			ErrorClass: class,
		}
	}

	if readErr != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return page, &NetworkError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			ErrorClass: ErrorClassNetwork,
			Err:        readErr,
		}
	}

	env, err := dataset.Decode(body)
	if err != nil {
		return page, fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	if len(env.Messages) > 0 {
		return page, &APIError{URL: rawURL, Messages: env.Messages}
	}
	c.fill(page, env)

	c.logger.Info().
		Int("pages", int(page.Info.Pages)).
		Int("entries", int(page.Info.Total)).
		Int("objects", len(page.Observations)).
		Msg("Response received")

	return page, nil
}

func (c *Client) fill(page *Page, env *dataset.Envelope) {
	if env.Info != nil {
		page.Info = *env.Info
	}
	page.Observations = env.Observations
	observationsFetchedTotal.Add(float64(len(env.Observations)))
}

// FetchPage fetches page pageNum of endpoint by rewriting its page query
// parameter. It satisfies pagination.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, endpoint string, pageNum int) ([]dataset.Observation, int, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, 0, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(pageNum))
	u.RawQuery = q.Encode()

	page, err := c.Get(ctx, u.String())
	return page.Observations, int(page.Info.Pages), err
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}
