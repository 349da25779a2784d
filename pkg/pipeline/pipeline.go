// Package pipeline runs the report job: fetch or load the indicator records,
// reshape them, draw the figure and write the PDF report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/wdi-report/pkg/chart"
	"github.com/Sternrassler/wdi-report/pkg/client"
	"github.com/Sternrassler/wdi-report/pkg/dataset"
	"github.com/Sternrassler/wdi-report/pkg/export"
	"github.com/Sternrassler/wdi-report/pkg/logging"
	"github.com/Sternrassler/wdi-report/pkg/metrics"
	"github.com/Sternrassler/wdi-report/pkg/pagination"
	"github.com/Sternrassler/wdi-report/pkg/ratelimit"
	"github.com/Sternrassler/wdi-report/pkg/report"
	"github.com/Sternrassler/wdi-report/pkg/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wdi_pipeline_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wdi_pipeline_runs_total",
		Help: "Pipeline runs by result",
	}, []string{"result"})
)

// Stage names used in StageError and metrics.
const (
	StageFetch    = "fetch"
	StageLoad     = "load"
	StageSnapshot = "snapshot"
	StageReshape  = "reshape"
	StageExport   = "export"
	StageRender   = "render"
	StageReport   = "report"
	StageMetrics  = "metrics"
)

// Source selects where the records come from.
type Source string

const (
	// SourceAPI fetches records from the indicators API.
	SourceAPI Source = "api"

	// SourceFile reads records from a saved JSON file.
	SourceFile Source = "file"
)

// ErrorPolicy decides what a failed fetch does to the run.
type ErrorPolicy string

const (
	// PolicyAbort stops the run on a failed fetch.
	PolicyAbort ErrorPolicy = "abort"

	// PolicyContinue logs the failure and carries on with the records that
	// were received. It is the default.
	PolicyContinue ErrorPolicy = "continue"
)

// DefaultFigurePath is where the figure is written when none is configured.
const DefaultFigurePath = "fig1.jpg"

// Config describes one run.
type Config struct {
	Source Source
	Input  string // records file for SourceFile

	// API access.
	Query      client.Query
	BaseURL    string
	ExtraURLs  []string // further endpoints fetched after the query
	UserAgent  string
	Timeout    time.Duration
	Pause      time.Duration // minimum gap between requests
	Pagination pagination.Config
	PacerStore ratelimit.Store // nil keeps pacing state in process

	OnHTTPError ErrorPolicy

	Chart      chart.Spec
	Report     report.Config
	FigurePath string

	TablePath   string // optional .xlsx or .csv export
	RawPath     string // optional JSON snapshot of the records
	MetricsFile string // optional Prometheus textfile
}

// DefaultConfig fetches basic sanitation access from the public API and
// writes fig1.jpg and TechnicalExercisePartI.pdf. A failed request is logged
// and the run carries on with what was received.
func DefaultConfig() Config {
	return Config{
		Source:      SourceAPI,
		Query:       client.DefaultQuery(),
		BaseURL:     client.DefaultBaseURL,
		UserAgent:   "wdi-report/1.0",
		Timeout:     30 * time.Second,
		Pause:       ratelimit.DefaultInterval,
		Pagination:  pagination.DefaultConfig(),
		OnHTTPError: PolicyContinue,
		Chart:       chart.DefaultSpec(),
		Report:      report.DefaultConfig(),
		FigurePath:  DefaultFigurePath,
	}
}

// Validate checks the settings that do not depend on the environment.
func (c Config) Validate() error {
	switch c.Source {
	case SourceAPI:
		if err := c.Query.Validate(); err != nil {
			return err
		}
		if c.UserAgent == "" {
			return fmt.Errorf("user agent is required for the api source")
		}
	case SourceFile:
		if c.Input == "" {
			return fmt.Errorf("input file is required for the file source")
		}
	default:
		return fmt.Errorf("unknown source %q (want %q or %q)", c.Source, SourceAPI, SourceFile)
	}

	switch c.OnHTTPError {
	case PolicyAbort, PolicyContinue:
	default:
		return fmt.Errorf("unknown on_http_error policy %q (want %q or %q)", c.OnHTTPError, PolicyAbort, PolicyContinue)
	}

	if c.FigurePath == "" {
		return fmt.Errorf("figure path is required")
	}
	if _, err := chart.FormatOf(c.FigurePath); err != nil {
		return err
	}
	if _, err := report.ImageType(c.FigurePath); err != nil {
		return fmt.Errorf("figure cannot be embedded in the report: %w", err)
	}
	return c.Chart.Validate()
}

// StageError reports which stage of the run failed.
type StageError struct {
	Stage string
	Err   error
}

// Error names the stage, then the cause.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the stage failure.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Result summarises a run.
type Result struct {
	Records     int
	Years       []int
	Codes       []string
	FigurePath  string
	ReportPath  string
	TablePath   string
	RawPath     string
	MetricsFile string

	// FetchErr is the fetch failure tolerated under PolicyContinue.
	FetchErr error
}

// Run executes the pipeline. A failing stage returns a *StageError.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	logger := logging.NewLogger("pipeline")

	res, err := run(ctx, cfg, logger)
	if err != nil {
		runsTotal.WithLabelValues("failure").Inc()
	} else {
		runsTotal.WithLabelValues("success").Inc()
	}

	if cfg.MetricsFile != "" {
		start := time.Now()
		if merr := metrics.WriteTextfile(cfg.MetricsFile); merr != nil {
			if err == nil {
				return res, &StageError{Stage: StageMetrics, Err: merr}
			}
			logger.Error().Err(merr).Msg("Metrics textfile not written")
		} else if res != nil {
			res.MetricsFile = cfg.MetricsFile
		}
		stageDuration.WithLabelValues(StageMetrics).Observe(time.Since(start).Seconds())
	}

	return res, err
}

func run(ctx context.Context, cfg Config, logger zerolog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	res := &Result{}

	// 1. records
	var records []dataset.Observation
	if cfg.Source == SourceFile {
		err := stage(logger, StageLoad, func() error {
			var err error
			records, err = dataset.Load(cfg.Input)
			return err
		})
		if err != nil {
			return res, err
		}
	} else {
		err := stage(logger, StageFetch, func() error {
			var err error
			records, err = fetch(ctx, cfg, logger)
			if err == nil {
				return nil
			}
			if cfg.OnHTTPError == PolicyContinue && ctx.Err() == nil && tolerable(err) {
				logger.Warn().
					Err(err).
					Int("records", len(records)).
					Msg("Fetch failed - continuing with received records")
				res.FetchErr = err
				return nil
			}
			return err
		})
		if err != nil {
			return res, err
		}
	}
	res.Records = len(records)

	// 2. snapshot
	if cfg.RawPath != "" {
		if err := stage(logger, StageSnapshot, func() error {
			return dataset.Save(cfg.RawPath, records)
		}); err != nil {
			return res, err
		}
		res.RawPath = cfg.RawPath
	}

	// 3. reshape
	var tbl *table.Table
	if err := stage(logger, StageReshape, func() error {
		var err error
		tbl, err = table.Reshape(records)
		return err
	}); err != nil {
		return res, err
	}
	res.Years = tbl.Years()
	res.Codes = tbl.Codes()
	logger.Info().
		Int("records", len(records)).
		Int("years", tbl.Len()).
		Int("codes", tbl.Width()).
		Msg("Records reshaped")

	// 4. export
	if cfg.TablePath != "" {
		if err := stage(logger, StageExport, func() error {
			return export.Write(tbl, cfg.TablePath)
		}); err != nil {
			return res, err
		}
		res.TablePath = cfg.TablePath
	}

	// 5. figure
	if err := stage(logger, StageRender, func() error {
		renderer, err := chart.NewRenderer(cfg.Chart)
		if err != nil {
			return err
		}
		return renderer.Render(tbl, cfg.FigurePath)
	}); err != nil {
		return res, err
	}
	res.FigurePath = cfg.FigurePath

	// 6. report
	if err := stage(logger, StageReport, func() error {
		reporter, err := report.NewReporter(cfg.Report)
		if err != nil {
			return err
		}
		return reporter.Write(cfg.FigurePath)
	}); err != nil {
		return res, err
	}
	res.ReportPath = cfg.Report.OutputPath

	return res, nil
}

// fetch walks the query endpoint and any extra endpoints.
func fetch(ctx context.Context, cfg Config, logger zerolog.Logger) ([]dataset.Observation, error) {
	pacer := ratelimit.NewPacer(cfg.PacerStore, cfg.Pause, logging.NewLogger("pacer"))

	c, err := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Pacer:     pacer,
	})
	if err != nil {
		return nil, err
	}

	endpoints := append([]string{cfg.Query.URL(c.BaseURL(), 1)}, cfg.ExtraURLs...)
	records, err := pagination.NewWalker(c, cfg.Pagination).Collect(ctx, endpoints)

	if state, serr := pacer.State(ctx); serr == nil {
		logger.Debug().
			Int("endpoints", len(endpoints)).
			Int("window_requests", state.Requests).
			Time("next_allowed", state.NextAllowed).
			Msg("Fetch finished")
	}
	return records, err
}

// tolerable reports whether every failure in err came from the API itself
// (a status or transport error, or an error message) rather than from the
// job.
func tolerable(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !tolerable(e) {
				return false
			}
		}
		return true
	}

	var netErr *client.NetworkError
	var apiErr *client.APIError
	return errors.As(err, &netErr) || errors.As(err, &apiErr)
}

// stage runs fn, records its duration and wraps a failure in a StageError.
func stage(logger zerolog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	stageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		logger.Error().Err(err).Str("stage", name).Dur("duration", elapsed).Msg("Stage failed")
		return &StageError{Stage: name, Err: err}
	}
	logger.Debug().Str("stage", name).Dur("duration", elapsed).Msg("Stage finished")
	return nil
}
