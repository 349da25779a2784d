// Package metrics documents the Prometheus metrics of the report pipeline and
// writes them out for a textfile collector.
// All metrics are defined in their respective packages (client, ratelimit,
// pipeline) to maintain modularity and avoid circular dependencies.
//
// The pipeline is a batch job and exposes no HTTP endpoint; WriteTextfile
// dumps the registry once the run is over.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry collected.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes every registered metric to path in the Prometheus
// text exposition format.
func WriteTextfile(path string) error {
	return WriteTextfileFrom(Gatherer, path)
}

// WriteTextfileFrom writes the metrics gathered by g to path. The file is
// replaced atomically so a collector never reads a partial dump.
func WriteTextfileFrom(g prometheus.Gatherer, path string) error {
	if path == "" {
		return fmt.Errorf("metrics textfile path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("metrics textfile directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - wdi_requests_total{status} (Counter): Requests by HTTP status
//   - wdi_request_duration_seconds (Histogram): Request duration
//   - wdi_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - wdi_observations_fetched_total (Counter): Records decoded from responses
//
// Pacing Metrics (pkg/ratelimit):
//   - wdi_pacer_waits_total (Counter): Requests that had to wait for the pause interval
//   - wdi_pacer_wait_seconds (Histogram): Time spent waiting before a request
//   - wdi_pacer_retry_after_total (Counter): Retry-After headers honoured
//
// Pipeline Metrics (pkg/pipeline):
//   - wdi_pipeline_stage_duration_seconds{stage} (Histogram): Duration per stage
//   - wdi_pipeline_runs_total{result} (Counter): Runs by result (success, failure)
//
// Example Prometheus Queries:
//
//   # Failed fetches by class
//   sum by (class) (wdi_errors_total)
//
//   # Time spent pacing
//   wdi_pacer_wait_seconds_sum
//
//   # Slowest stage of the last run
//   topk(1, wdi_pipeline_stage_duration_seconds_sum)
