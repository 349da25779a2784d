package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/wdi-report/internal/config"
	"github.com/Sternrassler/wdi-report/pkg/logging"
	"github.com/Sternrassler/wdi-report/pkg/pipeline"
	"github.com/Sternrassler/wdi-report/pkg/ratelimit"
	"github.com/Sternrassler/wdi-report/pkg/report"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// pacerStateTTL bounds how long shared pacing state outlives the last run.
const pacerStateTTL = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wdi-report",
		Short: "Build the basic sanitation report from World Bank indicator data",
		Long: `wdi-report fetches basic sanitation access by income group from the
World Bank Indicators API (or a saved JSON file), draws a line chart of the
five groups and lays it out with commentary in a one-page PDF.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, chart and report",
		Example: `  wdi-report run
  wdi-report run --source file --input raw.json --figure fig1.png
  WDI_API_PAUSE=5s wdi-report run --table-out table.xlsx --save-raw raw.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.New()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}

			logCfg := cfg.Logging()
			logCfg.Output = cmd.ErrOrStderr()
			logging.Setup(logCfg)

			pcfg := cfg.Pipeline()
			if cfg.Source == string(pipeline.SourceAPI) && cfg.API.RedisURL != "" {
				rdb, err := connectRedis(cmd.Context(), cfg.API.RedisURL)
				if err != nil {
					return err
				}
				defer rdb.Close()
				pcfg.PacerStore = ratelimit.NewRedisStore(rdb, pacerStateTTL)
			}

			res, err := pipeline.Run(cmd.Context(), pcfg)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	f.String("source", "api", "where records come from: api or file")
	f.String("input", "", "records file for --source file")
	f.String("figure", pipeline.DefaultFigurePath, "figure output path")
	f.String("report", report.DefaultOutputPath, "report output path")
	f.String("table-out", "", "write the reshaped table to this .xlsx or .csv file")
	f.String("save-raw", "", "save the fetched records to this JSON file")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")
	f.String("on-http-error", string(pipeline.PolicyContinue), "on a failed request: continue with what was received, or abort")
	f.String("redis-url", "", "share pacing state through redis (host:port or redis:// URL)")
	f.String("log-level", "info", "debug, info, warn or error")
	f.Bool("log-pretty", false, "human-readable log output")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wdi-report %s\n", version)
		},
	}
}

// connectRedis accepts either a redis:// URL or a bare host:port.
func connectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		var err error
		opts, err = redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func printSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Records:  %d\n", res.Records)
	if len(res.Years) > 0 {
		fmt.Fprintf(w, "Years:    %d-%d\n", res.Years[0], res.Years[len(res.Years)-1])
	}
	fmt.Fprintf(w, "Codes:    %d\n", len(res.Codes))
	if res.FetchErr != nil {
		fmt.Fprintf(w, "Warning:  fetch incomplete: %v\n", res.FetchErr)
	}
	for _, out := range []struct{ label, path string }{
		{"Raw", res.RawPath},
		{"Table", res.TablePath},
		{"Figure", res.FigurePath},
		{"Report", res.ReportPath},
		{"Metrics", res.MetricsFile},
	} {
		if out.path != "" {
			fmt.Fprintf(w, "%-9s %s\n", out.label+":", out.path)
		}
	}
}
