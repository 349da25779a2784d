// Package config loads run settings from defaults, an optional config file,
// WDI_* environment variables and command-line flags, in that order of
// precedence (flags win).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/wdi-report/pkg/client"
	"github.com/Sternrassler/wdi-report/pkg/logging"
	"github.com/Sternrassler/wdi-report/pkg/pagination"
	"github.com/Sternrassler/wdi-report/pkg/pipeline"
	"github.com/Sternrassler/wdi-report/pkg/ratelimit"
	"github.com/Sternrassler/wdi-report/pkg/report"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable names: api.pause is read
// from WDI_API_PAUSE.
const EnvPrefix = "WDI"

// Config mirrors the configuration file.
type Config struct {
	Source      string       `mapstructure:"source"`
	Input       string       `mapstructure:"input"`
	API         APIConfig    `mapstructure:"api"`
	OnHTTPError string       `mapstructure:"on_http_error"`
	Output      OutputConfig `mapstructure:"output"`
	MetricsFile string       `mapstructure:"metrics_file"`
	Log         LogConfig    `mapstructure:"log"`
}

// APIConfig holds the indicator query and how requests are made.
type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Country     string        `mapstructure:"country"`
	Indicator   string        `mapstructure:"indicator"`
	Date        string        `mapstructure:"date"`
	SourceID    string        `mapstructure:"source_id"`
	PerPage     int           `mapstructure:"per_page"`
	ExtraURLs   []string      `mapstructure:"extra_urls"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Pause       time.Duration `mapstructure:"pause"`
	FollowPages bool          `mapstructure:"follow_pages"`
	MaxPages    int           `mapstructure:"max_pages"`
	RedisURL    string        `mapstructure:"redis_url"`
}

// OutputConfig holds output file paths; empty optional paths are skipped.
type OutputConfig struct {
	Figure string `mapstructure:"figure"`
	Report string `mapstructure:"report"`
	Table  string `mapstructure:"table"`
	Raw    string `mapstructure:"raw"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"source":        "source",
	"input":         "input",
	"figure":        "output.figure",
	"report":        "output.report",
	"table-out":     "output.table",
	"save-raw":      "output.raw",
	"metrics-file":  "metrics_file",
	"on-http-error": "on_http_error",
	"log-level":     "log.level",
	"log-pretty":    "log.pretty",
	"redis-url":     "api.redis_url",
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	q := client.DefaultQuery()

	v.SetDefault("source", string(pipeline.SourceAPI))
	v.SetDefault("input", "")

	v.SetDefault("api.base_url", client.DefaultBaseURL)
	v.SetDefault("api.country", q.Country)
	v.SetDefault("api.indicator", q.Indicator)
	v.SetDefault("api.date", q.Date)
	v.SetDefault("api.source_id", q.Source)
	v.SetDefault("api.per_page", q.PerPage)
	v.SetDefault("api.extra_urls", []string{})
	v.SetDefault("api.user_agent", "wdi-report/1.0")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.pause", ratelimit.DefaultInterval)
	v.SetDefault("api.follow_pages", true)
	v.SetDefault("api.max_pages", 0)
	v.SetDefault("api.redis_url", "")

	v.SetDefault("on_http_error", string(pipeline.PolicyContinue))

	v.SetDefault("output.figure", pipeline.DefaultFigurePath)
	v.SetDefault("output.report", report.DefaultOutputPath)
	v.SetDefault("output.table", "")
	v.SetDefault("output.raw", "")
	v.SetDefault("metrics_file", "")

	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)
}

// BindFlags binds every flag in FlagKeys that exists in flags.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads path (if set) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	switch pipeline.Source(c.Source) {
	case pipeline.SourceAPI:
	case pipeline.SourceFile:
		if c.Input == "" {
			return fmt.Errorf("source %q requires input", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q (want api or file)", c.Source)
	}

	switch pipeline.ErrorPolicy(c.OnHTTPError) {
	case pipeline.PolicyAbort, pipeline.PolicyContinue:
	default:
		return fmt.Errorf("unknown on_http_error %q (want abort or continue)", c.OnHTTPError)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be >= 0 (got %s)", c.API.Timeout)
	}
	if c.API.Pause < 0 {
		return fmt.Errorf("api.pause must be >= 0 (got %s)", c.API.Pause)
	}
	if c.API.PerPage < 0 {
		return fmt.Errorf("api.per_page must be >= 0 (got %d)", c.API.PerPage)
	}
	if c.Output.Figure == "" || c.Output.Report == "" {
		return fmt.Errorf("output.figure and output.report are required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Pipeline converts the file settings to a pipeline configuration. The pacer
// store is left for the caller to attach.
func (c *Config) Pipeline() pipeline.Config {
	p := pipeline.DefaultConfig()

	p.Source = pipeline.Source(c.Source)
	p.Input = c.Input
	p.Query = client.Query{
		Country:   c.API.Country,
		Indicator: c.API.Indicator,
		Date:      c.API.Date,
		Source:    c.API.SourceID,
		PerPage:   c.API.PerPage,
	}
	p.BaseURL = c.API.BaseURL
	p.ExtraURLs = c.API.ExtraURLs
	p.UserAgent = c.API.UserAgent
	p.Timeout = c.API.Timeout
	p.Pause = c.API.Pause
	p.Pagination = pagination.Config{
		FollowPages: c.API.FollowPages,
		MaxPages:    c.API.MaxPages,
	}
	p.OnHTTPError = pipeline.ErrorPolicy(c.OnHTTPError)
	p.FigurePath = c.Output.Figure
	p.Report.OutputPath = c.Output.Report
	p.TablePath = c.Output.Table
	p.RawPath = c.Output.Raw
	p.MetricsFile = c.MetricsFile

	return p
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level, _ = logging.ParseLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
