// Package chart renders indicator series from a reshaped table as a line
// chart image.
package chart

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg"
)

// ErrUnsupportedFormat is returned for output paths whose extension has no
// image backend.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// formats lists the extensions plot.Save can write.
var formats = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "tif": true, "tiff": true,
	"svg": true, "pdf": true, "eps": true,
}

// Series is one plotted column.
type Series struct {
	Code  string
	Label string
}

// Spec is the declared chart contract: which columns are required and how
// the figure looks.
type Spec struct {
	Title    string
	XLabel   string
	YLabel   string
	Width    vg.Length
	Height   vg.Length
	TickStep float64
	Series   []Series
}

// DefaultSpec plots sanitation access by income group and worldwide.
func DefaultSpec() Spec {
	return Spec{
		Title:    "Figure 1: Access to basic sanitation",
		XLabel:   "Year",
		YLabel:   "% of population",
		Width:    4.8 * vg.Inch,
		Height:   3 * vg.Inch,
		TickStep: 3,
		Series: []Series{
			{Code: "XM", Label: "low income"},
			{Code: "XN", Label: "lower middle income"},
			{Code: "XT", Label: "upper middle income"},
			{Code: "XD", Label: "high income"},
			{Code: "1W", Label: "worldwide"},
		},
	}
}

// Codes returns the required column codes in plotting order.
func (s Spec) Codes() []string {
	codes := make([]string, len(s.Series))
	for i, series := range s.Series {
		codes[i] = series.Code
	}
	return codes
}

// Validate checks the chart settings, independent of any table.
func (s Spec) Validate() error {
	if len(s.Series) == 0 {
		return fmt.Errorf("chart needs at least one series")
	}
	seen := make(map[string]bool, len(s.Series))
	for _, series := range s.Series {
		if series.Code == "" {
			return fmt.Errorf("chart series without code")
		}
		if seen[series.Code] {
			return fmt.Errorf("chart series %q listed twice", series.Code)
		}
		seen[series.Code] = true
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("chart size must be positive (got %v x %v)", s.Width, s.Height)
	}
	if s.TickStep < 0 {
		return fmt.Errorf("tick step must be >= 0 (got %v)", s.TickStep)
	}
	return nil
}

// FormatOf returns the image format implied by path's extension.
func FormatOf(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !formats[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return ext, nil
}
