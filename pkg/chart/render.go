package chart

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/Sternrassler/wdi-report/pkg/logging"
	"github.com/Sternrassler/wdi-report/pkg/table"
	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// legendBoxFraction is the share of each axis a legend is assumed to cover
// when choosing its corner.
const legendBoxFraction = 0.4

// Renderer draws a Spec from a table.
type Renderer struct {
	spec   Spec
	logger zerolog.Logger
}

// NewRenderer validates spec and creates a renderer.
func NewRenderer(spec Spec) (*Renderer, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{
		spec:   spec,
		logger: logging.NewLogger("chart"),
	}, nil
}

// Plot builds the figure. Every series code must have a column in t;
// otherwise the returned error wraps table.ErrMissingColumn and nothing is
// drawn.
func (r *Renderer) Plot(t *table.Table) (*plot.Plot, error) {
	if err := t.Require(r.spec.Codes()...); err != nil {
		return nil, fmt.Errorf("chart columns: %w", err)
	}

	p := plot.New()
	p.Title.Text = r.spec.Title
	p.X.Label.Text = r.spec.XLabel
	p.Y.Label.Text = r.spec.YLabel
	p.Add(plotter.NewGrid())

	years := t.Years()
	var all plotter.XYs

	for i, series := range r.spec.Series {
		col, err := t.Column(series.Code)
		if err != nil {
			return nil, err
		}

		style := plotter.DefaultLineStyle
		style.Color = plotutil.Color(i)
		style.Width = vg.Points(1.5)

		segments := segmentsOf(col, years)
		if len(segments) == 0 {
			r.logger.Warn().Str("code", series.Code).Msg("Series has no values")
			p.Legend.Add(series.Label, &plotter.Line{LineStyle: style})
			continue
		}

		for j, seg := range segments {
			line, err := plotter.NewLine(seg)
			if err != nil {
				return nil, fmt.Errorf("line for %s: %w", series.Code, err)
			}
			line.LineStyle = style
			p.Add(line)
			if j == 0 {
				p.Legend.Add(series.Label, line)
			}
			all = append(all, seg...)
		}
	}

	if len(all) == 0 && len(years) > 0 {
		// Only empty series: keep the axes finite.
		p.X.Min, p.X.Max = float64(years[0]), float64(years[len(years)-1])
		p.Y.Min, p.Y.Max = 0, 100
	}
	if len(years) > 0 {
		p.X.Tick.Marker = stepTicker{Origin: float64(years[0]), Step: r.spec.TickStep}
	}

	c := bestCorner(all, p.X.Min, p.X.Max, p.Y.Min, p.Y.Max, legendBoxFraction)
	p.Legend.Top = c.Top
	p.Legend.Left = c.Left
	p.Legend.TextStyle.Color = color.Black

	return p, nil
}

// Render plots t and writes the image to path; the format follows the file
// extension.
func (r *Renderer) Render(t *table.Table, path string) error {
	start := time.Now()

	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	p, err := r.Plot(t)
	if err != nil {
		return err
	}

	if err := p.Save(r.spec.Width, r.spec.Height, path); err != nil {
		return fmt.Errorf("save figure %s: %w", path, err)
	}

	r.logger.Info().
		Str("path", path).
		Str("format", format).
		Int("series", len(r.spec.Series)).
		Dur("duration", time.Since(start)).
		Msg("Figure written")

	return nil
}

// segmentsOf splits a column into runs of consecutive years that hold values,
// so missing cells show up as gaps.
func segmentsOf(col *table.Column, years []int) []plotter.XYs {
	var (
		segments []plotter.XYs
		current  plotter.XYs
	)
	for _, year := range years {
		v, ok := col.Value(year)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			if len(current) > 0 {
				segments = append(segments, current)
				current = nil
			}
			continue
		}
		current = append(current, plotter.XY{X: float64(year), Y: v})
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}
