package chart

import (
	"math"
	"strconv"

	"gonum.org/v1/plot"
)

// stepTicker places major ticks every Step units starting at Origin.
type stepTicker struct {
	Origin float64
	Step   float64
}

// Ticks implements plot.Ticker.
func (t stepTicker) Ticks(min, max float64) []plot.Tick {
	if t.Step <= 0 || math.IsInf(min, 0) || math.IsInf(max, 0) || max < min {
		return plot.DefaultTicks{}.Ticks(min, max)
	}

	// First multiple of Step from Origin that is >= min.
	k := math.Ceil((min - t.Origin) / t.Step)
	var ticks []plot.Tick
	for v := t.Origin + k*t.Step; v <= max+1e-9; v += t.Step {
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return ticks
}
