package chart

import (
	"gonum.org/v1/plot/plotter"
)

// corner is a legend anchor.
type corner struct {
	Top, Left bool
}

// candidate corners, in the order ties are broken.
var corners = []corner{
	{Top: true, Left: false},
	{Top: true, Left: true},
	{Top: false, Left: true},
	{Top: false, Left: false},
}

// bestCorner picks the corner whose box (a fraction of the data area) covers
// the fewest data points.
func bestCorner(points plotter.XYs, xmin, xmax, ymin, ymax, frac float64) corner {
	if len(points) == 0 || xmax <= xmin || ymax <= ymin {
		return corners[0]
	}

	best, bestCount := corners[0], -1
	for _, c := range corners {
		n := 0
		for _, p := range points {
			x := (p.X - xmin) / (xmax - xmin)
			y := (p.Y - ymin) / (ymax - ymin)
			inX := x >= 1-frac
			if c.Left {
				inX = x <= frac
			}
			inY := y >= 1-frac
			if !c.Top {
				inY = y <= frac
			}
			if inX && inY {
				n++
			}
		}
		if bestCount < 0 || n < bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
