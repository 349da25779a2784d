// Package table pivots flat indicator observations into a wide table with one
// row per year and one column per grouping code.
package table

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Sternrassler/wdi-report/pkg/dataset"
)

// Errors returned while building or reading a table.
var (
	// ErrMissingColumn is returned when a lookup names a code that has no column.
	ErrMissingColumn = errors.New("missing column")

	// ErrDuplicateObservation is returned when a (year, code) pair occurs twice.
	ErrDuplicateObservation = errors.New("duplicate observation")

	// ErrMissingCode is returned for a record without a grouping code.
	ErrMissingCode = errors.New("observation without grouping code")
)

// Column is the series of one grouping code. Years without a value are absent
// from Values.
type Column struct {
	Code   string
	Values map[int]float64
}

// Value returns the cell for year and whether it is present.
func (c *Column) Value(year int) (float64, bool) {
	v, ok := c.Values[year]
	return v, ok
}

// Cell is one present value of a table.
type Cell struct {
	Year  int
	Code  string
	Value float64
}

// Table is a wide table indexed by year. Rows are unique and ascending;
// columns are unique and exposed in sorted order.
type Table struct {
	years   []int
	codes   []string
	columns map[string]*Column
}

// New returns an empty table.
func New() *Table {
	return &Table{columns: make(map[string]*Column)}
}

// Reshape builds the wide table from observations. Every distinct year becomes
// a row and every code with at least one record becomes a column, even when
// all of its values are null.
func Reshape(observations []dataset.Observation) (*Table, error) {
	byCode := make(map[string][]dataset.Observation)
	for _, o := range observations {
		o.Normalize()
		if o.CountryID == "" {
			return nil, fmt.Errorf("%w: date %q", ErrMissingCode, o.Date)
		}
		byCode[o.CountryID] = append(byCode[o.CountryID], o)
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	t := New()
	for _, code := range codes {
		col := &Column{Code: code, Values: make(map[int]float64)}
		var years []int
		seen := make(map[int]bool)
		for _, o := range byCode[code] {
			year, err := o.Year()
			if err != nil {
				return nil, err
			}
			if seen[year] {
				return nil, fmt.Errorf("%w: %s in %d", ErrDuplicateObservation, code, year)
			}
			seen[year] = true
			years = append(years, year)
			if o.HasValue() {
				col.Values[year] = *o.Value
			}
		}
		t.addColumn(col, years)
	}

	return t, nil
}

// addColumn attaches col and extends the row index with years.
func (t *Table) addColumn(col *Column, years []int) {
	t.columns[col.Code] = col
	t.codes = append(t.codes, col.Code)
	sort.Strings(t.codes)

	index := make(map[int]bool, len(t.years)+len(years))
	for _, y := range t.years {
		index[y] = true
	}
	for _, y := range years {
		if !index[y] {
			index[y] = true
			t.years = append(t.years, y)
		}
	}
	sort.Ints(t.years)
}

// Years returns the row index in ascending order.
func (t *Table) Years() []int {
	out := make([]int, len(t.years))
	copy(out, t.years)
	return out
}

// Codes returns the column keys in sorted order.
func (t *Table) Codes() []string {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.years) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.codes) }

// Has reports whether code has a column.
func (t *Table) Has(code string) bool {
	_, ok := t.columns[code]
	return ok
}

// Column returns the column for code.
func (t *Table) Column(code string) (*Column, error) {
	col, ok := t.columns[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, code)
	}
	return col, nil
}

// Value returns the cell at (year, code) and whether it holds a value.
func (t *Table) Value(year int, code string) (float64, bool) {
	col, ok := t.columns[code]
	if !ok {
		return 0, false
	}
	return col.Value(year)
}

// Require checks that every code has a column and reports all missing ones.
func (t *Table) Require(codes ...string) error {
	var missing []string
	for _, code := range codes {
		if !t.Has(code) {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %q", ErrMissingColumn, missing)
	}
	return nil
}

// Flatten returns the present cells ordered by year, then code.
func (t *Table) Flatten() []Cell {
	var cells []Cell
	for _, year := range t.years {
		for _, code := range t.codes {
			if v, ok := t.columns[code].Value(year); ok {
				cells = append(cells, Cell{Year: year, Code: code, Value: v})
			}
		}
	}
	return cells
}
