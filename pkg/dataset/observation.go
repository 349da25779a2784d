// Package dataset defines the observation records served by the World Bank
// Indicators API (v2) and reads and writes them as local JSON files.
package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPeriod is returned when an observation date is not a plain year.
var ErrInvalidPeriod = errors.New("invalid period")

// Ref is an id/display-name pair as used by the API for indicators and countries.
type Ref struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Observation is a single indicator reading for one country or aggregate in one year.
type Observation struct {
	Indicator       Ref      `json:"indicator"`
	Country         Ref      `json:"country"`
	CountryISO3Code string   `json:"countryiso3code"`
	Date            string   `json:"date"`
	Value           *float64 `json:"value"`
	Unit            string   `json:"unit"`
	ObsStatus       string   `json:"obs_status"`
	Decimal         int      `json:"decimal"`

	// CountryID is the flattened grouping code (country.id), the column key
	// of the reshaped table.
	CountryID string `json:"country_id"`
}

// Normalize fills CountryID from the nested country reference when it is unset.
func (o *Observation) Normalize() {
	if o.CountryID == "" {
		o.CountryID = o.Country.ID
	}
}

// Year parses Date as a calendar year.
func (o *Observation) Year() (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(o.Date))
	if err != nil {
		return 0, fmt.Errorf("%w: %q for %s", ErrInvalidPeriod, o.Date, o.CountryID)
	}
	return year, nil
}

// HasValue reports whether the observation carries a numeric value.
func (o *Observation) HasValue() bool {
	return o.Value != nil
}

// Float returns a pointer to v, for building observations in code.
func Float(v float64) *float64 {
	return &v
}
