package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query selects an indicator series.
type Query struct {
	Country   string // country or aggregate selector, "all" for every code
	Indicator string
	Date      string // "1960:2024" or a single year
	Source    string // data source id
	PerPage   int
}

// DefaultQuery is basic sanitation access for every country and aggregate.
func DefaultQuery() Query {
	return Query{
		Country:   "all",
		Indicator: "SH.STA.BASS.ZS",
		Date:      "1960:2024",
		Source:    "2",
		PerPage:   20000,
	}
}

// Validate checks the fields needed to build a URL.
func (q Query) Validate() error {
	if q.Country == "" {
		return fmt.Errorf("query country is required")
	}
	if q.Indicator == "" {
		return fmt.Errorf("query indicator is required")
	}
	if q.PerPage < 0 {
		return fmt.Errorf("query per_page must be >= 0 (got %d)", q.PerPage)
	}
	return nil
}

// URL builds the JSON endpoint for page of the query under baseURL.
func (q Query) URL(baseURL string, page int) string {
	v := url.Values{}
	if q.Date != "" {
		v.Set("date", q.Date)
	}
	if q.Source != "" {
		v.Set("source", q.Source)
	}
	v.Set("format", "json")
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))

	return fmt.Sprintf("%s/country/%s/indicators/%s?%s",
		strings.TrimRight(baseURL, "/"),
		url.PathEscape(q.Country),
		url.PathEscape(q.Indicator),
		v.Encode())
}
