// Package testutil provides a mock World Bank Indicators API for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/wdi-report/pkg/dataset"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock indicators server.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	RequestedPages    []string
	LastRequestHeader http.Header
}

// NewMockAPI creates a new mock server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestedPages = append(mock.RequestedPages, r.URL.Query().Get("page"))
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`))
	}))

	return mock
}

// URL returns the mock server URL, usable as a client base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestedPages = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPages serves pages[i] as page i+1 of path, selected by the page query
// parameter. Pages past the end answer with an empty page.
func (m *MockAPI) SetPages(path string, pages [][]dataset.Observation) {
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	perPage := 0
	if len(pages) > 0 {
		perPage = len(pages[0])
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || n < 1 {
			n = 1
		}
		var obs []dataset.Observation
		if n <= len(pages) {
			obs = pages[n-1]
		}
		w.Header().Set("Content-Type", "application/json;charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(PagedBody(n, len(pages), perPage, total, obs)))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestedPages returns the page parameters in request order.
func (m *MockAPI) GetRequestedPages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.RequestedPages))
	copy(out, m.RequestedPages)
	return out
}

// PagedBody renders a two-element API response. Per-page is rendered as a
// string the way the live API does.
func PagedBody(page, pages, perPage, total int, obs []dataset.Observation) string {
	if obs == nil {
		obs = []dataset.Observation{}
	}
	head := map[string]any{
		"page":        page,
		"pages":       pages,
		"per_page":    strconv.Itoa(perPage),
		"total":       total,
		"sourceid":    "2",
		"lastupdated": "2024-06-28",
	}
	data, err := json.Marshal([]any{head, obs})
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Observation builds an API-shaped record for code in year.
func Observation(code, name string, year int, value *float64) dataset.Observation {
	return dataset.Observation{
		Indicator: dataset.Ref{ID: "SH.STA.BASS.ZS", Value: "People using at least basic sanitation services (% of population)"},
		Country:   dataset.Ref{ID: code, Value: name},
		Date:      strconv.Itoa(year),
		Value:     value,
		Decimal:   1,
	}
}

// IncomeGroupObservations returns records for the five aggregates plotted by
// the report, for every year in [from, to], with a steadily rising value.
func IncomeGroupObservations(from, to int) []dataset.Observation {
	groups := []struct {
		code, name string
		base       float64
	}{
		{"XM", "Low income", 19.5},
		{"XN", "Lower middle income", 31.6},
		{"XT", "Upper middle income", 63.8},
		{"XD", "High income", 98.0},
		{"1W", "World", 55.4},
	}

	var out []dataset.Observation
	for _, g := range groups {
		for year := from; year <= to; year++ {
			v := g.base + float64(year-from)*0.5
			if v > 100 {
				v = 100
			}
			out = append(out, Observation(g.code, g.name, year, dataset.Float(v)))
		}
	}
	return out
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers: map[string]string{
			"Retry-After": retryAfter,
		},
	}
}

// NewServerErrorResponse creates a 502 with an HTML body, as the API's proxy
// does under load.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       "<html><body>Bad Gateway</body></html>",
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
