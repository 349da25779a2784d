package client

import (
	"net/url"
	"testing"
)

func TestQuery_URL(t *testing.T) {
	got := DefaultQuery().URL("https://api.worldbank.org/v2/", 1)

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", got, err)
	}
	if u.Path != "/v2/country/all/indicators/SH.STA.BASS.ZS" {
		t.Errorf("Path = %q", u.Path)
	}

	want := map[string]string{
		"date":     "1960:2024",
		"source":   "2",
		"format":   "json",
		"per_page": "20000",
		"page":     "1",
	}
	q := u.Query()
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
		}
	}
}

func TestQuery_URL_ClampsPage(t *testing.T) {
	u, _ := url.Parse(DefaultQuery().URL(DefaultBaseURL, 0))
	if got := u.Query().Get("page"); got != "1" {
		t.Errorf("page = %q, want 1", got)
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(q *Query)
		wantErr bool
	}{
		{name: "default", mutate: func(q *Query) {}},
		{name: "no country", mutate: func(q *Query) { q.Country = "" }, wantErr: true},
		{name: "no indicator", mutate: func(q *Query) { q.Indicator = "" }, wantErr: true},
		{name: "negative per page", mutate: func(q *Query) { q.PerPage = -1 }, wantErr: true},
		{name: "no date range", mutate: func(q *Query) { q.Date = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := DefaultQuery()
			tt.mutate(&q)
			if err := q.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
