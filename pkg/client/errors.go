package client

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/wdi-report/pkg/dataset"
)

// NetworkError is returned when a request fails at the transport level or the
// server answers with a non-success status. Records parsed from whatever body
// came back are still returned alongside it; the caller decides whether to
// continue with them.
type NetworkError struct {
	URL        string
	StatusCode int // 0 for transport failures
	Status     string
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("indicator API %s error (status %d) for %s: %v",
			e.ErrorClass, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("indicator API %s error (status %d) for %s: %s",
		e.ErrorClass, e.StatusCode, e.URL, e.Status)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is returned when the API answers 200 with its error envelope
// (for example an unknown indicator or a malformed date range).
type APIError struct {
	URL      string
	Messages []dataset.Message
}

// Error implements the error interface.
func (e *APIError) Error() string {
	parts := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		parts[i] = m.String()
	}
	return fmt.Sprintf("indicator API rejected %s: %s", e.URL, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match dataset.ErrAPIMessage.
func (e *APIError) Unwrap() error {
	return dataset.ErrAPIMessage
}
