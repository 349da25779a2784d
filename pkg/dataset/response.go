package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrAPIMessage is returned when a payload is the API's error envelope
// instead of data.
var ErrAPIMessage = errors.New("api error message")

// FlexInt decodes integers the API serialises either as numbers or as strings.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	*n = FlexInt(v)
	return nil
}

// PageInfo is element 0 of a paged API response.
type PageInfo struct {
	Page        FlexInt `json:"page"`
	Pages       FlexInt `json:"pages"`
	PerPage     FlexInt `json:"per_page"`
	Total       FlexInt `json:"total"`
	SourceID    string  `json:"sourceid,omitempty"`
	LastUpdated string  `json:"lastupdated,omitempty"`
}

// Message is one entry of the API's error envelope.
type Message struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (m Message) String() string {
	return fmt.Sprintf("%s %s: %s", m.ID, m.Key, m.Value)
}

// Envelope is a decoded payload: either page metadata plus observations, a
// flat list of observations (Info is nil), or API error messages.
type Envelope struct {
	Info         *PageInfo
	Observations []Observation
	Messages     []Message
}

// Err returns a non-nil error wrapping ErrAPIMessage when the payload was an
// error envelope.
func (e *Envelope) Err() error {
	if len(e.Messages) == 0 {
		return nil
	}
	parts := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		parts[i] = m.String()
	}
	return fmt.Errorf("%w: %s", ErrAPIMessage, strings.Join(parts, "; "))
}

// Decode parses an API response body or a local file in any of the accepted
// shapes. Every returned observation is normalized.
func Decode(data []byte) (*Envelope, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Envelope{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("decode top-level array: %w", err)
	}
	if len(elems) == 0 {
		return &Envelope{}, nil
	}

	var head map[string]json.RawMessage
	if err := json.Unmarshal(elems[0], &head); err != nil {
		return nil, fmt.Errorf("decode first element: %w", err)
	}

	env := &Envelope{}
	switch {
	case head["message"] != nil:
		if err := json.Unmarshal(head["message"], &env.Messages); err != nil {
			return nil, fmt.Errorf("decode error envelope: %w", err)
		}
		return env, nil

	case head["pages"] != nil || head["total"] != nil:
		var info PageInfo
		if err := json.Unmarshal(elems[0], &info); err != nil {
			return nil, fmt.Errorf("decode page info: %w", err)
		}
		env.Info = &info
		if len(elems) > 1 {
			// The API sends null here when the query matches no data.
			if err := json.Unmarshal(elems[1], &env.Observations); err != nil {
				return nil, fmt.Errorf("decode observations: %w", err)
			}
		}

	default:
		if err := json.Unmarshal(data, &env.Observations); err != nil {
			return nil, fmt.Errorf("decode observations: %w", err)
		}
	}

	for i := range env.Observations {
		env.Observations[i].Normalize()
	}
	return env, nil
}
