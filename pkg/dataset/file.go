package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads observations from a JSON file holding either a raw two-element
// API response or a flat list of records. Missing or malformed files are
// returned as errors.
func Load(path string) ([]Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	env, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return env.Observations, nil
}

// Save writes observations as a single-page API response so that Load (or a
// later run with a file source) can replay them without the network.
func Save(path string, observations []Observation) error {
	if observations == nil {
		observations = []Observation{}
	}
	n := FlexInt(len(observations))
	payload := []any{
		PageInfo{Page: 1, Pages: 1, PerPage: n, Total: n},
		observations,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal observations: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
