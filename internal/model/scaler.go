package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Scaler standardizes features with per-feature statistics captured at
// training time: (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads a scaler artifact of the form {"mean": [...], "scale": [...]}.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scaler: %w", err)
	}
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scaler: failed to parse %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scaler) validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("scaler: empty mean vector")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler: mean has %d features, scale has %d", len(s.Mean), len(s.Scale))
	}
	for i := range s.Mean {
		if math.IsNaN(s.Mean[i]) || math.IsNaN(s.Scale[i]) || math.IsInf(s.Mean[i], 0) || math.IsInf(s.Scale[i], 0) {
			return fmt.Errorf("scaler: non-finite statistic at feature %d", i)
		}
	}
	return nil
}

// Dim is the number of features the scaler was fitted on.
func (s *Scaler) Dim() int { return len(s.Mean) }

// Transform returns a new standardized vector. A zero scale leaves the
// centered value unchanged.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}
