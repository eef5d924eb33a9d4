package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// StandardScaler applies the per-feature mean and scale fitted at training
// time. It is never refit here.
type StandardScaler struct {
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
	FeatureNames []string  `json:"feature_names,omitempty"`
}

func ParseScaler(data []byte) (*StandardScaler, error) {
	var scaler StandardScaler
	if err := json.Unmarshal(data, &scaler); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if err := scaler.validate(); err != nil {
		return nil, err
	}
	return &scaler, nil
}

func (s *StandardScaler) validate() error {
	if len(s.Mean) == 0 {
		return errors.New("scaler has no fitted mean")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler mean has %d values but scale has %d", len(s.Mean), len(s.Scale))
	}
	if len(s.FeatureNames) > 0 && len(s.FeatureNames) != len(s.Mean) {
		return fmt.Errorf("scaler names %d features but was fit on %d", len(s.FeatureNames), len(s.Mean))
	}
	for i := range s.Mean {
		if math.IsNaN(s.Mean[i]) || math.IsInf(s.Mean[i], 0) {
			return fmt.Errorf("scaler mean[%d] is not finite", i)
		}
		if math.IsNaN(s.Scale[i]) || math.IsInf(s.Scale[i], 0) || s.Scale[i] < 0 {
			return fmt.Errorf("scaler scale[%d] must be finite and non-negative, got %g", i, s.Scale[i])
		}
	}
	return nil
}

func (s *StandardScaler) NumFeatures() int {
	return len(s.Mean)
}

// Transform standardizes one row. A zero scale (constant feature at fit
// time) divides by one.
func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for i, x := range row {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("feature %d is not finite", i)
		}
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (x - s.Mean[i]) / scale
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, fmt.Errorf("scaled feature %d is not finite", i)
		}
	}
	return out, nil
}
