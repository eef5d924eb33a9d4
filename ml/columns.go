package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ColumnOrder is the training-time column order. The scaler and classifier
// are positional, so every row must be built through Row.
type ColumnOrder struct {
	names []string
	specs []int
}

// ParseColumnOrder decodes a JSON array of feature names and compiles it
// into an index table over FeatureVector.
func ParseColumnOrder(data []byte) (*ColumnOrder, error) {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode feature columns: %w", err)
	}
	return NewColumnOrder(names)
}

// NewColumnOrder requires names to be a permutation of FeatureNames.
func NewColumnOrder(names []string) (*ColumnOrder, error) {
	if len(names) == 0 {
		return nil, errors.New("feature column list is empty")
	}
	order := &ColumnOrder{
		names: append([]string(nil), names...),
		specs: make([]int, len(names)),
	}
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		idx, ok := specIndex[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature column %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate feature column %q", name)
		}
		seen[name] = true
		order.specs[i] = idx
	}
	var missing []string
	for _, spec := range featureSpecs {
		if !seen[spec.Name] {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("feature column list lacks %v", missing)
	}
	return order, nil
}

func (c *ColumnOrder) Len() int {
	return len(c.names)
}

func (c *ColumnOrder) Names() []string {
	return append([]string(nil), c.names...)
}

// Row lays the vector out in training-time order.
func (c *ColumnOrder) Row(v FeatureVector) []float64 {
	row := make([]float64, len(c.specs))
	for i, idx := range c.specs {
		row[i] = featureSpecs[idx].get(v)
	}
	return row
}

// Equal reports whether names matches the order exactly.
func (c *ColumnOrder) Equal(names []string) bool {
	if len(names) != len(c.names) {
		return false
	}
	for i := range names {
		if names[i] != c.names[i] {
			return false
		}
	}
	return true
}
