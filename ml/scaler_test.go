package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerTransform(t *testing.T) {
	scaler := &StandardScaler{Mean: []float64{10, 0, 5}, Scale: []float64{2, 0, 0.5}}
	require.NoError(t, scaler.validate())

	out, err := scaler.Transform([]float64{14, 0, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0, -2}, out)
}

func TestScalerTransformAllZeroRow(t *testing.T) {
	scaler := &StandardScaler{Mean: []float64{1, 2}, Scale: []float64{0, 4}}
	out, err := scaler.Transform([]float64{0, 0})
	require.NoError(t, err)
	for _, x := range out {
		assert.False(t, math.IsNaN(x))
	}
	assert.Equal(t, []float64{-1, -0.5}, out)
}

func TestScalerTransformErrors(t *testing.T) {
	scaler := &StandardScaler{Mean: []float64{0, 0}, Scale: []float64{1, 1}}

	_, err := scaler.Transform([]float64{1})
	assert.ErrorContains(t, err, "expects 2 features")

	_, err = scaler.Transform([]float64{1, math.NaN()})
	assert.ErrorContains(t, err, "not finite")
}

func TestParseScalerValidates(t *testing.T) {
	cases := map[string]string{
		"not json":         `[`,
		"empty":            `{"mean": [], "scale": []}`,
		"length mismatch":  `{"mean": [1, 2], "scale": [1]}`,
		"negative scale":   `{"mean": [1], "scale": [-1]}`,
		"names mismatched": `{"mean": [1], "scale": [1], "feature_names": ["Age", "Gender"]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScaler([]byte(data))
			assert.Error(t, err)
		})
	}

	scaler, err := ParseScaler([]byte(`{"mean": [1, 2], "scale": [3, 4], "feature_names": ["Age", "Gender"]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, scaler.NumFeatures())
}
