package ml

import (
	"errors"
	"fmt"
	"math"
)

type LogisticRegression struct {
	coef      []float64
	intercept float64
	threshold float64
}

func NewLogisticRegression(coef []float64, intercept, threshold float64) (*LogisticRegression, error) {
	if len(coef) == 0 {
		return nil, errors.New("logistic regression has no coefficients")
	}
	for i, w := range coef {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, errors.New("intercept is not finite")
	}
	return &LogisticRegression{
		coef:      append([]float64(nil), coef...),
		intercept: intercept,
		threshold: threshold,
	}, nil
}

func (m *LogisticRegression) PredictProba(row []float64) ([2]float64, error) {
	if len(row) != len(m.coef) {
		return [2]float64{}, fmt.Errorf("model expects %d features, got %d", len(m.coef), len(row))
	}
	z := m.intercept
	for i, x := range row {
		z += m.coef[i] * x
	}
	if math.IsNaN(z) {
		return [2]float64{}, errors.New("decision function is NaN")
	}
	p := sigmoid(z)
	return [2]float64{1 - p, p}, nil
}

func (m *LogisticRegression) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return decide(proba, m.threshold), nil
}

func (m *LogisticRegression) NumFeatures() int   { return len(m.coef) }
func (m *LogisticRegression) Threshold() float64 { return m.threshold }
func (m *LogisticRegression) Type() string       { return ModelLogisticRegression }

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
