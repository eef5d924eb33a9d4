package ml

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Prediction is the outcome of one pipeline run.
type Prediction struct {
	Label       int
	Probability float64
	RiskPercent float64
	// Row is the input in training-time column order, Scaled is Row after the scaler.
	Row    []float64
	Scaled []float64
}

func (p Prediction) HasDisease() bool {
	return p.Label == LabelDisease
}

func (p Prediction) LabelText() string {
	if p.HasDisease() {
		return "Liver Disease"
	}
	return "No Liver Disease"
}

func (p Prediction) clone() Prediction {
	p.Row = append([]float64(nil), p.Row...)
	p.Scaled = append([]float64(nil), p.Scaled...)
	return p
}

type Option func(*Pipeline) error

// WithCache memoizes predictions for up to size distinct rows.
func WithCache(size int) Option {
	return func(p *Pipeline) error {
		if size <= 0 {
			return nil
		}
		cache, err := lru.New[string, Prediction](size)
		if err != nil {
			return err
		}
		p.cache = cache
		return nil
	}
}

// Pipeline reorders, scales and classifies one feature vector at a time.
type Pipeline struct {
	bundle *Bundle
	cache  *lru.Cache[string, Prediction]
}

func NewPipeline(bundle *Bundle, opts ...Option) (*Pipeline, error) {
	if bundle == nil {
		return nil, errors.New("pipeline requires a loaded bundle")
	}
	p := &Pipeline{bundle: bundle}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) Bundle() *Bundle {
	return p.bundle
}

// PredictRecord runs a raw name to value record through the pipeline.
func (p *Pipeline) PredictRecord(ctx context.Context, record map[string]float64) (Prediction, error) {
	v, err := FromRecord(record)
	if err != nil {
		return Prediction{}, err
	}
	return p.Predict(ctx, v)
}

func (p *Pipeline) Predict(ctx context.Context, v FeatureVector) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if err := v.Validate(); err != nil {
		return Prediction{}, err
	}

	row := p.bundle.Columns.Row(v)
	key := rowKey(row)
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			return cached.clone(), nil
		}
	}

	scaled, err := p.bundle.Scaler.Transform(row)
	if err != nil {
		return Prediction{}, &TransformOrPredictError{Stage: "transform", Err: err}
	}
	proba, err := p.bundle.Classifier.PredictProba(scaled)
	if err != nil {
		return Prediction{}, &TransformOrPredictError{Stage: "predict", Err: err}
	}
	label, err := p.bundle.Classifier.Predict(scaled)
	if err != nil {
		return Prediction{}, &TransformOrPredictError{Stage: "predict", Err: err}
	}
	if label != LabelNoDisease && label != LabelDisease {
		return Prediction{}, &TransformOrPredictError{Stage: "predict", Err: fmt.Errorf("unknown class label %d", label)}
	}
	p1 := proba[1]
	if math.IsNaN(p1) || p1 < 0 || p1 > 1 {
		return Prediction{}, &TransformOrPredictError{Stage: "predict", Err: fmt.Errorf("class probability %g outside [0, 1]", p1)}
	}

	prediction := Prediction{
		Label:       label,
		Probability: p1,
		RiskPercent: math.Min(100, math.Max(0, p1*100)),
		Row:         row,
		Scaled:      scaled,
	}
	if p.cache != nil {
		p.cache.Add(key, prediction.clone())
	}
	return prediction, nil
}

func rowKey(row []float64) string {
	buf := make([]byte, 8*len(row))
	for i, x := range row {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return string(buf)
}
