package ml

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	bundle, err := LoadBundle(fixturePaths())
	require.NoError(t, err)
	p, err := NewPipeline(bundle, opts...)
	require.NoError(t, err)
	return p
}

// Golden values for the fixture artifacts in testdata/artifacts.
func TestPipelineGoldenScenario(t *testing.T) {
	p := newTestPipeline(t)
	v := FeatureVector{
		Age:                       45,
		Gender:                    Male,
		TotalBilirubin:            1.0,
		DirectBilirubin:           0.5,
		AlkalinePhosphotase:       200,
		AlamineAminotransferase:   30,
		AspartateAminotransferase: 35,
		TotalProtiens:             6.5,
		Albumin:                   3.5,
		AlbuminGlobulinRatio:      1.0,
	}

	got, err := p.Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, LabelDisease, got.Label)
	assert.Equal(t, "Liver Disease", got.LabelText())
	assert.InDelta(t, 52.37954370728304, got.RiskPercent, 1e-9)
	assert.InDelta(t, 0.5237954370728304, got.Probability, 1e-11)
	assert.Equal(t, []float64{45, 1, 1.0, 0.5, 200, 30, 35, 6.5, 3.5, 1.0}, got.Row)
	assert.Len(t, got.Scaled, 10)
}

func TestPipelineOtherFixtures(t *testing.T) {
	p := newTestPipeline(t)
	cases := []struct {
		name  string
		v     FeatureVector
		label int
		risk  float64
	}{
		{"healthy", FeatureVector{Age: 20, Gender: Female, TotalBilirubin: 0.7, DirectBilirubin: 0.1,
			AlkalinePhosphotase: 150, AlamineAminotransferase: 15, AspartateAminotransferase: 18,
			TotalProtiens: 7.5, Albumin: 4.5, AlbuminGlobulinRatio: 1.6}, LabelNoDisease, 20.711270876679443},
		{"elevated", FeatureVector{Age: 60, Gender: Male, TotalBilirubin: 8, DirectBilirubin: 4,
			AlkalinePhosphotase: 600, AlamineAminotransferase: 400, AspartateAminotransferase: 500,
			TotalProtiens: 6, Albumin: 2.5, AlbuminGlobulinRatio: 0.6}, LabelDisease, 99.44329847056265},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Predict(context.Background(), tc.v)
			require.NoError(t, err)
			assert.Equal(t, tc.label, got.Label)
			assert.InDelta(t, tc.risk, got.RiskPercent, 1e-9)
		})
	}
}

func TestPipelineColumnOrderInvariance(t *testing.T) {
	canonical := newTestPipeline(t)
	shuffledBundle, err := LoadBundle(DefaultArtifactPaths(filepath.Join("testdata", "shuffled")))
	require.NoError(t, err)
	shuffled, err := NewPipeline(shuffledBundle)
	require.NoError(t, err)
	require.NotEqual(t, canonical.Bundle().Columns.Names(), shuffled.Bundle().Columns.Names())

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		v := randomVector(rng)
		a, err := canonical.Predict(context.Background(), v)
		require.NoError(t, err)
		b, err := shuffled.Predict(context.Background(), v)
		require.NoError(t, err)
		assert.Equal(t, a.Label, b.Label)
		assert.InDelta(t, a.RiskPercent, b.RiskPercent, 1e-9)
	}
}

func TestPipelineRecordKeyOrderDoesNotMatter(t *testing.T) {
	p := newTestPipeline(t)
	names := FeatureNames()
	values := DefaultFeatureVector().Record()

	want, err := p.PredictRecord(context.Background(), values)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 10; i++ {
		rng.Shuffle(len(names), func(a, b int) { names[a], names[b] = names[b], names[a] })
		record := make(map[string]float64, len(names))
		for _, name := range names {
			record[name] = values[name]
		}
		got, err := p.PredictRecord(context.Background(), record)
		require.NoError(t, err)
		assert.Equal(t, want.Label, got.Label)
		assert.Equal(t, want.RiskPercent, got.RiskPercent)
	}
}

func TestPipelineResultBounds(t *testing.T) {
	p := newTestPipeline(t)
	threshold := p.Bundle().Classifier.Threshold()
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		got, err := p.Predict(context.Background(), randomVector(rng))
		require.NoError(t, err)
		assert.Contains(t, []int{LabelNoDisease, LabelDisease}, got.Label)
		assert.GreaterOrEqual(t, got.RiskPercent, 0.0)
		assert.LessOrEqual(t, got.RiskPercent, 100.0)
		assert.Equal(t, got.Label == LabelDisease, got.Probability > threshold)
	}
}

func TestPipelineIsDeterministic(t *testing.T) {
	p := newTestPipeline(t)
	v := DefaultFeatureVector()
	first, err := p.Predict(context.Background(), v)
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(first.RiskPercent), math.Float64bits(second.RiskPercent))
	assert.Equal(t, first, second)
}

func TestPipelineAllZeroRow(t *testing.T) {
	p := newTestPipeline(t)
	// Age has a floor of 1; everything else may be zero.
	got, err := p.Predict(context.Background(), FeatureVector{Age: 1})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got.RiskPercent))
	assert.Equal(t, LabelNoDisease, got.Label)
	assert.InDelta(t, 35.36420052972293, got.RiskPercent, 1e-9)
}

func TestPipelineMissingAlbumin(t *testing.T) {
	p := newTestPipeline(t)
	record := DefaultFeatureVector().Record()
	delete(record, FeatureAlbumin)

	got, err := p.PredictRecord(context.Background(), record)
	require.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Equal(t, Prediction{}, got)
}

func TestPipelineRejectsOutOfRange(t *testing.T) {
	p := newTestPipeline(t)
	v := DefaultFeatureVector()
	v.Age = 0
	_, err := p.Predict(context.Background(), v)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestPipelineCanceledContext(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Predict(ctx, DefaultFeatureVector())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineCache(t *testing.T) {
	p := newTestPipeline(t, WithCache(4))
	first, err := p.Predict(context.Background(), DefaultFeatureVector())
	require.NoError(t, err)
	assert.Equal(t, 1, p.cache.Len())

	first.Row[0] = -1
	second, err := p.Predict(context.Background(), DefaultFeatureVector())
	require.NoError(t, err)
	assert.Equal(t, 45.0, second.Row[0])
	assert.Equal(t, first.RiskPercent, second.RiskPercent)
	assert.Equal(t, 1, p.cache.Len())
}

type failingClassifier struct {
	proba [2]float64
	label int
	err   error
}

func (f *failingClassifier) Predict([]float64) (int, error)            { return f.label, f.err }
func (f *failingClassifier) PredictProba([]float64) ([2]float64, error) { return f.proba, f.err }
func (f *failingClassifier) NumFeatures() int                          { return 10 }
func (f *failingClassifier) Threshold() float64                        { return DefaultThreshold }
func (f *failingClassifier) Type() string                              { return "fake" }

func fakeBundle(t *testing.T, classifier Classifier) *Bundle {
	t.Helper()
	columns, err := NewColumnOrder(FeatureNames())
	require.NoError(t, err)
	scaler := &StandardScaler{Mean: make([]float64, 10), Scale: make([]float64, 10)}
	bundle, err := NewBundle(classifier, columns, scaler)
	require.NoError(t, err)
	return bundle
}

func TestPipelineWrapsClassifierFailure(t *testing.T) {
	boom := errors.New("boom")
	p, err := NewPipeline(fakeBundle(t, &failingClassifier{err: boom}))
	require.NoError(t, err)

	_, err = p.Predict(context.Background(), DefaultFeatureVector())
	require.ErrorIs(t, err, ErrTransformOrPredict)
	require.ErrorIs(t, err, boom)
	var predictErr *TransformOrPredictError
	require.ErrorAs(t, err, &predictErr)
	assert.Equal(t, "predict", predictErr.Stage)
}

func TestPipelineRejectsBadClassifierOutput(t *testing.T) {
	p, err := NewPipeline(fakeBundle(t, &failingClassifier{proba: [2]float64{0, 1}, label: 2}))
	require.NoError(t, err)
	_, err = p.Predict(context.Background(), DefaultFeatureVector())
	assert.ErrorIs(t, err, ErrTransformOrPredict)

	p, err = NewPipeline(fakeBundle(t, &failingClassifier{proba: [2]float64{0, math.NaN()}, label: 1}))
	require.NoError(t, err)
	_, err = p.Predict(context.Background(), DefaultFeatureVector())
	assert.ErrorIs(t, err, ErrTransformOrPredict)
}

func TestNewPipelineRequiresBundle(t *testing.T) {
	_, err := NewPipeline(nil)
	assert.Error(t, err)
}

func randomVector(rng *rand.Rand) FeatureVector {
	return FeatureVector{
		Age:                       1 + rng.Intn(120),
		Gender:                    Gender(rng.Intn(2)),
		TotalBilirubin:            rng.Float64() * 20,
		DirectBilirubin:           rng.Float64() * 10,
		AlkalinePhosphotase:       float64(rng.Intn(2000)),
		AlamineAminotransferase:   float64(rng.Intn(2000)),
		AspartateAminotransferase: float64(rng.Intn(5000)),
		TotalProtiens:             rng.Float64() * 10,
		Albumin:                   rng.Float64() * 6,
		AlbuminGlobulinRatio:      rng.Float64() * 3,
	}
}
