package ml

const (
	LabelNoDisease = 0
	LabelDisease   = 1

	DefaultThreshold = 0.5
)

// Classifier is a fitted binary classifier over scaled rows.
type Classifier interface {
	// Predict returns the class label, 0 or 1.
	Predict(row []float64) (int, error)
	// PredictProba returns the probabilities of class 0 and class 1.
	PredictProba(row []float64) ([2]float64, error)
	NumFeatures() int
	// Threshold is the class-1 probability above which Predict returns 1.
	Threshold() float64
	Type() string
}

func decide(proba [2]float64, threshold float64) int {
	if proba[1] > threshold {
		return LabelDisease
	}
	return LabelNoDisease
}
