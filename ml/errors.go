package ml

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrArtifactLoad marks any failure to read or validate a stored artifact.
	ErrArtifactLoad = errors.New("artifact load failed")
	// ErrSchemaMismatch marks a submitted record whose fields do not match the trained columns.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
	// ErrTransformOrPredict marks a failure inside the scaler or the classifier.
	ErrTransformOrPredict = errors.New("prediction failed")
	// ErrOutOfRange marks a feature value outside the range the form accepts.
	ErrOutOfRange = errors.New("feature value out of range")
)

// ArtifactLoadError is fatal: without all three artifacts no prediction can be offered.
type ArtifactLoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load %s artifact: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("load %s artifact %q: %v", e.Artifact, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() []error {
	return []error{ErrArtifactLoad, e.Err}
}

// SchemaMismatchError lists the fields a record lacks and the ones it should not carry.
type SchemaMismatchError struct {
	Missing    []string
	Unexpected []string
}

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ", "))
	}
	return ErrSchemaMismatch.Error() + ": " + strings.Join(parts, "; ")
}

func (e *SchemaMismatchError) Unwrap() error {
	return ErrSchemaMismatch
}

// TransformOrPredictError wraps a scaler or classifier failure. Stage is "transform" or "predict".
type TransformOrPredictError struct {
	Stage string
	Err   error
}

func (e *TransformOrPredictError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransformOrPredict, e.Stage, e.Err)
}

func (e *TransformOrPredictError) Unwrap() []error {
	return []error{ErrTransformOrPredict, e.Err}
}

type RangeError struct {
	Feature string
	Value   float64
	Min     float64
	Max     float64
}

func (e *RangeError) Error() string {
	if e.Max > 0 {
		return fmt.Sprintf("%s must be between %g and %g, got %g", e.Feature, e.Min, e.Max, e.Value)
	}
	return fmt.Sprintf("%s must be at least %g, got %g", e.Feature, e.Min, e.Value)
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}
