package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	ArtifactModel   = "model"
	ArtifactColumns = "columns"
	ArtifactScaler  = "scaler"

	DefaultModelFile   = "liver_disease_risk_model.json"
	DefaultColumnsFile = "liver_feature_columns.json"
	DefaultScalerFile  = "liver_scaler.json"
)

type ArtifactPaths struct {
	Model   string
	Columns string
	Scaler  string
}

func DefaultArtifactPaths(dir string) ArtifactPaths {
	return ArtifactPaths{
		Model:   filepath.Join(dir, DefaultModelFile),
		Columns: filepath.Join(dir, DefaultColumnsFile),
		Scaler:  filepath.Join(dir, DefaultScalerFile),
	}
}

// ByArtifact maps artifact names to their paths.
func (p ArtifactPaths) ByArtifact() map[string]string {
	return map[string]string{
		ArtifactModel:   p.Model,
		ArtifactColumns: p.Columns,
		ArtifactScaler:  p.Scaler,
	}
}

// Bundle holds the three artifacts. It is read-only once built and may be
// shared by any number of goroutines.
type Bundle struct {
	Classifier Classifier
	Columns    *ColumnOrder
	Scaler     *StandardScaler

	fingerprint string
}

// NewBundle cross-checks the artifacts against each other.
func NewBundle(classifier Classifier, columns *ColumnOrder, scaler *StandardScaler) (*Bundle, error) {
	if classifier == nil || columns == nil || scaler == nil {
		return nil, &ArtifactLoadError{Artifact: "bundle", Err: fmt.Errorf("incomplete bundle")}
	}
	if scaler.NumFeatures() != columns.Len() {
		return nil, &ArtifactLoadError{
			Artifact: ArtifactScaler,
			Err:      fmt.Errorf("fit on %d features, column list has %d", scaler.NumFeatures(), columns.Len()),
		}
	}
	if len(scaler.FeatureNames) > 0 && !columns.Equal(scaler.FeatureNames) {
		return nil, &ArtifactLoadError{
			Artifact: ArtifactScaler,
			Err:      fmt.Errorf("fit on columns %v, column list is %v", scaler.FeatureNames, columns.Names()),
		}
	}
	if classifier.NumFeatures() != columns.Len() {
		return nil, &ArtifactLoadError{
			Artifact: ArtifactModel,
			Err:      fmt.Errorf("fit on %d features, column list has %d", classifier.NumFeatures(), columns.Len()),
		}
	}
	return &Bundle{Classifier: classifier, Columns: columns, Scaler: scaler}, nil
}

// LoadBundle reads and validates all three artifacts. Every failure is an
// *ArtifactLoadError.
func LoadBundle(paths ArtifactPaths) (*Bundle, error) {
	hash := sha256.New()

	modelData, err := readArtifact(ArtifactModel, paths.Model)
	if err != nil {
		return nil, err
	}
	hash.Write(modelData)
	classifier, err := ParseModel(modelData)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: ArtifactModel, Path: paths.Model, Err: err}
	}

	columnsData, err := readArtifact(ArtifactColumns, paths.Columns)
	if err != nil {
		return nil, err
	}
	hash.Write(columnsData)
	columns, err := ParseColumnOrder(columnsData)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: ArtifactColumns, Path: paths.Columns, Err: err}
	}

	scalerData, err := readArtifact(ArtifactScaler, paths.Scaler)
	if err != nil {
		return nil, err
	}
	hash.Write(scalerData)
	scaler, err := ParseScaler(scalerData)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: ArtifactScaler, Path: paths.Scaler, Err: err}
	}

	bundle, err := NewBundle(classifier, columns, scaler)
	if err != nil {
		if loadErr, ok := err.(*ArtifactLoadError); ok && loadErr.Path == "" {
			loadErr.Path = paths.ByArtifact()[loadErr.Artifact]
		}
		return nil, err
	}
	bundle.fingerprint = hex.EncodeToString(hash.Sum(nil))
	return bundle, nil
}

func readArtifact(name, path string) ([]byte, error) {
	if path == "" {
		return nil, &ArtifactLoadError{Artifact: name, Err: fmt.Errorf("path is not configured")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactLoadError{Artifact: name, Path: path, Err: err}
	}
	return data, nil
}

// Fingerprint is the sha256 of the artifact files, empty for bundles not
// read from disk.
func (b *Bundle) Fingerprint() string {
	return b.fingerprint
}

// Loader loads a bundle once and hands the same result to every caller.
type Loader struct {
	paths ArtifactPaths
	load  func(ArtifactPaths) (*Bundle, error)

	once   sync.Once
	bundle *Bundle
	err    error
}

func NewLoader(paths ArtifactPaths) *Loader {
	return &Loader{paths: paths, load: LoadBundle}
}

func (l *Loader) Paths() ArtifactPaths {
	return l.paths
}

// Load reads storage on the first call only. A failed load is not retried.
func (l *Loader) Load() (*Bundle, error) {
	l.once.Do(func() {
		l.bundle, l.err = l.load(l.paths)
	})
	return l.bundle, l.err
}
