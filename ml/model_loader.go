package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	ModelLogisticRegression = "logistic_regression"
	ModelDecisionTree       = "decision_tree"
	ModelRandomForest       = "random_forest"
)

type modelArtifact struct {
	Type      string       `json:"type"`
	Classes   []int        `json:"classes"`
	Threshold *float64     `json:"threshold,omitempty"`
	Features  int          `json:"n_features"`
	Coef      []float64    `json:"coef,omitempty"`
	Intercept float64      `json:"intercept,omitempty"`
	Nodes     []TreeNode   `json:"nodes,omitempty"`
	Trees     [][]TreeNode `json:"trees,omitempty"`
}

// ParseModel decodes a model artifact and builds the classifier it names.
func ParseModel(data []byte) (Classifier, error) {
	var artifact modelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(artifact.Classes) != 2 || artifact.Classes[0] != LabelNoDisease || artifact.Classes[1] != LabelDisease {
		return nil, fmt.Errorf("model classes must be [0 1], got %v", artifact.Classes)
	}
	threshold := DefaultThreshold
	if artifact.Threshold != nil {
		threshold = *artifact.Threshold
	}
	if !(threshold > 0 && threshold < 1) {
		return nil, fmt.Errorf("model threshold must be in (0, 1), got %g", threshold)
	}

	switch artifact.Type {
	case ModelLogisticRegression:
		return NewLogisticRegression(artifact.Coef, artifact.Intercept, threshold)
	case ModelDecisionTree:
		return NewDecisionTree(artifact.Nodes, artifact.Features, threshold)
	case ModelRandomForest:
		return NewRandomForest(artifact.Trees, artifact.Features, threshold)
	case "":
		return nil, errors.New("model type is missing")
	default:
		return nil, fmt.Errorf("unsupported model type %q", artifact.Type)
	}
}
