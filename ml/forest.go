package ml

import (
	"errors"
	"fmt"
)

// RandomForest averages the class probabilities of its trees.
type RandomForest struct {
	trees     []*DecisionTree
	features  int
	threshold float64
}

func NewRandomForest(trees [][]TreeNode, features int, threshold float64) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, errors.New("random forest has no trees")
	}
	forest := &RandomForest{
		trees:     make([]*DecisionTree, len(trees)),
		features:  features,
		threshold: threshold,
	}
	for i, nodes := range trees {
		tree, err := NewDecisionTree(nodes, features, threshold)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		forest.trees[i] = tree
	}
	return forest, nil
}

func (f *RandomForest) PredictProba(row []float64) ([2]float64, error) {
	var sum [2]float64
	for i, tree := range f.trees {
		proba, err := tree.PredictProba(row)
		if err != nil {
			return [2]float64{}, fmt.Errorf("tree %d: %w", i, err)
		}
		sum[0] += proba[0]
		sum[1] += proba[1]
	}
	n := float64(len(f.trees))
	return [2]float64{sum[0] / n, sum[1] / n}, nil
}

func (f *RandomForest) Predict(row []float64) (int, error) {
	proba, err := f.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return decide(proba, f.threshold), nil
}

func (f *RandomForest) NumFeatures() int   { return f.features }
func (f *RandomForest) Threshold() float64 { return f.threshold }
func (f *RandomForest) Type() string       { return ModelRandomForest }
