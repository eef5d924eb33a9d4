package ml

import (
	"errors"
	"fmt"
	"math"
)

// DecisionTree walks a flat node array. Node 0 is the root; a row goes left
// when row[FeatureIdx] <= Threshold.
type DecisionTree struct {
	nodes     []TreeNode
	features  int
	threshold float64
}

type TreeNode struct {
	FeatureIdx int        `json:"feature_idx"`
	Threshold  float64    `json:"threshold"`
	LeftChild  int        `json:"left_child"`
	RightChild int        `json:"right_child"`
	Value      [2]float64 `json:"value"`
	IsLeaf     bool       `json:"is_leaf"`
}

func NewDecisionTree(nodes []TreeNode, features int, threshold float64) (*DecisionTree, error) {
	if len(nodes) == 0 {
		return nil, errors.New("decision tree has no nodes")
	}
	if features <= 0 {
		return nil, errors.New("decision tree n_features must be positive")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			if node.Value[0] < 0 || node.Value[1] < 0 || node.Value[0]+node.Value[1] <= 0 {
				return nil, fmt.Errorf("leaf %d has no class weight", i)
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= features {
			return nil, fmt.Errorf("node %d splits on feature %d of %d", i, node.FeatureIdx, features)
		}
		// Children always follow their parent, which also rules out cycles.
		if node.LeftChild <= i || node.LeftChild >= len(nodes) || node.RightChild <= i || node.RightChild >= len(nodes) {
			return nil, fmt.Errorf("node %d has invalid children %d, %d", i, node.LeftChild, node.RightChild)
		}
		if math.IsNaN(node.Threshold) {
			return nil, fmt.Errorf("node %d threshold is NaN", i)
		}
	}
	return &DecisionTree{
		nodes:     append([]TreeNode(nil), nodes...),
		features:  features,
		threshold: threshold,
	}, nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([2]float64, error) {
	if len(dt.nodes) == 0 {
		return [2]float64{}, errors.New("model not loaded")
	}
	if len(features) != dt.features {
		return [2]float64{}, fmt.Errorf("model expects %d features, got %d", dt.features, len(features))
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			total := node.Value[0] + node.Value[1]
			return [2]float64{node.Value[0] / total, node.Value[1] / total}, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return [2]float64{}, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) Predict(features []float64) (int, error) {
	proba, err := dt.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return decide(proba, dt.threshold), nil
}

func (dt *DecisionTree) NumFeatures() int   { return dt.features }
func (dt *DecisionTree) Threshold() float64 { return dt.threshold }
func (dt *DecisionTree) Type() string       { return ModelDecisionTree }
