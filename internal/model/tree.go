package model

import (
	"fmt"
	"math"
)

// leaf marks a node without children in sklearn's tree arrays
const leaf = -1

// Tree is a fitted decision tree in sklearn's parallel-array layout
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"` // per node class weights
}

// Forest averages the class distributions of its trees. A decision tree is
// a forest of one.
type Forest struct {
	Type      string `json:"type"`
	NFeatures int    `json:"n_features"`
	NClasses  int    `json:"n_classes"`
	Classes   []int  `json:"classes"`
	Trees     []Tree `json:"trees"`
}

func (f *Forest) validate() error {
	if f.NFeatures <= 0 || f.NClasses <= 0 {
		return fmt.Errorf("%w: n_features and n_classes must be positive", ErrInvalidModel)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: %s has no trees", ErrInvalidModel, f.Type)
	}
	if f.Type == "decision_tree" && len(f.Trees) != 1 {
		return fmt.Errorf("%w: decision_tree must hold exactly one tree, got %d", ErrInvalidModel, len(f.Trees))
	}
	if len(f.Classes) != 0 && len(f.Classes) != f.NClasses {
		return fmt.Errorf("%w: classes has %d entries, n_classes is %d", ErrInvalidModel, len(f.Classes), f.NClasses)
	}

	for i, t := range f.Trees {
		if err := t.validate(f.NFeatures, f.NClasses); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("%w: empty tree", ErrInvalidModel)
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("%w: node arrays differ in length", ErrInvalidModel)
	}

	for node := 0; node < n; node++ {
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]
		if left == leaf || right == leaf {
			if left != right {
				return fmt.Errorf("%w: node %d has a single child", ErrInvalidModel, node)
			}
			if len(t.Value[node]) != nClasses {
				return fmt.Errorf("%w: leaf %d has %d class weights, want %d", ErrInvalidModel, node, len(t.Value[node]), nClasses)
			}
			var total float64
			for _, w := range t.Value[node] {
				if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
					return fmt.Errorf("%w: leaf %d has class weight %v", ErrInvalidModel, node, w)
				}
				total += w
			}
			if total == 0 {
				return fmt.Errorf("%w: leaf %d has no class weight", ErrInvalidModel, node)
			}
			continue
		}
		// sklearn numbers children after their parent, so a forward-only
		// check also rules out cycles
		if left <= node || left >= n || right <= node || right >= n {
			return fmt.Errorf("%w: node %d has child out of range", ErrInvalidModel, node)
		}
		if f := t.Feature[node]; f < 0 || f >= nFeatures {
			return fmt.Errorf("%w: node %d splits on feature %d", ErrInvalidModel, node, f)
		}
	}
	return nil
}

// leafValue walks the tree to the leaf the sample falls into
func (t *Tree) leafValue(features []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if features[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Predict returns the class with the highest averaged probability
func (f *Forest) Predict(features []float64) (int, error) {
	if len(features) != f.NFeatures {
		return 0, fmt.Errorf("%w: got %d values, model wants %d", ErrInvalidFeatures, len(features), f.NFeatures)
	}

	proba := make([]float64, f.NClasses)
	for i := range f.Trees {
		weights := f.Trees[i].leafValue(features)

		var total float64
		for _, w := range weights {
			total += w
		}
		for c, w := range weights {
			proba[c] += w / total
		}
	}

	return mapClass(f.Classes, argmax(proba)), nil
}

func (f *Forest) NumFeatures() int { return f.NFeatures }
