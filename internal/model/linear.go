package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type linearSpec struct {
	Type      string      `json:"type"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
	Classes   []int       `json:"classes"`
}

// Linear is a multinomial or binary logistic regression. Only the decision
// function is needed to pick a class, so probabilities are never computed.
type Linear struct {
	weights   *mat.Dense
	intercept *mat.VecDense
	classes   []int
}

func newLinear(spec linearSpec) (*Linear, error) {
	rows := len(spec.Coef)
	if rows == 0 {
		return nil, fmt.Errorf("%w: logistic_regression has no coefficients", ErrInvalidModel)
	}
	cols := len(spec.Coef[0])
	if cols == 0 {
		return nil, fmt.Errorf("%w: logistic_regression has empty coefficient rows", ErrInvalidModel)
	}
	if len(spec.Intercept) != rows {
		return nil, fmt.Errorf("%w: %d intercepts for %d coefficient rows", ErrInvalidModel, len(spec.Intercept), rows)
	}

	flat := make([]float64, 0, rows*cols)
	for i, row := range spec.Coef {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: coefficient row %d has %d values, want %d", ErrInvalidModel, i, len(row), cols)
		}
		flat = append(flat, row...)
	}

	nClasses := rows
	if rows == 1 {
		nClasses = 2
	}
	if len(spec.Classes) != 0 && len(spec.Classes) != nClasses {
		return nil, fmt.Errorf("%w: classes has %d entries, model has %d classes", ErrInvalidModel, len(spec.Classes), nClasses)
	}

	return &Linear{
		weights:   mat.NewDense(rows, cols, flat),
		intercept: mat.NewVecDense(rows, append([]float64(nil), spec.Intercept...)),
		classes:   spec.Classes,
	}, nil
}

// Predict picks the class with the largest decision score
func (l *Linear) Predict(features []float64) (int, error) {
	rows, cols := l.weights.Dims()
	if len(features) != cols {
		return 0, fmt.Errorf("%w: got %d values, model wants %d", ErrInvalidFeatures, len(features), cols)
	}

	x := mat.NewVecDense(cols, append([]float64(nil), features...))
	scores := mat.NewVecDense(rows, nil)
	scores.MulVec(l.weights, x)
	scores.AddVec(scores, l.intercept)

	if rows == 1 {
		position := 0
		if scores.AtVec(0) > 0 {
			position = 1
		}
		return mapClass(l.classes, position), nil
	}
	return mapClass(l.classes, argmax(scores.RawVector().Data)), nil
}

func (l *Linear) NumFeatures() int {
	_, cols := l.weights.Dims()
	return cols
}
