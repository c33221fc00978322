// Package model loads the food risk classifier and its label encoder and
// evaluates them against a single feature vector.
//
// Both artifacts are JSON exports of the trained scikit-learn objects. The
// classifier file carries a "type" discriminator:
//
//	decision_tree, random_forest   tree arrays as in sklearn's tree_ attribute
//	logistic_regression            coef_ and intercept_
//
// The encoder file holds the ordered classes_ of a LabelEncoder.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// FeatureCount is the length of the (temperature, humidity, gas) vector
const FeatureCount = 3

var (
	ErrInvalidFeatures = errors.New("invalid feature vector")
	ErrUnknownClass    = errors.New("class index not known to label encoder")
	ErrInvalidModel    = errors.New("invalid model artifact")
)

// Classifier maps a feature vector to an encoded class index
type Classifier interface {
	Predict(features []float64) (int, error)
	NumFeatures() int
}

// Handle pairs a classifier with its label encoder. It is built once at
// startup and shared read-only by every run.
type Handle struct {
	classifier Classifier
	encoder    *LabelEncoder
}

// NewHandle validates that the classifier accepts the job's feature vector
func NewHandle(classifier Classifier, encoder *LabelEncoder) (*Handle, error) {
	if classifier == nil || encoder == nil {
		return nil, fmt.Errorf("%w: classifier and encoder are required", ErrInvalidModel)
	}
	if n := classifier.NumFeatures(); n != FeatureCount {
		return nil, fmt.Errorf("%w: classifier expects %d features, job provides %d", ErrInvalidModel, n, FeatureCount)
	}
	return &Handle{classifier: classifier, encoder: encoder}, nil
}

// Load reads both artifacts from disk
func Load(classifierPath, encoderPath string) (*Handle, error) {
	classifier, err := LoadClassifier(classifierPath)
	if err != nil {
		return nil, err
	}
	encoder, err := LoadLabelEncoder(encoderPath)
	if err != nil {
		return nil, err
	}
	return NewHandle(classifier, encoder)
}

// Predict returns the human-readable label for a feature vector
func (h *Handle) Predict(features []float64) (string, error) {
	if len(features) != FeatureCount {
		return "", fmt.Errorf("%w: got %d values, want %d", ErrInvalidFeatures, len(features), FeatureCount)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("%w: feature %d is %v", ErrInvalidFeatures, i, v)
		}
	}

	class, err := h.classifier.Predict(features)
	if err != nil {
		return "", fmt.Errorf("classifier failed: %w", err)
	}
	return h.encoder.InverseTransform(class)
}

// Labels returns every label the encoder can produce
func (h *Handle) Labels() []string {
	return h.encoder.Classes()
}

type classifierHeader struct {
	Type string `json:"type"`
}

// LoadClassifier reads a classifier artifact, dispatching on its type
func LoadClassifier(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier: %w", err)
	}
	return ParseClassifier(data)
}

// ParseClassifier decodes a classifier artifact
func ParseClassifier(data []byte) (Classifier, error) {
	var header classifierHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}

	switch header.Type {
	case "decision_tree", "random_forest":
		var f Forest
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
		if err := f.validate(); err != nil {
			return nil, err
		}
		return &f, nil
	case "logistic_regression":
		var spec linearSpec
		if err := json.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
		return newLinear(spec)
	default:
		return nil, fmt.Errorf("%w: unknown classifier type %q", ErrInvalidModel, header.Type)
	}
}

// argmax returns the first index of the largest value
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func mapClass(classes []int, position int) int {
	if len(classes) == 0 {
		return position
	}
	return classes[position]
}
