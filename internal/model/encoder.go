package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// LabelEncoder maps encoded class indices back to labels
type LabelEncoder struct {
	classes []string
}

type encoderFile struct {
	Classes []string `json:"classes"`
}

// NewLabelEncoder builds an encoder from labels ordered by class index
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: label encoder has no classes", ErrInvalidModel)
	}
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		if seen[c] {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidModel, c)
		}
		seen[c] = true
	}
	return &LabelEncoder{classes: append([]string(nil), classes...)}, nil
}

// LoadLabelEncoder reads an encoder artifact
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label encoder: %w", err)
	}

	var f encoderFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	return NewLabelEncoder(f.Classes)
}

// InverseTransform returns the label for a class index
func (e *LabelEncoder) InverseTransform(class int) (string, error) {
	if class < 0 || class >= len(e.classes) {
		return "", fmt.Errorf("%w: %d (have %d classes)", ErrUnknownClass, class, len(e.classes))
	}
	return e.classes[class], nil
}

// Classes returns a copy of the known labels
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}
