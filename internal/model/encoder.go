package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// LabelEncoder maps between class indices and their string labels. Index i
// corresponds to Classes[i].
type LabelEncoder struct {
	Classes []string `json:"classes"`

	index map[string]int
}

// LoadLabelEncoder reads an encoder artifact of the form {"classes": [...]}.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	var e LabelEncoder
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("encoder: failed to parse %s: %w", path, err)
	}
	return NewLabelEncoder(e.Classes)
}

// NewLabelEncoder builds an encoder over classes, which must be non-empty
// and unique.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("encoder: no classes")
	}
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		if c == "" {
			return nil, fmt.Errorf("encoder: empty label at index %d", i)
		}
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("encoder: duplicate label %q", c)
		}
		index[c] = i
	}
	return &LabelEncoder{Classes: classes, index: index}, nil
}

func (e *LabelEncoder) Len() int { return len(e.Classes) }

// Label returns the label for class index i.
func (e *LabelEncoder) Label(i int) (string, error) {
	if i < 0 || i >= len(e.Classes) {
		return "", fmt.Errorf("%w: index %d", ErrUnknownClass, i)
	}
	return e.Classes[i], nil
}

// Index returns the class index for label.
func (e *LabelEncoder) Index(label string) (int, error) {
	i, ok := e.index[label]
	if !ok {
		return 0, fmt.Errorf("%w: label %q", ErrUnknownClass, label)
	}
	return i, nil
}
