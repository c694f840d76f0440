package model

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the length the artifacts were trained with.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	// ErrUnknownClass is returned when a class index or label is outside
	// the encoder's vocabulary.
	ErrUnknownClass = errors.New("unknown class")
)

// Classifier maps a standardized feature vector to a class index.
type Classifier interface {
	Predict(features []float64) (int, error)
	// FeatureCount is the input width the classifier was trained on, or 0
	// when the artifact does not declare it.
	FeatureCount() int
	Close() error
}

// classIndexer is implemented by classifiers that know every index they
// can emit, letting Load check them against the label encoder.
type classIndexer interface {
	ClassIndices() []int
}

// Paths locates the three trained artifacts.
type Paths struct {
	Model   string // .onnx or .json
	Scaler  string
	Encoder string
	ORTLib  string
}
