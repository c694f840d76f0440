package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// Bundle is the immutable set of trained artifacts: classifier, scaler and
// label encoder. It is loaded once at startup and shared read-only.
type Bundle struct {
	classifier Classifier
	scaler     *Scaler
	encoder    *LabelEncoder
}

// Load reads the three artifacts and checks that they agree with each other
// and with featureCount (the preprocessor's output width). Any failure here
// is a startup error.
func Load(p Paths, featureCount int) (*Bundle, error) {
	scaler, err := LoadScaler(p.Scaler)
	if err != nil {
		return nil, xerrors.Errorf("load scaler: %w", err)
	}
	encoder, err := LoadLabelEncoder(p.Encoder)
	if err != nil {
		return nil, xerrors.Errorf("load encoder: %w", err)
	}

	var classifier Classifier
	switch ext := strings.ToLower(filepath.Ext(p.Model)); ext {
	case ".onnx":
		classifier, err = NewONNXClassifier(p.Model, p.ORTLib)
	case ".json":
		classifier, err = LoadSVC(p.Model)
	default:
		return nil, xerrors.Errorf("load classifier: unsupported artifact extension %q", ext)
	}
	if err != nil {
		return nil, xerrors.Errorf("load classifier: %w", err)
	}

	b, err := NewBundle(classifier, scaler, encoder, featureCount)
	if err != nil {
		classifier.Close()
		return nil, xerrors.Errorf("artifacts disagree: %w", err)
	}
	return b, nil
}

// NewBundle assembles already-loaded artifacts after checking dimensions
// and class coverage.
func NewBundle(c Classifier, s *Scaler, e *LabelEncoder, featureCount int) (*Bundle, error) {
	if c == nil || s == nil || e == nil {
		return nil, errors.New("classifier, scaler and encoder are all required")
	}
	if s.Dim() != featureCount {
		return nil, fmt.Errorf("%w: scaler has %d features, preprocessor produces %d",
			ErrDimensionMismatch, s.Dim(), featureCount)
	}
	if n := c.FeatureCount(); n != 0 && n != featureCount {
		return nil, fmt.Errorf("%w: classifier expects %d features, preprocessor produces %d",
			ErrDimensionMismatch, n, featureCount)
	}
	if ci, ok := c.(classIndexer); ok {
		for _, idx := range ci.ClassIndices() {
			if _, err := e.Label(idx); err != nil {
				return nil, fmt.Errorf("classifier emits index %d the encoder cannot map: %w", idx, err)
			}
		}
	}
	return &Bundle{classifier: c, scaler: s, encoder: e}, nil
}

// FeatureCount is the vector width every artifact agrees on.
func (b *Bundle) FeatureCount() int { return b.scaler.Dim() }

// Classes returns the encoder vocabulary in index order.
func (b *Bundle) Classes() []string {
	out := make([]string, len(b.encoder.Classes))
	copy(out, b.encoder.Classes)
	return out
}

// Scale standardizes a raw feature vector.
func (b *Bundle) Scale(raw []float64) ([]float64, error) {
	return b.scaler.Transform(raw)
}

// Predict maps an already-scaled vector to its label.
func (b *Bundle) Predict(scaled []float64) (string, error) {
	idx, err := b.classifier.Predict(scaled)
	if err != nil {
		return "", err
	}
	return b.encoder.Label(idx)
}

// Classify scales a raw feature vector and predicts its label.
func (b *Bundle) Classify(raw []float64) (string, error) {
	scaled, err := b.Scale(raw)
	if err != nil {
		return "", err
	}
	return b.Predict(scaled)
}

func (b *Bundle) Close() error {
	return b.classifier.Close()
}
