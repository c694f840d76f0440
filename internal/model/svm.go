package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// SVC is a kernel support vector classifier evaluated natively. Field
// names follow the attributes of a fitted scikit-learn SVC. gamma must be
// the resolved number (the fitted _gamma), not the "scale" or "auto"
// setting. Multiclass prediction uses one-vs-one voting; ties go to the
// lower class position.
type SVC struct {
	Kernel         string      `json:"kernel"` // "linear", "poly", "rbf", "sigmoid"
	Gamma          float64     `json:"gamma"`
	Coef0          float64     `json:"coef0"`
	Degree         int         `json:"degree"`
	Classes        []int       `json:"classes"`
	NSupport       []int       `json:"n_support"`
	SupportVectors [][]float64 `json:"support_vectors"`
	DualCoef       [][]float64 `json:"dual_coef"`
	Intercept      []float64   `json:"intercept"`

	starts []int
	kernel func(a, b []float64) float64
}

// LoadSVC reads an SVC artifact from a JSON file.
func LoadSVC(path string) (*SVC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("svc: %w", err)
	}
	var s SVC
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("svc: failed to parse %s: %w", path, err)
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return &s, nil
}

// UnmarshalJSON decodes an SVC artifact, rejecting a symbolic gamma with
// a message naming the attribute to export instead.
func (s *SVC) UnmarshalJSON(data []byte) error {
	type plain SVC
	aux := struct {
		*plain
		Gamma json.RawMessage `json:"gamma"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Gamma) == 0 || string(aux.Gamma) == "null" {
		return nil
	}
	if aux.Gamma[0] == '"' {
		var setting string
		if err := json.Unmarshal(aux.Gamma, &setting); err != nil {
			return err
		}
		return fmt.Errorf("gamma is the setting %q; export the fitted model's numeric _gamma instead", setting)
	}
	return json.Unmarshal(aux.Gamma, &s.Gamma)
}

// Init validates the model shape and prepares the kernel. It must be
// called before Predict on a hand-built SVC.
func (s *SVC) Init() error {
	nClass := len(s.Classes)
	nSV := len(s.SupportVectors)
	if nClass < 2 {
		return fmt.Errorf("svc: need at least 2 classes, got %d", nClass)
	}
	if len(s.NSupport) != nClass {
		return fmt.Errorf("svc: n_support has %d entries for %d classes", len(s.NSupport), nClass)
	}
	if nSV == 0 {
		return fmt.Errorf("svc: no support vectors")
	}
	dim := len(s.SupportVectors[0])
	for i, sv := range s.SupportVectors {
		if len(sv) != dim {
			return fmt.Errorf("svc: support vector %d has %d features, want %d", i, len(sv), dim)
		}
	}

	s.starts = make([]int, nClass)
	total := 0
	for i, n := range s.NSupport {
		if n < 0 {
			return fmt.Errorf("svc: negative n_support for class %d", i)
		}
		s.starts[i] = total
		total += n
	}
	if total != nSV {
		return fmt.Errorf("svc: n_support sums to %d, have %d support vectors", total, nSV)
	}

	if len(s.DualCoef) != nClass-1 {
		return fmt.Errorf("svc: dual_coef has %d rows, want %d", len(s.DualCoef), nClass-1)
	}
	for i, row := range s.DualCoef {
		if len(row) != nSV {
			return fmt.Errorf("svc: dual_coef row %d has %d entries, want %d", i, len(row), nSV)
		}
	}
	if want := nClass * (nClass - 1) / 2; len(s.Intercept) != want {
		return fmt.Errorf("svc: intercept has %d entries, want %d", len(s.Intercept), want)
	}

	kernel, err := s.kernelFunc()
	if err != nil {
		return err
	}
	s.kernel = kernel
	return nil
}

func (s *SVC) kernelFunc() (func(a, b []float64) float64, error) {
	switch s.Kernel {
	case "linear":
		return dot, nil
	case "rbf":
		if s.Gamma <= 0 {
			return nil, fmt.Errorf("svc: rbf kernel needs gamma > 0")
		}
		gamma := s.Gamma
		return func(a, b []float64) float64 {
			var d float64
			for i := range a {
				diff := a[i] - b[i]
				d += diff * diff
			}
			return math.Exp(-gamma * d)
		}, nil
	case "poly":
		if s.Degree < 1 {
			return nil, fmt.Errorf("svc: poly kernel needs degree >= 1")
		}
		gamma, coef0, degree := s.Gamma, s.Coef0, float64(s.Degree)
		return func(a, b []float64) float64 {
			return math.Pow(gamma*dot(a, b)+coef0, degree)
		}, nil
	case "sigmoid":
		gamma, coef0 := s.Gamma, s.Coef0
		return func(a, b []float64) float64 {
			return math.Tanh(gamma*dot(a, b) + coef0)
		}, nil
	default:
		return nil, fmt.Errorf("svc: unsupported kernel %q", s.Kernel)
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func (s *SVC) FeatureCount() int { return len(s.SupportVectors[0]) }

// ClassIndices lists every index Predict can return.
func (s *SVC) ClassIndices() []int { return s.Classes }

// Predict returns the class index for x.
func (s *SVC) Predict(x []float64) (int, error) {
	if s.kernel == nil {
		return 0, fmt.Errorf("svc: not initialized")
	}
	if len(x) != s.FeatureCount() {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(x), s.FeatureCount())
	}

	k := make([]float64, len(s.SupportVectors))
	for i, sv := range s.SupportVectors {
		k[i] = s.kernel(sv, x)
	}

	nClass := len(s.Classes)
	// Binary models are stored with sklearn's sign convention: positive
	// decision means the second class.
	if nClass == 2 {
		dec := s.Intercept[0]
		for i, kv := range k {
			dec += s.DualCoef[0][i] * kv
		}
		if dec > 0 {
			return s.Classes[1], nil
		}
		return s.Classes[0], nil
	}

	votes := make([]int, nClass)
	p := 0
	for i := 0; i < nClass; i++ {
		for j := i + 1; j < nClass; j++ {
			dec := s.Intercept[p]
			for sv := s.starts[i]; sv < s.starts[i]+s.NSupport[i]; sv++ {
				dec += s.DualCoef[j-1][sv] * k[sv]
			}
			for sv := s.starts[j]; sv < s.starts[j]+s.NSupport[j]; sv++ {
				dec += s.DualCoef[i][sv] * k[sv]
			}
			if dec > 0 {
				votes[i]++
			} else {
				votes[j]++
			}
			p++
		}
	}

	best := 0
	for i := 1; i < nClass; i++ {
		if votes[i] > votes[best] {
			best = i
		}
	}
	return s.Classes[best], nil
}

func (s *SVC) Close() error { return nil }
