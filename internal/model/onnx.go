package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv tracks the process-wide ONNX Runtime initialization.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ShutdownRuntime releases the ONNX Runtime environment. Call once at exit,
// after every ONNXClassifier is closed.
func ShutdownRuntime() {
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

// ONNXClassifier runs a classifier exported to ONNX with a single
// [1, N] float input and an int64 label output.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[int64]
	featureCount int
}

// NewONNXClassifier loads modelPath and binds one reusable input and output
// tensor to the session.
func NewONNXClassifier(modelPath, libPath string) (*ONNXClassifier, error) {
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("expected exactly one model input, got %d", len(inputs))
	}
	dims := inputs[0].Dimensions
	if len(dims) != 2 || dims[1] <= 0 {
		return nil, fmt.Errorf("expected input shape [batch, features], got %v", dims)
	}
	outputName, err := labelOutput(outputs)
	if err != nil {
		return nil, err
	}

	featureCount := dims[1]
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, featureCount))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		featureCount: int(featureCount),
	}, nil
}

// labelOutput prefers an output named "label" (skl2onnx's convention) and
// otherwise takes the first int64 output.
func labelOutput(outputs []ort.InputOutputInfo) (string, error) {
	for _, o := range outputs {
		if o.Name == "label" && o.DataType == ort.TensorElementDataTypeInt64 {
			return o.Name, nil
		}
	}
	for _, o := range outputs {
		if o.DataType == ort.TensorElementDataTypeInt64 {
			return o.Name, nil
		}
	}
	return "", fmt.Errorf("model has no int64 label output")
}

func (c *ONNXClassifier) FeatureCount() int { return c.featureCount }

// Predict copies features into the bound input tensor and runs the session.
// The tensors are shared, so calls are serialized.
func (c *ONNXClassifier) Predict(features []float64) (int, error) {
	if len(features) != c.featureCount {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(features), c.featureCount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	in := c.inputTensor.GetData()
	for i, v := range features {
		in[i] = float32(v)
	}

	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	return int(c.outputTensor.GetData()[0]), nil
}

func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		return c.session.Destroy()
	}
	return nil
}
