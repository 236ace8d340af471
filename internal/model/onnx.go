package model

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig describes a serialized classifier and how to feed it.
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	ImageSize   int
	Layout      Layout
	NumClasses  int
}

// ONNXClassifier runs a single-input, single-output softmax classifier.
// The session and its tensors are allocated once and reused; Predict
// serializes access to them.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   []int64
}

// NewONNXClassifier initializes the onnxruntime environment and loads the model.
func NewONNXClassifier(cfg ONNXConfig) (*ONNXClassifier, error) {
	if cfg.NumClasses <= 0 {
		return nil, errors.New("classifier needs at least one class")
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputShape := InputShape(cfg.Layout, cfg.ImageSize)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.NumClasses)))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
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
		inputShape:   inputShape,
	}, nil
}

// Predict copies t into the session input, runs it and returns a copy of the output.
func (c *ONNXClassifier) Predict(t ImageTensor) ([]float32, error) {
	if !sameShape(t.Shape, c.inputShape) || len(t.Data) != t.Size() {
		return nil, &ClassifierError{
			Op:  "predict",
			Err: errors.Errorf("tensor shape %v (%d values) does not match model input %v", t.Shape, len(t.Data), c.inputShape),
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.inputTensor.GetData(), t.Data)
	if err := c.session.Run(); err != nil {
		return nil, &ClassifierError{Op: "predict", Err: errors.Wrap(err, "inference failed")}
	}

	out := c.outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

// Close releases the session, its tensors and the runtime environment.
func (c *ONNXClassifier) Close() {
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}

func sameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
