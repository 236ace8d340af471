package model

import "fmt"

// Layout is the memory order of an ImageTensor.
type Layout string

const (
	// LayoutNHWC is batch, height, width, channel (Keras exports).
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW is batch, channel, height, width (PyTorch exports).
	LayoutNCHW Layout = "nchw"
)

// ImageTensor is a normalized image ready for a single inference call.
type ImageTensor struct {
	Data  []float32
	Shape []int64
}

// Size is the number of elements implied by Shape.
func (t ImageTensor) Size() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// InputShape returns the batched tensor shape for a square image of the given size.
func InputShape(layout Layout, size int) []int64 {
	s := int64(size)
	if layout == LayoutNCHW {
		return []int64{1, 3, s, s}
	}
	return []int64{1, s, s, 3}
}

// Classifier scores an image tensor. The returned vector is index-aligned
// with the label list the classifier was trained with.
type Classifier interface {
	Predict(t ImageTensor) ([]float32, error)
}

// ClassifierError reports a prediction failure: shape mismatch or runtime error.
type ClassifierError struct {
	Op  string
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %s: %v", e.Op, e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }
