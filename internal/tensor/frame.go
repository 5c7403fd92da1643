package tensor

import (
	"errors"
	"fmt"
	"math"
)

// #region errors
var (
	ErrShape      = errors.New("shape mismatch")
	ErrEmptyBatch = errors.New("empty batch")
)

// #endregion errors

// #region shape
// Shape is the channel-first layout of a single frame.
type Shape struct {
	C int `json:"channels" yaml:"channels"`
	H int `json:"height" yaml:"height"`
	W int `json:"width" yaml:"width"`
}

// Size returns the number of values a frame of this shape holds.
func (s Shape) Size() int {
	return s.C * s.H * s.W
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.C, s.H, s.W)
}

// #endregion shape

// #region frame
// Frame is one image, values in [0,1], stored C×H×W row-major.
type Frame struct {
	Shape Shape
	Data  []float32
}

// NewFrame allocates a zero frame of the given shape.
func NewFrame(s Shape) Frame {
	return Frame{Shape: s, Data: make([]float32, s.Size())}
}

// FromSlice wraps data as a frame after checking its length.
func FromSlice(s Shape, data []float32) (Frame, error) {
	if len(data) != s.Size() {
		return Frame{}, fmt.Errorf("frame %s needs %d values, got %d: %w", s, s.Size(), len(data), ErrShape)
	}
	return Frame{Shape: s, Data: data}, nil
}

// At returns the value at channel c, row y, column x.
func (f Frame) At(c, y, x int) float32 {
	return f.Data[(c*f.Shape.H+y)*f.Shape.W+x]
}

// Set writes the value at channel c, row y, column x.
func (f Frame) Set(c, y, x int, v float32) {
	f.Data[(c*f.Shape.H+y)*f.Shape.W+x] = v
}

// Clone returns a deep copy.
func (f Frame) Clone() Frame {
	out := Frame{Shape: f.Shape, Data: make([]float32, len(f.Data))}
	copy(out.Data, f.Data)
	return out
}

// Equal reports bit-for-bit equality, NaN payloads included.
func (f Frame) Equal(o Frame) bool {
	if f.Shape != o.Shape || len(f.Data) != len(o.Data) {
		return false
	}
	for i := range f.Data {
		if math.Float32bits(f.Data[i]) != math.Float32bits(o.Data[i]) {
			return false
		}
	}
	return true
}

// #endregion frame
