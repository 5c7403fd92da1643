package tensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSliceRejectsWrongLength(t *testing.T) {
	_, err := FromSlice(Shape{C: 1, H: 2, W: 2}, []float32{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestAtSetRoundTrip(t *testing.T) {
	f := NewFrame(Shape{C: 3, H: 2, W: 4})
	f.Set(2, 1, 3, 0.5)
	assert.Equal(t, float32(0.5), f.At(2, 1, 3))
	assert.Equal(t, float32(0.5), f.Data[len(f.Data)-1])
}

func TestEqualIsBitExact(t *testing.T) {
	s := Shape{C: 1, H: 1, W: 2}
	a, _ := FromSlice(s, []float32{0, 1})
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Data[0] = float32(math.Copysign(0, -1)) // -0 == 0 numerically, differs in bits
	assert.False(t, a.Equal(b))
}

func TestCloneDoesNotAlias(t *testing.T) {
	a := NewFrame(Shape{C: 1, H: 1, W: 1})
	b := a.Clone()
	b.Data[0] = 1
	assert.Equal(t, float32(0), a.Data[0])
}

func TestBatchValidate(t *testing.T) {
	s := Shape{C: 1, H: 2, W: 2}
	clip := Clip{NewFrame(s), NewFrame(s)}

	require.NoError(t, Batch{Clips: []Clip{clip, clip}}.Validate(2))

	err := Batch{Clips: []Clip{clip}}.Validate(3)
	assert.True(t, errors.Is(err, ErrShape))

	odd := Clip{NewFrame(s), NewFrame(Shape{C: 3, H: 2, W: 2})}
	err = Batch{Clips: []Clip{odd}}.Validate(2)
	assert.True(t, errors.Is(err, ErrShape))

	assert.True(t, errors.Is(Batch{}.Validate(2), ErrEmptyBatch))
}
