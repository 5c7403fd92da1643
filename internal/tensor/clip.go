package tensor

import "fmt"

// #region clip
// Clip is an ordered sequence of frames sharing one shape.
type Clip []Frame

// Shape returns the frame shape of the clip, or the zero shape when empty.
func (c Clip) Shape() Shape {
	if len(c) == 0 {
		return Shape{}
	}
	return c[0].Shape
}

// Validate checks that every frame has shape s and the expected length.
func (c Clip) Validate(s Shape) error {
	for i, f := range c {
		if f.Shape != s || len(f.Data) != s.Size() {
			return fmt.Errorf("frame %d is %s, want %s: %w", i, f.Shape, s, ErrShape)
		}
	}
	return nil
}

// #endregion clip

// #region batch
// Batch is a fixed-size group of clips evaluated together.
type Batch struct {
	Clips []Clip
	// Offset is the position of Clips[0] in the overall evaluation stream.
	Offset int
}

// Len returns the number of clips.
func (b Batch) Len() int {
	return len(b.Clips)
}

// Validate checks every clip has n frames of the same shape.
func (b Batch) Validate(n int) error {
	if len(b.Clips) == 0 {
		return ErrEmptyBatch
	}
	s := b.Clips[0].Shape()
	for i, c := range b.Clips {
		if len(c) != n {
			return fmt.Errorf("clip %d has %d frames, want %d: %w", i, len(c), n, ErrShape)
		}
		if err := c.Validate(s); err != nil {
			return fmt.Errorf("clip %d: %w", i, err)
		}
	}
	return nil
}

// #endregion batch
