package dnmf

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Sequence is the raw observed data, indexed by frame and then by spatial
// coordinates ([z,] y, x). The data is stored row-major in a flat slice and
// is only read by the optimization.
type Sequence struct {
	shape   []int
	strides []int
	data    []float64
}

// NewSequence allocates a zero-valued sequence with the given shape, frame
// count first. The rank must be at least two (one frame axis plus one or
// more spatial axes) and every extent must be positive.
func NewSequence(shape ...int) (*Sequence, error) {
	if len(shape) < 2 {
		return nil, errors.Errorf("sequence needs a frame axis and at least one spatial axis, got rank %d", len(shape))
	}
	size := 1
	for axis, extent := range shape {
		if extent <= 0 {
			return nil, errors.Errorf("non-positive extent %d on axis %d", extent, axis)
		}
		size *= extent
	}
	sequence := &Sequence{
		shape:   append([]int(nil), shape...),
		strides: make([]int, len(shape)),
		data:    make([]float64, size),
	}
	stride := 1
	for axis := len(shape) - 1; axis >= 0; axis-- {
		sequence.strides[axis] = stride
		stride *= shape[axis]
	}
	return sequence, nil
}

// NumFrames returns the number of frames.
func (s *Sequence) NumFrames() int {
	return s.shape[0]
}

// SpatialShape returns a copy of the spatial extents ([z,] y, x).
func (s *Sequence) SpatialShape() []int {
	return append([]int(nil), s.shape[1:]...)
}

// At returns the value at the given frame and spatial coordinates.
func (s *Sequence) At(frame int, coords ...int) float64 {
	return s.data[s.flatIndex(frame, coords)]
}

// Set stores a value at the given frame and spatial coordinates.
func (s *Sequence) Set(value float64, frame int, coords ...int) {
	s.data[s.flatIndex(frame, coords)] = value
}

func (s *Sequence) flatIndex(frame int, coords []int) int {
	index := frame * s.strides[0]
	for axis, coord := range coords {
		index += coord * s.strides[axis+1]
	}
	return index
}

// contains reports whether the box lies fully inside the spatial extents.
func (s *Sequence) contains(box BoundingBox) bool {
	if box.Rank() != len(s.shape)-1 {
		return false
	}
	for axis := range box.shape {
		if box.offset[axis] < 0 || box.offset[axis]+box.shape[axis] > s.shape[axis+1] {
			return false
		}
	}
	return true
}

// batch gathers the data of the given frames restricted to the bounding box
// into a len(frames) x box.Size() matrix, pixels in row-major box order.
func (s *Sequence) batch(frames []int, box BoundingBox) *mat.Dense {
	size := box.Size()
	x := mat.NewDense(len(frames), size, nil)
	coords := make([]int, box.Rank())
	for row, frame := range frames {
		base := frame * s.strides[0]
		xRow := x.RawRowView(row)
		for axis := range coords {
			coords[axis] = 0
		}
		for col := 0; col < size; col++ {
			index := base
			for axis := range coords {
				index += (box.offset[axis] + coords[axis]) * s.strides[axis+1]
			}
			xRow[col] = s.data[index]
			for axis := box.Rank() - 1; axis >= 0; axis-- {
				coords[axis]++
				if coords[axis] < box.shape[axis] {
					break
				}
				coords[axis] = 0
			}
		}
	}
	return x
}
