package dnmf

import (
	"github.com/pkg/errors"
)

// BoundingBox is an axis-aligned region in the coordinate space shared by
// all frames of a sequence. Offset and shape carry one entry per spatial
// axis ([z,] y, x). Immutable after creation.
type BoundingBox struct {
	offset []int
	shape  []int
}

// NewBoundingBox creates a bounding box from an offset and a shape of the
// same rank. Every extent must be positive.
func NewBoundingBox(offset, shape []int) (BoundingBox, error) {
	if len(offset) != len(shape) {
		return BoundingBox{}, errors.Errorf("offset rank %d does not match shape rank %d", len(offset), len(shape))
	}
	if len(shape) == 0 {
		return BoundingBox{}, errors.New("bounding box needs at least one axis")
	}
	for axis, extent := range shape {
		if extent <= 0 {
			return BoundingBox{}, errors.Errorf("non-positive extent %d on axis %d", extent, axis)
		}
	}
	box := BoundingBox{
		offset: make([]int, len(offset)),
		shape:  make([]int, len(shape)),
	}
	copy(box.offset, offset)
	copy(box.shape, shape)
	return box, nil
}

// Rank returns the number of spatial axes of the box.
func (b BoundingBox) Rank() int {
	return len(b.shape)
}

// Offset returns a copy of the box offset.
func (b BoundingBox) Offset() []int {
	return append([]int(nil), b.offset...)
}

// Shape returns a copy of the box extents.
func (b BoundingBox) Shape() []int {
	return append([]int(nil), b.shape...)
}

// Size returns the number of elements covered by the box.
func (b BoundingBox) Size() int {
	size := 1
	for _, extent := range b.shape {
		size *= extent
	}
	return size
}

// Intersects reports whether two boxes overlap. Boxes overlap iff their
// coordinate ranges intersect on every axis. Boxes of different rank never
// overlap.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	if b.Rank() != other.Rank() {
		return false
	}
	for axis := range b.shape {
		if b.offset[axis]+b.shape[axis] <= other.offset[axis] ||
			other.offset[axis]+other.shape[axis] <= b.offset[axis] {
			return false
		}
	}
	return true
}

func equalShape(a, b []int) bool {
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

// ComponentDescription ties a component index to the bounding box it is
// estimated in. One per estimated component, never mutated.
type ComponentDescription struct {
	Index       int
	BoundingBox BoundingBox
}

// NewComponentDescriptions wraps a list of bounding boxes into component
// descriptions, assigning indices in input order.
func NewComponentDescriptions(boxes []BoundingBox) []ComponentDescription {
	descriptions := make([]ComponentDescription, len(boxes))
	for i, box := range boxes {
		descriptions[i] = ComponentDescription{Index: i, BoundingBox: box}
	}
	return descriptions
}
