// Package rimage holds depth buffers, validity masks, and the image helpers used to align
// per-pixel data with projected points.
package rimage

import (
	"image"
	"reflect"

	"github.com/pkg/errors"
)

// DepthSample is the set of element types a depth buffer may hold. Integer buffers are
// millimetres, floating point buffers are metres.
type DepthSample interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint |
		~float32 | ~float64
}

// DepthMap is a width x height buffer of depth samples stored in row-major order. A sample of
// exactly zero marks an invalid pixel.
type DepthMap[T DepthSample] struct {
	width  int
	height int

	data []T
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap[T DepthSample](width, height int) *DepthMap[T] {
	return &DepthMap[T]{
		width:  width,
		height: height,
		data:   make([]T, width*height),
	}
}

// NewDepthMap wraps row-major data as a depth map. The slice is copied.
func NewDepthMap[T DepthSample](width, height int, data []T) (*DepthMap[T], error) {
	if width < 0 || height < 0 {
		return nil, errors.Errorf("invalid depth map size (%d, %d)", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth map of size (%d, %d) needs %d samples, got %d", width, height, width*height, len(data))
	}
	dm := NewEmptyDepthMap[T](width, height)
	copy(dm.data, data)
	return dm, nil
}

// NewDepthMapFromRows builds a depth map from rows of samples; every row must have the same
// length.
func NewDepthMapFromRows[T DepthSample](rows [][]T) (*DepthMap[T], error) {
	height := len(rows)
	width := 0
	if height > 0 {
		width = len(rows[0])
	}
	dm := NewEmptyDepthMap[T](width, height)
	for y, row := range rows {
		if len(row) != width {
			return nil, errors.Errorf("row %d has %d samples, expected %d", y, len(row), width)
		}
		copy(dm.data[y*width:], row)
	}
	return dm, nil
}

// Width returns the horizontal size of the depth map.
func (dm *DepthMap[T]) Width() int {
	return dm.width
}

// Height returns the vertical size of the depth map.
func (dm *DepthMap[T]) Height() int {
	return dm.height
}

// Bounds returns the rectangle dimensions of the depth map.
func (dm *DepthMap[T]) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// GetDepth returns the sample at column x, row y.
func (dm *DepthMap[T]) GetDepth(x, y int) T {
	return dm.data[y*dm.width+x]
}

// Set sets the sample at column x, row y.
func (dm *DepthMap[T]) Set(x, y int, val T) {
	dm.data[y*dm.width+x] = val
}

// Clone returns a copy of the depth map.
func (dm *DepthMap[T]) Clone() *DepthMap[T] {
	clone := NewEmptyDepthMap[T](dm.width, dm.height)
	copy(clone.data, dm.data)
	return clone
}

// IsInteger reports whether the sample type is an integer type.
func (dm *DepthMap[T]) IsInteger() bool {
	switch reflect.TypeOf((*T)(nil)).Elem().Kind() {
	case reflect.Float32, reflect.Float64:
		return false
	default:
		return true
	}
}

// HasNegative reports whether any sample is below zero.
func (dm *DepthMap[T]) HasNegative() bool {
	for _, d := range dm.data {
		if d < 0 {
			return true
		}
	}
	return false
}

// Mask returns the validity mask of the depth map: a pixel is valid iff its sample is non-zero.
func (dm *DepthMap[T]) Mask() *Mask {
	mask := NewMask(dm.width, dm.height)
	for i, d := range dm.data {
		if d != 0 {
			mask.valid[i] = true
		}
	}
	return mask
}

// MinMax returns the smallest and largest valid (non-zero) sample, and false when no sample is
// valid.
func (dm *DepthMap[T]) MinMax() (T, T, bool) {
	var lo, hi T
	found := false
	for _, d := range dm.data {
		if d == 0 {
			continue
		}
		if !found || d < lo {
			lo = d
		}
		if !found || d > hi {
			hi = d
		}
		found = true
	}
	return lo, hi, found
}
