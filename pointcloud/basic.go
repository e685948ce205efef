package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrColorMismatch is returned when a color slice is not parallel to the point slice.
var ErrColorMismatch = errors.New("colors must be parallel to points")

// basicPointCloud is the basic implementation of the PointCloud interface backed by
// parallel slices of points and data.
type basicPointCloud struct {
	points []r3.Vector
	data   []Data
	meta   MetaData
}

// New returns an empty PointCloud backed by a basicPointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud backed by a basicPointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: make([]r3.Vector, 0, size),
		data:   make([]Data, 0, size),
		meta:   NewMetaData(),
	}
}

// NewFromVectors returns a cloud holding the given points, in order, without per point data.
func NewFromVectors(points []r3.Vector) PointCloud {
	pc := NewWithPrealloc(len(points))
	for _, p := range points {
		//nolint:errcheck
		pc.Append(p, nil)
	}
	return pc
}

// NewWithColors returns a cloud whose i-th point carries colors[i]. colors may be empty, in which
// case the cloud is uncolored; otherwise it must have one entry per point.
func NewWithColors(points []r3.Vector, colors []color.NRGBA) (PointCloud, error) {
	if len(colors) == 0 {
		return NewFromVectors(points), nil
	}
	if len(colors) != len(points) {
		return nil, errors.Wrapf(ErrColorMismatch, "%d colors for %d points", len(colors), len(points))
	}
	pc := NewWithPrealloc(len(points))
	for i, p := range points {
		if err := pc.Append(p, NewColoredData(colors[i])); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) At(i int) (r3.Vector, Data) {
	return cloud.points[i], cloud.data[i]
}

// Append stores the point as given. Non-finite components are kept so that malformed
// projections remain visible to the caller.
func (cloud *basicPointCloud) Append(p r3.Vector, d Data) error {
	cloud.points = append(cloud.points, p)
	cloud.data = append(cloud.data, d)
	cloud.meta.Merge(p, d)
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	start, end := 0, len(cloud.points)
	if numBatches > 0 {
		batchSize := (end + numBatches - 1) / numBatches
		start = myBatch * batchSize
		end = start + batchSize
		if end > len(cloud.points) {
			end = len(cloud.points)
		}
	}
	for i := start; i < end; i++ {
		if !fn(cloud.points[i], cloud.data[i]) {
			return
		}
	}
}
