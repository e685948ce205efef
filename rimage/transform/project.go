package transform

import (
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/rimage"
)

// integerDepthScale converts millimetre integer depth to metres.
const integerDepthScale = 1000.0

// Project back-projects every valid pixel of dm through the pinhole model described by intr and
// returns the points in row-major scan order together with the validity mask. Integer buffers
// are millimetres and are rejected if any sample is negative; float buffers are metres and are
// not range checked. A nil intr selects Default. The intrinsic matrix is not checked, so
// malformed values propagate into the points.
func Project[T rimage.DepthSample](dm *rimage.DepthMap[T], intr Intrinsics) (pointcloud.PointCloud, *rimage.Mask, error) {
	if dm == nil {
		return nil, nil, errors.Wrap(ErrInvalidInput, "no depth channel, cannot project to pointcloud")
	}
	scale := 1.0
	if dm.IsInteger() {
		if dm.HasNegative() {
			return nil, nil, errors.Wrap(ErrInvalidInput, "negative depth values found in integer depth map")
		}
		scale = integerDepthScale
	}
	if intr == nil {
		intr = Default{}
	}
	k, err := intr.Matrix(dm.Width(), dm.Height())
	if err != nil {
		return nil, nil, err
	}
	fx, fy := k.At(0, 0), k.At(1, 1)
	cx, cy := k.At(0, 2), k.At(1, 2)
	bx, by := k.At(0, 3), k.At(1, 3)

	mask := dm.Mask()
	pc := pointcloud.NewWithPrealloc(mask.Count())
	for v := 0; v < dm.Height(); v++ {
		for u := 0; u < dm.Width(); u++ {
			if !mask.Valid(u, v) {
				continue
			}
			z := float64(dm.GetDepth(u, v)) / scale
			p := r3.Vector{
				X: (float64(u)-cx)*z/fx + bx,
				Y: (float64(v)-cy)*z/fy + by,
				Z: z,
			}
			if err := pc.Append(p, nil); err != nil {
				return nil, nil, err
			}
		}
	}
	return pc, mask, nil
}

// ProjectWithColor projects dm and attaches the color of img at each valid pixel.
func ProjectWithColor[T rimage.DepthSample](
	dm *rimage.DepthMap[T], img image.Image, intr Intrinsics,
) (pointcloud.PointCloud, *rimage.Mask, error) {
	pc, mask, err := Project(dm, intr)
	if err != nil {
		return nil, nil, err
	}
	if img == nil {
		return pc, mask, nil
	}
	colors, err := rimage.ColorsFromImage(img, mask)
	if err != nil {
		return nil, nil, err
	}
	colored, err := pointcloud.NewWithColors(pointcloud.Vectors(pc), colors)
	if err != nil {
		return nil, nil, err
	}
	return colored, mask, nil
}
