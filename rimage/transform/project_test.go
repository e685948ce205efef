package transform

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthcam/pointcloud"
	"go.viam.com/depthcam/rimage"
)

func constDepth[T rimage.DepthSample](w, h int, v T) *rimage.DepthMap[T] {
	dm := rimage.NewEmptyDepthMap[T](w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dm.Set(x, y, v)
		}
	}
	return dm
}

func TestProjectEndToEnd(t *testing.T) {
	dm := constDepth[uint16](4, 4, 2000)
	dm.Set(0, 0, 0)

	pc, mask, err := Project(dm, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 15)
	test.That(t, mask.Count(), test.ShouldEqual, 15)
	test.That(t, mask.Valid(0, 0), test.ShouldBeFalse)

	f := 50 * math.Sqrt(32) / math.Sqrt(36*36+24*24)
	test.That(t, f, test.ShouldAlmostEqual, 6.537204504606134)

	i := 0
	for v := 0; v < 4; v++ {
		for u := 0; u < 4; u++ {
			if u == 0 && v == 0 {
				continue
			}
			p, d := pc.At(i)
			test.That(t, d, test.ShouldBeNil)
			test.That(t, p.Z, test.ShouldEqual, 2.0)
			test.That(t, p.X, test.ShouldAlmostEqual, (float64(u)-2)*2/f)
			test.That(t, p.Y, test.ShouldAlmostEqual, (float64(v)-2)*2/f)
			i++
		}
	}
	first, _ := pc.At(0)
	test.That(t, first.X, test.ShouldAlmostEqual, -0.3059411708155671)
	test.That(t, first.Y, test.ShouldAlmostEqual, -2/f)
}

func TestProjectDeterministic(t *testing.T) {
	dm, err := rimage.NewDepthMapFromRows([][]float32{
		{0, 1.25, 3},
		{0.5, 0, 2},
	})
	test.That(t, err, test.ShouldBeNil)

	pc1, mask1, err := Project(dm, FocalLength(35))
	test.That(t, err, test.ShouldBeNil)
	pc2, mask2, err := Project(dm, FocalLength(35))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pointcloud.Vectors(pc1), test.ShouldResemble, pointcloud.Vectors(pc2))
	test.That(t, mask1, test.ShouldResemble, mask2)
}

func TestProjectMaskCorrespondence(t *testing.T) {
	dm, err := rimage.NewDepthMapFromRows([][]uint16{
		{0, 10, 0, 30},
		{50, 0, 70, 0},
		{0, 0, 0, 120},
	})
	test.That(t, err, test.ShouldBeNil)

	pc, mask, err := Project(dm, Matrix3x3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, mask.Count())

	// with an identity camera, X/Z and Y/Z recover the pixel coordinates
	for i, px := range mask.Pixels() {
		p, _ := pc.At(i)
		test.That(t, p.Z, test.ShouldAlmostEqual, float64(dm.GetDepth(px.X, px.Y))/1000)
		test.That(t, p.X/p.Z, test.ShouldAlmostEqual, float64(px.X))
		test.That(t, p.Y/p.Z, test.ShouldAlmostEqual, float64(px.Y))
	}
}

func TestProjectUnitScaling(t *testing.T) {
	for _, tc := range []struct {
		name string
		z    func() (pointcloud.PointCloud, error)
	}{
		{"uint16", func() (pointcloud.PointCloud, error) {
			pc, _, err := Project(constDepth[uint16](5, 3, 1000), Default{})
			return pc, err
		}},
		{"int32", func() (pointcloud.PointCloud, error) {
			pc, _, err := Project(constDepth[int32](5, 3, 1000), Default{})
			return pc, err
		}},
		{"float64 metres", func() (pointcloud.PointCloud, error) {
			pc, _, err := Project(constDepth[float64](5, 3, 1.0), Default{})
			return pc, err
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pc, err := tc.z()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, pc.Size(), test.ShouldEqual, 15)
			for _, p := range pointcloud.Vectors(pc) {
				test.That(t, p.Z, test.ShouldEqual, 1.0)
			}
		})
	}
}

func TestProjectNegativeDepth(t *testing.T) {
	ints, err := rimage.NewDepthMapFromRows([][]int16{{100, -1}, {0, 5}})
	test.That(t, err, test.ShouldBeNil)
	_, _, err = Project(ints, nil)
	test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)

	floats, err := rimage.NewDepthMapFromRows([][]float64{{0.1, -1}, {0, 0.005}})
	test.That(t, err, test.ShouldBeNil)
	pc, mask, err := Project(floats, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)
	test.That(t, mask.Valid(1, 0), test.ShouldBeTrue)
	p, _ := pc.At(1)
	test.That(t, p.Z, test.ShouldEqual, -1.0)

	_, _, err = Project[uint16](nil, nil)
	test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)
}

func TestProjectMatrixVariants(t *testing.T) {
	dm := constDepth[float64](2, 2, 2)

	// 3x4: fourth column adds a translation
	pc, _, err := Project(dm, Matrix3x4{{2, 0, 1, 0.5}, {0, 4, 1, -0.25}, {0, 0, 1, 0}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pointcloud.Vectors(pc), test.ShouldResemble, []r3.Vector{
		{X: -0.5, Y: -0.75, Z: 2},
		{X: 0.5, Y: -0.75, Z: 2},
		{X: -0.5, Y: -0.25, Z: 2},
		{X: 0.5, Y: -0.25, Z: 2},
	})

	// 4x4 is used as-is
	pc4, _, err := Project(dm, Matrix4x4{{2, 0, 1, 0.5}, {0, 4, 1, -0.25}, {0, 0, 1, 0}, {0, 0, 0, 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pointcloud.Vectors(pc4), test.ShouldResemble, pointcloud.Vectors(pc))

	// pinhole parameters behave like the matching 3x3
	pin := &PinholeCameraIntrinsics{Width: 2, Height: 2, Fx: 2, Fy: 4, Ppx: 1, Ppy: 1}
	pcPin, _, err := Project(dm, pin)
	test.That(t, err, test.ShouldBeNil)
	pc3, _, err := Project(dm, Matrix3x3{{2, 0, 1}, {0, 4, 1}, {0, 0, 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pointcloud.Vectors(pcPin), test.ShouldResemble, pointcloud.Vectors(pc3))

	x, y, z := pin.PixelToPoint(0, 0, 2)
	p0, _ := pcPin.At(0)
	test.That(t, r3.Vector{X: x, Y: y, Z: z}, test.ShouldResemble, p0)
}

func TestProjectMalformedMatrixPropagates(t *testing.T) {
	dm := constDepth[float64](2, 1, 1)
	pc, _, err := Project(dm, Matrix3x3{{0, 0, 0}, {0, math.NaN(), 0}, {0, 0, 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	p, _ := pc.At(1)
	test.That(t, math.IsInf(p.X, 1), test.ShouldBeTrue)
	test.That(t, math.IsNaN(p.Y), test.ShouldBeTrue)
}

func TestProjectWithColor(t *testing.T) {
	dm, err := rimage.NewDepthMapFromRows([][]uint16{{0, 1000}, {2000, 0}})
	test.That(t, err, test.ShouldBeNil)
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 40, G: 50, B: 60, A: 255})

	pc, mask, err := ProjectWithColor(dm, img, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mask.Count(), test.ShouldEqual, 2)
	test.That(t, pointcloud.Colors(pc), test.ShouldResemble, []color.NRGBA{
		{R: 10, G: 20, B: 30, A: 255},
		{R: 40, G: 50, B: 60, A: 255},
	})

	plain, _, err := ProjectWithColor(dm, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plain.MetaData().HasColor, test.ShouldBeFalse)

	_, _, err = ProjectWithColor(dm, image.NewNRGBA(image.Rect(0, 0, 3, 3)), nil)
	test.That(t, err, test.ShouldNotBeNil)
}
