package pointcloud

import (
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestPointCloudBasic(t *testing.T) {
	pc := New()
	test.That(t, pc.Size(), test.ShouldEqual, 0)

	p0 := NewVector(0, 0, 0)
	d0 := NewValueData(5)
	test.That(t, pc.Append(p0, d0), test.ShouldBeNil)

	p1 := NewVector(1, 0, 1)
	test.That(t, pc.Append(p1, nil), test.ShouldBeNil)

	p2 := NewVector(-1, -2, 1)
	d2 := NewColoredData(color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	test.That(t, pc.Append(p2, d2), test.ShouldBeNil)

	test.That(t, pc.Size(), test.ShouldEqual, 3)
	p, d := pc.At(2)
	test.That(t, p, test.ShouldResemble, p2)
	test.That(t, d, test.ShouldResemble, d2)

	// duplicates are kept, order is preserved
	test.That(t, pc.Append(p0, nil), test.ShouldBeNil)
	test.That(t, Vectors(pc), test.ShouldResemble, []r3.Vector{p0, p1, p2, p0})

	meta := pc.MetaData()
	test.That(t, meta.HasColor, test.ShouldBeTrue)
	test.That(t, meta.HasValue, test.ShouldBeTrue)
	minPt, maxPt := meta.Bounds()
	test.That(t, minPt, test.ShouldResemble, r3.Vector{X: -1, Y: -2, Z: 0})
	test.That(t, maxPt, test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: 1})
	test.That(t, meta.Center(), test.ShouldResemble, r3.Vector{X: 0, Y: -0.5, Z: 0.5})
}

func TestPointCloudIterateBatches(t *testing.T) {
	pc := NewWithPrealloc(10)
	for i := 0; i < 10; i++ {
		test.That(t, pc.Append(NewVector(float64(i), 0, 0), nil), test.ShouldBeNil)
	}

	seen := []float64{}
	for batch := 0; batch < 3; batch++ {
		pc.Iterate(3, batch, func(p r3.Vector, d Data) bool {
			seen = append(seen, p.X)
			return true
		})
	}
	test.That(t, seen, test.ShouldResemble, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	count := 0
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		count++
		return count < 4
	})
	test.That(t, count, test.ShouldEqual, 4)
}

func TestEmptyBounds(t *testing.T) {
	minPt, maxPt := New().MetaData().Bounds()
	test.That(t, minPt, test.ShouldResemble, r3.Vector{})
	test.That(t, maxPt, test.ShouldResemble, r3.Vector{})
}

func TestNewWithColors(t *testing.T) {
	points := []r3.Vector{{X: 1}, {Y: 2}}
	colors := []color.NRGBA{{R: 1, A: 255}, {G: 2, A: 255}}

	pc, err := NewWithColors(points, colors)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
	test.That(t, Colors(pc), test.ShouldResemble, colors)

	pc, err = NewWithColors(points, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeFalse)
	test.That(t, Colors(pc), test.ShouldBeNil)

	_, err = NewWithColors(points, colors[:1])
	test.That(t, errors.Is(err, ErrColorMismatch), test.ShouldBeTrue)
}

func TestAppendKeepsNonFinite(t *testing.T) {
	pc := New()
	test.That(t, pc.Append(NewVector(math.Inf(1), math.NaN(), 1), nil), test.ShouldBeNil)
	p, _ := pc.At(0)
	test.That(t, math.IsInf(p.X, 1), test.ShouldBeTrue)
	test.That(t, math.IsNaN(p.Y), test.ShouldBeTrue)
}
