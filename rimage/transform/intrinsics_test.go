package transform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestFocalLengthMatrix(t *testing.T) {
	k, err := FocalLength(50).Matrix(4, 4)
	test.That(t, err, test.ShouldBeNil)
	f := FocalLength(50).PixelFocalLength(4, 4)
	test.That(t, f, test.ShouldAlmostEqual, 6.537204504606134)
	test.That(t, mat.Equal(k, mat.NewDense(4, 4, []float64{
		f, 0, 2, 0,
		0, f, 2, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})), test.ShouldBeTrue)

	d, err := Default{}.Matrix(4, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Equal(d, k), test.ShouldBeTrue)

	odd, err := FocalLength(35).Matrix(3, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, odd.At(0, 2), test.ShouldEqual, 1.5)
	test.That(t, odd.At(1, 2), test.ShouldEqual, 0.5)
}

func TestEmbedding(t *testing.T) {
	k3, err := Matrix3x3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}.Matrix(0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Equal(k3, mat.NewDense(4, 4, []float64{
		1, 2, 3, 0,
		4, 5, 6, 0,
		7, 8, 9, 0,
		0, 0, 0, 1,
	})), test.ShouldBeTrue)

	k34, err := Matrix3x4{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}}.Matrix(0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Equal(k34, mat.NewDense(4, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		0, 0, 0, 1,
	})), test.ShouldBeTrue)
}

func TestIntrinsicsFromRows(t *testing.T) {
	in, err := IntrinsicsFromRows([][]float64{{1, 0, 2}, {0, 1, 3}, {0, 0, 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, in, test.ShouldResemble, Intrinsics(Matrix3x3{{1, 0, 2}, {0, 1, 3}, {0, 0, 1}}))

	in, err = IntrinsicsFromRows([][]float64{{1, 0, 2, 9}, {0, 1, 3, 8}, {0, 0, 1, 0}})
	test.That(t, err, test.ShouldBeNil)
	_, ok := in.(Matrix3x4)
	test.That(t, ok, test.ShouldBeTrue)

	in, err = IntrinsicsFromDense(mat.NewDense(4, 4, nil))
	test.That(t, err, test.ShouldBeNil)
	_, ok = in.(Matrix4x4)
	test.That(t, ok, test.ShouldBeTrue)

	for _, rows := range [][][]float64{
		{{1, 2}, {3, 4}},
		{{1, 2, 3}, {4, 5}, {6, 7, 8}},
		{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {1, 2, 3}},
		nil,
	} {
		_, err := IntrinsicsFromRows(rows)
		test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)
	}
}

func TestNewIntrinsicsFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		fn := filepath.Join(dir, name)
		test.That(t, os.WriteFile(fn, []byte(body), 0o600), test.ShouldBeNil)
		return fn
	}

	pinFile := write("pin.json", `{"width_px":640,"height_px":480,"fx":600,"fy":610,"ppx":320,"ppy":240}`)
	in, err := NewIntrinsicsFromJSONFile(pinFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, in, test.ShouldResemble, Intrinsics(&PinholeCameraIntrinsics{
		Width: 640, Height: 480, Fx: 600, Fy: 610, Ppx: 320, Ppy: 240,
	}))
	pin, err := NewPinholeCameraIntrinsicsFromJSONFile(pinFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pin.Fy, test.ShouldEqual, 610.)

	in, err = NewIntrinsicsFromJSONFile(write("m.json", `{"matrix":[[600,0,320,0.1],[0,600,240,0.2],[0,0,1,0]]}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, in, test.ShouldResemble, Intrinsics(Matrix3x4{{600, 0, 320, 0.1}, {0, 600, 240, 0.2}, {0, 0, 1, 0}}))

	_, err = NewIntrinsicsFromJSONFile(write("bad.json", `{"width_px":640,"height_px":480,"fx":-1,"fy":1}`))
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)

	_, err = NewIntrinsicsFromJSONFile(write("shape.json", `{"matrix":[[1,2],[3,4]]}`))
	test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)

	_, err = NewIntrinsicsFromJSONFile(write("junk.json", `{`))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewIntrinsicsFromJSONFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPinholeCheckValid(t *testing.T) {
	var nilParams *PinholeCameraIntrinsics
	test.That(t, errors.Is(nilParams.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)
	_, err := nilParams.Matrix(1, 1)
	test.That(t, err, test.ShouldNotBeNil)

	good := &PinholeCameraIntrinsics{Width: 10, Height: 10, Fx: 1, Fy: 1}
	test.That(t, good.CheckValid(), test.ShouldBeNil)
	for _, bad := range []PinholeCameraIntrinsics{
		{Width: 0, Height: 10, Fx: 1, Fy: 1},
		{Width: 10, Height: 10, Fx: 0, Fy: 1},
		{Width: 10, Height: 10, Fx: 1, Fy: -1},
		{Width: 10, Height: 10, Fx: 1, Fy: 1, Ppx: -1},
		{Width: 10, Height: 10, Fx: 1, Fy: 1, Ppy: -1},
	} {
		test.That(t, bad.CheckValid(), test.ShouldNotBeNil)
	}
}
