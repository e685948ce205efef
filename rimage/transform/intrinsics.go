package transform

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultFocalLengthMM is the 35mm-equivalent focal length used when no intrinsics are given.
const DefaultFocalLengthMM = 50.0

// sensorDiagonalMM is the diagonal of a 36x24mm full-frame sensor.
var sensorDiagonalMM = math.Hypot(36, 24)

// ErrInvalidInput is returned when depth data or intrinsics cannot be projected.
var ErrInvalidInput = errors.New("invalid projection input")

// Intrinsics resolves to a 4x4 intrinsic matrix for a depth buffer of the given size. Exactly one
// representation is active per projection: FocalLength, Matrix3x3, Matrix3x4, Matrix4x4,
// *PinholeCameraIntrinsics, or Default.
type Intrinsics interface {
	fmt.Stringer
	Matrix(width, height int) (*mat.Dense, error)
}

// Default selects the 50mm-equivalent focal length.
type Default struct{}

// Matrix returns the ideal intrinsic matrix for a 50mm-equivalent lens.
func (Default) Matrix(width, height int) (*mat.Dense, error) {
	return FocalLength(DefaultFocalLengthMM).Matrix(width, height)
}

func (Default) String() string {
	return "default"
}

// FocalLength is a 35mm-equivalent focal length in millimetres.
type FocalLength float64

// PixelFocalLength scales the focal length to pixels by the buffer diagonal over the sensor diagonal.
func (f FocalLength) PixelFocalLength(width, height int) float64 {
	w, h := float64(width), float64(height)
	return float64(f) * math.Sqrt(w*w+h*h) / sensorDiagonalMM
}

// Matrix returns the ideal intrinsic matrix with the principal point at the buffer center.
func (f FocalLength) Matrix(width, height int) (*mat.Dense, error) {
	fpx := f.PixelFocalLength(width, height)
	return mat.NewDense(4, 4, []float64{
		fpx, 0, float64(width) / 2, 0,
		0, fpx, float64(height) / 2, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}), nil
}

func (f FocalLength) String() string {
	return fmt.Sprintf("focal_length(%vmm)", float64(f))
}

// Matrix3x3 is a camera matrix; it fills the top-left of a 4x4 identity.
type Matrix3x3 [3][3]float64

// Matrix embeds m into a 4x4 identity.
func (m Matrix3x3) Matrix(width, height int) (*mat.Dense, error) {
	data := make([]float64, 0, 9)
	for _, row := range m {
		data = append(data, row[:]...)
	}
	return embed(mat.NewDense(3, 3, data)), nil
}

func (m Matrix3x3) String() string {
	return fmt.Sprintf("matrix3x3(%v)", [3][3]float64(m))
}

// Matrix3x4 is a projection matrix; it fills the top three rows of a 4x4 identity.
type Matrix3x4 [3][4]float64

// Matrix embeds m into a 4x4 identity.
func (m Matrix3x4) Matrix(width, height int) (*mat.Dense, error) {
	data := make([]float64, 0, 12)
	for _, row := range m {
		data = append(data, row[:]...)
	}
	return embed(mat.NewDense(3, 4, data)), nil
}

func (m Matrix3x4) String() string {
	return fmt.Sprintf("matrix3x4(%v)", [3][4]float64(m))
}

// Matrix4x4 is used as-is.
type Matrix4x4 [4][4]float64

// Matrix returns m as a dense matrix.
func (m Matrix4x4) Matrix(width, height int) (*mat.Dense, error) {
	data := make([]float64, 0, 16)
	for _, row := range m {
		data = append(data, row[:]...)
	}
	return mat.NewDense(4, 4, data), nil
}

func (m Matrix4x4) String() string {
	return fmt.Sprintf("matrix4x4(%v)", [4][4]float64(m))
}

// IntrinsicsFromRows picks the matrix representation matching the shape of rows.
func IntrinsicsFromRows(rows [][]float64) (Intrinsics, error) {
	cols := -1
	for i, row := range rows {
		if cols >= 0 && len(row) != cols {
			return nil, errors.Wrapf(ErrInvalidInput, "intrinsic matrix row %d has %d columns, expected %d", i, len(row), cols)
		}
		cols = len(row)
	}
	switch {
	case len(rows) == 3 && cols == 3:
		var m Matrix3x3
		for i := range m {
			copy(m[i][:], rows[i])
		}
		return m, nil
	case len(rows) == 3 && cols == 4:
		var m Matrix3x4
		for i := range m {
			copy(m[i][:], rows[i])
		}
		return m, nil
	case len(rows) == 4 && cols == 4:
		var m Matrix4x4
		for i := range m {
			copy(m[i][:], rows[i])
		}
		return m, nil
	default:
		return nil, errors.Wrapf(ErrInvalidInput, "unsupported intrinsic matrix shape %dx%d", len(rows), cols)
	}
}

// IntrinsicsFromDense picks the matrix representation matching the shape of m.
func IntrinsicsFromDense(m mat.Matrix) (Intrinsics, error) {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		for j := range rows[i] {
			rows[i][j] = m.At(i, j)
		}
	}
	return IntrinsicsFromRows(rows)
}

// embed copies m into the top-left corner of a 4x4 identity.
func embed(m *mat.Dense) *mat.Dense {
	out := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	r, c := m.Dims()
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(m)
	return out
}
