// Package spatialmath converts camera look-at frames to and from unit quaternions and
// interpolates between them.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// ErrDegenerateOrientation is returned when a look-at frame cannot be turned into a rotation,
// e.g. a zero-length view direction or an up vector parallel to it.
var ErrDegenerateOrientation = errors.New("degenerate camera orientation")

const (
	// slerpLinearThreshold is the quaternion dot product above which Slerp falls back to a
	// normalized linear interpolation.
	slerpLinearThreshold = 0.9995
	// degenerateW is the smallest trace derived w accepted when extracting a quaternion.
	degenerateW = 1e-6
)

// IdentityQuat returns the identity rotation.
func IdentityQuat() quat.Number {
	return quat.Number{Real: 1}
}

// Normalize returns v scaled to unit length, or v unchanged when it has zero length.
func Normalize(v r3.Vector) r3.Vector {
	n := v.Norm()
	if n > 0 {
		return r3.Vector{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
	}
	return v
}

// NormalizeQuat returns q scaled to unit norm, or q unchanged when it is zero.
func NormalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n > 0 {
		return quat.Scale(1/n, q)
	}
	return q
}

// quatDot is the 4D dot product; gonum's quat package has none.
func quatDot(q1, q2 quat.Number) float64 {
	return q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag
}

// QuatFromLookAt returns the orientation of a camera looking along forward with the given up
// hint. The frame is right = up x forward, up' = forward x right, and the rotation matrix has
// columns (right, up', forward). When the trace derived w is numerically zero the identity
// rotation is returned.
func QuatFromLookAt(forward, up r3.Vector) quat.Number {
	q, _ := quatFromLookAt(forward, up)
	return q
}

// QuatFromLookAtChecked is QuatFromLookAt but also reports ErrDegenerateOrientation when the
// frame is degenerate: zero-length forward, up parallel to forward, or a vanishing w. The
// returned quaternion is the same one QuatFromLookAt would produce.
func QuatFromLookAtChecked(forward, up r3.Vector) (quat.Number, error) {
	q, err := quatFromLookAt(forward, up)
	if err != nil {
		return q, err
	}
	if forward.Norm2() == 0 || up.Cross(forward).Norm2() == 0 {
		return q, errors.Wrapf(ErrDegenerateOrientation, "forward %v up %v", forward, up)
	}
	return q, nil
}

func quatFromLookAt(forward, up r3.Vector) (quat.Number, error) {
	f := Normalize(forward)
	r := Normalize(up.Cross(f))
	u := f.Cross(r)

	// m = [[r.X u.X f.X], [r.Y u.Y f.Y], [r.Z u.Z f.Z]]
	w := math.Sqrt(1+r.X+u.Y+f.Z) / 2
	// NaN from a negative radicand fails this comparison too.
	if !(w > degenerateW) {
		return IdentityQuat(), errors.Wrapf(ErrDegenerateOrientation, "forward %v up %v", forward, up)
	}
	w4 := 4 * w
	return quat.Number{
		Real: w,
		Imag: (u.Z - f.Y) / w4,
		Jmag: (f.X - r.Z) / w4,
		Kmag: (r.Y - u.X) / w4,
	}, nil
}

// LookAtFromQuat returns the forward and up axes (third and second rotation matrix columns) of
// the orientation q. q is normalized first.
func LookAtFromQuat(q quat.Number) (forward, up r3.Vector) {
	q = NormalizeQuat(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	forward = r3.Vector{
		X: 2 * (x*z + w*y),
		Y: 2 * (y*z - w*x),
		Z: 1 - 2*(x*x+y*y),
	}
	up = r3.Vector{
		X: 2 * (x*y - w*z),
		Y: 1 - 2*(x*x+z*z),
		Z: 2 * (y*z + w*x),
	}
	return forward, up
}

// Slerp spherically interpolates from q1 (t=0) to q2 (t=1) along the shortest arc. Nearly
// parallel inputs are linearly interpolated and renormalized.
func Slerp(q1, q2 quat.Number, t float64) quat.Number {
	q1, q2 = NormalizeQuat(q1), NormalizeQuat(q2)
	dot := quatDot(q1, q2)
	if dot < 0 {
		q2 = quat.Scale(-1, q2)
		dot = -dot
	}
	if dot > slerpLinearThreshold {
		return NormalizeQuat(quat.Add(q1, quat.Scale(t, quat.Sub(q2, q1))))
	}
	theta := math.Acos(math.Max(-1, math.Min(1, dot)))
	blended := quat.Add(quat.Scale(math.Sin((1-t)*theta), q1), quat.Scale(math.Sin(t*theta), q2))
	return quat.Scale(1/math.Sin(theta), blended)
}

// QuatAlmostEqual reports whether q1 and q2 describe the same rotation within tol, treating q
// and -q as equal.
func QuatAlmostEqual(q1, q2 quat.Number, tol float64) bool {
	return math.Abs(math.Abs(quatDot(NormalizeQuat(q1), NormalizeQuat(q2)))-1) <= tol
}
