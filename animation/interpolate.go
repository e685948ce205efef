package animation

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/camera"
	"go.viam.com/depthcam/spatialmath"
)

// Interpolate returns the camera state at progress along the keyframe loop. The integer part of
// progress selects the segment (wrapping modulo the keyframe count) and the fractional part is
// the blend toward the next keyframe.
func Interpolate(frames []camera.State, progress float64) (camera.State, error) {
	n := len(frames)
	if n == 0 {
		return camera.State{}, errors.New("no keyframes to interpolate")
	}
	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		return camera.State{}, errors.Errorf("invalid animation progress %v", progress)
	}
	idx := math.Floor(progress)
	t := progress - idx
	i := int(idx)
	k1 := frames[wrap(i, n)]
	k2 := frames[wrap(i+1, n)]

	f1, f2 := k1.Forward(), k2.Forward()
	d1, d2 := f1.Norm(), f2.Norm()
	q1 := spatialmath.QuatFromLookAt(f1, k1.Up)
	q2 := spatialmath.QuatFromLookAt(f2, k2.Up)

	focal := k1.FocalPoint.Mul(1 - t).Add(k2.FocalPoint.Mul(t))
	dist := d1*(1-t) + d2*t
	q := spatialmath.Slerp(q1, q2, t)
	forward, up := spatialmath.LookAtFromQuat(q)

	s := camera.State{
		Position:   focal.Sub(spatialmath.Normalize(forward).Mul(dist)),
		FocalPoint: focal,
		Up:         up,
	}
	if !finite(s.Position) || !finite(s.FocalPoint) || !finite(s.Up) {
		return camera.State{}, errors.Errorf("interpolated %v is not finite", s)
	}
	return s, nil
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

func finite(v r3.Vector) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
