// Package camera defines the viewpoint a renderer draws a point cloud from, and the stores that
// hold it between interactions.
package camera

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// State fully describes a viewpoint. Up need not be unit length; it is renormalized wherever it
// is used.
type State struct {
	Position   r3.Vector
	FocalPoint r3.Vector
	Up         r3.Vector
}

// DefaultUp is the up vector of a freshly framed camera.
var DefaultUp = r3.Vector{X: 0, Y: 0, Z: 1}

// DefaultState frames the axis-aligned box [minPt, maxPt]: the camera looks at the box center
// from a point offset along the (1,1,1) diagonal by the largest extent of the box.
func DefaultState(minPt, maxPt r3.Vector) State {
	center := minPt.Add(maxPt).Mul(0.5)
	ext := maxPt.Sub(minPt)
	size := ext.X
	if ext.Y > size {
		size = ext.Y
	}
	if ext.Z > size {
		size = ext.Z
	}
	return State{
		Position:   center.Add(r3.Vector{X: size, Y: size, Z: size}),
		FocalPoint: center,
		Up:         DefaultUp,
	}
}

// Forward is the unnormalized view direction.
func (s State) Forward() r3.Vector {
	return s.FocalPoint.Sub(s.Position)
}

// Distance is the camera-to-focal-point distance.
func (s State) Distance() float64 {
	return s.Forward().Norm()
}

// ViewMatrix returns the right-handed look-at view matrix of the state.
func (s State) ViewMatrix() mgl64.Mat4 {
	return mgl64.LookAtV(toVec3(s.Position), toVec3(s.FocalPoint), toVec3(s.Up.Normalize()))
}

// AlmostEqual compares two states component-wise within tol.
func (s State) AlmostEqual(other State, tol float64) bool {
	near := func(a, b r3.Vector) bool {
		return a.Sub(b).Norm() <= tol
	}
	return near(s.Position, other.Position) && near(s.FocalPoint, other.FocalPoint) && near(s.Up, other.Up)
}

func (s State) String() string {
	return fmt.Sprintf("camera(position=%v, focal_point=%v, up=%v)", s.Position, s.FocalPoint, s.Up)
}

type stateJSON struct {
	Position   []float64 `json:"position"`
	FocalPoint []float64 `json:"focal_point"`
	Up         []float64 `json:"up"`
}

// MarshalJSON writes the state as three 3-element arrays.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Position:   toSlice(s.Position),
		FocalPoint: toSlice(s.FocalPoint),
		Up:         toSlice(s.Up),
	})
}

// UnmarshalJSON reads a state written by MarshalJSON. Every field must hold exactly three numbers.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	var out State
	if out.Position, err = fromSlice("position", raw.Position); err != nil {
		return err
	}
	if out.FocalPoint, err = fromSlice("focal_point", raw.FocalPoint); err != nil {
		return err
	}
	if out.Up, err = fromSlice("up", raw.Up); err != nil {
		return err
	}
	*s = out
	return nil
}

func toVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func toSlice(v r3.Vector) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

func fromSlice(field string, vals []float64) (r3.Vector, error) {
	if len(vals) != 3 {
		return r3.Vector{}, errors.Errorf("%s must have 3 components, got %d", field, len(vals))
	}
	return r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
