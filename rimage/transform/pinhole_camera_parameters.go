package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// Matrix embeds the camera matrix into a 4x4 identity. The image size is not consulted.
func (params *PinholeCameraIntrinsics) Matrix(width, height int) (*mat.Dense, error) {
	if params == nil {
		return nil, NewNoIntrinsicsError("Intrinsics do not exist")
	}
	return embed(params.GetCameraMatrix()), nil
}

func (params *PinholeCameraIntrinsics) String() string {
	return fmt.Sprintf("pinhole(fx=%v, fy=%v, ppx=%v, ppy=%v)", params.Fx, params.Fy, params.Ppx, params.Ppy)
}

// intrinsicsFile is the on-disk form of intrinsics: either pinhole parameters or a raw matrix.
type intrinsicsFile struct {
	PinholeCameraIntrinsics
	Matrix [][]float64 `json:"matrix"`
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	parsed, err := readIntrinsicsFile(jsonPath)
	if err != nil {
		return nil, err
	}
	intrinsics := parsed.PinholeCameraIntrinsics
	return &intrinsics, nil
}

// NewIntrinsicsFromJSONFile reads intrinsics from a JSON file holding either pinhole parameters
// (fx, fy, ppx, ppy, width_px, height_px) or a "matrix" of shape 3x3, 3x4 or 4x4.
func NewIntrinsicsFromJSONFile(jsonPath string) (Intrinsics, error) {
	parsed, err := readIntrinsicsFile(jsonPath)
	if err != nil {
		return nil, err
	}
	if parsed.Matrix != nil {
		return IntrinsicsFromRows(parsed.Matrix)
	}
	intrinsics := parsed.PinholeCameraIntrinsics
	if err := intrinsics.CheckValid(); err != nil {
		return nil, errors.Wrapf(err, "invalid intrinsics in %q", jsonPath)
	}
	return &intrinsics, nil
}

func readIntrinsicsFile(jsonPath string) (*intrinsicsFile, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	parsed := &intrinsicsFile{}
	if err := json.Unmarshal(byteValue, parsed); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return parsed, nil
}

// PixelToPoint transforms a pixel with depth to a 3D point cloud.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return float64(0), float64(0), float64(0)
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	// get x and y
	xm := xOverZ * z
	ym := yOverZ * z
	return xm, ym, z
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}
