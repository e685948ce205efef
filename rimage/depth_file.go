package rimage

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/image/tiff"
)

// ReadDepthImage reads a single-channel PNG or TIFF, chosen by extension, as a millimetre depth
// map.
func ReadDepthImage(fn string) (*DepthMap[uint16], error) {
	switch ext := strings.ToLower(filepath.Ext(fn)); ext {
	case ".png":
		return ReadDepthPNG(fn)
	case ".tif", ".tiff":
		return ReadDepthTIFF(fn)
	default:
		return nil, errors.Errorf("do not know how to read depth from %q files", ext)
	}
}

// ReadDepthTIFF reads a single-channel TIFF as a millimetre depth map, the same way ReadDepthPNG
// does.
func ReadDepthTIFF(fn string) (*DepthMap[uint16], error) {
	//nolint:gosec
	f, err := os.Open(filepath.Clean(fn))
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode depth tiff %q", fn)
	}
	return DepthMapFromImage(img)
}

// ReadDepthPNG reads a single-channel PNG as a millimetre depth map. 16-bit gray images keep
// their raw values; 8-bit gray images are widened without rescaling.
func ReadDepthPNG(fn string) (*DepthMap[uint16], error) {
	//nolint:gosec
	f, err := os.Open(filepath.Clean(fn))
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode depth png %q", fn)
	}
	return DepthMapFromImage(img)
}

// DepthMapFromImage converts a gray image to a millimetre depth map.
func DepthMapFromImage(img image.Image) (*DepthMap[uint16], error) {
	b := img.Bounds()
	dm := NewEmptyDepthMap[uint16](b.Dx(), b.Dy())
	switch gray := img.(type) {
	case *image.Gray16:
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, uint16(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	default:
		return nil, errors.Errorf("cannot convert image type %T to a depth map", img)
	}
	return dm, nil
}

// ToGray16 returns the depth map as a 16-bit gray image. Samples outside [0, 65535] are clamped.
func ToGray16[T DepthSample](dm *DepthMap[T]) *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			d := float64(dm.GetDepth(x, y))
			switch {
			case d < 0:
				d = 0
			case d > 65535:
				d = 65535
			}
			img.Pix[img.PixOffset(x, y)] = uint8(uint16(d) >> 8)
			img.Pix[img.PixOffset(x, y)+1] = uint8(uint16(d))
		}
	}
	return img
}

// WriteDepthPNG writes the depth map to fn as a 16-bit gray PNG.
func WriteDepthPNG[T DepthSample](dm *DepthMap[T], fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(filepath.Clean(fn))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return png.Encode(f, ToGray16(dm))
}
