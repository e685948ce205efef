package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Mask marks the valid pixels of a depth map. It has the same shape as the depth map it was
// built from.
type Mask struct {
	width  int
	height int
	valid  []bool
}

// NewMask returns an all-invalid mask of the given size.
func NewMask(width, height int) *Mask {
	return &Mask{width: width, height: height, valid: make([]bool, width*height)}
}

// Width returns the horizontal size of the mask.
func (m *Mask) Width() int {
	return m.width
}

// Height returns the vertical size of the mask.
func (m *Mask) Height() int {
	return m.height
}

// Valid reports whether the pixel at column x, row y is valid.
func (m *Mask) Valid(x, y int) bool {
	return m.valid[y*m.width+x]
}

// Count returns the number of valid pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.valid {
		if v {
			n++
		}
	}
	return n
}

// Pixels returns the valid pixel coordinates in row-major order.
func (m *Mask) Pixels() []image.Point {
	out := make([]image.Point, 0, m.Count())
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.valid[y*m.width+x] {
				out = append(out, image.Point{X: x, Y: y})
			}
		}
	}
	return out
}

// SelectMasked returns the entries of a row-major per-pixel slice at the mask's valid pixels,
// in row-major order.
func SelectMasked[T any](m *Mask, perPixel []T) ([]T, error) {
	if len(perPixel) != len(m.valid) {
		return nil, errors.Errorf("per pixel data has %d entries, mask has %d pixels", len(perPixel), len(m.valid))
	}
	out := make([]T, 0, m.Count())
	for i, v := range m.valid {
		if v {
			out = append(out, perPixel[i])
		}
	}
	return out, nil
}

// ColorsFromImage returns the color of img at every valid pixel of the mask, in row-major order,
// so that the i-th color belongs to the i-th projected point. Grayscale images yield gray colors.
func ColorsFromImage(img image.Image, m *Mask) ([]color.NRGBA, error) {
	b := img.Bounds()
	if b.Dx() != m.width || b.Dy() != m.height {
		return nil, errors.Errorf("image dimension and mask don't match Image(%d,%d) != Mask(%d,%d)",
			b.Dx(), b.Dy(), m.width, m.height)
	}
	out := make([]color.NRGBA, 0, m.Count())
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if !m.valid[y*m.width+x] {
				continue
			}
			c, _ := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			out = append(out, c)
		}
	}
	return out, nil
}
