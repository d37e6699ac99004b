package jigsaw

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Surface is a resized image. Width and Height are the exact display size
// which may be fractional; the image itself is truncated to whole pixels.
type Surface struct {
	image.Image
	Width  float64
	Height float64
}

// Resize scales m so that its longer side is maxDisplaySize, preserving the
// aspect ratio. A square image is constrained by its height.
func Resize(m image.Image, maxDisplaySize int) (*Surface, error) {
	b := m.Bounds()
	if b.Empty() || maxDisplaySize <= 0 {
		return nil, ErrSurfaceUnavailable
	}

	limit := float64(maxDisplaySize)
	aspect := float64(b.Dx()) / float64(b.Dy())

	var width, height float64
	if b.Dx() > b.Dy() {
		width = limit
		height = limit / aspect
	} else {
		height = limit
		width = limit * aspect
	}

	w, h := int(width), int(height)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %.2f by %.2f", ErrSurfaceUnavailable, width, height)
	}

	return &Surface{
		Image:  imaging.Resize(m, w, h, imaging.Lanczos),
		Width:  width,
		Height: height,
	}, nil
}
