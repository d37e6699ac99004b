package tile

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/ericpauley/go-quantize/quantize"
)

var errBadColors = errors.New("tile: invalid number of colors")

// Encoder writes tiles. The zero value writes full color tiles.
type Encoder struct {
	// Colors, if non-zero, reduces each tile to a palette of at most this
	// many colors using median cut quantization
	Colors int
}

func (e *Encoder) paletted(m image.Image) *image.Paletted {
	b := m.Bounds()

	pm, _ := m.(*image.Paletted)
	if pm == nil || len(pm.Palette) > e.Colors {
		q := quantize.MedianCutQuantizer{}
		pm = image.NewPaletted(b, q.Quantize(make(color.Palette, 0, e.Colors), m))
		draw.Draw(pm, b, m, b.Min, draw.Src)
	}

	// Adjust image so that top-left corner is at (0, 0)
	if pm.Rect.Min != (image.Point{}) {
		dup := *pm
		dup.Rect = dup.Rect.Sub(dup.Rect.Min)
		pm = &dup
	}

	return pm
}

// Encode writes the Image m to w in PNG format.
func (e *Encoder) Encode(w io.Writer, m image.Image) error {
	if e.Colors < 0 || e.Colors > MaxColors {
		return errBadColors
	}
	if b := m.Bounds(); b.Empty() {
		return errors.New("tile: image is empty")
	}

	if e.Colors > 0 {
		m = e.paletted(m)
	}

	pe := png.Encoder{CompressionLevel: png.BestCompression}
	return pe.Encode(w, m)
}

// EncodeToString returns the Image m as a PNG data URI.
func (e *Encoder) EncodeToString(m image.Image) (string, error) {
	b := new(bytes.Buffer)
	if err := e.Encode(b, m); err != nil {
		return "", err
	}
	return prefix + base64.StdEncoding.EncodeToString(b.Bytes()), nil
}

// EncodeToString returns the Image m as a full color PNG data URI.
func EncodeToString(m image.Image) (string, error) {
	var e Encoder
	return e.EncodeToString(m)
}
