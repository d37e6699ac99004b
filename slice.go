package jigsaw

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"github.com/bodgit/jigsaw/tile"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"
)

// Slice cuts s into a rows by cols grid and returns the encoded tiles in
// row-major order. Tile boundaries are not snapped to whole pixels. Either
// every tile is returned or none are.
func Slice(ctx context.Context, s *Surface, rows, cols int, e *tile.Encoder) ([]string, error) {
	if rows <= 0 || cols <= 0 {
		return nil, &SliceError{Index: 0, Err: fmt.Errorf("invalid %d by %d grid", rows, cols)}
	}

	pw := s.Width / float64(cols)
	ph := s.Height / float64(rows)

	tw, th := int(pw), int(ph)
	if tw < 1 || th < 1 {
		return nil, &SliceError{Index: 0, Err: fmt.Errorf("%w: %.2f by %.2f tile", ErrSurfaceUnavailable, pw, ph)}
	}

	src := s.Image
	sr := src.Bounds()
	pieces := make([]string, rows*cols)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range pieces {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return &SliceError{Index: i, Err: err}
			}

			row, col := i/cols, i%cols

			// Translate so the top-left of this cell lands on the origin
			s2d := f64.Aff3{
				1, 0, -float64(sr.Min.X) - float64(col)*pw,
				0, 1, -float64(sr.Min.Y) - float64(row)*ph,
			}

			dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
			draw.BiLinear.Transform(dst, s2d, src, sr, draw.Src, nil)

			piece, err := e.EncodeToString(dst)
			if err != nil {
				return &SliceError{Index: i, Err: err}
			}
			pieces[i] = piece

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pieces, nil
}
