package jigsaw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var errNoContents = errors.New("no contents")

func read(ctx context.Context, c *Candidate, limit int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.Open == nil {
		return nil, &DecodeError{Name: c.Name, Err: errNoContents}
	}

	rc, err := c.Open()
	if err != nil {
		return nil, &DecodeError{Name: c.Name, Err: err}
	}
	defer rc.Close()

	// The declared size can't be trusted
	b, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, &DecodeError{Name: c.Name, Err: err}
	}
	if int64(len(b)) > limit {
		return nil, &ValidationError{Name: c.Name, Type: c.Type, Size: int64(len(b)), Limit: limit, Err: ErrTooLarge}
	}

	return b, ctx.Err()
}

// Decode decodes the image in b. Images over maxPixels in area are refused
// before any pixel data is decoded. JPEG images are rotated according to
// their EXIF orientation.
func Decode(ctx context.Context, b []byte, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Err: fmt.Errorf("invalid dimensions %d by %d", cfg.Width, cfg.Height)}
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, &DecodeError{Err: fmt.Errorf("%d by %d image exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	return m, ctx.Err()
}
