package jigsaw

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bodgit/jigsaw/record"
	"github.com/bodgit/jigsaw/tile"
	"go.uber.org/zap"
)

// Pipeline turns candidate files into tile grids.
type Pipeline struct {
	config    Config
	validator *Validator
	encoder   *tile.Encoder
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline returns a Pipeline for the given configuration
func NewPipeline(c Config, logger *zap.Logger) (*Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c = c.clone()
	return &Pipeline{
		config:    c,
		validator: NewValidator(c),
		encoder:   &tile.Encoder{Colors: c.Colors},
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Validate checks c against the allowed types and size limit
func (p *Pipeline) Validate(c *Candidate) error {
	return p.validator.Validate(c)
}

// Read returns the contents of c, enforcing the size limit.
func (p *Pipeline) Read(ctx context.Context, c *Candidate) ([]byte, error) {
	return read(ctx, c, p.config.MaxSizeBytes)
}

// Process decodes, resizes and slices the image in b.
func (p *Pipeline) Process(ctx context.Context, name string, b []byte) (record.Grid, error) {
	m, err := Decode(ctx, b, p.config.MaxPixels)
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) {
			derr.Name = name
		}
		return record.Grid{}, err
	}
	p.logger.Debug("Decoded image", zap.String("file", name), zap.Int("width", m.Bounds().Dx()), zap.Int("height", m.Bounds().Dy()))

	s, err := Resize(m, p.config.MaxDisplaySize)
	if err != nil {
		return record.Grid{}, err
	}

	pieces, err := Slice(ctx, s, p.config.Rows, p.config.Cols, p.encoder)
	if err != nil {
		return record.Grid{}, err
	}

	return record.New(pieces, p.config.Rows, p.config.Cols, p.now()), nil
}

// Run validates, reads and processes c.
func (p *Pipeline) Run(ctx context.Context, c *Candidate) (record.Grid, error) {
	if err := p.Validate(c); err != nil {
		return record.Grid{}, err
	}

	b, err := p.Read(ctx, c)
	if err != nil {
		return record.Grid{}, err
	}

	return p.Process(ctx, c.Name, b)
}

// WriteTiles writes each tile in g to dir as row_col.png, or with the
// extension matching the tile's media type if it isn't a PNG
func WriteTiles(dir string, g record.Grid) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for i, piece := range g.Pieces {
		mediaType, b, err := tile.Parse(piece)
		if err != nil {
			return err
		}

		row, col := g.Position(i)
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d_%d%s", row, col, tile.Extension(mediaType))), b, 0o644); err != nil {
			return err
		}
	}

	return nil
}

// Errors that only mean the file can't be made into a puzzle
func skippable(err error) bool {
	return errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrTooLarge) || errors.Is(err, ErrDecode) || errors.Is(err, ErrSurfaceUnavailable)
}

func (p *Pipeline) findFiles(ctx context.Context, base, skip string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories
			if file != base && info.Name()[0] == '.' {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Don't descend into our own output
			if info.Mode().IsDir() && file == skip {
				return filepath.SkipDir
			}

			if !info.Mode().IsRegular() {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return ctx.Err()
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (p *Pipeline) fileWorker(ctx context.Context, in <-chan string, base, outDir string) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			if err := ctx.Err(); err != nil {
				errc <- err
				return
			}

			c, err := CandidateFromFile(file)
			if err != nil {
				errc <- err
				return
			}

			g, err := p.Run(ctx, c)
			switch {
			case err == nil:
			case skippable(err):
				p.logger.Info("Skipping file", zap.String("file", file), zap.Error(err))
				continue
			default:
				errc <- err
				return
			}

			rel, err := filepath.Rel(base, file)
			if err != nil {
				errc <- err
				return
			}

			dir := filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel)))
			if err := WriteTiles(dir, g); err != nil {
				errc <- err
				return
			}
			p.logger.Info("Sliced file", zap.String("file", file), zap.String("dir", dir))
		}
	}()
	return errc, nil
}

// waitForPipeline returns the first error, cancelling the remaining stages
// but still waiting for them to finish
func waitForPipeline(cancel context.CancelFunc, errs ...<-chan error) error {
	var first error
	for err := range mergeErrors(errs...) {
		if err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Scan slices every image found under path, writing the tiles for each one
// to its own directory under out. Files that are not acceptable images are
// skipped.
func (p *Pipeline) Scan(ctx context.Context, path, out string, workers int) error {
	base, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	outDir, err := filepath.Abs(out)
	if err != nil {
		return err
	}

	if workers < 1 {
		workers = 1
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var errcList []<-chan error

	files, errc, err := p.findFiles(ctx, base, outDir)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < workers; i++ {
		errc, err := p.fileWorker(ctx, files, base, outDir)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(cancelFunc, errcList...)
}
