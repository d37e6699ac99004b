/*
Package jigsaw is a library for turning an image into a grid of puzzle
tiles.

An accepted image is decoded, resized so its longer side fits the display
size, cut into a fixed 3 by 3 grid and each tile encoded as a PNG data URI.
The resulting grid is saved so it can be restored the next time without
processing the image again.
*/
package jigsaw

import (
	"context"
	"errors"
	"sync"

	"github.com/bodgit/jigsaw/record"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNoStore = errors.New("jigsaw: no store")

// Store persists the most recent grid.
type Store interface {
	Save(context.Context, record.Grid) error
	Load(context.Context) (*record.Grid, error)
	Clear(context.Context) error
}

// Jigsaw tracks the state of puzzle generation for one user.
type Jigsaw struct {
	config   Config
	pipeline *Pipeline
	store    Store
	logger   *zap.Logger
	notifier Notifier

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	preview    *preview

	// Saves are serialized and only the most recently scheduled one is
	// written
	saveMu         sync.Mutex
	saveGeneration uint64
	saves          sync.WaitGroup
}

// New returns a Jigsaw in the Idle state.
func New(c Config, s Store, logger *zap.Logger, n Notifier) (*Jigsaw, error) {
	if s == nil {
		return nil, errNoStore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = nopNotifier{}
	}

	p, err := NewPipeline(c, logger)
	if err != nil {
		return nil, err
	}

	return &Jigsaw{
		config:   p.config,
		pipeline: p,
		store:    s,
		logger:   logger,
		notifier: n,
	}, nil
}

// supersede invalidates any run in progress. Must be called with mu held.
func (j *Jigsaw) supersede() uint64 {
	j.generation++
	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
	return j.generation
}

// Must be called with mu held
func (j *Jigsaw) releasePreview() {
	if j.preview == nil {
		return
	}
	if err := j.preview.Release(); err != nil {
		j.logger.Warn("Unable to release preview", zap.String("path", j.preview.Path()), zap.Error(err))
	}
	j.preview = nil
	j.state.Preview = ""
}

// State returns the current state
func (j *Jigsaw) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.clone()
}

// Mount restores the saved grid, if there is one.
func (j *Jigsaw) Mount(ctx context.Context) State {
	j.mu.Lock()
	gen := j.supersede()
	j.state = State{Status: LoadingSaved}
	j.mu.Unlock()

	g, err := j.store.Load(ctx)

	j.mu.Lock()
	if gen != j.generation {
		s := j.state.clone()
		j.mu.Unlock()
		return s
	}
	switch {
	case err != nil:
		j.state = State{Status: Idle, Err: err}
	case g == nil:
		j.state = State{Status: Idle}
	default:
		j.state = State{Status: Ready, Grid: g}
	}
	s := j.state.clone()
	j.mu.Unlock()

	switch {
	case err != nil:
		j.logger.Error("Unable to load saved puzzle", zap.Error(err))
		j.notifier.Notify(Error, msgLoadFailed)
	case g == nil:
		j.logger.Debug("No saved puzzle")
	default:
		j.logger.Info("Restored saved puzzle", zap.Int("pieces", g.Len()), zap.Time("created", g.CreatedAt()))
	}

	return s
}

// Reset discards the current puzzle and returns to Idle. The saved puzzle
// is left alone.
func (j *Jigsaw) Reset() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.supersede()
	j.releasePreview()
	j.state = State{Status: Idle}
	return j.state.clone()
}

// Select generates a puzzle from c. A nil c is the same as Reset. If c is
// rejected, including when it is read and found to be larger than declared,
// the returned error is a *ValidationError and the state is Idle; otherwise the result of processing is reported in the returned State.
// Selecting another file while one is being processed discards the older
// result.
func (j *Jigsaw) Select(ctx context.Context, c *Candidate) (State, error) {
	if c == nil {
		return j.Reset(), nil
	}

	if err := j.pipeline.Validate(c); err != nil {
		j.rejected(c, err)
		return j.Reset(), err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	j.mu.Lock()
	gen := j.supersede()
	j.cancel = cancel
	j.releasePreview()
	j.state = State{Status: Processing}
	j.mu.Unlock()

	logger := j.logger.With(zap.String("run", uuid.NewString()), zap.String("file", c.Name))
	logger.Debug("Processing file", zap.String("type", c.Type), zap.Int64("size", c.Size))

	b, err := j.pipeline.Read(ctx, c)

	// The file turned out to be larger than declared
	var verr *ValidationError
	if errors.As(err, &verr) {
		j.mu.Lock()
		if gen != j.generation {
			s := j.state.clone()
			j.mu.Unlock()
			return s, nil
		}
		j.cancel = nil
		j.state = State{Status: Idle}
		s := j.state.clone()
		j.mu.Unlock()

		j.rejected(c, err)
		return s, err
	}

	if err == nil {
		j.acquirePreview(gen, c.Name, b, logger)
	}

	var g record.Grid
	if err == nil {
		g, err = j.pipeline.Process(ctx, c.Name, b)
	}

	j.mu.Lock()
	if gen != j.generation {
		s := j.state.clone()
		j.mu.Unlock()
		logger.Debug("Discarding superseded run")
		return s, nil
	}
	j.cancel = nil

	if err != nil {
		j.state = State{Status: Failed, Err: err, Preview: j.state.Preview}
		s := j.state.clone()
		j.mu.Unlock()

		logger.Error("Unable to process file", zap.Error(err))
		j.notifier.Notify(Error, failureMessage(err))
		return s, nil
	}

	j.state = State{Status: Ready, Grid: &g, Preview: j.state.Preview}
	s := j.state.clone()
	j.saveGeneration++
	saveGen := j.saveGeneration
	j.saves.Add(1)
	j.mu.Unlock()

	logger.Info("Generated puzzle", zap.Int("pieces", g.Len()))

	go j.save(context.WithoutCancel(ctx), saveGen, g, logger)

	return s, nil
}

func (j *Jigsaw) rejected(c *Candidate, err error) {
	j.logger.Info("Rejected file", zap.String("file", c.Name), zap.String("type", c.Type), zap.Int64("size", c.Size), zap.Error(err))
	j.notifier.Notify(Error, rejectionMessage(err, j.config))
}

func (j *Jigsaw) acquirePreview(gen uint64, name string, b []byte, logger *zap.Logger) {
	p, err := newPreview(name, b)
	if err != nil {
		logger.Warn("Unable to create preview", zap.Error(err))
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if gen != j.generation {
		if err := p.Release(); err != nil {
			logger.Warn("Unable to release preview", zap.String("path", p.Path()), zap.Error(err))
		}
		return
	}
	j.preview = p
	j.state.Preview = p.Path()
}

func (j *Jigsaw) save(ctx context.Context, gen uint64, g record.Grid, logger *zap.Logger) {
	defer j.saves.Done()

	j.saveMu.Lock()
	j.mu.Lock()
	stale := gen != j.saveGeneration
	j.mu.Unlock()
	if stale {
		j.saveMu.Unlock()
		logger.Debug("Skipping superseded save")
		return
	}
	err := j.store.Save(ctx, g)
	j.saveMu.Unlock()

	if err == nil {
		logger.Debug("Saved puzzle")
		return
	}

	logger.Error("Unable to save puzzle", zap.Error(err))

	j.mu.Lock()
	if gen == j.saveGeneration && j.state.Status == Ready {
		j.state.Warning = err
	}
	j.mu.Unlock()

	j.notifier.Notify(Warning, msgSaveFailed)
}

// ClearSaved removes the saved puzzle and returns to Idle whether or not
// that succeeds.
func (j *Jigsaw) ClearSaved(ctx context.Context) State {
	j.mu.Lock()
	gen := j.supersede()
	j.saveGeneration++
	j.state = State{Status: Processing, Preview: j.state.Preview}
	j.mu.Unlock()

	j.saveMu.Lock()
	err := j.store.Clear(ctx)
	j.saveMu.Unlock()

	j.mu.Lock()
	if gen == j.generation {
		j.releasePreview()
		j.state = State{Status: Idle, Warning: err}
	}
	s := j.state.clone()
	j.mu.Unlock()

	if err != nil {
		j.logger.Error("Unable to clear saved puzzle", zap.Error(err))
		j.notifier.Notify(Error, msgClearFailed)
	} else {
		j.logger.Info("Cleared saved puzzle")
		j.notifier.Notify(Info, msgCleared)
	}

	return s
}

// Wait blocks until any pending save has finished
func (j *Jigsaw) Wait() {
	j.saves.Wait()
}

// Close abandons any run in progress, waits for pending saves and releases
// the preview.
func (j *Jigsaw) Close() error {
	j.mu.Lock()
	j.supersede()
	j.releasePreview()
	j.mu.Unlock()

	j.Wait()

	return nil
}
