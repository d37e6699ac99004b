/*
Package store persists the most recently generated tile grid.

The grid is kept as a single record under one well-known key in whichever
durable key-value backend is available first from an ordered list of
preferences, similar to how a browser application falls back from IndexedDB
to WebSQL to localStorage. Callers only see Save, Load and Clear; Driver
reports which backend was actually chosen.
*/
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bodgit/jigsaw/record"
	"go.uber.org/zap"
)

// Op identifies the store operation that failed
type Op string

// Store operations
const (
	OpSave  Op = "save"
	OpLoad  Op = "load"
	OpClear Op = "clear"
)

// Sentinel errors for classifying store failures with errors.Is.
var (
	ErrSaveFailed  = errors.New("store: save failed")
	ErrLoadFailed  = errors.New("store: load failed")
	ErrClearFailed = errors.New("store: clear failed")
)

// Error wraps a backend failure with the operation and driver involved.
type Error struct {
	Op     Op
	Driver string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Driver, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failed operation.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSaveFailed:
		return e.Op == OpSave
	case ErrLoadFailed:
		return e.Op == OpLoad
	case ErrClearFailed:
		return e.Op == OpClear
	}
	return false
}

// Store saves, loads and clears the grid record.
type Store struct {
	backend Backend
	key     string
	logger  *zap.Logger
	now     func() time.Time
}

// New returns a Store using the given backend. An empty key uses record.Key.
func New(backend Backend, key string, logger *zap.Logger) *Store {
	if key == "" {
		key = record.Key
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		key:     key,
		logger:  logger.With(zap.String("driver", backend.Name())),
		now:     time.Now,
	}
}

// Open tries each of the drivers in o in order and returns a Store backed by
// the first one that is available.
func Open(ctx context.Context, o Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	o = o.withDefaults()
	if err := o.Validate(); err != nil {
		return nil, err
	}

	for _, name := range o.Drivers {
		b, err := drivers[name](ctx, o)
		if err != nil {
			logger.Debug("Storage driver unavailable", zap.String("driver", name), zap.Error(err))
			continue
		}
		logger.Debug("Using storage driver", zap.String("driver", name))
		return New(b, o.Key, logger), nil
	}

	return nil, ErrNoBackend
}

// Driver returns the name of the backend in use
func (s *Store) Driver() string {
	return s.backend.Name()
}

// Save stamps g with the current time and stores it, replacing any
// existing record.
func (s *Store) Save(ctx context.Context, g record.Grid) error {
	g.Timestamp = s.now().UnixMilli()

	b, err := json.Marshal(g)
	if err != nil {
		return &Error{Op: OpSave, Driver: s.Driver(), Err: err}
	}

	if err := s.backend.Set(ctx, s.key, b); err != nil {
		return &Error{Op: OpSave, Driver: s.Driver(), Err: err}
	}
	s.logger.Debug("Saved grid", zap.Int("pieces", g.Len()), zap.Int("bytes", len(b)))

	return nil
}

// Load returns the stored grid. A missing or malformed record is reported as
// nil with no error.
func (s *Store) Load(ctx context.Context) (*record.Grid, error) {
	b, err := s.backend.Get(ctx, s.key)
	switch {
	case errors.Is(err, ErrNotExist):
		s.logger.Debug("No saved grid")
		return nil, nil
	case err != nil:
		return nil, &Error{Op: OpLoad, Driver: s.Driver(), Err: err}
	}

	var g record.Grid
	if err := json.Unmarshal(b, &g); err != nil {
		s.logger.Warn("Ignoring corrupt grid record", zap.Error(err))
		return nil, nil
	}
	s.logger.Debug("Loaded grid", zap.Int("pieces", g.Len()), zap.Time("created", g.CreatedAt()))

	return &g, nil
}

// Clear removes the stored grid. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return &Error{Op: OpClear, Driver: s.Driver(), Err: err}
	}
	s.logger.Debug("Cleared grid")
	return nil
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}
