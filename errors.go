package jigsaw

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is the rejection reason for a file whose media
	// type is not allowed
	ErrUnsupportedType = errors.New("jigsaw: unsupported file type")

	// ErrTooLarge is the rejection reason for a file over the size limit
	ErrTooLarge = errors.New("jigsaw: file too large")

	// ErrDecode is matched by every *DecodeError
	ErrDecode = errors.New("jigsaw: cannot decode image")

	// ErrSurfaceUnavailable is returned when an image cannot be drawn at
	// the requested size
	ErrSurfaceUnavailable = errors.New("jigsaw: drawing surface unavailable")

	// ErrSlice is matched by every *SliceError
	ErrSlice = errors.New("jigsaw: cannot slice image")
)

// ValidationError records why a candidate file was rejected.
type ValidationError struct {
	Name  string
	Type  string
	Size  int64
	Limit int64
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err == ErrTooLarge {
		return fmt.Sprintf("%s: %v (%d > %d bytes)", e.Name, e.Err, e.Size, e.Limit)
	}
	return fmt.Sprintf("%s: %v %q", e.Name, e.Err, e.Type)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DecodeError records a failure to read or decode an image.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("jigsaw: cannot decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// SliceError records which tile could not be produced.
type SliceError struct {
	Index int
	Err   error
}

func (e *SliceError) Error() string {
	return fmt.Sprintf("jigsaw: cannot slice tile %d: %v", e.Index, e.Err)
}

func (e *SliceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSlice.
func (e *SliceError) Is(target error) bool {
	return target == ErrSlice
}
