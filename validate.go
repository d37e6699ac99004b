package jigsaw

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// Candidate is a file offered for slicing.
type Candidate struct {
	// Name is the base name of the file
	Name string

	// Type is the declared media type, without parameters
	Type string

	// Size is the declared size in bytes
	Size int64

	// Open returns the file contents
	Open func() (io.ReadCloser, error)
}

// NewCandidate returns a Candidate for an in-memory file
func NewCandidate(name, mediaType string, b []byte) *Candidate {
	return &Candidate{
		Name: name,
		Type: mediaType,
		Size: int64(len(b)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		},
	}
}

// CandidateFromFile returns a Candidate for a file on disk. The media type
// is derived from the file extension.
func CandidateFromFile(file string) (*Candidate, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}

	var mediaType string
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			mediaType = mt
		}
	}

	return &Candidate{
		Name: info.Name(),
		Type: mediaType,
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(file)
		},
	}, nil
}

// Validator checks candidates against the allowed types and size limit.
type Validator struct {
	allowed map[string]struct{}
	limit   int64
}

// NewValidator returns a Validator for the given configuration
func NewValidator(c Config) *Validator {
	v := &Validator{
		allowed: make(map[string]struct{}, len(c.AllowedTypes)),
		limit:   c.MaxSizeBytes,
	}
	for _, t := range c.AllowedTypes {
		v.allowed[t] = struct{}{}
	}
	return v
}

// Validate returns nil if c is accepted, otherwise a *ValidationError
// wrapping ErrUnsupportedType or ErrTooLarge.
func (v *Validator) Validate(c *Candidate) error {
	if _, ok := v.allowed[c.Type]; !ok {
		return &ValidationError{Name: c.Name, Type: c.Type, Size: c.Size, Limit: v.limit, Err: ErrUnsupportedType}
	}
	if c.Size > v.limit {
		return &ValidationError{Name: c.Name, Type: c.Type, Size: c.Size, Limit: v.limit, Err: ErrTooLarge}
	}
	return nil
}
