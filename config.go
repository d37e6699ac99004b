package jigsaw

import (
	"errors"
	"fmt"
	"os"

	"github.com/bodgit/jigsaw/store"
	"github.com/bodgit/jigsaw/tile"
	"gopkg.in/yaml.v3"
)

// Grid dimensions; these are fixed for every puzzle
const (
	DefaultRows = 3
	DefaultCols = 3
)

const (
	// DefaultMaxSizeBytes is the largest file accepted, 5 MB
	DefaultMaxSizeBytes = 5 << (10 * 2)

	// DefaultMaxDisplaySize is the length of the longer side of the
	// resized image
	DefaultMaxDisplaySize = 400

	// DefaultMaxPixels caps the decoded image size
	DefaultMaxPixels = 64 << (10 * 2)
)

// Media types that can be decoded
var supportedTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
	"image/gif":  "GIF",
	"image/webp": "WEBP",
}

// Config holds the settings for validating and slicing images. It is
// copied by everything that uses it so changes after construction have no
// effect.
type Config struct {
	// AllowedTypes lists the accepted media types
	AllowedTypes []string `yaml:"allowed_types"`

	// MaxSizeBytes is the largest file accepted
	MaxSizeBytes int64 `yaml:"max_size_bytes"`

	// MaxDisplaySize is the length of the longer side of the resized image
	MaxDisplaySize int `yaml:"max_display_size"`

	// MaxPixels is the largest width × height that will be decoded
	MaxPixels int `yaml:"max_pixels"`

	// Colors, if non-zero, reduces each tile to at most this many colors
	Colors int `yaml:"colors"`

	Rows int `yaml:"-"`
	Cols int `yaml:"-"`

	// Store configures where the puzzle is saved
	Store store.Options `yaml:"store"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		AllowedTypes:   []string{"image/jpeg", "image/png", "image/webp"},
		MaxSizeBytes:   DefaultMaxSizeBytes,
		MaxDisplaySize: DefaultMaxDisplaySize,
		MaxPixels:      DefaultMaxPixels,
		Rows:           DefaultRows,
		Cols:           DefaultCols,
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults
func LoadConfig(file string) (Config, error) {
	c := DefaultConfig()

	f, err := os.Open(file)
	if err != nil {
		return c, err
	}
	defer f.Close()

	d := yaml.NewDecoder(f)
	d.KnownFields(true)
	if err := d.Decode(&c); err != nil {
		return c, fmt.Errorf("%s: %w", file, err)
	}

	return c, c.Validate()
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if len(c.AllowedTypes) == 0 {
		return errors.New("jigsaw: no allowed types")
	}
	for _, t := range c.AllowedTypes {
		if _, ok := supportedTypes[t]; !ok {
			return fmt.Errorf("jigsaw: no decoder for %q", t)
		}
	}
	if c.MaxSizeBytes <= 0 {
		return errors.New("jigsaw: maximum size must be positive")
	}
	if c.MaxDisplaySize <= 0 {
		return errors.New("jigsaw: maximum display size must be positive")
	}
	if c.MaxPixels <= 0 {
		return errors.New("jigsaw: maximum pixels must be positive")
	}
	if c.Colors < 0 || c.Colors > tile.MaxColors {
		return fmt.Errorf("jigsaw: colors must be between 0 and %d", tile.MaxColors)
	}
	if c.Rows <= 0 || c.Cols <= 0 {
		return fmt.Errorf("jigsaw: invalid %d by %d grid", c.Rows, c.Cols)
	}
	return c.Store.Validate()
}

func (c Config) clone() Config {
	c.AllowedTypes = append([]string(nil), c.AllowedTypes...)
	c.Store.Drivers = append([]string(nil), c.Store.Drivers...)
	return c
}
