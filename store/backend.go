package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/bodgit/jigsaw/record"
)

// Driver names, in the default order of preference
const (
	DriverSQLite3 = "sqlite3"
	DriverSQLite  = "sqlite"
	DriverRedis   = "redis"
	DriverFile    = "file"
	DriverMemory  = "memory"
)

const (
	defaultName = "puzzles"
	dbFilename  = "jigsaw.db"
)

var (
	// ErrNotExist is returned by a Backend when the key has no value
	ErrNotExist = errors.New("store: key does not exist")

	// ErrNoBackend is returned by Open when none of the drivers are available
	ErrNoBackend = errors.New("store: no storage backend available")

	validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Backend is a durable key-value mechanism.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete must not fail if the key does not exist
	Delete(ctx context.Context, key string) error
	Close() error
}

type opener func(context.Context, Options) (Backend, error)

var drivers = map[string]opener{
	DriverSQLite3: openSQLite3,
	DriverSQLite:  openSQLite,
	DriverRedis:   openRedis,
	DriverFile:    openFile,
	DriverMemory:  openMemory,
}

// DefaultDrivers is the order backends are tried in when none are configured.
var DefaultDrivers = []string{DriverSQLite3, DriverSQLite, DriverRedis, DriverFile}

// Options configures Open.
type Options struct {
	// Drivers lists the backends to try, most preferred first
	Drivers []string `yaml:"drivers"`

	// Dir holds the SQLite database and the file backend
	Dir string `yaml:"dir"`

	// Redis is the address of a Redis server; the redis driver is
	// skipped if it is empty
	Redis string `yaml:"redis"`

	// Name is the table, directory or key prefix used by the backend
	Name string `yaml:"name"`

	// Key is the record key
	Key string `yaml:"key"`
}

func (o Options) withDefaults() Options {
	if len(o.Drivers) == 0 {
		o.Drivers = DefaultDrivers
	}
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.Name == "" {
		o.Name = defaultName
	}
	if o.Key == "" {
		o.Key = record.Key
	}
	return o
}

// Validate checks the options are usable
func (o Options) Validate() error {
	for _, d := range o.Drivers {
		if _, ok := drivers[d]; !ok {
			return fmt.Errorf("store: unknown driver %q", d)
		}
	}
	if o.Name != "" && !validName.MatchString(o.Name) {
		return fmt.Errorf("store: invalid name %q", o.Name)
	}
	if o.Key != "" && !validName.MatchString(o.Key) {
		return fmt.Errorf("store: invalid key %q", o.Key)
	}
	return nil
}
