/*
Package record implements the persisted form of a generated tile grid.

A record is stored as a small JSON document holding the encoded tiles in
row-major order, the grid dimensions and the time the record was saved in
milliseconds since the epoch:

	{"pieces": ["data:image/png;base64,...", ...], "rows": 3, "cols": 3, "timestamp": 1700000000000}

Decoding is strict about shape; anything that does not look like a record
written by this package is reported as ErrCorrupt.
*/
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// Key is the well-known key the record is stored under
	Key = "puzzleState"

	// Prefix is what every encoded piece must start with
	Prefix = "data:image/"
)

// ErrCorrupt is returned when a stored record does not have the expected shape.
var ErrCorrupt = errors.New("record: corrupt record")

// Grid is a generated tile set. It implements the json.Marshaler and
// json.Unmarshaler interfaces.
type Grid struct {
	Pieces    []string
	Rows      int
	Cols      int
	Timestamp int64
}

// New returns a grid for the given pieces, stamped with t
func New(pieces []string, rows, cols int, t time.Time) Grid {
	return Grid{
		Pieces:    append([]string(nil), pieces...),
		Rows:      rows,
		Cols:      cols,
		Timestamp: t.UnixMilli(),
	}
}

// Len returns the number of pieces in the grid
func (g Grid) Len() int {
	return len(g.Pieces)
}

// Position returns the row and column of the piece at index i
func (g Grid) Position(i int) (int, int) {
	return i / g.Cols, i % g.Cols
}

// Piece returns the piece at the given row and column
func (g Grid) Piece(row, col int) string {
	return g.Pieces[row*g.Cols+col]
}

// CreatedAt returns the timestamp as a time.Time
func (g Grid) CreatedAt() time.Time {
	return time.UnixMilli(g.Timestamp)
}

// Validate checks the grid invariants
func (g Grid) Validate() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("%w: %d by %d grid", ErrCorrupt, g.Rows, g.Cols)
	}
	if g.Pieces == nil {
		return fmt.Errorf("%w: no pieces", ErrCorrupt)
	}
	if len(g.Pieces) != g.Rows*g.Cols {
		return fmt.Errorf("%w: %d pieces for %d by %d grid", ErrCorrupt, len(g.Pieces), g.Rows, g.Cols)
	}
	for i, p := range g.Pieces {
		if !strings.HasPrefix(p, Prefix) {
			return fmt.Errorf("%w: piece %d is not image data", ErrCorrupt, i)
		}
	}
	return nil
}

type wireGrid struct {
	Pieces    []string `json:"pieces"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	Timestamp int64    `json:"timestamp"`
}

// Pointers so that missing fields can be told apart from zero values
type wireGridIn struct {
	Pieces    *[]json.RawMessage `json:"pieces"`
	Rows      *float64           `json:"rows"`
	Cols      *float64           `json:"cols"`
	Timestamp *float64           `json:"timestamp"`
}

// MarshalJSON encodes the grid into its stored form
func (g Grid) MarshalJSON() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(wireGrid{
		Pieces:    g.Pieces,
		Rows:      g.Rows,
		Cols:      g.Cols,
		Timestamp: g.Timestamp,
	})
}

func positiveInt(f *float64, name string) (int, error) {
	if f == nil {
		return 0, fmt.Errorf("%w: missing %s", ErrCorrupt, name)
	}
	if *f <= 0 || *f != math.Trunc(*f) || *f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s is not a positive integer", ErrCorrupt, name)
	}
	return int(*f), nil
}

// UnmarshalJSON decodes the grid from its stored form
func (g *Grid) UnmarshalJSON(b []byte) error {
	var in wireGridIn
	if err := json.Unmarshal(b, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if in.Pieces == nil {
		return fmt.Errorf("%w: missing pieces", ErrCorrupt)
	}
	pieces := make([]string, 0, len(*in.Pieces))
	for i, raw := range *in.Pieces {
		var p string
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("%w: piece %d is not a string", ErrCorrupt, i)
		}
		pieces = append(pieces, p)
	}

	rows, err := positiveInt(in.Rows, "rows")
	if err != nil {
		return err
	}
	cols, err := positiveInt(in.Cols, "cols")
	if err != nil {
		return err
	}

	if in.Timestamp == nil {
		return fmt.Errorf("%w: missing timestamp", ErrCorrupt)
	}
	dup := Grid{
		Pieces:    pieces,
		Rows:      rows,
		Cols:      cols,
		Timestamp: int64(*in.Timestamp),
	}
	if err := dup.Validate(); err != nil {
		return err
	}
	*g = dup

	return nil
}
