package jigsaw

import "github.com/bodgit/jigsaw/record"

// Status is the stage the puzzle generator is in
type Status int

// Generator statuses
const (
	Idle Status = iota
	LoadingSaved
	Processing
	Ready
	Failed
)

var statusNames = [...]string{
	Idle:         "idle",
	LoadingSaved: "loading",
	Processing:   "processing",
	Ready:        "ready",
	Failed:       "failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// State is a snapshot of the generator.
type State struct {
	Status Status

	// Grid is the current puzzle when Ready
	Grid *record.Grid

	// Err is why processing Failed, or why the saved puzzle could not be
	// loaded
	Err error

	// Warning is a failure that did not change the status, such as the
	// puzzle not being saved
	Warning error

	// Preview is the path of a temporary copy of the accepted file
	Preview string
}

// Loading reports whether work is in progress
func (s State) Loading() bool {
	return s.Status == LoadingSaved || s.Status == Processing
}

// Pieces returns the encoded tiles, if any
func (s State) Pieces() []string {
	if s.Grid == nil {
		return nil
	}
	return s.Grid.Pieces
}

func (s State) clone() State {
	if s.Grid != nil {
		g := *s.Grid
		g.Pieces = append([]string(nil), g.Pieces...)
		s.Grid = &g
	}
	return s
}
