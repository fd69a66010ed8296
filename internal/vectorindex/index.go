package vectorindex

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidEntry is returned for entries without an id or vector
	ErrInvalidEntry = errors.New("invalid vector entry")
	// ErrDimensionMismatch is returned when a vector does not match the index dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Entry is one vector with the display attributes stored beside it
type Entry struct {
	ID        string
	Vector    []float32
	Title     string
	SourceURL string
}

// Validate checks the entry can be written
func (e Entry) Validate(dimension int) error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEntry)
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", ErrInvalidEntry, e.ID)
	}
	if dimension > 0 && len(e.Vector) != dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e.Vector), dimension)
	}
	return nil
}

// Match is a query hit. Title and SourceURL are the attributes stored at
// upsert time and may be stale; the metadata store is authoritative.
type Match struct {
	ID        string
	Score     float64
	Title     string
	SourceURL string
}

// Index is a nearest-neighbour index over document embeddings
type Index interface {
	// Upsert writes entry, replacing any existing entry with the same id
	Upsert(ctx context.Context, entry Entry) error

	// Query returns at most topK matches ordered by descending similarity
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Close releases the underlying connections
	Close() error
}
