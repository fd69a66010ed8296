package storage

import (
	"context"
	"errors"

	"github.com/dshills/neurosearch/pkg/types"
)

var (
	// ErrNotFound is returned when a requested document doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned by Insert when the source URL (or id) is already stored
	ErrDuplicateKey = types.ErrDuplicateKey
)

// fetchBatchSize bounds the number of ids bound into one IN / ANY query
const fetchBatchSize = 500

// Store is the relational metadata store for ingested documents
type Store interface {
	// ExistsBySourceURL reports whether a document with this source URL is stored
	ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error)

	// Insert stores a new document. It fails with ErrDuplicateKey when a
	// record with the same source URL already exists.
	Insert(ctx context.Context, doc *types.Document) error

	// FetchByIDs returns the stored documents among ids, in no particular
	// order. Unknown ids are omitted, never reported as errors.
	FetchByIDs(ctx context.Context, ids []string) ([]*types.Document, error)

	// GetDocument returns one document or ErrNotFound
	GetDocument(ctx context.Context, id string) (*types.Document, error)

	// Count returns the number of stored documents
	Count(ctx context.Context) (int, error)

	// Close releases the underlying connections
	Close() error
}

// dedupeIDs drops empty and repeated ids, keeping first occurrence order
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// batches splits ids into slices of at most size elements
func batches(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
