package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrInvalidDocumentID = errors.New("document id is required")
	ErrMissingSourceURL  = errors.New("source url is required")
	ErrInvalidFileType   = errors.New("unsupported file type")
)

// Failure kinds. Components wrap their errors with one of these so callers
// can tell them apart with errors.Is.
var (
	// ErrExtraction is logged and recovered: the document is ingested with empty text.
	ErrExtraction = errors.New("extraction failure")
	// ErrEmbedding aborts the current document or query.
	ErrEmbedding = errors.New("embedding failure")
	// ErrIndex aborts the current document's persistence step or query.
	ErrIndex = errors.New("vector index failure")
	// ErrStore aborts the current document or query.
	ErrStore = errors.New("metadata store failure")
	// ErrDuplicateKey is a StoreFailure meaning the source URL is already ingested.
	ErrDuplicateKey = fmt.Errorf("%w: duplicate key", ErrStore)
	// ErrValidation rejects caller input before any downstream call.
	ErrValidation = errors.New("validation failure")
)

// Kind names the failure kind carried by err, or "unknown"
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrEmbedding):
		return "embedding"
	case errors.Is(err, ErrIndex):
		return "index"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrStore):
		return "store"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	default:
		return "unknown"
	}
}
