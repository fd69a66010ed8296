package objectstore

import (
	"context"
	"errors"
	"io"

	"github.com/dshills/neurosearch/pkg/types"
)

// DefaultPageSize bounds a single listing call
const DefaultPageSize = 100

// ErrNotFound is returned by Open when the object no longer exists
var ErrNotFound = errors.New("object not found")

// Object describes one uploaded file as reported by a listing
type Object struct {
	Key    string // provider-side identifier, e.g. Cloudinary public_id
	URL    string // stable fetch URL, used as the document source_url
	Format string // declared format; may be empty for providers that do not report one
	Size   int64
}

// FileType resolves the declared format, falling back to the key's extension
func (o Object) FileType() (types.FileType, bool) {
	if o.Format != "" {
		if ft, ok := types.ParseFileType(o.Format); ok {
			return ft, true
		}
	}
	return types.FileTypeFromName(o.Key)
}

// Title is the display title: last segment of the key, extension removed
func (o Object) Title() string {
	return types.TitleFromName(o.Key)
}

// Provider lists and fetches objects from an upload store
type Provider interface {
	// List returns the next page of at most limit objects. Successive
	// calls advance through the listing and wrap back to the start once
	// the last page has been returned.
	List(ctx context.Context, limit int) ([]Object, error)
	// Open streams the object's bytes. The caller closes the reader.
	Open(ctx context.Context, obj Object) (io.ReadCloser, error)
	Name() string
}
