package types

import (
	"path"
	"strings"
	"time"
)

// FileType is the declared format of an ingested source object
type FileType string

// Supported file types
const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeTXT  FileType = "txt"
)

// SupportedFileTypes lists every format the ingestion pipeline accepts
var SupportedFileTypes = []FileType{FileTypePDF, FileTypeDOCX, FileTypeTXT}

// ParseFileType maps a format or extension (with or without a leading dot,
// any case) to a FileType. The second return is false for unsupported formats.
func ParseFileType(format string) (FileType, bool) {
	f := FileType(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")))
	switch f {
	case FileTypePDF, FileTypeDOCX, FileTypeTXT:
		return f, true
	}
	return "", false
}

// FileTypeFromName derives the file type from the extension of a name or URL path
func FileTypeFromName(name string) (FileType, bool) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return ParseFileType(path.Ext(name))
}

// IsValid reports whether f is one of the supported file types
func (f FileType) IsValid() bool {
	_, ok := ParseFileType(string(f))
	return ok
}

// TitleFromName returns the display title for an object name: the last path
// segment with a trailing supported extension removed.
func TitleFromName(name string) string {
	base := path.Base(strings.TrimSuffix(name, "/"))
	if base == "." || base == "/" {
		return ""
	}
	if _, ok := FileTypeFromName(base); ok {
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	return base
}

// Document is the authoritative metadata record for one ingested object
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SourceURL  string    `json:"url"`
	FileType   FileType  `json:"type"`
	Content    string    `json:"content"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Validate checks the fields every stored document must carry.
// Content may be empty: extraction failures still produce a record.
func (d *Document) Validate() error {
	if d.ID == "" {
		return ErrInvalidDocumentID
	}
	if d.SourceURL == "" {
		return ErrMissingSourceURL
	}
	if !d.FileType.IsValid() {
		return ErrInvalidFileType
	}
	return nil
}
