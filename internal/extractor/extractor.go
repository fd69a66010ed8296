package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/neurosearch/pkg/types"
)

// DefaultMaxFileSize caps the bytes read into memory for a single document
const DefaultMaxFileSize = 200 << 20

// ErrFileTooLarge is logged when a downloaded file exceeds the size cap
var ErrFileTooLarge = errors.New("file too large for in-memory extraction")

// Extractor turns a downloaded file into plain text. It never returns an
// error: every failure is logged and yields "".
type Extractor struct {
	pdfMethods  []PDFMethod
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithPDFMethods replaces the PDF extraction chain. Methods are tried in order.
func WithPDFMethods(methods ...PDFMethod) Option {
	return func(e *Extractor) {
		e.pdfMethods = methods
	}
}

// WithMaxFileSize overrides DefaultMaxFileSize
func WithMaxFileSize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxFileSize = n
		}
	}
}

// New creates an extractor whose PDF chain is the structured Go reader
// followed by poppler's pdftotext.
func New(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Extractor{
		pdfMethods:  []PDFMethod{NewGoPDF(), NewPoppler("")},
		maxFileSize: DefaultMaxFileSize,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of the file at path interpreted as fileType.
// Unsupported types yield "" as well; callers are expected to filter them first.
func (e *Extractor) Extract(ctx context.Context, path string, fileType types.FileType) string {
	log := e.logger.With("path", path, "file_type", string(fileType))

	content, err := e.readFile(path)
	if err != nil {
		log.Warn("extraction failed", "error", fmt.Errorf("%w: %w", types.ErrExtraction, err))
		return ""
	}

	var text string
	switch fileType {
	case types.FileTypePDF:
		text = e.extractPDF(ctx, content, log)
	case types.FileTypeDOCX:
		text, err = extractDOCX(content)
	case types.FileTypeTXT:
		text = extractPlainText(content)
	default:
		err = types.ErrInvalidFileType
	}
	if err != nil {
		log.Warn("extraction failed", "error", fmt.Errorf("%w: %w", types.ErrExtraction, err))
		return ""
	}
	text = stripNUL(text)
	if text == "" {
		log.Warn("extraction produced no text")
	}
	return text
}

func (e *Extractor) readFile(path string) ([]byte, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if stat.Size() > e.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, stat.Size())
	}
	return os.ReadFile(path)
}

// extractPDF walks the method chain and returns the first non-empty result
func (e *Extractor) extractPDF(ctx context.Context, content []byte, log *slog.Logger) string {
	for _, method := range e.pdfMethods {
		if ctx.Err() != nil {
			log.Warn("pdf extraction cancelled", "error", ctx.Err())
			return ""
		}
		text, err := method.Extract(ctx, content)
		if err != nil {
			log.Debug("pdf method failed", "method", method.Name(), "error", err)
			continue
		}
		text = stripNUL(text)
		if text == "" {
			log.Debug("pdf method returned no text", "method", method.Name())
			continue
		}
		log.Debug("pdf extracted", "method", method.Name(), "chars", len(text))
		return text
	}
	log.Warn("all pdf extraction methods failed", "error", types.ErrExtraction)
	return ""
}
