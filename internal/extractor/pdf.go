package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// PDFMethod is one step of the PDF extraction chain
type PDFMethod interface {
	Name() string
	Extract(ctx context.Context, content []byte) (string, error)
}

// ErrNoText is returned by a method that ran but found no text
var ErrNoText = errors.New("no text extracted")

// GoPDF reads the PDF text layer with ledongthuc/pdf. Fast, but strict about
// document structure.
type GoPDF struct{}

// NewGoPDF creates the structured-text PDF method
func NewGoPDF() *GoPDF {
	return &GoPDF{}
}

func (g *GoPDF) Name() string { return "go-pdf" }

func (g *GoPDF) Extract(ctx context.Context, content []byte) (text string, err error) {
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var sb strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if sb.Len() > 0 && pageText != "" {
			sb.WriteString("\n")
		}
		sb.WriteString(pageText)
	}

	text = strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Poppler shells out to pdftotext, which tolerates damaged files the Go
// reader rejects.
type Poppler struct {
	binary  string
	timeout time.Duration
}

// NewPoppler creates the pdftotext method. An empty binary means "pdftotext" on PATH.
func NewPoppler(binary string) *Poppler {
	if binary == "" {
		binary = "pdftotext"
	}
	return &Poppler{binary: binary, timeout: 30 * time.Second}
}

func (p *Poppler) Name() string { return "poppler" }

// Available reports whether the pdftotext binary can be found
func (p *Poppler) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

func (p *Poppler) Extract(ctx context.Context, content []byte) (string, error) {
	if !p.Available() {
		return "", fmt.Errorf("%s not available", p.binary)
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, p.binary, "-layout", "-enc", "UTF-8", "-", "-")
	cmd.Stdin = bytes.NewReader(content)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
