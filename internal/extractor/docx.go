package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoDocumentXML = errors.New("word/document.xml not found")

const wordprocessingML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// extractDOCX joins the body paragraphs of a .docx archive with newlines
func extractDOCX(content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		return parseDocumentXML(data)
	}
	return "", errNoDocumentXML
}

// parseDocumentXML walks the token stream so that runs nested inside
// hyperlinks, tracked insertions, smart tags, fields and table cells are
// all picked up. Each w:p becomes one line.
func parseDocumentXML(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		paragraphs []string
		open       []*strings.Builder // innermost paragraph last
		runDepth   int
		inText     bool
	)
	current := func() *strings.Builder {
		if len(open) == 0 {
			return nil
		}
		return open[len(open)-1]
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if !isWordElement(el.Name) {
				continue
			}
			switch el.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "r":
				runDepth++
			case "t":
				inText = runDepth > 0
			case "tab":
				if sb := current(); sb != nil && runDepth > 0 {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if sb := current(); sb != nil && runDepth > 0 {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if !isWordElement(el.Name) {
				continue
			}
			switch el.Name.Local {
			case "p":
				if sb := current(); sb != nil {
					paragraphs = append(paragraphs, sb.String())
					open = open[:len(open)-1]
				}
			case "r":
				if runDepth > 0 {
					runDepth--
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if sb := current(); sb != nil && inText {
				sb.Write(el)
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

func isWordElement(name xml.Name) bool {
	return name.Space == wordprocessingML || name.Space == ""
}
