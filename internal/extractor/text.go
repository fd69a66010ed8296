package extractor

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlainText decodes content as UTF-8. Invalid sequences become U+FFFD.
func extractPlainText(content []byte) string {
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "�")
}

// stripNUL drops NUL bytes, which PostgreSQL TEXT columns reject
func stripNUL(text string) string {
	return strings.ReplaceAll(text, "\x00", "")
}
