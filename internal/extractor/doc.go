// Package extractor pulls plain text out of downloaded source documents.
//
// Supported formats are PDF, DOCX and UTF-8 text. PDF goes through an ordered
// chain of methods: the pure Go reader first, then poppler's pdftotext for
// files the Go reader cannot parse. The first method to return non-empty text
// wins.
//
// Extraction is fail-soft. Extract never returns an error; a file that cannot
// be read in any way yields "" and a warning log line, and ingestion carries
// on with empty content.
//
//	ext := extractor.New(logger)
//	text := ext.Extract(ctx, "/tmp/ingest-123.pdf", types.FileTypePDF)
package extractor
