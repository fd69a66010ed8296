// Package api is the HTTP surface: POST /search and GET /health on a gin
// router with CORS, request logging and OpenTelemetry tracing.
//
// Search failures are reported as {"error": "..."}: 400 for a missing or
// invalid query, 500 with a "Embedding failed: ", "Vector index query
// failed: " or "Database error: " prefix otherwise.
package api
