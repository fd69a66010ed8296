// Package telemetry wires OpenTelemetry tracing and the ingestion/search
// metrics.
package telemetry
