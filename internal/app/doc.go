// Package app assembles NeuroSearch from configuration.
//
// New selects the backends named in config.Config: the object store
// (Cloudinary or a local directory), the metadata store (SQLite or
// Postgres), the vector index (SQLite, Pinecone or pgvector) and the
// embedding provider. It then builds the Query Service and, when asked,
// the Ingestion Coordinator with its recovery cache. The CLI only ever
// talks to an App.
package app
