// Package vectorindex provides nearest-neighbour search over document
// embeddings.
//
// Backends:
//   - Pinecone: hosted index reached over its REST data-plane API
//   - PGVector: Postgres with the pgvector extension, cosine distance
//   - SQLiteIndex: exact cosine search in a local SQLite file
//
// Every backend overwrites by id on Upsert and returns matches in
// descending similarity order. Scores are cosine similarity, so a vector
// queried against itself scores 1.
//
// The index has no transactional link to the metadata store. A match may
// name an id whose document row is missing; the searcher drops it.
package vectorindex
