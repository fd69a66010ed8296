// Package recovery is the local recovery cache: a durable, process-local
// record of every successfully ingested document (vector, title, url, text).
//
// It is a backstop for the two stores, not a serving path. The metadata
// store and vector index are written without a shared transaction, so a
// crash between writes can leave one without the other. At startup the
// indexer loads the cache and replays each entry, re-upserting the vector
// and inserting the metadata record if it is missing.
package recovery
