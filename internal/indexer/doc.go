// Package indexer is the ingestion coordinator: it polls an object store
// and turns each new document into a metadata record, a vector and a
// recovery cache entry.
//
// # Basic Usage
//
//	idx, err := indexer.New(indexer.Dependencies{
//	    Source:    provider,
//	    Extractor: extractor.New(logger),
//	    Embedder:  emb,
//	    Store:     store,
//	    Index:     index,
//	    Cache:     cache,
//	    Logger:    logger,
//	}, nil)
//
//	if _, err := idx.Reconcile(ctx); err != nil {
//	    logger.Warn("reconcile failed", "error", err)
//	}
//	_ = idx.Run(ctx, 10*time.Second)
//
// # Pipeline
//
// Each cycle lists one bounded page of objects and handles them one at a
// time:
//
//  1. Filter: only pdf, docx and txt objects are considered
//  2. Dedup: objects whose URL is already stored are skipped
//  3. Download: the bytes go to a private temp file, removed on every path
//  4. Extract: text extraction never fails; unreadable files yield ""
//  5. Embed: the first 3000 characters of the text (or the title if the
//     text is empty) are embedded
//  6. Persist: metadata insert, then vector upsert under the same id, then
//     a durable recovery cache entry
//
// A failure at any stage abandons that object only. There is no retry
// inside a cycle: an object that failed before its metadata insert is
// picked up again by the next cycle.
//
// # Consistency
//
// The metadata store and vector index share no transaction. The possible
// inconsistencies are:
//
//   - record without vector: the vector upsert failed after the insert.
//     Dedup skips the object from then on, so it is never searchable. The
//     failure is logged with the document id.
//   - vector without record: not produced by the pipeline; queries drop
//     such ids when joining.
//
// Both stores can be rebuilt from the recovery cache with Reconcile.
//
// # Reconciliation
//
// Reconcile loads every cache entry, skips entries whose stored input hash
// or vector dimension no longer matches, inserts missing metadata records
// and re-upserts every remaining vector. An entry whose source URL now
// belongs to a different record is reported as a conflict and its vector
// is not written.
//
// # Concurrency
//
// RunCycle and Reconcile share an IndexLock; a second caller gets
// ErrIndexingInProgress instead of blocking. Run drops ticks that arrive
// while a cycle is still running.
package indexer
