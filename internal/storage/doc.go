// Package storage is the relational metadata store for ingested documents.
//
// Two implementations share the Store interface: SQLiteStorage (pure Go
// modernc driver by default, mattn/go-sqlite3 with the sqlite_cgo build tag)
// and PostgresStorage on a pgx connection pool.
//
// # Schema
//
//	documents(id PK, title, source_url UNIQUE, file_type, content, ingested_at)
//
// SQLite schema changes are applied as semver-ordered migrations recorded in
// a schema_version table. Postgres creates the table if it is missing.
//
// # Contract
//
// The unique source_url is the ingestion dedup key. Insert reports a
// conflict as ErrDuplicateKey (a types.ErrStore), which the indexer treats as
// "already ingested". FetchByIDs silently omits unknown ids: a vector-index
// match whose metadata row is missing is dropped by the searcher, never an
// error.
//
//	db, err := storage.NewSQLiteStorage("neurosearch.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	docs, err := db.FetchByIDs(ctx, []string{"a", "b", "missing"})
package storage
