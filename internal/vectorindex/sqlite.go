package vectorindex

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dshills/neurosearch/internal/storage"
)

// vectorMigrations creates the local vector table
var vectorMigrations = storage.MigrationSet{
	Table: "vector_schema_version",
	Migrations: []storage.Migration{
		{
			Version: "1.0.0",
			Up: `
CREATE TABLE IF NOT EXISTS vectors (
    id         TEXT PRIMARY KEY,
    vector     BLOB NOT NULL,
    dimension  INTEGER NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    source_url TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`,
			Down: `DROP TABLE IF EXISTS vectors;`,
		},
	},
}

// SQLiteIndex is an exact (brute-force) cosine index stored in SQLite. It
// suits single-node deployments and tests; query cost is linear in the
// number of vectors.
type SQLiteIndex struct {
	db        *sql.DB
	dimension int
}

// NewSQLiteIndex opens or creates the index at path. dimension 0 accepts any
// size but then mixed-size vectors are skipped at query time.
func NewSQLiteIndex(path string, dimension int) (*SQLiteIndex, error) {
	db, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	if err := storage.ApplyMigrations(context.Background(), db, vectorMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply vector migrations: %w", err)
	}
	return &SQLiteIndex{db: db, dimension: dimension}, nil
}

func (s *SQLiteIndex) Upsert(ctx context.Context, entry Entry) error {
	if err := entry.Validate(s.dimension); err != nil {
		return err
	}

	query := `
		INSERT INTO vectors (id, vector, dimension, title, source_url, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			title = excluded.title,
			source_url = excluded.source_url,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, serializeVector(entry.Vector), len(entry.Vector), entry.Title, entry.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidEntry)
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimension)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vector, title, source_url FROM vectors WHERE dimension = ?`, len(vector))
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]Match, 0, 256)
	for rows.Next() {
		var m Match
		var blob []byte
		if err := rows.Scan(&m.ID, &blob, &m.Title, &m.SourceURL); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		m.Score = cosineSimilarity(vector, deserializeVector(blob))
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortMatches(matches)
	return topK(matches, k), nil
}

// Count returns the number of stored vectors
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
