package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dshills/neurosearch/pkg/types"
)

// pgUniqueViolation is the SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    source_url  TEXT NOT NULL UNIQUE,
    file_type   TEXT NOT NULL CHECK (file_type IN ('pdf', 'docx', 'txt')),
    content     TEXT NOT NULL DEFAULT '',
    ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStorage implements Store on PostgreSQL through a pgx pool
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to dsn and ensures the documents table exists
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	s := &PostgresStorage{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStorageFromPool wraps an existing pool, e.g. one shared with the
// pgvector index. The schema is not touched.
func NewPostgresStorageFromPool(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

// EnsureSchema creates the documents table if missing
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStorage) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE source_url = $1)`, sourceURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source url: %w", err)
	}
	return exists, nil
}

func (s *PostgresStorage) Insert(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Title, doc.SourceURL, string(doc.FileType), doc.Content, doc.IngestedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, doc.SourceURL)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *PostgresStorage) FetchByIDs(ctx context.Context, ids []string) ([]*types.Document, error) {
	ids = dedupeIDs(ids)
	docs := make([]*types.Document, 0, len(ids))

	for _, batch := range batches(ids, fetchBatchSize) {
		rows, err := s.pool.Query(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id = ANY($1)`, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch documents: %w", err)
		}
		fetched, err := collectPgDocuments(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fetched...)
	}
	return docs, nil
}

func (s *PostgresStorage) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanPgDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func scanPgDocument(row pgx.Row) (*types.Document, error) {
	var doc types.Document
	var fileType string
	if err := row.Scan(&doc.ID, &doc.Title, &doc.SourceURL, &fileType, &doc.Content, &doc.IngestedAt); err != nil {
		return nil, err
	}
	doc.FileType = types.FileType(fileType)
	return &doc, nil
}

func collectPgDocuments(rows pgx.Rows) ([]*types.Document, error) {
	defer rows.Close()

	var docs []*types.Document
	for rows.Next() {
		doc, err := scanPgDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
