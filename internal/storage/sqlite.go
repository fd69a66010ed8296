package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/neurosearch/pkg/types"
)

// SQLiteStorage implements Store using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL and a single writer connection
func OpenSQLite(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db, DocumentMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

const documentColumns = `id, title, source_url, file_type, content, ingested_at`

func (s *SQLiteStorage) ExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE source_url = ?)`, sourceURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source url: %w", err)
	}
	return exists == 1, nil
}

func (s *SQLiteStorage) Insert(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}

	query := `INSERT INTO documents (` + documentColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.SourceURL, string(doc.FileType), doc.Content, doc.IngestedAt.UTC())
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, doc.SourceURL)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) FetchByIDs(ctx context.Context, ids []string) ([]*types.Document, error) {
	ids = dedupeIDs(ids)
	docs := make([]*types.Document, 0, len(ids))

	for _, batch := range batches(ids, fetchBatchSize) {
		placeholders := make([]string, len(batch))
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			placeholders[i] = "?"
			args[i] = id
		}

		query := `SELECT ` + documentColumns + ` FROM documents WHERE id IN (` + strings.Join(placeholders, ",") + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch documents: %w", err)
		}
		fetched, err := scanDocuments(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fetched...)
	}
	return docs, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*types.Document, error) {
	var doc types.Document
	var fileType string
	if err := row.Scan(&doc.ID, &doc.Title, &doc.SourceURL, &fileType, &doc.Content, &doc.IngestedAt); err != nil {
		return nil, err
	}
	doc.FileType = types.FileType(fileType)
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*types.Document, error) {
	defer func() { _ = rows.Close() }()

	var docs []*types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// isSQLiteUniqueViolation matches the constraint error text shared by the
// mattn and modernc drivers
func isSQLiteUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
