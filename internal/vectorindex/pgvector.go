package vectorindex

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVector stores embeddings in Postgres with the pgvector extension and
// ranks by cosine distance.
type PGVector struct {
	pool      *pgxpool.Pool
	dimension int
	ownsPool  bool
}

// NewPGVector connects to dsn and creates the document_vectors table
func NewPGVector(ctx context.Context, dsn string, dimension int) (*PGVector, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	idx, err := NewPGVectorFromPool(ctx, pool, dimension)
	if err != nil {
		pool.Close()
		return nil, err
	}
	idx.ownsPool = true
	return idx, nil
}

// NewPGVectorFromPool uses an existing pool, e.g. the metadata store's
func NewPGVectorFromPool(ctx context.Context, pool *pgxpool.Pool, dimension int) (*PGVector, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("pgvector: dimension must be positive, got %d", dimension)
	}
	p := &PGVector{pool: pool, dimension: dimension}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PGVector) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_vectors (
    id         TEXT PRIMARY KEY,
    embedding  vector(%d) NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    source_url TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, p.dimension),
	}
	for _, stmt := range statements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector schema: %w", err)
		}
	}
	return nil
}

func (p *PGVector) Upsert(ctx context.Context, entry Entry) error {
	if err := entry.Validate(p.dimension); err != nil {
		return err
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO document_vectors (id, embedding, title, source_url, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			title = EXCLUDED.title,
			source_url = EXCLUDED.source_url,
			updated_at = now()`,
		entry.ID, pgvector.NewVector(entry.Vector), entry.Title, entry.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

func (p *PGVector) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != p.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), p.dimension)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, title, source_url, 1 - (embedding <=> $1) AS score
		FROM document_vectors
		ORDER BY embedding <=> $1, id
		LIMIT $2`,
		pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Title, &m.SourceURL, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *PGVector) Close() error {
	if p.ownsPool {
		p.pool.Close()
	}
	return nil
}
