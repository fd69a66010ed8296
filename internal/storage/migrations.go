package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// MigrationSet is an ordered list of migrations tracked in its own version table
type MigrationSet struct {
	Table      string
	Migrations []Migration
}

// DocumentMigrations creates and evolves the documents table
var DocumentMigrations = MigrationSet{
	Table: "schema_version",
	Migrations: []Migration{
		{
			Version: "1.0.0",
			Up:      documentsV1Up,
			Down:    documentsV1Down,
		},
	},
}

const documentsV1Up = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    source_url  TEXT NOT NULL UNIQUE,
    file_type   TEXT NOT NULL CHECK (file_type IN ('pdf', 'docx', 'txt')),
    content     TEXT NOT NULL DEFAULT '',
    ingested_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_ingested_at ON documents(ingested_at);
`

const documentsV1Down = `
DROP INDEX IF EXISTS idx_documents_ingested_at;
DROP TABLE IF EXISTS documents;
`

// CurrentVersion returns the highest applied version, or 0.0.0 when none
func CurrentVersion(ctx context.Context, db *sql.DB, set MigrationSet) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", set.Table).Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check %s table: %w", set.Table, err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM "+set.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", set.Table, err)
	}
	defer func() { _ = rows.Close() }()

	// applied_at has one-second resolution, so order by semver instead
	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		parsed, err := semver.NewVersion(v)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", v, err)
		}
		if parsed.GreaterThan(current) {
			current = parsed
		}
	}
	return current, rows.Err()
}

// ApplyMigrations runs every migration in set newer than the recorded version
func ApplyMigrations(ctx context.Context, db *sql.DB, set MigrationSet) error {
	currentVersion, err := CurrentVersion(ctx, db, set)
	if err != nil {
		return err
	}

	createTable := `CREATE TABLE IF NOT EXISTS ` + set.Table + ` (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create %s: %w", set.Table, err)
	}

	for _, migration := range set.Migrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		_, err = db.ExecContext(ctx, "INSERT INTO "+set.Table+" (version) VALUES (?)", migration.Version)
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration in set
func RollbackMigration(ctx context.Context, db *sql.DB, set MigrationSet) error {
	current, err := CurrentVersion(ctx, db, set)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range set.Migrations {
		v, err := semver.NewVersion(set.Migrations[i].Version)
		if err == nil && v.Equal(current) {
			migration = &set.Migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	_, err = db.ExecContext(ctx, "DELETE FROM "+set.Table+" WHERE version = ?", migration.Version)
	if err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}
