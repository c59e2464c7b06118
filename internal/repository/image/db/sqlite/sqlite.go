// Package sqlite stores image records in an embedded SQLite database. It is
// meant for single-node deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"image-server/internal/repository/image/db"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

type ImagesRepository struct {
	db *sql.DB
}

// Open opens the database at path and applies the schema. Use ":memory:"
// for a throwaway database.
func Open(ctx context.Context, path string) (*ImagesRepository, error) {
	database, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}

	// a single connection keeps :memory: databases alive and serializes writers
	database.SetMaxOpenConns(1)

	if _, err := database.ExecContext(ctx, schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	if err := upgradeSchema(ctx, database); err != nil {
		database.Close()
		return nil, err
	}

	return &ImagesRepository{db: database}, nil
}

// upgradeSchema adds columns introduced after a database file was created.
func upgradeSchema(ctx context.Context, database *sql.DB) error {
	var count int
	err := database.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('images') WHERE name = 'version'`,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to inspect sqlite schema: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := database.ExecContext(ctx, `ALTER TABLE images ADD COLUMN version INTEGER NOT NULL DEFAULT 0`); err != nil {
		return fmt.Errorf("failed to add version column: %w", err)
	}
	return nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *ImagesRepository) NewUnitOfWorkFactory() *db.UnitOfWorkFactory {
	return db.NewUnitOfWorkFactory(r, db.DialectSQLite)
}

func (r *ImagesRepository) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, query, args...)
}

func (r *ImagesRepository) QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	return row, row.Err()
}

func (r *ImagesRepository) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, opts)
}

func (r *ImagesRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *ImagesRepository) Close() error {
	return r.db.Close()
}
