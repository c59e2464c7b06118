package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"image-server/internal/config"
	"image-server/internal/repository/image/db"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ImagesRepository exposes a dbpg handle as a db.Conn. Reads go through the
// retrying helpers; transactions are opened on the master connection.
type ImagesRepository struct {
	db      *dbpg.DB
	retries retry.Strategy
}

func NewImagesRepository(database *dbpg.DB, retries retry.Strategy) *ImagesRepository {
	return &ImagesRepository{
		db:      database,
		retries: retries,
	}
}

// Open connects to Postgres using the pool settings from cfg.
func Open(cfg *config.Config) (*dbpg.DB, error) {
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}

	database, err := dbpg.New(cfg.DBDSN(), []string{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return database, nil
}

// NewUnitOfWorkFactory binds a factory to the repository.
func (r *ImagesRepository) NewUnitOfWorkFactory() *db.UnitOfWorkFactory {
	return db.NewUnitOfWorkFactory(r, db.DialectPostgres)
}

func (r *ImagesRepository) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryWithRetry(ctx, r.retries, query, args...)
}

func (r *ImagesRepository) QueryRowContext(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	return r.db.QueryRowWithRetry(ctx, r.retries, query, args...)
}

func (r *ImagesRepository) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	var tx *sql.Tx
	err := retry.Do(func() error {
		var err error
		tx, err = r.db.Master.BeginTx(ctx, opts)
		return err
	}, r.retries)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

func (r *ImagesRepository) Ping(ctx context.Context) error {
	return r.db.Master.PingContext(ctx)
}

// Migrate applies the embedded schema migrations.
func (r *ImagesRepository) Migrate(logger *zlog.Zerolog) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(r.db.Master, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info().
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("Migrations applied")

	return nil
}

func (r *ImagesRepository) Close() error {
	return r.db.Master.Close()
}
