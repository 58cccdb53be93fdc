package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/dealhub/dealhub/internal/config"
)

// DB holds database connections
type DB struct {
	Postgres *sqlx.DB
}

// NewDB creates new database connections using config
func NewDB(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := Open(ctx, cfg.Database.GetDatabaseURL())
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.Postgres.SetMaxOpenConns(cfg.Database.MaxConns)
	db.Postgres.SetMaxIdleConns(cfg.Database.MinConns)
	db.Postgres.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Open connects to PostgreSQL with the given DSN and verifies the
// connection. Pool sizing is left to the caller.
func Open(ctx context.Context, dsn string) (*DB, error) {
	postgres, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := postgres.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &DB{
		Postgres: postgres,
	}, nil
}

// Migrate applies the schema. Statements are idempotent so startup can run
// this unconditionally.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Postgres.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes all database connections
func (db *DB) Close() error {
	if err := db.Postgres.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", err)
	}

	return nil
}
