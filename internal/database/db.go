package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tutormula/internal/config"
)

// DB wraps the database connection with dialect support
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Initialize opens a SQLite database at dbPath, applies all migrations and seeds default settings
func Initialize(dbPath string) (*DB, error) {
	db, err := open(NewSQLiteDialect(), DialectConfig{Path: dbPath})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if _, err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if _, err := db.SeedDefaultSettings(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// DialectFor maps a configured database type to its dialect
func DialectFor(databaseType string) (Dialect, error) {
	switch strings.ToLower(databaseType) {
	case "postgres", "postgresql":
		return NewPostgresDialect(), nil
	case "pgx":
		return NewPgxDialect(), nil
	case "mysql":
		return NewMySQLDialect(), nil
	case "sqlite", "sqlite3", "":
		return NewSQLiteDialect(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", databaseType)
	}
}

// InitializeWithConfig creates and configures the database connection based on config
func InitializeWithConfig(cfg *config.Config) (*DB, error) {
	dialect, err := DialectFor(cfg.DatabaseType)
	if err != nil {
		return nil, err
	}

	dialectConfig := DialectConfig{URL: cfg.DatabaseURL}
	if dialect.MigrationsSubdir() == "sqlite" {
		dialectConfig = DialectConfig{Path: cfg.DatabasePath}
	}

	return open(dialect, dialectConfig)
}

func open(dialect Dialect, dialectConfig DialectConfig) (*DB, error) {
	db, err := sql.Open(dialect.DriverName(), dialect.DSN(dialectConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := dialect.ConfigureConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// GetDialect returns the database dialect
func (db *DB) GetDialect() Dialect {
	return db.Dialect
}

// ExecContext executes a statement with automatic placeholder rewriting
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// QueryContext executes a query with automatic placeholder rewriting
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// QueryRowContext executes a single-row query with automatic placeholder rewriting
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// Exec executes a query that doesn't return rows with automatic placeholder rewriting
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.ExecContext(context.Background(), query, args...)
}

// QueryRow executes a query that returns a single row with automatic placeholder rewriting
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.QueryRowContext(context.Background(), query, args...)
}

// ExecReturningIDContext executes an INSERT and returns the new row's ID.
// PostgreSQL has no LastInsertId, so RETURNING id is appended there.
func (db *DB) ExecReturningIDContext(ctx context.Context, query string, args ...interface{}) (int64, error) {
	return execReturningID(ctx, db.DB, db.Dialect, query, args...)
}

type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func execReturningID(ctx context.Context, q execQueryer, dialect Dialect, query string, args ...interface{}) (int64, error) {
	rewrittenQuery := dialect.RewriteQuery(query)

	if dialect.SupportsLastInsertId() {
		result, err := q.ExecContext(ctx, rewrittenQuery, args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	rewrittenQuery = strings.TrimSuffix(strings.TrimSpace(rewrittenQuery), ";")
	rewrittenQuery += " RETURNING id"

	var id int64
	if err := q.QueryRowContext(ctx, rewrittenQuery, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
