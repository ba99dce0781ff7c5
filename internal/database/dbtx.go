package database

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX defines the database operations needed by repositories.
// It is satisfied by both *DB and *Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecReturningIDContext(ctx context.Context, query string, args ...interface{}) (int64, error)
	GetDialect() Dialect
}

// Tx wraps sql.Tx with dialect-aware methods
type Tx struct {
	*sql.Tx
	dialect Dialect
}

// BeginTx starts a new transaction
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, dialect: db.Dialect}, nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling back otherwise
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecContext executes a statement with automatic placeholder rewriting
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return tx.Tx.ExecContext(ctx, tx.dialect.RewriteQuery(query), args...)
}

// QueryContext executes a query with automatic placeholder rewriting
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return tx.Tx.QueryContext(ctx, tx.dialect.RewriteQuery(query), args...)
}

// QueryRowContext executes a single-row query with automatic placeholder rewriting
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return tx.Tx.QueryRowContext(ctx, tx.dialect.RewriteQuery(query), args...)
}

// ExecReturningIDContext executes an INSERT and returns the new row's ID
func (tx *Tx) ExecReturningIDContext(ctx context.Context, query string, args ...interface{}) (int64, error) {
	return execReturningID(ctx, tx.Tx, tx.dialect, query, args...)
}

// GetDialect returns the transaction's dialect
func (tx *Tx) GetDialect() Dialect {
	return tx.dialect
}
