package database

import (
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PgxDialect is PostgreSQL through the pgx stdlib driver.
// SQL, placeholders and migrations are shared with PostgresDialect.
type PgxDialect struct {
	PostgresDialect
}

// NewPgxDialect creates a new pgx-backed PostgreSQL dialect
func NewPgxDialect() *PgxDialect {
	return &PgxDialect{}
}

func (d *PgxDialect) DriverName() string {
	return "pgx"
}
