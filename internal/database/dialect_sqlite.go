package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDialect implements Dialect for SQLite
type SQLiteDialect struct{}

// NewSQLiteDialect creates a new SQLite dialect
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) DriverName() string {
	return "sqlite3"
}

// DSN enables foreign keys, WAL and a busy timeout on every pooled connection
func (d *SQLiteDialect) DSN(config DialectConfig) string {
	if strings.Contains(config.Path, "?") {
		return config.Path
	}
	return config.Path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func (d *SQLiteDialect) RewriteQuery(query string) string {
	// SQLite uses ? placeholders, no rewrite needed
	return query
}

func (d *SQLiteDialect) SupportsLastInsertId() bool {
	return true
}

func (d *SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (d *SQLiteDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *SQLiteDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT UNIQUE NOT NULL,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
}

func (d *SQLiteDialect) BoolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *SQLiteDialect) UpsertSetting() string {
	return onConflictUpsertSetting
}

func (d *SQLiteDialect) UpsertAttendance() string {
	return onConflictUpsertAttendance
}

func (d *SQLiteDialect) UpsertDialogState() string {
	return onConflictUpsertDialogState
}

func (d *SQLiteDialect) InsertRoleIgnore() string {
	return onConflictInsertRole
}
