package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// BoolValue returns the SQL representation of a boolean value
	BoolValue(b bool) string

	// UpsertSetting takes (setting_key, setting_value, updated_at)
	UpsertSetting() string

	// UpsertAttendance takes (session_id, student_profile_id, status, marked_at)
	UpsertAttendance() string

	// UpsertDialogState takes (external_id, flow, node, data, updated_at)
	UpsertDialogState() string

	// InsertRoleIgnore takes (account_id, role, created_at) and is a no-op on an existing pair
	InsertRoleIgnore() string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// ON CONFLICT statements shared by SQLite and PostgreSQL
const (
	onConflictUpsertSetting = `INSERT INTO app_settings (setting_key, setting_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = excluded.setting_value, updated_at = excluded.updated_at`

	onConflictUpsertAttendance = `INSERT INTO attendance (session_id, student_profile_id, status, marked_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, student_profile_id) DO UPDATE SET status = excluded.status, marked_at = excluded.marked_at`

	onConflictUpsertDialogState = `INSERT INTO dialog_states (external_id, flow, node, data, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET flow = excluded.flow, node = excluded.node, data = excluded.data, updated_at = excluded.updated_at`

	onConflictInsertRole = `INSERT INTO roles (account_id, role, created_at) VALUES (?, ?, ?)
		ON CONFLICT (account_id, role) DO NOTHING`
)
