package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLDialect implements Dialect for MySQL
type MySQLDialect struct{}

// NewMySQLDialect creates a new MySQL dialect
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// DSN forces parseTime so DATETIME columns scan into time.Time
func (d *MySQLDialect) DSN(config DialectConfig) string {
	dsn := config.URL
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true&loc=UTC"
	}
	return dsn + "?parseTime=true&loc=UTC"
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	// MySQL uses ? placeholders like SQLite, no rewrite needed
	return query
}

func (d *MySQLDialect) SupportsLastInsertId() bool {
	return true
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS = 1;"); err != nil {
		return err
	}

	return nil
}

func (d *MySQLDialect) MigrationsSubdir() string {
	return "mysql"
}

func (d *MySQLDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		);
	`
}

func (d *MySQLDialect) BoolValue(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (d *MySQLDialect) UpsertSetting() string {
	return "INSERT INTO app_settings (setting_key, setting_value, updated_at) VALUES (?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value), updated_at = VALUES(updated_at)"
}

func (d *MySQLDialect) UpsertAttendance() string {
	return "INSERT INTO attendance (session_id, student_profile_id, status, marked_at) VALUES (?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE status = VALUES(status), marked_at = VALUES(marked_at)"
}

func (d *MySQLDialect) UpsertDialogState() string {
	return "INSERT INTO dialog_states (external_id, flow, node, data, updated_at) VALUES (?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE flow = VALUES(flow), node = VALUES(node), data = VALUES(data), updated_at = VALUES(updated_at)"
}

func (d *MySQLDialect) InsertRoleIgnore() string {
	return "INSERT IGNORE INTO roles (account_id, role, created_at) VALUES (?, ?, ?)"
}
