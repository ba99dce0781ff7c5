package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// MaxAuditLogs caps a single audit listing
const MaxAuditLogs = 500

// AuditRepository appends and lists audit log entries
type AuditRepository struct {
	db database.DBTX
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db database.DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one entry and fills in its ID and timestamp
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	ts := now()
	query := `
		INSERT INTO audit_logs (admin_account_id, action, entity, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningIDContext(ctx, query,
		nullInt64(entry.AdminAccountID), entry.Action, entry.Entity, entry.EntityID, entry.Details, ts)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = ts
	return nil
}

// List returns the newest entries first. limit is clamped to 1..MaxAuditLogs.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > MaxAuditLogs {
		limit = MaxAuditLogs
	}
	query := fmt.Sprintf(`
		SELECT id, admin_account_id, action, entity, entity_id, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT %d
	`, limit)
	return r.queryList(ctx, query)
}

// ListAll returns every entry by ID
func (r *AuditRepository) ListAll(ctx context.Context) ([]models.AuditLog, error) {
	return r.queryList(ctx, "SELECT id, admin_account_id, action, entity, entity_id, details, created_at FROM audit_logs ORDER BY id ASC")
}

func (r *AuditRepository) queryList(ctx context.Context, query string) ([]models.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		var admin sql.NullInt64
		if err := rows.Scan(&l.ID, &admin, &l.Action, &l.Entity, &l.EntityID, &l.Details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		l.AdminAccountID = int64Ptr(admin)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
