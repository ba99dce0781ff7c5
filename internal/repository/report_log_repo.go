package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// ReportLogRepository records daily digest attempts
type ReportLogRepository struct {
	db database.DBTX
}

// NewReportLogRepository creates a new report log repository
func NewReportLogRepository(db database.DBTX) *ReportLogRepository {
	return &ReportLogRepository{db: db}
}

// Append writes one attempt
func (r *ReportLogRepository) Append(ctx context.Context, entry *models.ParentReportLog) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = now()
	}
	query := `INSERT INTO parent_report_logs (parent_account_id, status, error_message, sent_at) VALUES (?, ?, ?, ?)`
	id, err := r.db.ExecReturningIDContext(ctx, query,
		entry.ParentAccountID, entry.Status, nullIfEmpty(entry.ErrorMessage), entry.SentAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append report log: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByParent returns a parent's attempts, newest first
func (r *ReportLogRepository) ListByParent(ctx context.Context, parentAccountID int64) ([]models.ParentReportLog, error) {
	query := `
		SELECT id, parent_account_id, status, error_message, sent_at
		FROM parent_report_logs
		WHERE parent_account_id = ?
		ORDER BY sent_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, parentAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ParentReportLog
	for rows.Next() {
		var l models.ParentReportLog
		var msg sql.NullString
		if err := rows.Scan(&l.ID, &l.ParentAccountID, &l.Status, &msg, &l.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan report log: %w", err)
		}
		l.ErrorMessage = msg.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
