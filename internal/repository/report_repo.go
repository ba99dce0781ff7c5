package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// ReportRepository handles database operations for session reports
type ReportRepository struct {
	db database.DBTX
}

// NewReportRepository creates a new report repository
func NewReportRepository(db database.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = "id, session_id, tutor_account_id, content, score, created_at"

func scanReport(row rowScanner) (*models.Report, error) {
	var rep models.Report
	if err := row.Scan(&rep.ID, &rep.SessionID, &rep.TutorAccountID, &rep.Content, &rep.Score, &rep.CreatedAt); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Create inserts the report and fills in its ID
func (r *ReportRepository) Create(ctx context.Context, rep *models.Report) error {
	ts := now()
	query := "INSERT INTO reports (session_id, tutor_account_id, content, score, created_at) VALUES (?, ?, ?, ?, ?)"
	id, err := r.db.ExecReturningIDContext(ctx, query, rep.SessionID, rep.TutorAccountID, rep.Content, rep.Score, ts)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	rep.ID = id
	rep.CreatedAt = ts
	return nil
}

// GetBySession retrieves the report of a session
func (r *ReportRepository) GetBySession(ctx context.Context, sessionID int64) (*models.Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx, "SELECT "+reportColumns+" FROM reports WHERE session_id = ?", sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return rep, nil
}

// ListByProfile returns reports for a profile's sessions written at or after since, newest first.
// A zero since returns every report.
func (r *ReportRepository) ListByProfile(ctx context.Context, studentProfileID int64, since time.Time) ([]models.Report, error) {
	query := `
		SELECT r.id, r.session_id, r.tutor_account_id, r.content, r.score, r.created_at
		FROM reports r
		INNER JOIN sessions s ON s.id = r.session_id
		WHERE s.student_profile_id = ? AND r.created_at >= ?
		ORDER BY r.created_at DESC, r.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, studentProfileID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

// ListAll returns every report
func (r *ReportRepository) ListAll(ctx context.Context) ([]models.Report, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+reportColumns+" FROM reports ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

func collectReports(rows *sql.Rows) ([]models.Report, error) {
	var reports []models.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *rep)
	}
	return reports, rows.Err()
}
