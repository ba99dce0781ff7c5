package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// AttendanceRepository handles database operations for attendance
type AttendanceRepository struct {
	db database.DBTX
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db database.DBTX) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = "id, session_id, student_profile_id, status, marked_at"

func scanAttendance(row rowScanner) (*models.Attendance, error) {
	var a models.Attendance
	var status string
	if err := row.Scan(&a.ID, &a.SessionID, &a.StudentProfileID, &status, &a.MarkedAt); err != nil {
		return nil, err
	}
	a.Status = models.AttendanceStatus(status)
	return &a, nil
}

// Upsert writes the status for (session, profile), overwriting an existing row
func (r *AttendanceRepository) Upsert(ctx context.Context, sessionID, studentProfileID int64, status models.AttendanceStatus, at time.Time) error {
	query := r.db.GetDialect().UpsertAttendance()
	if _, err := r.db.ExecContext(ctx, query, sessionID, studentProfileID, string(status), at.UTC()); err != nil {
		return fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return nil
}

// Get retrieves attendance for (session, profile)
func (r *AttendanceRepository) Get(ctx context.Context, sessionID, studentProfileID int64) (*models.Attendance, error) {
	query := "SELECT " + attendanceColumns + " FROM attendance WHERE session_id = ? AND student_profile_id = ?"
	a, err := scanAttendance(r.db.QueryRowContext(ctx, query, sessionID, studentProfileID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return a, nil
}

// GetForSession retrieves the first attendance row of a session
func (r *AttendanceRepository) GetForSession(ctx context.Context, sessionID int64) (*models.Attendance, error) {
	query := "SELECT " + attendanceColumns + " FROM attendance WHERE session_id = ? ORDER BY id ASC LIMIT 1"
	a, err := scanAttendance(r.db.QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session attendance: %w", err)
	}
	return a, nil
}

// CountForSession counts attendance rows of a session
func (r *AttendanceRepository) CountForSession(ctx context.Context, sessionID int64) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance WHERE session_id = ?", sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return count, nil
}

// ListByProfile returns a profile's attendance, newest first
func (r *AttendanceRepository) ListByProfile(ctx context.Context, studentProfileID int64) ([]models.Attendance, error) {
	query := "SELECT " + attendanceColumns + " FROM attendance WHERE student_profile_id = ? ORDER BY marked_at DESC, id DESC"
	return r.queryList(ctx, query, studentProfileID)
}

// ListAll returns every attendance row
func (r *AttendanceRepository) ListAll(ctx context.Context) ([]models.Attendance, error) {
	return r.queryList(ctx, "SELECT "+attendanceColumns+" FROM attendance ORDER BY id ASC")
}

func (r *AttendanceRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]models.Attendance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var out []models.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteByStudent removes every attendance row of a profile
func (r *AttendanceRepository) DeleteByStudent(ctx context.Context, studentProfileID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM attendance WHERE student_profile_id = ?", studentProfileID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete attendance: %w", err)
	}
	return res.RowsAffected()
}
