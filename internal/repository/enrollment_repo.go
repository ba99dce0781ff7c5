package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// EnrollmentRepository handles database operations for enrollments
type EnrollmentRepository struct {
	db database.DBTX
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db database.DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = "id, student_profile_id, tutor_account_id, start_date, active"

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := row.Scan(&e.ID, &e.StudentProfileID, &e.TutorAccountID, &e.StartDate, &e.Active); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]models.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []models.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

// Create inserts an active enrollment starting now
func (r *EnrollmentRepository) Create(ctx context.Context, studentProfileID, tutorAccountID int64) (*models.Enrollment, error) {
	ts := now()
	query := "INSERT INTO enrollments (student_profile_id, tutor_account_id, start_date, active) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningIDContext(ctx, query, studentProfileID, tutorAccountID, ts, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	return &models.Enrollment{
		ID:               id,
		StudentProfileID: studentProfileID,
		TutorAccountID:   tutorAccountID,
		StartDate:        ts,
		Active:           true,
	}, nil
}

// FindActive returns the oldest active enrollment for the pair
func (r *EnrollmentRepository) FindActive(ctx context.Context, studentProfileID, tutorAccountID int64) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + ` FROM enrollments
		WHERE student_profile_id = ? AND tutor_account_id = ? AND active = ?
		ORDER BY start_date ASC, id ASC LIMIT 1`
	e, err := scanEnrollment(r.db.QueryRowContext(ctx, query, studentProfileID, tutorAccountID, true))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment: %w", err)
	}
	return e, nil
}

// ListActiveByStudent returns a profile's active enrollments by start date
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentProfileID int64) ([]models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE student_profile_id = ? AND active = ? ORDER BY start_date ASC, id ASC"
	return r.queryList(ctx, query, studentProfileID, true)
}

// ListActiveByTutor returns a tutor's active enrollments by start date
func (r *EnrollmentRepository) ListActiveByTutor(ctx context.Context, tutorAccountID int64) ([]models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE tutor_account_id = ? AND active = ? ORDER BY start_date ASC, id ASC"
	return r.queryList(ctx, query, tutorAccountID, true)
}

// ListAll returns every enrollment, active or not
func (r *EnrollmentRepository) ListAll(ctx context.Context) ([]models.Enrollment, error) {
	return r.queryList(ctx, "SELECT "+enrollmentColumns+" FROM enrollments ORDER BY id ASC")
}

// DeleteByStudent removes every enrollment of a profile
func (r *EnrollmentRepository) DeleteByStudent(ctx context.Context, studentProfileID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM enrollments WHERE student_profile_id = ?", studentProfileID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete enrollments: %w", err)
	}
	return res.RowsAffected()
}
