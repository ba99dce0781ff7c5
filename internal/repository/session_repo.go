package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// SessionRepository handles database operations for sessions
type SessionRepository struct {
	db database.DBTX
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

// SessionFilter narrows a session listing. Zero values are ignored.
type SessionFilter struct {
	TutorAccountID   int64
	StudentProfileID int64
	From             *time.Time
	Until            *time.Time
	Descending       bool
	Limit            int
	// Unreported keeps only sessions without a report
	Unreported       bool
}

const sessionColumns = "id, tutor_account_id, student_profile_id, scheduled_at, duration_minutes, topic, created_at"

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var profile sql.NullInt64
	if err := row.Scan(&s.ID, &s.TutorAccountID, &profile, &s.ScheduledAt, &s.DurationMinutes, &s.Topic, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.StudentProfileID = profile.Int64
	s.ScheduledAt = s.ScheduledAt.UTC()
	return &s, nil
}

// Create inserts the session and fills in its ID
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	ts := now()
	query := `
		INSERT INTO sessions (tutor_account_id, student_profile_id, scheduled_at, duration_minutes, topic, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningIDContext(ctx, query,
		s.TutorAccountID, s.StudentProfileID, s.ScheduledAt.UTC(), s.DurationMinutes, s.Topic, ts)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.ID = id
	s.CreatedAt = ts
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// List returns sessions matching f ordered by scheduled time
func (r *SessionRepository) List(ctx context.Context, f SessionFilter) ([]models.Session, error) {
	var where []string
	var args []interface{}

	if f.TutorAccountID != 0 {
		where = append(where, "tutor_account_id = ?")
		args = append(args, f.TutorAccountID)
	}
	if f.StudentProfileID != 0 {
		where = append(where, "student_profile_id = ?")
		args = append(args, f.StudentProfileID)
	}
	if f.From != nil {
		where = append(where, "scheduled_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.Until != nil {
		where = append(where, "scheduled_at < ?")
		args = append(args, f.Until.UTC())
	}
	if f.Unreported {
		where = append(where, "NOT EXISTS (SELECT 1 FROM reports r WHERE r.session_id = sessions.id)")
	}

	query := "SELECT " + sessionColumns + " FROM sessions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Descending {
		query += " ORDER BY scheduled_at DESC, id DESC"
	} else {
		query += " ORDER BY scheduled_at ASC, id ASC"
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
