package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// TutorRepository handles database operations for tutor profiles
type TutorRepository struct {
	db database.DBTX
}

// NewTutorRepository creates a new tutor profile repository
func NewTutorRepository(db database.DBTX) *TutorRepository {
	return &TutorRepository{db: db}
}

const tutorColumns = "id, account_id, subjects, education, experience_years, verified, created_at, updated_at"

func scanTutor(row rowScanner) (*models.TutorProfile, error) {
	var p models.TutorProfile
	if err := row.Scan(&p.ID, &p.AccountID, &p.Subjects, &p.Education, &p.ExperienceYears, &p.Verified, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts the profile and fills in its ID and timestamps
func (r *TutorRepository) Create(ctx context.Context, p *models.TutorProfile) error {
	ts := now()
	query := `
		INSERT INTO tutor_profiles (account_id, subjects, education, experience_years, verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningIDContext(ctx, query, p.AccountID, p.Subjects, p.Education, p.ExperienceYears, p.Verified, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create tutor profile: %w", err)
	}
	p.ID = id
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

// GetByAccountID retrieves the tutor profile of an account
func (r *TutorRepository) GetByAccountID(ctx context.Context, accountID int64) (*models.TutorProfile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+tutorColumns+" FROM tutor_profiles WHERE account_id = ?", accountID)
	p, err := scanTutor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tutor profile: %w", err)
	}
	return p, nil
}

// Update writes subjects, education and experience
func (r *TutorRepository) Update(ctx context.Context, p *models.TutorProfile) error {
	p.UpdatedAt = now()
	query := "UPDATE tutor_profiles SET subjects = ?, education = ?, experience_years = ?, updated_at = ? WHERE account_id = ?"
	if _, err := r.db.ExecContext(ctx, query, p.Subjects, p.Education, p.ExperienceYears, p.UpdatedAt, p.AccountID); err != nil {
		return fmt.Errorf("failed to update tutor profile: %w", err)
	}
	return nil
}

// SetVerified flips the admin-controlled verified flag
func (r *TutorRepository) SetVerified(ctx context.Context, accountID int64, verified bool) error {
	query := "UPDATE tutor_profiles SET verified = ?, updated_at = ? WHERE account_id = ?"
	if _, err := r.db.ExecContext(ctx, query, verified, now(), accountID); err != nil {
		return fmt.Errorf("failed to set tutor verification: %w", err)
	}
	return nil
}

// Search lists tutor accounts with their profiles, optionally filtered by a subject substring
func (r *TutorRepository) Search(ctx context.Context, subject string) ([]models.TutorWithProfile, error) {
	query := `
		SELECT a.id, a.external_id, a.full_name, a.phone, a.created_at, a.updated_at,
		       t.id, t.subjects, t.education, t.experience_years, t.verified, t.created_at, t.updated_at
		FROM accounts a
		INNER JOIN roles r ON r.account_id = a.id AND r.role = ?
		LEFT JOIN tutor_profiles t ON t.account_id = a.id
	`
	args := []interface{}{string(models.RoleTutor)}
	if subject = strings.TrimSpace(subject); subject != "" {
		query += " WHERE LOWER(t.subjects) LIKE ?"
		args = append(args, "%"+strings.ToLower(subject)+"%")
	}
	query += " ORDER BY a.full_name ASC, a.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tutors: %w", err)
	}
	defer rows.Close()

	var tutors []models.TutorWithProfile
	for rows.Next() {
		var tw models.TutorWithProfile
		var phone sql.NullString
		var (
			profileID  sql.NullInt64
			subjects   sql.NullString
			education  sql.NullString
			experience sql.NullInt64
			verified   sql.NullBool
			createdAt  sql.NullTime
			updatedAt  sql.NullTime
		)
		err := rows.Scan(
			&tw.Account.ID, &tw.Account.ExternalID, &tw.Account.FullName, &phone, &tw.Account.CreatedAt, &tw.Account.UpdatedAt,
			&profileID, &subjects, &education, &experience, &verified, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tutor: %w", err)
		}
		tw.Account.Phone = phone.String
		if profileID.Valid {
			tw.Profile = &models.TutorProfile{
				ID:              profileID.Int64,
				AccountID:       tw.Account.ID,
				Subjects:        subjects.String,
				Education:       education.String,
				ExperienceYears: int(experience.Int64),
				Verified:        verified.Bool,
				CreatedAt:       createdAt.Time,
				UpdatedAt:       updatedAt.Time,
			}
		}
		tutors = append(tutors, tw)
	}
	return tutors, rows.Err()
}

// ListAll returns every tutor profile by ID
func (r *TutorRepository) ListAll(ctx context.Context) ([]models.TutorProfile, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+tutorColumns+" FROM tutor_profiles ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query tutor profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.TutorProfile
	for rows.Next() {
		p, err := scanTutor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tutor profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}
