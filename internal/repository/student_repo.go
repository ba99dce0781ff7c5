package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// StudentRepository handles database operations for student profiles
type StudentRepository struct {
	db database.DBTX
}

// NewStudentRepository creates a new student profile repository
func NewStudentRepository(db database.DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = "id, account_id, parent_account_id, full_name, grade, school, age, created_at, updated_at"

func scanStudent(row rowScanner) (*models.StudentProfile, error) {
	var p models.StudentProfile
	var owner, parent sql.NullInt64
	if err := row.Scan(&p.ID, &owner, &parent, &p.FullName, &p.Grade, &p.School, &p.Age, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.AccountID = int64Ptr(owner)
	p.ParentAccountID = int64Ptr(parent)
	return &p, nil
}

func (r *StudentRepository) queryList(ctx context.Context, query string, args ...interface{}) ([]models.StudentProfile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query student profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.StudentProfile
	for rows.Next() {
		p, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Create inserts the profile and fills in its ID and timestamps
func (r *StudentRepository) Create(ctx context.Context, p *models.StudentProfile) error {
	ts := now()
	query := `
		INSERT INTO student_profiles (account_id, parent_account_id, full_name, grade, school, age, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningIDContext(ctx, query,
		nullInt64(p.AccountID), nullInt64(p.ParentAccountID), p.FullName, p.Grade, p.School, p.Age, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create student profile: %w", err)
	}
	p.ID = id
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

// GetByID retrieves a student profile by ID
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.StudentProfile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM student_profiles WHERE id = ?", id)
	p, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student profile: %w", err)
	}
	return p, nil
}

// GetByAccountID retrieves the profile owned by an account
func (r *StudentRepository) GetByAccountID(ctx context.Context, accountID int64) (*models.StudentProfile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM student_profiles WHERE account_id = ?", accountID)
	p, err := scanStudent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student profile by account: %w", err)
	}
	return p, nil
}

// ListByParent returns the profiles managed by a parent in creation order
func (r *StudentRepository) ListByParent(ctx context.Context, parentAccountID int64) ([]models.StudentProfile, error) {
	query := "SELECT " + studentColumns + " FROM student_profiles WHERE parent_account_id = ? ORDER BY created_at ASC, id ASC"
	return r.queryList(ctx, query, parentAccountID)
}

// FindByName matches full names case-insensitively and exactly
func (r *StudentRepository) FindByName(ctx context.Context, fullName string) ([]models.StudentProfile, error) {
	query := "SELECT " + studentColumns + " FROM student_profiles WHERE LOWER(full_name) = LOWER(?) ORDER BY created_at ASC, id ASC"
	return r.queryList(ctx, query, fullName)
}

// ListAll returns every profile, oldest first
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.StudentProfile, error) {
	return r.queryList(ctx, "SELECT "+studentColumns+" FROM student_profiles ORDER BY id ASC")
}

// Update writes every mutable field of p
func (r *StudentRepository) Update(ctx context.Context, p *models.StudentProfile) error {
	if !p.Valid() {
		return fmt.Errorf("student profile %d has neither owner nor managing parent", p.ID)
	}
	p.UpdatedAt = now()
	query := `
		UPDATE student_profiles
		SET account_id = ?, parent_account_id = ?, full_name = ?, grade = ?, school = ?, age = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		nullInt64(p.AccountID), nullInt64(p.ParentAccountID), p.FullName, p.Grade, p.School, p.Age, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update student profile: %w", err)
	}
	return nil
}

// SetParent sets the managing parent without touching the owner
func (r *StudentRepository) SetParent(ctx context.Context, id, parentAccountID int64) error {
	query := "UPDATE student_profiles SET parent_account_id = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, parentAccountID, now(), id); err != nil {
		return fmt.Errorf("failed to set managing parent: %w", err)
	}
	return nil
}

// Delete removes the profile row
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM student_profiles WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete student profile: %w", err)
	}
	return nil
}
