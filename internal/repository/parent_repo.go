package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// ParentRepository handles database operations for parent profiles
type ParentRepository struct {
	db database.DBTX
}

// NewParentRepository creates a new parent profile repository
func NewParentRepository(db database.DBTX) *ParentRepository {
	return &ParentRepository{db: db}
}

const parentColumns = "id, account_id, occupation, email, last_report_sent_at, created_at, updated_at"

func scanParent(row rowScanner) (*models.ParentProfile, error) {
	var p models.ParentProfile
	var email sql.NullString
	var lastSent sql.NullTime
	if err := row.Scan(&p.ID, &p.AccountID, &p.Occupation, &email, &lastSent, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Email = email.String
	p.LastReportSentAt = timePtr(lastSent)
	return &p, nil
}

// Create inserts the profile and fills in its ID and timestamps
func (r *ParentRepository) Create(ctx context.Context, p *models.ParentProfile) error {
	ts := now()
	query := `
		INSERT INTO parent_profiles (account_id, occupation, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningIDContext(ctx, query, p.AccountID, p.Occupation, nullIfEmpty(p.Email), ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create parent profile: %w", err)
	}
	p.ID = id
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

// GetByAccountID retrieves the parent profile of an account
func (r *ParentRepository) GetByAccountID(ctx context.Context, accountID int64) (*models.ParentProfile, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+parentColumns+" FROM parent_profiles WHERE account_id = ?", accountID)
	p, err := scanParent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parent profile: %w", err)
	}
	return p, nil
}

// Update writes occupation and email
func (r *ParentRepository) Update(ctx context.Context, p *models.ParentProfile) error {
	p.UpdatedAt = now()
	query := "UPDATE parent_profiles SET occupation = ?, email = ?, updated_at = ? WHERE account_id = ?"
	if _, err := r.db.ExecContext(ctx, query, p.Occupation, nullIfEmpty(p.Email), p.UpdatedAt, p.AccountID); err != nil {
		return fmt.Errorf("failed to update parent profile: %w", err)
	}
	return nil
}

// SetLastReportSent stamps the time of the last successful digest
func (r *ParentRepository) SetLastReportSent(ctx context.Context, accountID int64, at time.Time) error {
	query := "UPDATE parent_profiles SET last_report_sent_at = ? WHERE account_id = ?"
	if _, err := r.db.ExecContext(ctx, query, at.UTC(), accountID); err != nil {
		return fmt.Errorf("failed to set last report time: %w", err)
	}
	return nil
}

// ListAll returns every parent profile, oldest first
func (r *ParentRepository) ListAll(ctx context.Context) ([]models.ParentProfile, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+parentColumns+" FROM parent_profiles ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query parent profiles: %w", err)
	}
	defer rows.Close()

	var parents []models.ParentProfile
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parent profile: %w", err)
		}
		parents = append(parents, *p)
	}
	return parents, rows.Err()
}
