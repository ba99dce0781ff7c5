package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutormula/internal/database"
)

// DialogRecord is the persisted conversation position of one chat user.
// Data holds the collected fields as a JSON object.
type DialogRecord struct {
	ExternalID int64
	Flow       string
	Node       string
	Data       string
	UpdatedAt  time.Time
}

// DialogRepository stores one DialogRecord per external identity
type DialogRepository struct {
	db database.DBTX
}

// NewDialogRepository creates a new dialog repository
func NewDialogRepository(db database.DBTX) *DialogRepository {
	return &DialogRepository{db: db}
}

// Get retrieves the record for externalID
func (r *DialogRepository) Get(ctx context.Context, externalID int64) (*DialogRecord, error) {
	var rec DialogRecord
	query := `SELECT external_id, flow, node, data, updated_at FROM dialog_states WHERE external_id = ?`
	err := r.db.QueryRowContext(ctx, query, externalID).Scan(&rec.ExternalID, &rec.Flow, &rec.Node, &rec.Data, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dialog state: %w", err)
	}
	return &rec, nil
}

// Save replaces the record for rec.ExternalID
func (r *DialogRepository) Save(ctx context.Context, rec *DialogRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now()
	}
	if rec.Data == "" {
		rec.Data = "{}"
	}
	query := r.db.GetDialect().UpsertDialogState()
	if _, err := r.db.ExecContext(ctx, query, rec.ExternalID, rec.Flow, rec.Node, rec.Data, rec.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save dialog state: %w", err)
	}
	return nil
}

// Delete removes the record for externalID; missing records are not an error
func (r *DialogRepository) Delete(ctx context.Context, externalID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dialog_states WHERE external_id = ?`, externalID); err != nil {
		return fmt.Errorf("failed to delete dialog state: %w", err)
	}
	return nil
}

// DeleteOlderThan removes records last touched before cutoff
func (r *DialogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dialog_states WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire dialog states: %w", err)
	}
	return res.RowsAffected()
}
