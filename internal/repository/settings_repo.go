package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// Known setting keys
const (
	SettingDailyReportTime    = "daily_report_time"
	SettingDailyReportLastRun = "daily_report_last_run"
)

type SettingsRepository struct {
	db database.DBTX
}

func NewSettingsRepository(db database.DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves a setting row by key
func (r *SettingsRepository) Get(ctx context.Context, key string) (*models.AppSetting, error) {
	var s models.AppSetting
	query := `SELECT setting_key, setting_value, description, updated_at FROM app_settings WHERE setting_key = ?`
	err := r.db.QueryRowContext(ctx, query, key).Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return &s, nil
}

// GetValue returns the value for key, or def when the key is unset
func (r *SettingsRepository) GetValue(ctx context.Context, key, def string) (string, error) {
	s, err := r.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if s == nil {
		return def, nil
	}
	return s.Value, nil
}

// Set updates or inserts a setting
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := r.db.GetDialect().UpsertSetting()
	if _, err := r.db.ExecContext(ctx, query, key, value, now()); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}

// List returns every setting ordered by key
func (r *SettingsRepository) List(ctx context.Context) ([]models.AppSetting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT setting_key, setting_value, description, updated_at FROM app_settings ORDER BY setting_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var settings []models.AppSetting
	for rows.Next() {
		var s models.AppSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
