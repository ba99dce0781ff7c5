package database

import (
	"context"
	"fmt"
	"time"
)

// DefaultSetting is an app_settings row created on first start
type DefaultSetting struct {
	Key         string
	Value       string
	Description string
}

// DefaultSettings are inserted only when their key is absent
var DefaultSettings = []DefaultSetting{
	{Key: "daily_report_time", Value: "08:00", Description: "Time of day (HH:MM, 24h) for the parent report digest"},
}

// SeedDefaultSettings inserts any missing default settings and returns how many were added
func (db *DB) SeedDefaultSettings(ctx context.Context) (int, error) {
	added := 0
	for _, s := range DefaultSettings {
		var count int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM app_settings WHERE setting_key = ?", s.Key).Scan(&count)
		if err != nil {
			return added, fmt.Errorf("failed to check setting %s: %w", s.Key, err)
		}
		if count > 0 {
			continue
		}

		_, err = db.ExecContext(ctx,
			"INSERT INTO app_settings (setting_key, setting_value, description, updated_at) VALUES (?, ?, ?, ?)",
			s.Key, s.Value, s.Description, time.Now().UTC())
		if err != nil {
			return added, fmt.Errorf("failed to seed setting %s: %w", s.Key, err)
		}
		added++
	}
	return added, nil
}
