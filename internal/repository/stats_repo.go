package repository

import (
	"context"
	"fmt"

	"tutormula/internal/database"
	"tutormula/internal/models"
)

// StatsRepository computes the admin dashboard counters
type StatsRepository struct {
	db database.DBTX
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db database.DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// Dashboard counts rows across the entity tables
func (r *StatsRepository) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	var s models.DashboardStats
	counters := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&s.Accounts, "SELECT COUNT(*) FROM accounts", nil},
		{&s.Students, "SELECT COUNT(*) FROM student_profiles", nil},
		{&s.ManagedStudents, "SELECT COUNT(*) FROM student_profiles WHERE parent_account_id IS NOT NULL", nil},
		{&s.Tutors, "SELECT COUNT(*) FROM roles WHERE role = ?", []interface{}{"tutor"}},
		{&s.VerifiedTutors, "SELECT COUNT(*) FROM tutor_profiles WHERE verified = ?", []interface{}{true}},
		{&s.Parents, "SELECT COUNT(*) FROM roles WHERE role = ?", []interface{}{"parent"}},
		{&s.Sessions, "SELECT COUNT(*) FROM sessions", nil},
		{&s.UpcomingSessions, "SELECT COUNT(*) FROM sessions WHERE scheduled_at >= ?", []interface{}{now()}},
		{&s.Reports, "SELECT COUNT(*) FROM reports", nil},
		{&s.Attendance, "SELECT COUNT(*) FROM attendance", nil},
	}

	for _, c := range counters {
		if err := r.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}
	return &s, nil
}
