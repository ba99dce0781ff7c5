package models

import "time"

// AuditLog is an append-only record of an admin mutation.
// AdminAccountID is nil when the actor is not a registered account.
type AuditLog struct {
	ID             int64     `json:"id"`
	AdminAccountID *int64    `json:"admin_account_id,omitempty"`
	Action         string    `json:"action"`
	Entity         string    `json:"entity"`
	EntityID       int64     `json:"entity_id"`
	Details        string    `json:"details,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// AppSetting is a mutable key/value row
type AppSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	ReportLogSuccess = "success"
	ReportLogFailed  = "failed"
)

// ParentReportLog records one daily digest attempt for a parent
type ParentReportLog struct {
	ID              int64     `json:"id"`
	ParentAccountID int64     `json:"parent_account_id"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	SentAt          time.Time `json:"sent_at"`
}

// DashboardStats are the admin dashboard counters
type DashboardStats struct {
	Accounts         int `json:"accounts"`
	Students         int `json:"students"`
	ManagedStudents  int `json:"managed_students"`
	Tutors           int `json:"tutors"`
	VerifiedTutors   int `json:"verified_tutors"`
	Parents          int `json:"parents"`
	Sessions         int `json:"sessions"`
	UpcomingSessions int `json:"upcoming_sessions"`
	Reports          int `json:"reports"`
	Attendance       int `json:"attendance"`
}
