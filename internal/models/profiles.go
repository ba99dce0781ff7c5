package models

import "time"

// StudentProfile is the unit sessions and enrollments attach to.
// AccountID is set when the student registered themselves, ParentAccountID
// when a parent created or linked the profile. At least one is always set.
type StudentProfile struct {
	ID              int64     `json:"id"`
	AccountID       *int64    `json:"account_id,omitempty"`
	ParentAccountID *int64    `json:"parent_account_id,omitempty"`
	FullName        string    `json:"full_name"`
	Grade           string    `json:"grade"`
	School          string    `json:"school"`
	Age             int       `json:"age"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Valid reports whether the profile has an owner, a managing parent, or both
func (p *StudentProfile) Valid() bool {
	return p.AccountID != nil || p.ParentAccountID != nil
}

// IsManaged reports whether a parent manages this profile
func (p *StudentProfile) IsManaged() bool {
	return p.ParentAccountID != nil
}

// ManagedBy reports whether parentAccountID manages this profile
func (p *StudentProfile) ManagedBy(parentAccountID int64) bool {
	return p.ParentAccountID != nil && *p.ParentAccountID == parentAccountID
}

// TutorProfile holds a tutor's public details
type TutorProfile struct {
	ID              int64     `json:"id"`
	AccountID       int64     `json:"account_id"`
	Subjects        string    `json:"subjects"`
	Education       string    `json:"education"`
	ExperienceYears int       `json:"experience_years"`
	Verified        bool      `json:"verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VerificationLabel is the status line shown in chat
func (p *TutorProfile) VerificationLabel() string {
	if p.Verified {
		return "✅ Verified"
	}
	return "⏳ Pending Verification"
}

// TutorWithProfile pairs a tutor account with its profile, which may be missing
type TutorWithProfile struct {
	Account Account       `json:"account"`
	Profile *TutorProfile `json:"profile,omitempty"`
}

// ParentProfile holds a parent's details and report bookkeeping
type ParentProfile struct {
	ID               int64      `json:"id"`
	AccountID        int64      `json:"account_id"`
	Occupation       string     `json:"occupation"`
	Email            string     `json:"email,omitempty"`
	LastReportSentAt *time.Time `json:"last_report_sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
