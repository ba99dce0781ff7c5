package models

import "time"

// Enrollment links a student profile to a tutor account
type Enrollment struct {
	ID               int64     `json:"id"`
	StudentProfileID int64     `json:"student_profile_id"`
	TutorAccountID   int64     `json:"tutor_account_id"`
	StartDate        time.Time `json:"start_date"`
	Active           bool      `json:"active"`
}

// Session is a scheduled lesson between a tutor and a student profile.
// StudentProfileID is 0 once the profile has been deleted by an admin.
type Session struct {
	ID               int64     `json:"id"`
	TutorAccountID   int64     `json:"tutor_account_id"`
	StudentProfileID int64     `json:"student_profile_id"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	DurationMinutes  int       `json:"duration_minutes"`
	Topic            string    `json:"topic"`
	CreatedAt        time.Time `json:"created_at"`
}

// SessionTimeLayout is the format used for dates in chat prompts and summaries
const SessionTimeLayout = "2006-01-02 15:04"

// AttendanceStatus is one of present, absent, late
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// Valid reports whether s is one of the three statuses
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	}
	return false
}

// Label returns the chat button text for s
func (s AttendanceStatus) Label() string {
	switch s {
	case AttendancePresent:
		return "Present ✅"
	case AttendanceAbsent:
		return "Absent ❌"
	case AttendanceLate:
		return "Late ⏰"
	}
	return string(s)
}

// AttendanceStatuses lists the statuses in menu order
var AttendanceStatuses = []AttendanceStatus{AttendancePresent, AttendanceAbsent, AttendanceLate}

// Attendance records whether a student profile attended a session
type Attendance struct {
	ID               int64            `json:"id"`
	SessionID        int64            `json:"session_id"`
	StudentProfileID int64            `json:"student_profile_id"`
	Status           AttendanceStatus `json:"status"`
	MarkedAt         time.Time        `json:"marked_at"`
}

// Report score bounds, inclusive
const (
	MinReportScore = 1
	MaxReportScore = 10
)

// Report is a tutor's written feedback for a session
type Report struct {
	ID             int64     `json:"id"`
	SessionID      int64     `json:"session_id"`
	TutorAccountID int64     `json:"tutor_account_id"`
	Content        string    `json:"content"`
	Score          int       `json:"score"`
	CreatedAt      time.Time `json:"created_at"`
}

// SessionDetail is a session joined with its participants and outcome
type SessionDetail struct {
	Session    Session         `json:"session"`
	Tutor      *Account        `json:"tutor,omitempty"`
	Student    *StudentProfile `json:"student,omitempty"`
	Attendance *Attendance     `json:"attendance,omitempty"`
	Report     *Report         `json:"report,omitempty"`
}

// Complete reports whether both attendance and a report exist
func (d *SessionDetail) Complete() bool {
	return d.Attendance != nil && d.Report != nil
}
