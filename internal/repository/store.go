package repository

import (
	"database/sql"
	"time"

	"tutormula/internal/database"
)

// Store groups every repository over one connection or transaction
type Store struct {
	Accounts    *AccountRepository
	Students    *StudentRepository
	Tutors      *TutorRepository
	Parents     *ParentRepository
	Enrollments *EnrollmentRepository
	Sessions    *SessionRepository
	Attendance  *AttendanceRepository
	Reports     *ReportRepository
	Audit       *AuditRepository
	Settings    *SettingsRepository
	ReportLogs  *ReportLogRepository
	Dialogs     *DialogRepository
	Stats       *StatsRepository
}

// NewStore creates all repositories over db, which may be a *database.DB or a *database.Tx
func NewStore(db database.DBTX) *Store {
	return &Store{
		Accounts:    NewAccountRepository(db),
		Students:    NewStudentRepository(db),
		Tutors:      NewTutorRepository(db),
		Parents:     NewParentRepository(db),
		Enrollments: NewEnrollmentRepository(db),
		Sessions:    NewSessionRepository(db),
		Attendance:  NewAttendanceRepository(db),
		Reports:     NewReportRepository(db),
		Audit:       NewAuditRepository(db),
		Settings:    NewSettingsRepository(db),
		ReportLogs:  NewReportLogRepository(db),
		Dialogs:     NewDialogRepository(db),
		Stats:       NewStatsRepository(db),
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullInt64(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

func now() time.Time {
	return time.Now().UTC()
}
