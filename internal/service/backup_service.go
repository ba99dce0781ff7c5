package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/models"
	"tutormula/internal/repository"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version     string                  `json:"version"`
	ExportedAt  time.Time               `json:"exported_at"`
	Accounts    []models.Account        `json:"accounts"`
	Roles       []models.Role           `json:"roles"`
	Students    []models.StudentProfile `json:"student_profiles"`
	Tutors      []models.TutorProfile   `json:"tutor_profiles"`
	Parents     []models.ParentProfile  `json:"parent_profiles"`
	Enrollments []models.Enrollment     `json:"enrollments"`
	Sessions    []models.Session        `json:"sessions"`
	Attendance  []models.Attendance     `json:"attendance"`
	Reports     []models.Report         `json:"reports"`
	Settings    []models.AppSetting     `json:"settings"`
	AuditLogs   []models.AuditLog       `json:"audit_logs"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db  *database.DB
	log *slog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log *slog.Logger) *BackupService {
	return &BackupService{db: db, log: log.With(slog.String("component", "backup"))}
}

// Snapshot reads every entity table in one transaction
func (s *BackupService) Snapshot(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{Version: BackupVersion, ExportedAt: time.Now().UTC()}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		var err error
		if backup.Accounts, err = st.Accounts.ListAll(ctx); err != nil {
			return err
		}
		if backup.Roles, err = st.Accounts.ListRoles(ctx); err != nil {
			return err
		}
		if backup.Students, err = st.Students.ListAll(ctx); err != nil {
			return err
		}
		if backup.Tutors, err = st.Tutors.ListAll(ctx); err != nil {
			return err
		}
		if backup.Parents, err = st.Parents.ListAll(ctx); err != nil {
			return err
		}
		if backup.Enrollments, err = st.Enrollments.ListAll(ctx); err != nil {
			return err
		}
		if backup.Sessions, err = st.Sessions.List(ctx, repository.SessionFilter{}); err != nil {
			return err
		}
		if backup.Attendance, err = st.Attendance.ListAll(ctx); err != nil {
			return err
		}
		if backup.Reports, err = st.Reports.ListAll(ctx); err != nil {
			return err
		}
		if backup.Settings, err = st.Settings.List(ctx); err != nil {
			return err
		}
		backup.AuditLogs, err = st.Audit.ListAll(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read backup data: %w", err)
	}
	return backup, nil
}

// Export writes a JSON backup to w
func (s *BackupService) Export(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	s.log.Info("database exported",
		slog.Int("accounts", len(backup.Accounts)),
		slog.Int("student_profiles", len(backup.Students)),
		slog.Int("sessions", len(backup.Sessions)),
		slog.Int("reports", len(backup.Reports)),
	)
	return backup, nil
}

// ExportFile writes a JSON backup to outputPath
func (s *BackupService) ExportFile(ctx context.Context, outputPath string) (*BackupData, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()
	return s.Export(ctx, file)
}

// ImportFile restores a backup from inputPath
func (s *BackupService) ImportFile(ctx context.Context, inputPath string) (*BackupData, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.Import(ctx, file)
}

// Import restores a backup into an empty database in one transaction
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*BackupData, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	s.log.Info("importing backup", slog.Time("exported_at", backup.ExportedAt))

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
			return fmt.Errorf("failed to check target database: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("target database is not empty (%d accounts)", count)
		}

		// order follows foreign keys
		steps := []struct {
			name string
			fn   func(context.Context, *database.Tx, *BackupData) error
		}{
			{"accounts", importAccounts},
			{"roles", importRoles},
			{"student profiles", importStudents},
			{"tutor profiles", importTutors},
			{"parent profiles", importParents},
			{"enrollments", importEnrollments},
			{"sessions", importSessions},
			{"attendance", importAttendance},
			{"reports", importReports},
			{"settings", importSettings},
			{"audit logs", importAuditLogs},
		}
		for _, step := range steps {
			if err := step.fn(ctx, tx, &backup); err != nil {
				return fmt.Errorf("failed to import %s: %w", step.name, err)
			}
		}
		return resetSequences(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("database import completed",
		slog.Int("accounts", len(backup.Accounts)),
		slog.Int("sessions", len(backup.Sessions)),
	)
	return &backup, nil
}

func importAccounts(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, a := range b.Accounts {
		query := "INSERT INTO accounts (id, external_id, full_name, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, a.ID, a.ExternalID, a.FullName, nullString(a.Phone), a.CreatedAt, a.UpdatedAt); err != nil {
			return fmt.Errorf("account %d: %w", a.ID, err)
		}
	}
	return nil
}

func importRoles(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, r := range b.Roles {
		query := "INSERT INTO roles (id, account_id, role, created_at) VALUES (?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, r.ID, r.AccountID, string(r.Role), r.CreatedAt); err != nil {
			return fmt.Errorf("role %d: %w", r.ID, err)
		}
	}
	return nil
}

func importStudents(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, p := range b.Students {
		query := `INSERT INTO student_profiles (id, account_id, parent_account_id, full_name, grade, school, age, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, p.ID, nullID(p.AccountID), nullID(p.ParentAccountID),
			p.FullName, p.Grade, p.School, p.Age, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("student profile %d: %w", p.ID, err)
		}
	}
	return nil
}

func importTutors(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, p := range b.Tutors {
		query := `INSERT INTO tutor_profiles (id, account_id, subjects, education, experience_years, verified, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, p.ID, p.AccountID, p.Subjects, p.Education,
			p.ExperienceYears, p.Verified, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("tutor profile %d: %w", p.ID, err)
		}
	}
	return nil
}

func importParents(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, p := range b.Parents {
		var lastSent interface{}
		if p.LastReportSentAt != nil {
			lastSent = *p.LastReportSentAt
		}
		query := `INSERT INTO parent_profiles (id, account_id, occupation, email, last_report_sent_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, p.ID, p.AccountID, p.Occupation, nullString(p.Email),
			lastSent, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("parent profile %d: %w", p.ID, err)
		}
	}
	return nil
}

func importEnrollments(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, e := range b.Enrollments {
		query := "INSERT INTO enrollments (id, student_profile_id, tutor_account_id, start_date, active) VALUES (?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, e.ID, e.StudentProfileID, e.TutorAccountID, e.StartDate, e.Active); err != nil {
			return fmt.Errorf("enrollment %d: %w", e.ID, err)
		}
	}
	return nil
}

func importSessions(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, s := range b.Sessions {
		var profile interface{}
		if s.StudentProfileID != 0 {
			profile = s.StudentProfileID
		}
		query := `INSERT INTO sessions (id, tutor_account_id, student_profile_id, scheduled_at, duration_minutes, topic, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query, s.ID, s.TutorAccountID, profile, s.ScheduledAt,
			s.DurationMinutes, s.Topic, s.CreatedAt); err != nil {
			return fmt.Errorf("session %d: %w", s.ID, err)
		}
	}
	return nil
}

func importAttendance(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, a := range b.Attendance {
		query := "INSERT INTO attendance (id, session_id, student_profile_id, status, marked_at) VALUES (?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, a.ID, a.SessionID, a.StudentProfileID, string(a.Status), a.MarkedAt); err != nil {
			return fmt.Errorf("attendance %d: %w", a.ID, err)
		}
	}
	return nil
}

func importReports(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, r := range b.Reports {
		query := "INSERT INTO reports (id, session_id, tutor_account_id, content, score, created_at) VALUES (?, ?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, r.ID, r.SessionID, r.TutorAccountID, r.Content, r.Score, r.CreatedAt); err != nil {
			return fmt.Errorf("report %d: %w", r.ID, err)
		}
	}
	return nil
}

func importSettings(ctx context.Context, tx *database.Tx, b *BackupData) error {
	settings := repository.NewSettingsRepository(tx)
	for _, st := range b.Settings {
		if err := settings.Set(ctx, st.Key, st.Value); err != nil {
			return err
		}
	}
	return nil
}

func importAuditLogs(ctx context.Context, tx *database.Tx, b *BackupData) error {
	for _, l := range b.AuditLogs {
		query := "INSERT INTO audit_logs (id, admin_account_id, action, entity, entity_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, l.ID, nullID(l.AdminAccountID), l.Action, l.Entity, l.EntityID, l.Details, l.CreatedAt); err != nil {
			return fmt.Errorf("audit log %d: %w", l.ID, err)
		}
	}
	return nil
}

var sequencedTables = []string{
	"accounts", "roles", "student_profiles", "tutor_profiles", "parent_profiles",
	"enrollments", "sessions", "attendance", "reports", "audit_logs",
}

// resetSequences moves postgres serial sequences past the imported ids
func resetSequences(ctx context.Context, tx *database.Tx) error {
	if tx.GetDialect().MigrationsSubdir() != "postgres" {
		return nil
	}
	for _, table := range sequencedTables {
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
			table, table)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to reset sequence for %s: %w", table, err)
		}
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullID(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
