package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/models"
	"tutormula/internal/repository"
	"tutormula/internal/utils"
)

// StudentUpdate holds the profile fields an admin may change. Nil fields are left as they are.
type StudentUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Grade    *string `json:"grade,omitempty"`
	School   *string `json:"school,omitempty"`
	Age      *int    `json:"age,omitempty"`
}

// TutorUpdate holds the tutor profile fields an admin may change
type TutorUpdate struct {
	Subjects        *string `json:"subjects,omitempty"`
	Education       *string `json:"education,omitempty"`
	ExperienceYears *int    `json:"experience_years,omitempty"`
}

// ParentUpdate holds the parent profile fields an admin may change
type ParentUpdate struct {
	Occupation *string `json:"occupation,omitempty"`
	Email      *string `json:"email,omitempty"`
}

// StudentDetail is the admin view of a student profile
type StudentDetail struct {
	Profile     models.StudentProfile `json:"profile"`
	Owner       *models.Account       `json:"owner,omitempty"`
	Parent      *models.Account       `json:"parent,omitempty"`
	Enrollments []models.Enrollment   `json:"enrollments"`
	Sessions    []models.Session      `json:"sessions"`
	Attendance  []models.Attendance   `json:"attendance"`
}

// TutorDetail is the admin view of a tutor
type TutorDetail struct {
	Account     models.Account       `json:"account"`
	Profile     *models.TutorProfile `json:"profile,omitempty"`
	Enrollments []models.Enrollment  `json:"enrollments"`
	Sessions    []models.Session     `json:"sessions"`
}

// ParentDetail is the admin view of a parent
type ParentDetail struct {
	Account    models.Account           `json:"account"`
	Profile    *models.ParentProfile    `json:"profile,omitempty"`
	Children   []models.StudentProfile  `json:"children"`
	ReportLogs []models.ParentReportLog `json:"report_logs"`
}

// AdminService applies admin edits. Every mutation writes an audit row in the same transaction.
type AdminService struct {
	db    *database.DB
	store *repository.Store
	log   *slog.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(db *database.DB, log *slog.Logger) *AdminService {
	return &AdminService{
		db:    db,
		store: repository.NewStore(db),
		log:   log.With(slog.String("component", "admin")),
	}
}

func (s *AdminService) audited(ctx context.Context, adminID *int64, action, entity string, entityID int64, details interface{}, fn func(st *repository.Store) error) error {
	detailText := ""
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailText = string(b)
		}
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		if err := fn(st); err != nil {
			return err
		}
		return st.Audit.Append(ctx, &models.AuditLog{
			AdminAccountID: adminID,
			Action:         action,
			Entity:         entity,
			EntityID:       entityID,
			Details:        detailText,
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("admin mutation",
		slog.String("action", action),
		slog.String("entity", entity),
		slog.Int64("entity_id", entityID),
	)
	return nil
}

// UpdateStudentProfile edits a profile's descriptive fields
func (s *AdminService) UpdateStudentProfile(ctx context.Context, adminID *int64, id int64, u StudentUpdate) (*models.StudentProfile, error) {
	if u.FullName != nil {
		if err := utils.ValidateName(*u.FullName); err != nil {
			return nil, err
		}
	}
	if u.Age != nil && (*u.Age < 1 || *u.Age > 120) {
		return nil, utils.ValidationError{Field: "age", Message: "must be between 1 and 120"}
	}

	var profile *models.StudentProfile
	err := s.audited(ctx, adminID, "update", "student_profile", id, u, func(st *repository.Store) error {
		var err error
		if profile, err = requireStudentProfile(ctx, st, id); err != nil {
			return err
		}
		if u.FullName != nil {
			profile.FullName = strings.TrimSpace(*u.FullName)
		}
		if u.Grade != nil {
			profile.Grade = *u.Grade
		}
		if u.School != nil {
			profile.School = *u.School
		}
		if u.Age != nil {
			profile.Age = *u.Age
		}
		return st.Students.Update(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// DeleteStudentProfile removes a profile with its enrollments and attendance.
// Sessions stay and lose their profile reference.
func (s *AdminService) DeleteStudentProfile(ctx context.Context, adminID *int64, id int64) error {
	return s.audited(ctx, adminID, "delete", "student_profile", id, nil, func(st *repository.Store) error {
		if _, err := requireStudentProfile(ctx, st, id); err != nil {
			return err
		}
		if _, err := st.Enrollments.DeleteByStudent(ctx, id); err != nil {
			return err
		}
		if _, err := st.Attendance.DeleteByStudent(ctx, id); err != nil {
			return err
		}
		return st.Students.Delete(ctx, id)
	})
}

// UpdateTutorProfile edits a tutor profile
func (s *AdminService) UpdateTutorProfile(ctx context.Context, adminID *int64, accountID int64, u TutorUpdate) (*models.TutorProfile, error) {
	if u.ExperienceYears != nil && *u.ExperienceYears < 0 {
		return nil, utils.ValidationError{Field: "experience_years", Message: "must not be negative"}
	}

	var profile *models.TutorProfile
	err := s.audited(ctx, adminID, "update", "tutor_profile", accountID, u, func(st *repository.Store) error {
		var err error
		if profile, err = st.Tutors.GetByAccountID(ctx, accountID); err != nil {
			return err
		}
		if profile == nil {
			return notFound(EntityTutor, accountID)
		}
		if u.Subjects != nil {
			profile.Subjects = *u.Subjects
		}
		if u.Education != nil {
			profile.Education = *u.Education
		}
		if u.ExperienceYears != nil {
			profile.ExperienceYears = *u.ExperienceYears
		}
		return st.Tutors.Update(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SetTutorVerified sets the verified flag on a tutor profile
func (s *AdminService) SetTutorVerified(ctx context.Context, adminID *int64, accountID int64, verified bool) error {
	action := "verify"
	if !verified {
		action = "unverify"
	}
	return s.audited(ctx, adminID, action, "tutor_profile", accountID, nil, func(st *repository.Store) error {
		profile, err := st.Tutors.GetByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		if profile == nil {
			return notFound(EntityTutor, accountID)
		}
		return st.Tutors.SetVerified(ctx, accountID, verified)
	})
}

// UpdateParentProfile edits a parent profile
func (s *AdminService) UpdateParentProfile(ctx context.Context, adminID *int64, accountID int64, u ParentUpdate) (*models.ParentProfile, error) {
	if u.Email != nil && *u.Email != "" {
		if err := utils.ValidateEmail(*u.Email); err != nil {
			return nil, err
		}
	}

	var profile *models.ParentProfile
	err := s.audited(ctx, adminID, "update", "parent_profile", accountID, u, func(st *repository.Store) error {
		var err error
		if profile, err = st.Parents.GetByAccountID(ctx, accountID); err != nil {
			return err
		}
		if profile == nil {
			return notFound(EntityParent, accountID)
		}
		if u.Occupation != nil {
			profile.Occupation = *u.Occupation
		}
		if u.Email != nil {
			profile.Email = strings.TrimSpace(*u.Email)
		}
		return st.Parents.Update(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateSetting writes an app setting; daily_report_time must be HH:MM
func (s *AdminService) UpdateSetting(ctx context.Context, adminID *int64, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return utils.ValidationError{Field: "key", Message: "key is required"}
	}
	if key == repository.SettingDailyReportTime {
		if _, _, err := utils.ParseHHMM(value); err != nil {
			return err
		}
		value = strings.TrimSpace(value)
	}

	details := map[string]string{"key": key, "value": value}
	return s.audited(ctx, adminID, "update", "app_setting", 0, details, func(st *repository.Store) error {
		return st.Settings.Set(ctx, key, value)
	})
}

// UpsertAttendance overrides the attendance of (session, profile)
func (s *AdminService) UpsertAttendance(ctx context.Context, adminID *int64, sessionID, studentProfileID int64, status models.AttendanceStatus) error {
	if !status.Valid() {
		return utils.ValidationError{Field: "status", Message: "must be present, absent or late"}
	}
	details := map[string]interface{}{"student_profile_id": studentProfileID, "status": status}
	return s.audited(ctx, adminID, "override", "attendance", sessionID, details, func(st *repository.Store) error {
		return markAttendance(ctx, st, sessionID, studentProfileID, status, time.Now().UTC())
	})
}

// DashboardStats returns the dashboard counters
func (s *AdminService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	return s.store.Stats.Dashboard(ctx)
}

// AuditLogs returns up to limit entries, newest first
func (s *AdminService) AuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return s.store.Audit.List(ctx, limit)
}

// Settings lists every app setting
func (s *AdminService) Settings(ctx context.Context) ([]models.AppSetting, error) {
	return s.store.Settings.List(ctx)
}

// StudentDetail loads a profile with its accounts, enrollments, sessions and attendance
func (s *AdminService) StudentDetail(ctx context.Context, id int64) (*StudentDetail, error) {
	profile, err := requireStudentProfile(ctx, s.store, id)
	if err != nil {
		return nil, err
	}

	d := &StudentDetail{Profile: *profile}
	if profile.AccountID != nil {
		if d.Owner, err = s.store.Accounts.GetByID(ctx, *profile.AccountID); err != nil {
			return nil, err
		}
	}
	if profile.ParentAccountID != nil {
		if d.Parent, err = s.store.Accounts.GetByID(ctx, *profile.ParentAccountID); err != nil {
			return nil, err
		}
	}
	if d.Enrollments, err = s.store.Enrollments.ListActiveByStudent(ctx, id); err != nil {
		return nil, err
	}
	if d.Sessions, err = s.store.Sessions.List(ctx, repository.SessionFilter{StudentProfileID: id, Descending: true}); err != nil {
		return nil, err
	}
	if d.Attendance, err = s.store.Attendance.ListByProfile(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// TutorDetail loads a tutor with profile, enrollments and recent sessions
func (s *AdminService) TutorDetail(ctx context.Context, accountID int64) (*TutorDetail, error) {
	account, err := requireRole(ctx, s.store, accountID, models.RoleTutor, "viewing a tutor")
	if err != nil {
		if IsAuthorization(err) {
			return nil, notFound(EntityTutor, accountID)
		}
		return nil, err
	}

	d := &TutorDetail{Account: *account}
	if d.Profile, err = s.store.Tutors.GetByAccountID(ctx, accountID); err != nil {
		return nil, err
	}
	if d.Enrollments, err = s.store.Enrollments.ListActiveByTutor(ctx, accountID); err != nil {
		return nil, err
	}
	if d.Sessions, err = s.store.Sessions.List(ctx, repository.SessionFilter{TutorAccountID: accountID, Descending: true, Limit: 50}); err != nil {
		return nil, err
	}
	return d, nil
}

// ParentDetail loads a parent with profile, children and digest history
func (s *AdminService) ParentDetail(ctx context.Context, accountID int64) (*ParentDetail, error) {
	account, err := requireRole(ctx, s.store, accountID, models.RoleParent, "viewing a parent")
	if err != nil {
		if IsAuthorization(err) {
			return nil, notFound(EntityParent, accountID)
		}
		return nil, err
	}

	d := &ParentDetail{Account: *account}
	if d.Profile, err = s.store.Parents.GetByAccountID(ctx, accountID); err != nil {
		return nil, err
	}
	if d.Children, err = s.store.Students.ListByParent(ctx, accountID); err != nil {
		return nil, err
	}
	if d.ReportLogs, err = s.store.ReportLogs.ListByParent(ctx, accountID); err != nil {
		return nil, err
	}
	return d, nil
}
