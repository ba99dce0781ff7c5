package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/models"
	"tutormula/internal/repository"
	"tutormula/internal/utils"
)

// SessionOrder selects how SessionsForActor orders and bounds its result
type SessionOrder int

const (
	// Upcoming lists sessions scheduled from now on, soonest first
	Upcoming SessionOrder = iota
	// History lists every session, most recent first
	History
)

// ParseSessionOrder maps "upcoming" and "history" to a SessionOrder
func ParseSessionOrder(s string) (SessionOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "upcoming":
		return Upcoming, nil
	case "history":
		return History, nil
	}
	return 0, utils.ValidationError{Field: "order", Message: "must be upcoming or history"}
}

// NewSession carries the fields of a session to create
type NewSession struct {
	TutorAccountID   int64     `json:"tutor_account_id"`
	StudentProfileID int64     `json:"student_profile_id"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	DurationMinutes  int       `json:"duration_minutes"`
	Topic            string    `json:"topic"`
}

// AttendanceMark is one (session, profile) pair to mark
type AttendanceMark struct {
	SessionID        int64
	StudentProfileID int64
}

// SchedulingService creates sessions and records their outcome
type SchedulingService struct {
	db    *database.DB
	store *repository.Store
	log   *slog.Logger
	now   func() time.Time
}

// NewSchedulingService creates a new scheduling service
func NewSchedulingService(db *database.DB, log *slog.Logger) *SchedulingService {
	return &SchedulingService{
		db:    db,
		store: repository.NewStore(db),
		log:   log.With(slog.String("component", "scheduling")),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession inserts a session. No overlap check is made against existing sessions.
func (s *SchedulingService) CreateSession(ctx context.Context, in NewSession) (*models.Session, error) {
	if in.DurationMinutes <= 0 {
		return nil, utils.ValidationError{Field: "duration", Message: "must be a positive number of minutes"}
	}
	topic, err := utils.RequireText("topic", in.Topic)
	if err != nil {
		return nil, err
	}
	if in.ScheduledAt.IsZero() {
		return nil, utils.ValidationError{Field: "scheduled_at", Message: "scheduled time is required"}
	}

	session := &models.Session{
		TutorAccountID:   in.TutorAccountID,
		StudentProfileID: in.StudentProfileID,
		ScheduledAt:      in.ScheduledAt.UTC(),
		DurationMinutes:  in.DurationMinutes,
		Topic:            topic,
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		if _, err := requireStudentProfile(ctx, st, in.StudentProfileID); err != nil {
			return err
		}
		if _, err := requireRole(ctx, st, in.TutorAccountID, models.RoleTutor, "holding a session"); err != nil {
			return err
		}
		return st.Sessions.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("session created",
		slog.Int64("session_id", session.ID),
		slog.Int64("tutor_id", session.TutorAccountID),
		slog.Int64("student_profile_id", session.StudentProfileID),
	)
	return session, nil
}

// SessionsForActor lists the sessions an account takes part in under role.
// A student without a profile and a parent without children get an empty list.
func (s *SchedulingService) SessionsForActor(ctx context.Context, accountID int64, role models.RoleKind, order SessionOrder) ([]models.Session, error) {
	filter := repository.SessionFilter{Descending: order == History}
	if order == Upcoming {
		from := s.now()
		filter.From = &from
	}

	switch role {
	case models.RoleTutor:
		filter.TutorAccountID = accountID
		return s.store.Sessions.List(ctx, filter)

	case models.RoleStudent:
		profile, err := s.store.Students.GetByAccountID(ctx, accountID)
		if err != nil || profile == nil {
			return nil, err
		}
		filter.StudentProfileID = profile.ID
		return s.store.Sessions.List(ctx, filter)

	case models.RoleParent:
		children, err := s.store.Students.ListByParent(ctx, accountID)
		if err != nil {
			return nil, err
		}
		var sessions []models.Session
		for _, c := range children {
			filter.StudentProfileID = c.ID
			list, err := s.store.Sessions.List(ctx, filter)
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, list...)
		}
		sort.SliceStable(sessions, func(i, j int) bool {
			if order == History {
				return sessions[i].ScheduledAt.After(sessions[j].ScheduledAt)
			}
			return sessions[i].ScheduledAt.Before(sessions[j].ScheduledAt)
		})
		return sessions, nil
	}

	return nil, utils.ValidationError{Field: "role", Message: fmt.Sprintf("sessions are not listed for role %q", role)}
}

// SessionsForProfile lists every session of a profile, earliest first
func (s *SchedulingService) SessionsForProfile(ctx context.Context, studentProfileID int64) ([]models.Session, error) {
	return s.store.Sessions.List(ctx, repository.SessionFilter{StudentProfileID: studentProfileID})
}

// RecentTutorSessions lists a tutor's latest sessions, most recent first
func (s *SchedulingService) RecentTutorSessions(ctx context.Context, tutorAccountID int64, limit int) ([]models.Session, error) {
	return s.store.Sessions.List(ctx, repository.SessionFilter{
		TutorAccountID: tutorAccountID,
		Descending:     true,
		Limit:          limit,
	})
}

// UnreportedTutorSessions lists a tutor's latest sessions that have no report yet
func (s *SchedulingService) UnreportedTutorSessions(ctx context.Context, tutorAccountID int64, limit int) ([]models.Session, error) {
	return s.store.Sessions.List(ctx, repository.SessionFilter{
		TutorAccountID: tutorAccountID,
		Descending:     true,
		Limit:          limit,
		Unreported:     true,
	})
}

// MarkAttendance records status for (session, profile), overwriting an earlier mark
func (s *SchedulingService) MarkAttendance(ctx context.Context, sessionID, studentProfileID int64, status models.AttendanceStatus) error {
	if !status.Valid() {
		return utils.ValidationError{Field: "status", Message: fmt.Sprintf("unknown attendance status %q", status)}
	}
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		return markAttendance(ctx, repository.NewStore(tx), sessionID, studentProfileID, status, s.now())
	})
}

// MarkAttendanceBatch marks every pair with status in one transaction.
// Every session must belong to tutorAccountID.
func (s *SchedulingService) MarkAttendanceBatch(ctx context.Context, tutorAccountID int64, marks []AttendanceMark, status models.AttendanceStatus) error {
	if !status.Valid() {
		return utils.ValidationError{Field: "status", Message: fmt.Sprintf("unknown attendance status %q", status)}
	}
	if len(marks) == 0 {
		return utils.ValidationError{Field: "selection", Message: "select at least one student"}
	}

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		if _, err := requireRole(ctx, st, tutorAccountID, models.RoleTutor, "marking attendance"); err != nil {
			return err
		}
		at := s.now()
		for _, m := range marks {
			session, err := requireSession(ctx, st, m.SessionID)
			if err != nil {
				return err
			}
			if session.TutorAccountID != tutorAccountID {
				return &AuthorizationError{Action: "marking attendance for another tutor's session", Role: models.RoleTutor}
			}
			if err := markAttendance(ctx, st, m.SessionID, m.StudentProfileID, status, at); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("attendance marked",
		slog.Int64("tutor_id", tutorAccountID),
		slog.Int("count", len(marks)),
		slog.String("status", string(status)),
	)
	return nil
}

func markAttendance(ctx context.Context, st *repository.Store, sessionID, studentProfileID int64, status models.AttendanceStatus, at time.Time) error {
	if _, err := requireSession(ctx, st, sessionID); err != nil {
		return err
	}
	if _, err := requireStudentProfile(ctx, st, studentProfileID); err != nil {
		return err
	}
	return st.Attendance.Upsert(ctx, sessionID, studentProfileID, status, at)
}

// CreateReport records the session's report. Only the session's tutor may write it,
// and a session holds at most one report.
func (s *SchedulingService) CreateReport(ctx context.Context, sessionID, tutorAccountID int64, content string, score int) (*models.Report, error) {
	if err := utils.ValidateScore(score); err != nil {
		return nil, err
	}
	content, err := utils.RequireText("content", content)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		SessionID:      sessionID,
		TutorAccountID: tutorAccountID,
		Content:        content,
		Score:          score,
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		session, err := requireSession(ctx, st, sessionID)
		if err != nil {
			return err
		}
		if session.TutorAccountID != tutorAccountID {
			return &AuthorizationError{Action: "reporting on another tutor's session", Role: models.RoleTutor}
		}
		existing, err := st.Reports.GetBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		if existing != nil {
			return utils.ValidationError{Field: "session", Message: "this session already has a report"}
		}
		return st.Reports.Create(ctx, report)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("report created", slog.Int64("session_id", sessionID), slog.Int("score", score))
	return report, nil
}

// IsSessionComplete reports whether the session has both attendance and a report
func (s *SchedulingService) IsSessionComplete(ctx context.Context, sessionID int64) (bool, error) {
	a, err := s.store.Attendance.GetForSession(ctx, sessionID)
	if err != nil || a == nil {
		return false, err
	}
	r, err := s.store.Reports.GetBySession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// SessionDetail loads a session with its tutor, student, attendance and report
func (s *SchedulingService) SessionDetail(ctx context.Context, sessionID int64) (*models.SessionDetail, error) {
	return sessionDetail(ctx, s.store, sessionID)
}

func sessionDetail(ctx context.Context, st *repository.Store, sessionID int64) (*models.SessionDetail, error) {
	session, err := requireSession(ctx, st, sessionID)
	if err != nil {
		return nil, err
	}

	d := &models.SessionDetail{Session: *session}
	if d.Tutor, err = st.Accounts.GetByID(ctx, session.TutorAccountID); err != nil {
		return nil, err
	}
	if session.StudentProfileID != 0 {
		if d.Student, err = st.Students.GetByID(ctx, session.StudentProfileID); err != nil {
			return nil, err
		}
		if d.Attendance, err = st.Attendance.Get(ctx, sessionID, session.StudentProfileID); err != nil {
			return nil, err
		}
	}
	if d.Attendance == nil {
		if d.Attendance, err = st.Attendance.GetForSession(ctx, sessionID); err != nil {
			return nil, err
		}
	}
	if d.Report, err = st.Reports.GetBySession(ctx, sessionID); err != nil {
		return nil, err
	}
	return d, nil
}

// AttendanceForProfile lists a profile's attendance, newest first
func (s *SchedulingService) AttendanceForProfile(ctx context.Context, studentProfileID int64) ([]models.Attendance, error) {
	return s.store.Attendance.ListByProfile(ctx, studentProfileID)
}

// ReportsForProfile lists a profile's sessions with their outcome, most recent first
func (s *SchedulingService) ReportsForProfile(ctx context.Context, studentProfileID int64) ([]models.SessionDetail, error) {
	sessions, err := s.store.Sessions.List(ctx, repository.SessionFilter{
		StudentProfileID: studentProfileID,
		Descending:       true,
	})
	if err != nil {
		return nil, err
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		d, err := sessionDetail(ctx, s.store, session.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, nil
}
