package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tutormula/internal/models"
	"tutormula/internal/service"
	"tutormula/internal/utils"
)

func (s *Server) handleSearchTutors(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleSearchTutors")

	tutors, err := s.svc.Identity.SearchTutors(r.Context(), r.URL.Query().Get("subject"))
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	if tutors == nil {
		tutors = []models.TutorWithProfile{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tutors": tutors})
}

type enrollRequest struct {
	StudentProfileID int64 `json:"student_profile_id"`
	TutorAccountID   int64 `json:"tutor_account_id"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleEnroll")

	var req enrollRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
		return
	}

	e, err := s.svc.Enrollment.Enroll(r.Context(), req.StudentProfileID, req.TutorAccountID)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("enrolled", slog.Int64("enrollment_id", e.ID))
	writeJSON(w, r, http.StatusCreated, e)
}

func (s *Server) handleStudentEnrollments(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleStudentEnrollments")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	if _, err := s.svc.Identity.StudentProfile(r.Context(), id); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	list, err := s.svc.Enrollment.EnrollmentsForStudent(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	if list == nil {
		list = []models.Enrollment{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"enrollments": list})
}

type sessionRequest struct {
	TutorAccountID   int64  `json:"tutor_account_id"`
	StudentProfileID int64  `json:"student_profile_id"`
	ScheduledAt      string `json:"scheduled_at"`
	DurationMinutes  int    `json:"duration_minutes"`
	Topic            string `json:"topic"`
}

// parseWhen accepts RFC 3339 or the chat format YYYY-MM-DD HH:MM (UTC)
func parseWhen(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		return t.UTC(), nil
	}
	return utils.ParseScheduledAt(value)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleCreateSession")

	var req sessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
		return
	}
	at, err := parseWhen(req.ScheduledAt)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}

	session, err := s.svc.Scheduling.CreateSession(r.Context(), service.NewSession{
		TutorAccountID:   req.TutorAccountID,
		StudentProfileID: req.StudentProfileID,
		ScheduledAt:      at,
		DurationMinutes:  req.DurationMinutes,
		Topic:            req.Topic,
	})
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("session created", slog.Int64("session_id", session.ID))
	writeJSON(w, r, http.StatusCreated, session)
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleUserSessions")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	if _, err := s.svc.Identity.Account(r.Context(), id); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	q := r.URL.Query()
	role, ok := models.ParseRoleKind(q.Get("role"))
	if !ok {
		writeServiceError(w, r, log, utils.ValidationError{Field: "role", Message: "must be student, tutor or parent"})
		return
	}
	order, err := service.ParseSessionOrder(q.Get("order"))
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}

	sessions, err := s.svc.Scheduling.SessionsForActor(r.Context(), id, role, order)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"sessions": sessions})
}
