package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tutormula/internal/models"
	"tutormula/internal/service"
	"tutormula/internal/utils"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleStats")

	stats, err := s.svc.Admin.DashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleGetStudent")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	detail, err := s.svc.Admin.StudentDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleUpdateStudent")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	var req service.StudentUpdate
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
		return
	}

	profile, err := s.svc.Admin.UpdateStudentProfile(r.Context(), adminID(r), id, req)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleDeleteStudent")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	if err := s.svc.Admin.DeleteStudentProfile(r.Context(), adminID(r), id); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTutor(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleGetTutor")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	detail, err := s.svc.Admin.TutorDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

func (s *Server) handleUpdateTutor(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleUpdateTutor")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	var req service.TutorUpdate
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
		return
	}

	profile, err := s.svc.Admin.UpdateTutorProfile(r.Context(), adminID(r), id, req)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

type verifyRequest struct {
	Verified bool `json:"verified"`
}

func (s *Server) handleVerifyTutor(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleVerifyTutor")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	var req verifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
		return
	}
	if err := s.svc.Admin.SetTutorVerified(r.Context(), adminID(r), id, req.Verified); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, req)
}

func (s *Server) handleGetParent(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleGetParent")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	detail, err := s.svc.Admin.ParentDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

func (s *Server) handleUpdateParent(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleUpdateParent")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	var req service.ParentUpdate
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
		return
	}

	profile, err := s.svc.Admin.UpdateParentProfile(r.Context(), adminID(r), id, req)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleGetSession")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	detail, err := s.svc.Scheduling.SessionDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

type attendanceRequest struct {
	StudentProfileID int64                   `json:"student_profile_id"`
	Status           models.AttendanceStatus `json:"status"`
}

func (s *Server) handleSessionAttendance(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleSessionAttendance")

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	var req attendanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
		return
	}
	if err := s.svc.Admin.UpsertAttendance(r.Context(), adminID(r), id, req.StudentProfileID, req.Status); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	log.Info("attendance overridden", slog.Int64("session_id", id), slog.String("status", string(req.Status)))
	writeJSON(w, r, http.StatusOK, req)
}

func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleAuditLogs")

	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeServiceError(w, r, log, utils.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = min(n, maxAuditLimit)
	}

	logs, err := s.svc.Admin.AuditLogs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleSettings")

	settings, err := s.svc.Admin.Settings(r.Context())
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"settings": settings})
}

type settingRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleUpdateSetting")

	key := chi.URLParam(r, "key")
	var req settingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "failed to decode request")
		return
	}
	if err := s.svc.Admin.UpdateSetting(r.Context(), adminID(r), key, req.Value); err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

func (s *Server) handleRunReports(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r, "api.Server.handleRunReports")

	result, err := s.svc.Reports.RunDailyPass(r.Context())
	if err != nil {
		writeServiceError(w, r, log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}
