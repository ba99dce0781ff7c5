package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tutormula/internal/config"
	"tutormula/internal/security"
	"tutormula/internal/service"
)

// Services are the operations exposed over HTTP
type Services struct {
	Identity   *service.IdentityService
	Enrollment *service.EnrollmentService
	Scheduling *service.SchedulingService
	Admin      *service.AdminService
	Reports    *service.ReportService
}

type Server struct {
	svc     Services
	auth    config.Admin
	limiter *security.RateLimiter
	metrics http.Handler
	now     func() time.Time
	log     *slog.Logger
}

// NewServer builds the HTTP surface. metricsHandler serves /metrics and may be nil.
func NewServer(svc Services, auth config.Admin, limiter *security.RateLimiter, metricsHandler http.Handler, log *slog.Logger) *Server {
	return &Server{
		svc:     svc,
		auth:    auth,
		limiter: limiter,
		metrics: metricsHandler,
		now:     time.Now,
		log:     log.With(slog.String("component", "api")),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.URLFormat)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Get("/tutors/search", s.handleSearchTutors)
	r.Post("/enrollments", s.handleEnroll)
	r.Get("/enrollments/student/{id}", s.handleStudentEnrollments)
	r.Post("/sessions", s.handleCreateSession)
	r.Get("/sessions/user/{id}", s.handleUserSessions)

	r.Route("/admin", func(r chi.Router) {
		if s.auth.Secret == "" || s.auth.JWTSecret == "" {
			r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
				writeError(w, r, http.StatusNotFound, CodeNotFound, "admin API disabled")
			})
			return
		}

		if s.limiter != nil {
			r.With(s.limiter.Middleware).Post("/token", s.handleToken)
		} else {
			r.Post("/token", s.handleToken)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/stats", s.handleStats)
			r.Get("/students/{id}", s.handleGetStudent)
			r.Put("/students/{id}", s.handleUpdateStudent)
			r.Delete("/students/{id}", s.handleDeleteStudent)
			r.Get("/tutors/{id}", s.handleGetTutor)
			r.Put("/tutors/{id}", s.handleUpdateTutor)
			r.Put("/tutors/{id}/verify", s.handleVerifyTutor)
			r.Get("/parents/{id}", s.handleGetParent)
			r.Put("/parents/{id}", s.handleUpdateParent)
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Put("/sessions/{id}/attendance", s.handleSessionAttendance)
			r.Get("/audit-logs", s.handleAuditLogs)
			r.Get("/settings", s.handleSettings)
			r.Put("/settings/{key}", s.handleUpdateSetting)
			r.Post("/reports/run", s.handleRunReports)
		})
	})

	return r
}

// requestLog returns the logger for one request
func (s *Server) requestLog(r *http.Request, op string) *slog.Logger {
	return s.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(http.MaxBytesReader(nil, r.Body, 1<<20), v); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

// requestLogger logs one line per request with status and latency
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request completed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", security.ClientIP(r)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
