package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tutormula/internal/config"
	"tutormula/internal/database"
	"tutormula/internal/logger"
	"tutormula/internal/metrics"
	"tutormula/internal/models"
	"tutormula/internal/security"
	"tutormula/internal/service"
)

const (
	testSecret    = "admin-secret"
	testJWTSecret = "jwt-secret"
	testIssuer    = "tutormula-test"
)

type nopDeliverer struct{}

func (nopDeliverer) Deliver(context.Context, int64, string) error { return nil }

type testAPI struct {
	handler  http.Handler
	identity *service.IdentityService
}

func newTestAPI(t *testing.T, auth config.Admin) *testAPI {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	limiter := security.NewRateLimiter(3, time.Minute)
	t.Cleanup(limiter.Stop)

	identity := service.NewIdentityService(db, log)
	srv := NewServer(Services{
		Identity:   identity,
		Enrollment: service.NewEnrollmentService(db, log),
		Scheduling: service.NewSchedulingService(db, log),
		Admin:      service.NewAdminService(db, log),
		Reports:    service.NewReportService(db, nopDeliverer{}, nil, time.Second, m, log),
	}, auth, limiter, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), log)

	return &testAPI{handler: srv.Router(), identity: identity}
}

func defaultAuth() config.Admin {
	return config.Admin{Secret: testSecret, JWTSecret: testJWTSecret, JWTIssuer: testIssuer, JWTTTL: time.Hour}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.10:4000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) token(t *testing.T) map[string]string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/admin/token", nil, map[string]string{"X-Admin-Token": testSecret})
	if rec.Code != http.StatusCreated {
		t.Fatalf("token: status %d body %s", rec.Code, rec.Body)
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + resp.Token}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == nil {
		t.Fatalf("expected error body, got %q", rec.Body)
	}
	return resp.Error.Code
}

func (a *testAPI) seed(t *testing.T) (tutor *models.Account, student *models.Account, profile *models.StudentProfile) {
	t.Helper()
	ctx := context.Background()
	tutor, _, err := a.identity.RegisterTutor(ctx, service.Contact{ExternalID: 1, FullName: "Tara Tutor"},
		service.TutorDetails{Subjects: "Physics", Education: "PhD", ExperienceYears: 4})
	if err != nil {
		t.Fatalf("RegisterTutor: %v", err)
	}
	student, profile, err = a.identity.RegisterStudent(ctx, service.Contact{ExternalID: 2, FullName: "Sol Student"},
		service.StudentDetails{Grade: "10", School: "Hill", Age: 16})
	if err != nil {
		t.Fatalf("RegisterStudent: %v", err)
	}
	return tutor, student, profile
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t, defaultAuth())

	if rec := a.do(t, http.MethodGet, "/health", nil, nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("health: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(t, http.MethodGet, "/metrics", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("metrics: %d", rec.Code)
	}
}

func TestEnrollmentEndpoints(t *testing.T) {
	a := newTestAPI(t, defaultAuth())
	tutor, _, profile := a.seed(t)

	body := enrollRequest{StudentProfileID: profile.ID, TutorAccountID: tutor.ID}
	for i := 0; i < 2; i++ {
		if rec := a.do(t, http.MethodPost, "/enrollments", body, nil); rec.Code != http.StatusCreated {
			t.Fatalf("enroll #%d: %d %s", i, rec.Code, rec.Body)
		}
	}

	rec := a.do(t, http.MethodGet, fmt.Sprintf("/enrollments/student/%d", profile.ID), nil, nil)
	var resp struct {
		Enrollments []models.Enrollment `json:"enrollments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Enrollments) != 1 {
		t.Errorf("expected one enrollment after a repeated enroll, got %d", len(resp.Enrollments))
	}

	rec = a.do(t, http.MethodGet, "/tutors/search?subject=phys", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Tara Tutor") {
		t.Errorf("search: %d %s", rec.Code, rec.Body)
	}
}

func TestErrorMapping(t *testing.T) {
	a := newTestAPI(t, defaultAuth())
	tutor, student, profile := a.seed(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"malformed body", http.MethodPost, "/enrollments", "nope", http.StatusBadRequest, CodeBadRequest},
		{"missing profile", http.MethodPost, "/enrollments", enrollRequest{StudentProfileID: 999, TutorAccountID: tutor.ID}, http.StatusNotFound, CodeNotFound},
		{"enroll with non-tutor", http.MethodPost, "/enrollments", enrollRequest{StudentProfileID: profile.ID, TutorAccountID: student.ID}, http.StatusForbidden, CodeForbidden},
		{"bad path id", http.MethodGet, "/enrollments/student/abc", nil, http.StatusBadRequest, CodeValidation},
		{"unknown student", http.MethodGet, "/enrollments/student/999", nil, http.StatusNotFound, CodeNotFound},
		{"invalid date", http.MethodPost, "/sessions", sessionRequest{TutorAccountID: tutor.ID, StudentProfileID: profile.ID, ScheduledAt: "2024-13-40 25:99", DurationMinutes: 60, Topic: "Optics"}, http.StatusBadRequest, CodeValidation},
		{"session by non-tutor", http.MethodPost, "/sessions", sessionRequest{TutorAccountID: student.ID, StudentProfileID: profile.ID, ScheduledAt: "2030-01-01 10:00", DurationMinutes: 60, Topic: "Optics"}, http.StatusForbidden, CodeForbidden},
		{"unknown role", http.MethodGet, fmt.Sprintf("/sessions/user/%d?role=wizard", tutor.ID), nil, http.StatusBadRequest, CodeValidation},
		{"unknown order", http.MethodGet, fmt.Sprintf("/sessions/user/%d?role=tutor&order=sideways", tutor.ID), nil, http.StatusBadRequest, CodeValidation},
		{"unknown account", http.MethodGet, "/sessions/user/999?role=tutor", nil, http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestSessionEndpoints(t *testing.T) {
	a := newTestAPI(t, defaultAuth())
	tutor, student, profile := a.seed(t)

	for _, when := range []string{"2030-01-01 10:00", "2030-02-01T09:00:00Z"} {
		rec := a.do(t, http.MethodPost, "/sessions", sessionRequest{
			TutorAccountID: tutor.ID, StudentProfileID: profile.ID, ScheduledAt: when, DurationMinutes: 45, Topic: "Optics",
		}, nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %s: %d %s", when, rec.Code, rec.Body)
		}
	}

	tests := []struct {
		name      string
		path      string
		wantFirst string
	}{
		{"tutor upcoming", fmt.Sprintf("/sessions/user/%d?role=tutor", tutor.ID), "2030-01-01T10:00:00Z"},
		{"student history", fmt.Sprintf("/sessions/user/%d?role=student&order=history", student.ID), "2030-02-01T09:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, tt.path, nil, nil)
			var resp struct {
				Sessions []models.Session `json:"sessions"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v (%s)", err, rec.Body)
			}
			if len(resp.Sessions) != 2 {
				t.Fatalf("expected 2 sessions, got %d", len(resp.Sessions))
			}
			if got := resp.Sessions[0].ScheduledAt.UTC().Format(time.RFC3339); got != tt.wantFirst {
				t.Errorf("first session at %s, want %s", got, tt.wantFirst)
			}
		})
	}
}

func TestAdminAuth(t *testing.T) {
	a := newTestAPI(t, defaultAuth())
	valid := a.token(t)

	expired, err := NewAccessToken(testJWTSecret, testIssuer, time.Minute, nil, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	foreign, err := NewAccessToken(testJWTSecret, "someone-else", time.Hour, nil, time.Now())
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	forged, err := NewAccessToken("other-secret", testIssuer, time.Hour, nil, time.Now())
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{"valid token", valid, http.StatusOK},
		{"missing token", nil, http.StatusUnauthorized},
		{"not bearer", map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized},
		{"expired", map[string]string{"Authorization": "Bearer " + expired}, http.StatusUnauthorized},
		{"wrong issuer", map[string]string{"Authorization": "Bearer " + foreign}, http.StatusUnauthorized},
		{"wrong secret", map[string]string{"Authorization": "Bearer " + forged}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := a.do(t, http.MethodGet, "/admin/stats", nil, tt.headers); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	t.Run("wrong admin secret", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/admin/token", nil, map[string]string{"X-Admin-Token": "guess"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestAdminTokenIsRateLimited(t *testing.T) {
	a := newTestAPI(t, defaultAuth())

	var last int
	for i := 0; i < 4; i++ {
		last = a.do(t, http.MethodPost, "/admin/token", nil, map[string]string{"X-Admin-Token": "guess"}).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("fourth attempt status = %d, want 429", last)
	}
}

func TestAdminDisabledWithoutSecrets(t *testing.T) {
	a := newTestAPI(t, config.Admin{})

	rec := a.do(t, http.MethodPost, "/admin/token", nil, map[string]string{"X-Admin-Token": ""})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAdminMutations(t *testing.T) {
	a := newTestAPI(t, defaultAuth())
	tutor, _, profile := a.seed(t)
	auth := a.token(t)
	studentPath := fmt.Sprintf("/admin/students/%d", profile.ID)

	steps := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
	}{
		{"update student", http.MethodPut, studentPath, map[string]any{"age": 17}, http.StatusOK},
		{"reject bad age", http.MethodPut, studentPath, map[string]any{"age": 0}, http.StatusBadRequest},
		{"verify tutor", http.MethodPut, fmt.Sprintf("/admin/tutors/%d/verify", tutor.ID), verifyRequest{Verified: true}, http.StatusOK},
		{"bad report time", http.MethodPut, "/admin/settings/daily_report_time", settingRequest{Value: "25:00"}, http.StatusBadRequest},
		{"report time", http.MethodPut, "/admin/settings/daily_report_time", settingRequest{Value: "07:30"}, http.StatusOK},
		{"delete student", http.MethodDelete, studentPath, nil, http.StatusNoContent},
		{"student gone", http.MethodGet, studentPath, nil, http.StatusNotFound},
		{"unknown session", http.MethodGet, "/admin/sessions/999", nil, http.StatusNotFound},
		{"run reports", http.MethodPost, "/admin/reports/run", nil, http.StatusOK},
	}

	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			if rec := a.do(t, s.method, s.path, s.body, auth); rec.Code != s.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, s.wantStatus, rec.Body)
			}
		})
	}

	rec := a.do(t, http.MethodGet, "/admin/audit-logs?limit=10", nil, auth)
	var resp struct {
		AuditLogs []models.AuditLog `json:"audit_logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.AuditLogs) != 4 {
		t.Fatalf("expected 4 audit rows for the successful mutations, got %d", len(resp.AuditLogs))
	}
	if resp.AuditLogs[0].Action != "delete" || resp.AuditLogs[0].Entity != "student_profile" {
		t.Errorf("newest audit row = %+v", resp.AuditLogs[0])
	}
}

func TestAdminTokenActorMustBeAdmin(t *testing.T) {
	a := newTestAPI(t, defaultAuth())
	ctx := context.Background()
	tutor, _, _ := a.seed(t)

	admin, err := a.identity.ResolveOrCreateAccount(ctx, 50, "Ada Admin", "")
	if err != nil {
		t.Fatalf("ResolveOrCreateAccount: %v", err)
	}
	if _, err := a.identity.AssignRole(ctx, admin.ID, models.RoleAdmin); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	tests := []struct {
		name       string
		accountID  int64
		wantStatus int
	}{
		{"unknown account", 9999, http.StatusNotFound},
		{"account without admin role", tutor.ID, http.StatusForbidden},
		{"admin account", admin.ID, http.StatusCreated},
	}

	var auth map[string]string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, "/admin/token", tokenRequest{AccountID: &tt.accountID},
				map[string]string{"X-Admin-Token": testSecret})
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if rec.Code == http.StatusCreated {
				var resp tokenResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode token: %v", err)
				}
				auth = map[string]string{"Authorization": "Bearer " + resp.Token}
			}
		})
	}
	if auth == nil {
		t.Fatal("no token issued for the admin account")
	}

	if rec := a.do(t, http.MethodPut, fmt.Sprintf("/admin/tutors/%d/verify", tutor.ID), verifyRequest{Verified: true}, auth); rec.Code != http.StatusOK {
		t.Fatalf("verify: status %d (%s)", rec.Code, rec.Body)
	}
	rec := a.do(t, http.MethodGet, "/admin/audit-logs", nil, auth)
	var resp struct {
		AuditLogs []models.AuditLog `json:"audit_logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.AuditLogs) != 1 || resp.AuditLogs[0].AdminAccountID == nil || *resp.AuditLogs[0].AdminAccountID != admin.ID {
		t.Errorf("audit actor = %+v, want account %d", resp.AuditLogs, admin.ID)
	}
}
