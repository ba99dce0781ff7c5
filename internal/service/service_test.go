package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tutormula/internal/database"
	"tutormula/internal/logger"
	"tutormula/internal/models"
	"tutormula/internal/repository"
)

type delivery struct {
	ExternalID int64
	Text       string
}

type recordingDeliverer struct {
	mu    sync.Mutex
	calls []delivery
	err   error
}

func (d *recordingDeliverer) Deliver(_ context.Context, externalID int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, delivery{ExternalID: externalID, Text: text})
	return d.err
}

func (d *recordingDeliverer) Calls() []delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivery(nil), d.calls...)
}

type testEnv struct {
	db         *database.DB
	store      *repository.Store
	identity   *IdentityService
	enrollment *EnrollmentService
	scheduling *SchedulingService
	notify     *NotifyService
	reports    *ReportService
	admin      *AdminService
	deliverer  *recordingDeliverer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.Discard()
	d := &recordingDeliverer{}
	return &testEnv{
		db:         db,
		store:      repository.NewStore(db),
		identity:   NewIdentityService(db, log),
		enrollment: NewEnrollmentService(db, log),
		scheduling: NewSchedulingService(db, log),
		notify:     NewNotifyService(db, d, time.Second, nil, log),
		reports:    NewReportService(db, d, nil, time.Second, nil, log),
		admin:      NewAdminService(db, log),
		deliverer:  d,
	}
}

func (e *testEnv) tutor(t *testing.T, externalID int64, name string) *models.Account {
	t.Helper()
	a, _, err := e.identity.RegisterTutor(context.Background(),
		Contact{ExternalID: externalID, FullName: name, Phone: "+1"},
		TutorDetails{Subjects: "Math", Education: "BSc", ExperienceYears: 4})
	if err != nil {
		t.Fatalf("RegisterTutor: %v", err)
	}
	return a
}

func (e *testEnv) parent(t *testing.T, externalID int64, name string) *models.Account {
	t.Helper()
	a, _, err := e.identity.RegisterParent(context.Background(),
		Contact{ExternalID: externalID, FullName: name, Phone: "+2"},
		ParentDetails{Occupation: "Engineer"})
	if err != nil {
		t.Fatalf("RegisterParent: %v", err)
	}
	return a
}

func (e *testEnv) child(t *testing.T, parentID int64, name string) *models.StudentProfile {
	t.Helper()
	p, err := e.identity.AddManagedChild(context.Background(), parentID,
		StudentDetails{FullName: name, Grade: "4", School: "Elm", Age: 9})
	if err != nil {
		t.Fatalf("AddManagedChild: %v", err)
	}
	return p
}

func (e *testEnv) session(t *testing.T, tutorID, profileID int64, at time.Time) *models.Session {
	t.Helper()
	s, err := e.scheduling.CreateSession(context.Background(), NewSession{
		TutorAccountID:   tutorID,
		StudentProfileID: profileID,
		ScheduledAt:      at,
		DurationMinutes:  60,
		Topic:            "Algebra",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func future(days int) time.Time {
	return time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour).Truncate(time.Minute)
}

func TestRegistrationIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	contact := Contact{ExternalID: 555, FullName: "Sam Student", Phone: "+44"}
	details := StudentDetails{Grade: "8", School: "Oak", Age: 13}

	first, p1, err := env.identity.RegisterStudent(ctx, contact, details)
	if err != nil {
		t.Fatalf("RegisterStudent: %v", err)
	}
	details.Grade = "9"
	second, p2, err := env.identity.RegisterStudent(ctx, contact, details)
	if err != nil {
		t.Fatalf("RegisterStudent again: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected one account, got %d and %d", first.ID, second.ID)
	}
	if p1.ID != p2.ID || p2.Grade != "9" {
		t.Errorf("expected profile %d updated in place, got %+v", p1.ID, p2)
	}

	n, err := env.store.Accounts.CountRoles(ctx, first.ID, models.RoleStudent)
	if err != nil {
		t.Fatalf("CountRoles: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one student role row, got %d", n)
	}

	accounts, _ := env.store.Accounts.ListAll(ctx)
	profiles, _ := env.store.Students.ListAll(ctx)
	if len(accounts) != 1 || len(profiles) != 1 {
		t.Errorf("expected 1 account and 1 profile, got %d and %d", len(accounts), len(profiles))
	}
	if profiles[0].AccountID == nil || *profiles[0].AccountID != first.ID {
		t.Errorf("profile should be owned by the account: %+v", profiles[0])
	}
}

func TestAssignRoleTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.identity.ResolveOrCreateAccount(ctx, 12, "Ann", "")
	if err != nil {
		t.Fatalf("ResolveOrCreateAccount: %v", err)
	}

	r1, err := env.identity.AssignRole(ctx, a.ID, models.RoleStudent)
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	r2, err := env.identity.AssignRole(ctx, a.ID, models.RoleStudent)
	if err != nil {
		t.Fatalf("AssignRole again: %v", err)
	}
	if r1.ID != r2.ID {
		t.Errorf("expected the existing role row, got %d and %d", r1.ID, r2.ID)
	}

	n, _ := env.store.Accounts.CountRoles(ctx, a.ID, models.RoleStudent)
	if n != 1 {
		t.Errorf("expected one student role row, got %d", n)
	}

	if _, err := env.identity.AssignRole(ctx, a.ID, models.RoleKind("teacher")); !IsValidation(err) {
		t.Errorf("unknown role should be a validation error, got %v", err)
	}
	if _, err := env.identity.AssignRole(ctx, 9999, models.RoleTutor); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("missing account should be not found, got %v", err)
	}
}

func TestResolveOrCreateKeepsExistingContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.identity.ResolveOrCreateAccount(ctx, 1<<62, "Long Id", "+9"); err != nil {
		t.Fatalf("ResolveOrCreateAccount: %v", err)
	}

	tests := []struct {
		name      string
		inName    string
		inPhone   string
		wantName  string
		wantPhone string
	}{
		{"empty values keep data", "", "", "Long Id", "+9"},
		{"name only", "New Name", "", "New Name", "+9"},
		{"phone only", "  ", "+10", "New Name", "+10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := env.identity.ResolveOrCreateAccount(ctx, 1<<62, tt.inName, tt.inPhone)
			if err != nil {
				t.Fatalf("ResolveOrCreateAccount: %v", err)
			}
			if a.FullName != tt.wantName || a.Phone != tt.wantPhone {
				t.Errorf("got (%q, %q), want (%q, %q)", a.FullName, a.Phone, tt.wantName, tt.wantPhone)
			}
			if a.ExternalID != 1<<62 {
				t.Errorf("external id truncated: %d", a.ExternalID)
			}
		})
	}
}

func TestProfileOwnershipInvariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent := env.parent(t, 900, "Pam")
	env.child(t, parent.ID, "Virtual Kid")

	owner, owned, err := env.identity.RegisterStudent(ctx, Contact{ExternalID: 901, FullName: "Real Kid"}, StudentDetails{Grade: "5", Age: 10})
	if err != nil {
		t.Fatalf("RegisterStudent: %v", err)
	}

	linked, err := env.identity.LinkChild(ctx, parent.ID, owned.ID)
	if err != nil {
		t.Fatalf("LinkChild: %v", err)
	}
	if linked.AccountID == nil || *linked.AccountID != owner.ID {
		t.Errorf("link must keep the owning account: %+v", linked)
	}

	children, err := env.identity.ResolveManagedChildren(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ResolveManagedChildren: %v", err)
	}
	if len(children) != 2 || children[0].FullName != "Virtual Kid" || children[1].FullName != "Real Kid" {
		t.Errorf("unexpected children: %+v", children)
	}

	all, _ := env.store.Students.ListAll(ctx)
	for _, p := range all {
		if !p.Valid() {
			t.Errorf("profile %d has neither owner nor parent", p.ID)
		}
	}

	t.Run("only parents may link", func(t *testing.T) {
		_, err := env.identity.LinkChild(ctx, owner.ID, owned.ID)
		if !IsAuthorization(err) {
			t.Errorf("expected authorization error, got %v", err)
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		_, err := env.identity.LinkChild(ctx, parent.ID, 4242)
		if !errors.Is(err, ErrStudentProfileNotFound) {
			t.Errorf("expected student profile not found, got %v", err)
		}
	})
}

func TestEnroll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tutor := env.tutor(t, 10, "Tom")
	parent := env.parent(t, 11, "Pia")
	kid := env.child(t, parent.ID, "Kai")

	e1, err := env.enrollment.Enroll(ctx, kid.ID, tutor.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	e2, err := env.enrollment.Enroll(ctx, kid.ID, tutor.ID)
	if err != nil {
		t.Fatalf("Enroll again: %v", err)
	}
	if e1.ID != e2.ID {
		t.Errorf("expected idempotent enroll, got %d and %d", e1.ID, e2.ID)
	}

	list, _ := env.enrollment.EnrollmentsForTutor(ctx, tutor.ID)
	if len(list) != 1 {
		t.Errorf("expected one active enrollment, got %d", len(list))
	}

	tests := []struct {
		name    string
		profile int64
		tutor   int64
		check   func(error) bool
	}{
		{"missing profile", 999, tutor.ID, func(err error) bool { return errors.Is(err, ErrStudentProfileNotFound) }},
		{"missing tutor", kid.ID, 999, func(err error) bool { return errors.Is(err, ErrTutorNotFound) }},
		{"not a tutor", kid.ID, parent.ID, IsAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.enrollment.Enroll(ctx, tt.profile, tt.tutor)
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("enroll self without profile", func(t *testing.T) {
		_, err := env.enrollment.EnrollSelf(ctx, parent.ID, tutor.ID)
		if !IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestSessionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tutor := env.tutor(t, 20, "Tia")
	student, profile, err := env.identity.RegisterStudent(ctx, Contact{ExternalID: 21, FullName: "Stu"}, StudentDetails{Age: 15})
	if err != nil {
		t.Fatalf("RegisterStudent: %v", err)
	}

	at := future(3)
	created := env.session(t, tutor.ID, profile.ID, at)

	for _, order := range []SessionOrder{Upcoming, History} {
		got, err := env.scheduling.SessionsForActor(ctx, tutor.ID, models.RoleTutor, order)
		if err != nil {
			t.Fatalf("SessionsForActor tutor: %v", err)
		}
		if len(got) != 1 || got[0].ID != created.ID || !got[0].ScheduledAt.Equal(at) || got[0].Topic != "Algebra" || got[0].DurationMinutes != 60 {
			t.Errorf("order %d: unexpected sessions %+v", order, got)
		}
	}

	byStudent, err := env.scheduling.SessionsForActor(ctx, student.ID, models.RoleStudent, Upcoming)
	if err != nil || len(byStudent) != 1 {
		t.Errorf("SessionsForActor student = (%v, %v)", byStudent, err)
	}

	byProfile, err := env.scheduling.SessionsForProfile(ctx, profile.ID)
	if err != nil || len(byProfile) != 1 || byProfile[0].ID != created.ID {
		t.Errorf("SessionsForProfile = (%v, %v)", byProfile, err)
	}

	t.Run("validation", func(t *testing.T) {
		bad := []NewSession{
			{TutorAccountID: tutor.ID, StudentProfileID: profile.ID, ScheduledAt: at, DurationMinutes: 0, Topic: "x"},
			{TutorAccountID: tutor.ID, StudentProfileID: profile.ID, ScheduledAt: at, DurationMinutes: 30, Topic: "  "},
		}
		for _, in := range bad {
			if _, err := env.scheduling.CreateSession(ctx, in); !IsValidation(err) {
				t.Errorf("CreateSession(%+v) = %v, want validation error", in, err)
			}
		}
		_, err := env.scheduling.CreateSession(ctx, NewSession{TutorAccountID: student.ID, StudentProfileID: profile.ID, ScheduledAt: at, DurationMinutes: 30, Topic: "x"})
		if !IsAuthorization(err) {
			t.Errorf("non-tutor session should be unauthorized, got %v", err)
		}
	})
}

func TestMarkAttendanceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tutor := env.tutor(t, 30, "Tal")
	parent := env.parent(t, 31, "Pat")
	kid := env.child(t, parent.ID, "Kit")
	s := env.session(t, tutor.ID, kid.ID, future(1))

	for i := 0; i < 2; i++ {
		if err := env.scheduling.MarkAttendance(ctx, s.ID, kid.ID, models.AttendancePresent); err != nil {
			t.Fatalf("MarkAttendance: %v", err)
		}
	}
	n, _ := env.store.Attendance.CountForSession(ctx, s.ID)
	if n != 1 {
		t.Errorf("expected exactly one attendance row, got %d", n)
	}

	if err := env.scheduling.MarkAttendance(ctx, s.ID, kid.ID, models.AttendanceStatus("excused")); !IsValidation(err) {
		t.Errorf("unknown status should be a validation error, got %v", err)
	}
	if err := env.scheduling.MarkAttendance(ctx, 9999, kid.ID, models.AttendanceLate); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session should be not found, got %v", err)
	}

	t.Run("batch rejects other tutors' sessions", func(t *testing.T) {
		other := env.tutor(t, 32, "Ola")
		err := env.scheduling.MarkAttendanceBatch(ctx, other.ID, []AttendanceMark{{SessionID: s.ID, StudentProfileID: kid.ID}}, models.AttendanceLate)
		if !IsAuthorization(err) {
			t.Errorf("expected authorization error, got %v", err)
		}
		a, _ := env.store.Attendance.Get(ctx, s.ID, kid.ID)
		if a.Status != models.AttendancePresent {
			t.Errorf("rejected batch must not change status, got %s", a.Status)
		}
	})
}

func TestCreateReportScoreBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tutor := env.tutor(t, 40, "Tex")
	parent := env.parent(t, 41, "Pip")
	kid := env.child(t, parent.ID, "Kat")

	tests := []struct {
		score   int
		wantErr bool
	}{
		{0, true},
		{11, true},
		{1, false},
		{10, false},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			s := env.session(t, tutor.ID, kid.ID, future(1))
			_, err := env.scheduling.CreateReport(ctx, s.ID, tutor.ID, "Notes", tt.score)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Errorf("score %d: expected validation error, got %v", tt.score, err)
				}
				if r, _ := env.store.Reports.GetBySession(ctx, s.ID); r != nil {
					t.Errorf("score %d: report must not be stored", tt.score)
				}
				return
			}
			if err != nil {
				t.Errorf("score %d: unexpected error %v", tt.score, err)
			}
		})
	}

	s := env.session(t, tutor.ID, kid.ID, future(2))

	t.Run("author must be the session tutor", func(t *testing.T) {
		other := env.tutor(t, 42, "Ty")
		if _, err := env.scheduling.CreateReport(ctx, s.ID, other.ID, "Mine", 5); !IsAuthorization(err) {
			t.Errorf("expected authorization error, got %v", err)
		}
	})

	t.Run("one report per session", func(t *testing.T) {
		if _, err := env.scheduling.CreateReport(ctx, s.ID, tutor.ID, "First", 6); err != nil {
			t.Fatalf("CreateReport: %v", err)
		}
		if _, err := env.scheduling.CreateReport(ctx, s.ID, tutor.ID, "Second", 7); !IsValidation(err) {
			t.Errorf("expected validation error for a second report, got %v", err)
		}
	})
}

func TestCheckAndNotifyParent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tutor := env.tutor(t, 50, "Tina")
	parent := env.parent(t, 999, "Paula")
	kid := env.child(t, parent.ID, "Kim")
	s := env.session(t, tutor.ID, kid.ID, future(1))

	if err := env.scheduling.MarkAttendance(ctx, s.ID, kid.ID, models.AttendancePresent); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	t.Run("nothing before the report", func(t *testing.T) {
		if env.notify.CheckAndNotifyParent(ctx, s.ID) {
			t.Error("expected no delivery")
		}
		if n := len(env.deliverer.Calls()); n != 0 {
			t.Errorf("expected zero deliveries, got %d", n)
		}
		complete, _ := env.scheduling.IsSessionComplete(ctx, s.ID)
		if complete {
			t.Error("session should not be complete")
		}
	})

	if _, err := env.scheduling.CreateReport(ctx, s.ID, tutor.ID, "Good work", 8); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	t.Run("one delivery once complete", func(t *testing.T) {
		if !env.notify.CheckAndNotifyParent(ctx, s.ID) {
			t.Fatal("expected delivery")
		}
		calls := env.deliverer.Calls()
		if len(calls) != 1 {
			t.Fatalf("expected one delivery, got %d", len(calls))
		}
		if calls[0].ExternalID != 999 {
			t.Errorf("delivered to %d, want 999", calls[0].ExternalID)
		}
		for _, want := range []string{"present", "8", "Good work", "Algebra", "Tina"} {
			if !strings.Contains(calls[0].Text, want) {
				t.Errorf("summary %q missing %q", calls[0].Text, want)
			}
		}
	})

	t.Run("delivery failure is swallowed", func(t *testing.T) {
		env.deliverer.err = errors.New("chat unreachable")
		if env.notify.CheckAndNotifyParent(ctx, s.ID) {
			t.Error("failed delivery must report false")
		}
	})

	t.Run("self-owned student has no parent to notify", func(t *testing.T) {
		env.deliverer.err = nil
		_, own, err := env.identity.RegisterStudent(ctx, Contact{ExternalID: 51, FullName: "Solo"}, StudentDetails{Age: 16})
		if err != nil {
			t.Fatalf("RegisterStudent: %v", err)
		}
		s2 := env.session(t, tutor.ID, own.ID, future(2))
		_ = env.scheduling.MarkAttendance(ctx, s2.ID, own.ID, models.AttendanceLate)
		_, _ = env.scheduling.CreateReport(ctx, s2.ID, tutor.ID, "Ok", 5)
		before := len(env.deliverer.Calls())
		if env.notify.CheckAndNotifyParent(ctx, s2.ID) {
			t.Error("expected no delivery without a managing parent")
		}
		if len(env.deliverer.Calls()) != before {
			t.Error("unexpected delivery")
		}
	})
}

func TestDailyReportPass(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tutor := env.tutor(t, 60, "Ted")
	busy := env.parent(t, 61, "Busy Parent")
	env.parent(t, 62, "Quiet Parent")
	kid := env.child(t, busy.ID, "Kip")

	s := env.session(t, tutor.ID, kid.ID, future(1))
	if err := env.scheduling.MarkAttendance(ctx, s.ID, kid.ID, models.AttendanceAbsent); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if _, err := env.scheduling.CreateReport(ctx, s.ID, tutor.ID, "Missed it", 3); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	res, err := env.reports.RunDailyPass(ctx)
	if err != nil {
		t.Fatalf("RunDailyPass: %v", err)
	}
	if res.Parents != 2 || res.Sent != 1 || res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("unexpected result %+v", res)
	}

	calls := env.deliverer.Calls()
	if len(calls) != 1 || calls[0].ExternalID != 61 {
		t.Fatalf("unexpected deliveries %+v", calls)
	}
	if !strings.Contains(calls[0].Text, "Kip") || !strings.Contains(calls[0].Text, "absent") {
		t.Errorf("digest missing content: %q", calls[0].Text)
	}

	logs, _ := env.store.ReportLogs.ListByParent(ctx, busy.ID)
	if len(logs) != 1 || logs[0].Status != models.ReportLogSuccess {
		t.Errorf("expected one success log, got %+v", logs)
	}
	p, _ := env.store.Parents.GetByAccountID(ctx, busy.ID)
	if p.LastReportSentAt == nil {
		t.Error("last_report_sent_at not stamped")
	}

	if v, _ := env.reports.ReportTime(ctx); v != DefaultReportTime {
		t.Errorf("ReportTime = %q", v)
	}
}

func TestAdminMutationsAreAudited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tutor := env.tutor(t, 70, "Tam")
	parent := env.parent(t, 71, "Pen")
	kid := env.child(t, parent.ID, "Kia")
	if _, err := env.enrollment.Enroll(ctx, kid.ID, tutor.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	s := env.session(t, tutor.ID, kid.ID, future(1))
	if err := env.scheduling.MarkAttendance(ctx, s.ID, kid.ID, models.AttendancePresent); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}

	grade := "6"
	if _, err := env.admin.UpdateStudentProfile(ctx, nil, kid.ID, StudentUpdate{Grade: &grade}); err != nil {
		t.Fatalf("UpdateStudentProfile: %v", err)
	}
	if err := env.admin.SetTutorVerified(ctx, nil, tutor.ID, true); err != nil {
		t.Fatalf("SetTutorVerified: %v", err)
	}
	if err := env.admin.UpdateSetting(ctx, nil, repository.SettingDailyReportTime, "25:00"); !IsValidation(err) {
		t.Errorf("bad report time should be a validation error, got %v", err)
	}
	if err := env.admin.UpdateSetting(ctx, nil, repository.SettingDailyReportTime, "18:45"); err != nil {
		t.Fatalf("UpdateSetting: %v", err)
	}
	if err := env.admin.DeleteStudentProfile(ctx, nil, kid.ID); err != nil {
		t.Fatalf("DeleteStudentProfile: %v", err)
	}

	if p, _ := env.store.Students.GetByID(ctx, kid.ID); p != nil {
		t.Error("profile should be deleted")
	}
	if list, _ := env.store.Enrollments.ListActiveByStudent(ctx, kid.ID); len(list) != 0 {
		t.Errorf("enrollments should be removed, got %d", len(list))
	}
	if n, _ := env.store.Attendance.CountForSession(ctx, s.ID); n != 0 {
		t.Errorf("attendance should be removed, got %d", n)
	}
	if kept, _ := env.store.Sessions.GetByID(ctx, s.ID); kept == nil {
		t.Error("session should be retained")
	}

	logs, err := env.admin.AuditLogs(ctx, 10)
	if err != nil {
		t.Fatalf("AuditLogs: %v", err)
	}
	if len(logs) != 4 {
		t.Fatalf("expected 4 audit rows, got %d", len(logs))
	}
	if logs[0].Action != "delete" || logs[0].Entity != "student_profile" {
		t.Errorf("newest audit row = %+v", logs[0])
	}

	if err := env.admin.DeleteStudentProfile(ctx, nil, kid.ID); !errors.Is(err, ErrStudentProfileNotFound) {
		t.Errorf("second delete should be not found, got %v", err)
	}
	if logs, _ := env.admin.AuditLogs(ctx, 10); len(logs) != 4 {
		t.Errorf("failed mutation must not be audited, got %d rows", len(logs))
	}
}

func TestBackupRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	ctx := context.Background()

	tutor := src.tutor(t, 80, "Tig")
	parent := src.parent(t, 81, "Pol")
	kid := src.child(t, parent.ID, "Kev")
	s := src.session(t, tutor.ID, kid.ID, future(1))
	if err := src.scheduling.MarkAttendance(ctx, s.ID, kid.ID, models.AttendanceLate); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if _, err := src.scheduling.CreateReport(ctx, s.ID, tutor.ID, "Fine", 7); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	var buf bytes.Buffer
	exported, err := NewBackupService(src.db, logger.Discard()).Export(ctx, &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newTestEnv(t)
	backup := NewBackupService(dst.db, logger.Discard())
	if _, err := backup.Import(ctx, bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Import: %v", err)
	}

	restored, err := backup.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(restored.Accounts) != len(exported.Accounts) ||
		len(restored.Sessions) != len(exported.Sessions) ||
		len(restored.Reports) != 1 || len(restored.Attendance) != 1 {
		t.Errorf("restored counts differ: %+v", restored)
	}

	detail, err := dst.scheduling.SessionDetail(ctx, s.ID)
	if err != nil {
		t.Fatalf("SessionDetail: %v", err)
	}
	if !detail.Complete() || detail.Student == nil || detail.Student.FullName != "Kev" {
		t.Errorf("unexpected restored detail %+v", detail)
	}

	if _, err := backup.Import(ctx, bytes.NewReader(buf.Bytes())); err == nil {
		t.Error("import into a non-empty database should fail")
	}
}
