package conversation

import (
	"context"
	"fmt"
	"strings"

	"tutormula/internal/models"
	"tutormula/internal/service"
)

const (
	attendanceViewLimit = 10
	childReportLimit    = 5
)

// nameBook caches display names for one reply
type nameBook struct {
	e        *Engine
	profiles map[int64]string
	accounts map[int64]string
}

func (e *Engine) names() *nameBook {
	return &nameBook{e: e, profiles: map[int64]string{}, accounts: map[int64]string{}}
}

func (n *nameBook) student(ctx context.Context, id int64) (string, error) {
	if name, ok := n.profiles[id]; ok {
		return name, nil
	}
	name := "Unknown"
	if id != 0 {
		p, err := n.e.identity.StudentProfile(ctx, id)
		if err != nil && !service.IsNotFound(err) {
			return "", err
		}
		if p != nil {
			name = p.FullName
		}
	}
	n.profiles[id] = name
	return name, nil
}

func (n *nameBook) account(ctx context.Context, id int64) (string, error) {
	if name, ok := n.accounts[id]; ok {
		return name, nil
	}
	name := "Unknown"
	a, err := n.e.identity.Account(ctx, id)
	if err != nil && !service.IsNotFound(err) {
		return "", err
	}
	if a != nil {
		name = a.FullName
	}
	n.accounts[id] = name
	return name, nil
}

func attendanceLine(a *models.Attendance) string {
	if a == nil {
		return "⚪ Not Marked"
	}
	return a.Status.Label()
}

func (e *Engine) help(t *turn) []Reply {
	text := "ℹ️ *Tutormula Help*\n\n" +
		"• Profile: your details and roles\n" +
		"• Search Tutors: browse tutors and enroll\n" +
		"• Create Session / My Sessions: schedule and review lessons\n" +
		"• Tutors: Create Report, Mark Attendance, My Students\n" +
		"• Students: My Attendance\n" +
		"• Parents: Add New Student, Link Child, My Children, Child Reports\n\n" +
		"Press Back at any time to cancel and return to the menu."
	return e.menu(t, text)
}

func (e *Engine) profile(ctx context.Context, t *turn) ([]Reply, error) {
	a := t.account
	lines := []string{"👤 *Profile Details*", "", "Name: " + a.FullName}
	if a.Phone != "" {
		lines = append(lines, "Phone: "+a.Phone)
	}
	roles := "None"
	if !t.roles.Empty() {
		roles = t.roles.String()
	}
	lines = append(lines, "Roles: "+roles)

	if t.roles.Has(models.RoleStudent) {
		p, err := e.identity.ResolveStudentProfile(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			enrollments, err := e.enrollment.EnrollmentsForStudent(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			sessions, err := e.scheduling.SessionsForProfile(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			lines = append(lines, "", "📚 *Student Info*",
				"Grade: "+p.Grade,
				"School: "+p.School,
				fmt.Sprintf("Age: %d", p.Age),
				fmt.Sprintf("Enrolled Tutors: %d", len(enrollments)),
				fmt.Sprintf("Total Sessions: %d", len(sessions)),
			)
		}
	}

	if t.roles.Has(models.RoleTutor) {
		p, err := e.identity.TutorProfile(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			students, err := e.enrollment.StudentsForTutor(ctx, a.ID)
			if err != nil {
				return nil, err
			}
			sessions, err := e.scheduling.SessionsForActor(ctx, a.ID, models.RoleTutor, service.History)
			if err != nil {
				return nil, err
			}
			lines = append(lines, "", "👨‍🏫 *Tutor Info*",
				"Subjects: "+p.Subjects,
				"Education: "+p.Education,
				fmt.Sprintf("Experience: %d years", p.ExperienceYears),
				"Status: "+p.VerificationLabel(),
				fmt.Sprintf("Total Students: %d", len(students)),
				fmt.Sprintf("Total Sessions: %d", len(sessions)),
			)
		}
	}

	if t.roles.Has(models.RoleParent) {
		p, err := e.identity.ParentProfile(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			children, err := e.identity.ResolveManagedChildren(ctx, a.ID)
			if err != nil {
				return nil, err
			}
			lines = append(lines, "", "👪 *Parent Info*",
				"Occupation: "+p.Occupation,
				fmt.Sprintf("Children: %d", len(children)),
			)
		}
	}

	return []Reply{{Text: strings.Join(lines, "\n")}}, nil
}

func (e *Engine) searchTutors(ctx context.Context, t *turn) ([]Reply, error) {
	tutors, err := e.identity.SearchTutors(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(tutors) == 0 {
		return []Reply{{Text: "No tutors available at the moment."}}, nil
	}

	canEnroll := t.roles.Has(models.RoleStudent) || t.roles.Has(models.RoleParent)
	var b strings.Builder
	b.WriteString("🔍 *Available Tutors:*\n")
	var buttons []string
	for _, tw := range tutors {
		fmt.Fprintf(&b, "\n👤 *%s* (ID: %d)\n", tw.Account.FullName, tw.Account.ID)
		if p := tw.Profile; p != nil {
			fmt.Fprintf(&b, "📚 Subjects: %s\n🎓 Education: %s\n⏳ Experience: %d years\n🛡️ Status: %s\n",
				p.Subjects, p.Education, p.ExperienceYears, p.VerificationLabel())
		} else {
			b.WriteString("📚 Subjects: Not specified\n")
		}
		if canEnroll && tw.Account.ID != t.account.ID {
			buttons = append(buttons, fmt.Sprintf("%s%d", enrollPrefix, tw.Account.ID))
		}
	}

	reply := Reply{Text: b.String()}
	if len(buttons) > 0 {
		reply.Keyboard = choices(buttons)
	}
	return []Reply{reply}, nil
}

func (e *Engine) mySessions(ctx context.Context, t *turn) ([]Reply, error) {
	role := models.RoleStudent
	switch {
	case t.roles.Has(models.RoleTutor):
		role = models.RoleTutor
	case t.roles.Has(models.RoleStudent):
	case t.roles.Has(models.RoleParent):
		role = models.RoleParent
	default:
		return nil, &service.AuthorizationError{Action: "listing sessions", Role: models.RoleStudent}
	}

	sessions, err := e.scheduling.SessionsForActor(ctx, t.account.ID, role, service.Upcoming)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return []Reply{{Text: "You have no upcoming sessions."}}, nil
	}

	book := e.names()
	var b strings.Builder
	b.WriteString("📅 *Your Sessions:*\n\n")
	for _, s := range sessions {
		label, name := "Tutor", ""
		if role == models.RoleTutor {
			label = "Student"
			name, err = book.student(ctx, s.StudentProfileID)
		} else {
			name, err = book.account(ctx, s.TutorAccountID)
		}
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "🔹 *%s*\n👤 %s: %s\n", s.Topic, label, name)
		if role == models.RoleParent {
			child, err := book.student(ctx, s.StudentProfileID)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&b, "👶 Child: %s\n", child)
		}
		fmt.Fprintf(&b, "⏰ %s\n⏳ %d min\n\n", s.ScheduledAt.UTC().Format(models.SessionTimeLayout), s.DurationMinutes)
	}
	return []Reply{{Text: b.String()}}, nil
}

func (e *Engine) myStudents(ctx context.Context, t *turn) ([]Reply, error) {
	if err := require(t, models.RoleTutor, "listing students"); err != nil {
		return nil, err
	}
	students, err := e.enrollment.StudentsForTutor(ctx, t.account.ID)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return []Reply{{Text: "You have no enrolled students."}}, nil
	}

	var b strings.Builder
	b.WriteString("👥 *Your Students:*\n\n")
	for _, s := range students {
		fmt.Fprintf(&b, "🔹 %s", s.FullName)
		if s.Grade != "" {
			fmt.Fprintf(&b, " (Grade %s)", s.Grade)
		}
		b.WriteString("\n")
	}
	return []Reply{{Text: b.String()}}, nil
}

// myAttendance shows a student their own record. Parents first pick one of their children.
func (e *Engine) myAttendance(ctx context.Context, t *turn) ([]Reply, error) {
	if !t.roles.Has(models.RoleStudent) && t.roles.Has(models.RoleParent) {
		return e.startChildAttendance(ctx, t)
	}
	if err := require(t, models.RoleStudent, "viewing attendance"); err != nil {
		return nil, err
	}
	profile, err := e.identity.ResolveStudentProfile(ctx, t.account.ID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return []Reply{{Text: "Please complete your student registration first."}}, nil
	}
	text, err := e.attendanceRecord(ctx, profile)
	if err != nil {
		return nil, err
	}
	return []Reply{{Text: text}}, nil
}

func (e *Engine) startChildAttendance(ctx context.Context, t *turn) ([]Reply, error) {
	children, err := e.identity.ResolveManagedChildren(ctx, t.account.ID)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return []Reply{{Text: "You haven't linked any children yet. Use 'Link Child' or 'Add New Student' to begin."}}, nil
	}

	t.state.start(FlowChildAttendance, attChild)
	labels, ids := profileChoices(children, childChoice)
	t.state.setIDs(keyChoices, ids)
	return ask("Select a child to view attendance:", choices(labels)), nil
}

func (e *Engine) childAttendanceStep(ctx context.Context, t *turn) ([]Reply, error) {
	if t.state.Node != attChild {
		return e.lost(t)
	}
	id, ok := refID(idRef, t.text)
	if !ok || !t.state.hasID(keyChoices, id) {
		return t.retry("Please pick a child from the keyboard.")
	}

	// the child may have been unlinked since the menu was shown
	children, err := e.identity.ResolveManagedChildren(ctx, t.account.ID)
	if err != nil {
		return nil, err
	}
	for i := range children {
		if children[i].ID != id {
			continue
		}
		text, err := e.attendanceRecord(ctx, &children[i])
		if err != nil {
			return nil, err
		}
		return e.done(t, text), nil
	}
	return e.done(t, "❌ That child is no longer linked to your account."), nil
}

// attendanceRecord renders the latest sessions of a profile with their attendance
func (e *Engine) attendanceRecord(ctx context.Context, profile *models.StudentProfile) (string, error) {
	details, err := e.scheduling.ReportsForProfile(ctx, profile.ID)
	if err != nil {
		return "", err
	}
	if len(details) == 0 {
		return fmt.Sprintf("📅 %s has no recorded sessions yet.", profile.FullName), nil
	}
	if len(details) > attendanceViewLimit {
		details = details[:attendanceViewLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Attendance Record for %s (Last %d Sessions):*\n\n", profile.FullName, len(details))
	for _, d := range details {
		tutor := "Unknown"
		if d.Tutor != nil {
			tutor = d.Tutor.FullName
		}
		fmt.Fprintf(&b, "📚 *%s*\n👨‍🏫 Tutor: %s\n📅 Date: %s\n📊 Status: %s\n\n",
			d.Session.Topic, tutor, d.Session.ScheduledAt.UTC().Format(models.SessionTimeLayout), attendanceLine(d.Attendance))
	}
	return b.String(), nil
}

func (e *Engine) myChildren(ctx context.Context, t *turn) ([]Reply, error) {
	if err := require(t, models.RoleParent, "listing children"); err != nil {
		return nil, err
	}
	children, err := e.identity.ResolveManagedChildren(ctx, t.account.ID)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return []Reply{{Text: "You haven't linked any children yet. Use 'Link Child' or 'Add New Student' to begin."}}, nil
	}

	var b strings.Builder
	b.WriteString("👶 *Your Children:*\n\n")
	for _, c := range children {
		fmt.Fprintf(&b, "• %s (Grade %s, %s)", c.FullName, c.Grade, c.School)
		if c.AccountID != nil {
			b.WriteString(" 🔗")
		}
		b.WriteString("\n")
	}
	return []Reply{{Text: b.String()}}, nil
}

func (e *Engine) childReports(ctx context.Context, t *turn) ([]Reply, error) {
	if err := require(t, models.RoleParent, "viewing child reports"); err != nil {
		return nil, err
	}
	children, err := e.identity.ResolveManagedChildren(ctx, t.account.ID)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return []Reply{{Text: "You haven't linked any children yet."}}, nil
	}

	var b strings.Builder
	b.WriteString("📋 *Recent Reports:*\n")
	found := false
	for _, c := range children {
		details, err := e.scheduling.ReportsForProfile(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		shown := 0
		for _, d := range details {
			if d.Report == nil || shown == childReportLimit {
				continue
			}
			if shown == 0 {
				fmt.Fprintf(&b, "\n👤 *%s:*\n", c.FullName)
			}
			fmt.Fprintf(&b, "📅 *%s* (%s)\n⭐ Score: %d/%d\n📊 Attendance: %s\n📝 %s\n\n",
				d.Session.Topic, d.Session.ScheduledAt.UTC().Format("2006-01-02"),
				d.Report.Score, models.MaxReportScore, attendanceLine(d.Attendance), d.Report.Content)
			shown++
			found = true
		}
	}

	if !found {
		return []Reply{{Text: "No reports found for your children yet."}}, nil
	}
	return []Reply{{Text: b.String()}}, nil
}
