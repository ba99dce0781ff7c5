package conversation

import (
	"context"
	"fmt"

	"tutormula/internal/models"
	"tutormula/internal/service"
	"tutormula/internal/utils"
)

const (
	sessChild       = "child"
	sessCounterpart = "counterpart"
	sessTopic       = "topic"
	sessDate        = "scheduled_at"
	sessDuration    = "duration"

	keyChoices = "choices"
	keyPick    = "pick"
	keyTutor   = "tutor_id"
	keyProfile = "student_profile_id"
)

func (e *Engine) startCreateSession(ctx context.Context, t *turn) ([]Reply, error) {
	switch {
	case t.roles.Has(models.RoleTutor):
		students, err := e.enrollment.StudentsForTutor(ctx, t.account.ID)
		if err != nil {
			return nil, err
		}
		if len(students) == 0 {
			return e.menu(t, "You don't have any enrolled students yet."), nil
		}
		t.state.start(FlowCreateSession, sessCounterpart)
		t.state.setInt(keyTutor, t.account.ID)
		t.state.set(keyPick, string(models.RoleStudent))
		labels, ids := profileChoices(students, studentChoice)
		t.state.setIDs(keyChoices, ids)
		return ask("Which student is this session for?", choices(labels)), nil

	case t.roles.Has(models.RoleStudent):
		profile, err := e.identity.ResolveStudentProfile(ctx, t.account.ID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return e.menu(t, "Please complete your student registration first."), nil
		}
		t.state.start(FlowCreateSession, sessCounterpart)
		t.state.setInt(keyProfile, profile.ID)
		return e.askTutor(ctx, t, profile)

	case t.roles.Has(models.RoleParent):
		children, err := e.identity.ResolveManagedChildren(ctx, t.account.ID)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return e.menu(t, "You have no children yet. Use 'Add New Student' or 'Link Child' first."), nil
		}
		t.state.start(FlowCreateSession, sessChild)
		labels, ids := profileChoices(children, childChoice)
		t.state.setIDs(keyChoices, ids)
		return ask("Which child is this session for?", choices(labels)), nil
	}

	return nil, &service.AuthorizationError{Action: "creating a session", Role: models.RoleTutor}
}

// askTutor offers the tutors profile is enrolled with
func (e *Engine) askTutor(ctx context.Context, t *turn, profile *models.StudentProfile) ([]Reply, error) {
	tutors, err := e.enrollment.TutorsForStudent(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	if len(tutors) == 0 {
		if t.account.ID == derefID(profile.AccountID) {
			return e.done(t, "You don't have any enrolled tutors yet. Search and enroll first!"), nil
		}
		return e.done(t, fmt.Sprintf("%s has no enrolled tutors yet. Use Search Tutors to enroll them.", profile.FullName)), nil
	}

	labels := make([]string, len(tutors))
	ids := make([]int64, len(tutors))
	for i, a := range tutors {
		labels[i] = tutorChoice(a)
		ids[i] = a.ID
	}
	t.state.Node = sessCounterpart
	t.state.set(keyPick, string(models.RoleTutor))
	t.state.setIDs(keyChoices, ids)
	return ask("Which tutor is this session for?", choices(labels)), nil
}

func (e *Engine) createSessionStep(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.state.Node {
	case sessChild:
		id, ok := refID(idRef, t.text)
		if !ok || !t.state.hasID(keyChoices, id) {
			return t.retry("Please pick a child from the keyboard.")
		}
		profile, err := e.identity.StudentProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		t.state.setInt(keyProfile, id)
		return e.askTutor(ctx, t, profile)

	case sessCounterpart:
		id, ok := refID(idRef, t.text)
		if !ok || !t.state.hasID(keyChoices, id) {
			return t.retry("Please pick a person from the keyboard.")
		}
		if t.state.get(keyPick) == string(models.RoleStudent) {
			t.state.setInt(keyProfile, id)
		} else {
			t.state.setInt(keyTutor, id)
		}
		t.state.Node = sessTopic
		return prompt("What is the topic of the session?"), nil

	case sessTopic:
		topic, err := utils.RequireText("topic", t.text)
		if err != nil {
			return t.retry("Please enter a topic.")
		}
		t.state.set(sessTopic, topic)
		t.state.Node = sessDate
		return prompt("When is the session? (Use YYYY-MM-DD HH:MM format, e.g., 2024-05-20 15:30)"), nil

	case sessDate:
		at, err := utils.ParseScheduledAt(t.text)
		if err != nil {
			return t.retry("Invalid format. Please use YYYY-MM-DD HH:MM")
		}
		t.state.set(sessDate, at.Format(models.SessionTimeLayout))
		t.state.Node = sessDuration
		return prompt("How many minutes will the session last?"), nil

	case sessDuration:
		minutes, err := utils.ParseDuration(t.text)
		if err != nil {
			return t.retry("Please enter a valid number of minutes.")
		}
		at, err := utils.ParseScheduledAt(t.state.get(sessDate))
		if err != nil {
			return e.lost(t)
		}
		session, err := e.scheduling.CreateSession(ctx, service.NewSession{
			TutorAccountID:   t.state.int64(keyTutor),
			StudentProfileID: t.state.int64(keyProfile),
			ScheduledAt:      at,
			DurationMinutes:  minutes,
			Topic:            t.state.get(sessTopic),
		})
		if err != nil {
			return nil, err
		}
		e.completed(FlowCreateSession)
		return e.done(t, fmt.Sprintf("✅ Session created successfully!\n\n📚 %s\n⏰ %s\n⏳ %d min",
			session.Topic, session.ScheduledAt.Format(models.SessionTimeLayout), session.DurationMinutes)), nil
	}
	return e.lost(t)
}

func profileChoices(profiles []models.StudentProfile, label func(models.StudentProfile) string) ([]string, []int64) {
	labels := make([]string, len(profiles))
	ids := make([]int64, len(profiles))
	for i, p := range profiles {
		labels[i] = label(p)
		ids[i] = p.ID
	}
	return labels, ids
}

func derefID(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
