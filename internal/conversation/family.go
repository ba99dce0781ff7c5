package conversation

import (
	"context"
	"fmt"

	"tutormula/internal/models"
	"tutormula/internal/service"
	"tutormula/internal/utils"
)

const (
	childName   = "name"
	childGrade  = "grade"
	childSchool = "school"
	childAge    = "age"

	linkName    = "name"
	linkPick    = "pick"
	linkMatches = "matches"
)

func (e *Engine) startAddStudent(t *turn) ([]Reply, error) {
	if err := require(t, models.RoleParent, "adding a student"); err != nil {
		return nil, err
	}
	t.state.start(FlowAddStudent, childName)
	return prompt("What is the student's full name?"), nil
}

func (e *Engine) addStudentStep(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.state.Node {
	case childName:
		if err := utils.ValidateName(t.text); err != nil {
			return t.retry("Please enter the student's full name (at least 2 characters).")
		}
		t.state.set(childName, t.text)
		t.state.Node = childGrade
		return prompt("Which grade are they in?"), nil

	case childGrade:
		grade, err := utils.RequireText("grade", t.text)
		if err != nil {
			return t.retry("Please enter the grade.")
		}
		t.state.set(childGrade, grade)
		t.state.Node = childSchool
		return prompt("What school do they attend?"), nil

	case childSchool:
		school, err := utils.RequireText("school", t.text)
		if err != nil {
			return t.retry("Please enter the school.")
		}
		t.state.set(childSchool, school)
		t.state.Node = childAge
		return prompt("How old are they?"), nil

	case childAge:
		age, err := utils.ParseAge(t.text)
		if err != nil {
			return t.retry("Please enter a valid number for age.")
		}
		profile, err := e.identity.AddManagedChild(ctx, t.account.ID, service.StudentDetails{
			FullName: t.state.get(childName),
			Grade:    t.state.get(childGrade),
			School:   t.state.get(childSchool),
			Age:      age,
		})
		if err != nil {
			return nil, err
		}
		e.completed(FlowAddStudent)
		return e.done(t, fmt.Sprintf("✅ Added %s. Use Search Tutors to enroll them with a tutor.", profile.FullName)), nil
	}
	return e.lost(t)
}

func (e *Engine) startLinkChild(t *turn) ([]Reply, error) {
	if err := require(t, models.RoleParent, "linking a child"); err != nil {
		return nil, err
	}
	t.state.start(FlowLinkChild, linkName)
	return prompt("Please enter your child's full name (as they registered in the bot):"), nil
}

func (e *Engine) linkChildStep(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.state.Node {
	case linkName:
		if t.text == "" {
			return t.retry("Please enter your child's full name.")
		}
		matches, err := e.identity.FindStudentsByName(ctx, t.text)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
			return e.done(t, "Student not found. 🧐\n\n"+
				"1. Make sure your child has registered with the bot as a 'Student'.\n"+
				"2. Ensure the name matches exactly.\n\n"+
				"You can also use 'Add New Student' to create a profile for your child."), nil
		case 1:
			return e.link(ctx, t, matches[0].ID)
		}

		labels, ids := profileChoices(matches, matchChoice)
		t.state.setIDs(linkMatches, ids)
		t.state.Node = linkPick
		return ask("Several students share that name. Which one is your child?", choices(labels)), nil

	case linkPick:
		id, ok := refID(hashRef, t.text)
		if !ok || !t.state.hasID(linkMatches, id) {
			return t.retry("Please pick a student from the keyboard.")
		}
		return e.link(ctx, t, id)
	}
	return e.lost(t)
}

func (e *Engine) link(ctx context.Context, t *turn, profileID int64) ([]Reply, error) {
	profile, err := e.identity.LinkChild(ctx, t.account.ID, profileID)
	if err != nil {
		return nil, err
	}
	e.completed(FlowLinkChild)
	return e.done(t, fmt.Sprintf("✅ Successfully linked to %s!", profile.FullName)), nil
}

// enroll signs the sender, or one of their children, up with a tutor
func (e *Engine) enroll(ctx context.Context, t *turn, tutorID int64) ([]Reply, error) {
	if t.roles.Has(models.RoleStudent) {
		profile, err := e.identity.ResolveStudentProfile(ctx, t.account.ID)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			if _, err := e.enrollment.Enroll(ctx, profile.ID, tutorID); err != nil {
				return nil, err
			}
			e.completed(FlowEnroll)
			return e.menu(t, "🎉 Successfully enrolled! The tutor will contact you soon."), nil
		}
	}

	if err := require(t, models.RoleParent, "enrolling with a tutor"); err != nil {
		return nil, err
	}
	children, err := e.identity.ResolveManagedChildren(ctx, t.account.ID)
	if err != nil {
		return nil, err
	}
	switch len(children) {
	case 0:
		return e.menu(t, "Add or link a child first, then enroll them."), nil
	case 1:
		return e.enrollChild(ctx, t, children[0].ID, tutorID)
	}

	t.state.start(FlowEnroll, linkPick)
	t.state.setInt("tutor_id", tutorID)
	labels, ids := profileChoices(children, childChoice)
	t.state.setIDs(linkMatches, ids)
	return ask("Which child should be enrolled?", choices(labels)), nil
}

func (e *Engine) enrollStep(ctx context.Context, t *turn) ([]Reply, error) {
	id, ok := refID(idRef, t.text)
	if !ok || !t.state.hasID(linkMatches, id) {
		return t.retry("Please pick a child from the keyboard.")
	}
	return e.enrollChild(ctx, t, id, t.state.int64("tutor_id"))
}

func (e *Engine) enrollChild(ctx context.Context, t *turn, profileID, tutorID int64) ([]Reply, error) {
	if _, err := e.enrollment.Enroll(ctx, profileID, tutorID); err != nil {
		return nil, err
	}
	profile, err := e.identity.StudentProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	e.completed(FlowEnroll)
	return e.done(t, fmt.Sprintf("🎉 %s is now enrolled. The tutor will contact you soon.", profile.FullName)), nil
}
