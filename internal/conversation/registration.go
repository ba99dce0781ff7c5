package conversation

import (
	"context"
	"fmt"
	"strconv"

	"tutormula/internal/models"
	"tutormula/internal/service"
	"tutormula/internal/utils"
)

const (
	regRole       = "role"
	regName       = "full_name"
	regPhone      = "phone"
	regGrade      = "grade"
	regSchool     = "school"
	regAge        = "age"
	regSubjects   = "subjects"
	regEducation  = "education"
	regExperience = "experience"
	regOccupation = "occupation"
)

func (e *Engine) startRegistration(t *turn, role models.RoleKind) []Reply {
	t.state.start(FlowRegistration, regRole)
	return e.afterRole(t, role)
}

// afterRole skips the contact prompts for accounts that already exist
func (e *Engine) afterRole(t *turn, role models.RoleKind) []Reply {
	t.state.set(regRole, string(role))
	if t.account != nil {
		return roleDetailsPrompt(t, role)
	}

	t.state.Node = regName
	keyboard := backOnly()
	if t.msg.Name != "" {
		keyboard = [][]string{{t.msg.Name}, {CmdBack}}
	}
	return ask(fmt.Sprintf("Great! You are registering as a %s. What is your full name?", role.Title()), keyboard)
}

func roleDetailsPrompt(t *turn, role models.RoleKind) []Reply {
	switch role {
	case models.RoleStudent:
		t.state.Node = regGrade
		return prompt("Which grade are you in?")
	case models.RoleTutor:
		t.state.Node = regSubjects
		return prompt("Which subjects do you teach?")
	default:
		t.state.Node = regOccupation
		return prompt("What is your occupation?")
	}
}

func (e *Engine) registrationStep(ctx context.Context, t *turn) ([]Reply, error) {
	switch t.state.Node {
	case regRole:
		role, ok := models.ParseRoleKind(t.text)
		if !ok || role == models.RoleAdmin {
			return t.retry("Please choose one of the roles: Student, Tutor, or Parent.")
		}
		return e.afterRole(t, role), nil

	case regName:
		if err := utils.ValidateName(t.text); err != nil {
			return t.retry("Please enter your full name (at least 2 characters).")
		}
		t.state.set(regName, t.text)
		t.state.Node = regPhone
		return prompt("Thank you. What is your phone number?"), nil

	case regPhone:
		phone, err := utils.RequireText("phone", t.text)
		if err != nil {
			return t.retry("Please enter your phone number.")
		}
		t.state.set(regPhone, phone)
		return roleDetailsPrompt(t, models.RoleKind(t.state.get(regRole))), nil

	case regGrade:
		grade, err := utils.RequireText("grade", t.text)
		if err != nil {
			return t.retry("Please enter your grade.")
		}
		t.state.set(regGrade, grade)
		t.state.Node = regSchool
		return prompt("What school do you attend?"), nil

	case regSchool:
		school, err := utils.RequireText("school", t.text)
		if err != nil {
			return t.retry("Please enter your school.")
		}
		t.state.set(regSchool, school)
		t.state.Node = regAge
		return prompt("How old are you?"), nil

	case regAge:
		age, err := utils.ParseAge(t.text)
		if err != nil {
			return t.retry("Please enter a valid number for age.")
		}
		t.state.setInt(regAge, int64(age))
		return e.finishRegistration(ctx, t)

	case regSubjects:
		subjects, err := utils.RequireText("subjects", t.text)
		if err != nil {
			return t.retry("Please list the subjects you teach.")
		}
		t.state.set(regSubjects, subjects)
		t.state.Node = regEducation
		return prompt("What is your educational background?"), nil

	case regEducation:
		education, err := utils.RequireText("education", t.text)
		if err != nil {
			return t.retry("Please describe your education.")
		}
		t.state.set(regEducation, education)
		t.state.Node = regExperience
		return prompt("How many years of experience do you have?"), nil

	case regExperience:
		years, err := utils.ParseExperience(t.text)
		if err != nil {
			return t.retry("Please enter a valid number for experience.")
		}
		t.state.set(regExperience, strconv.Itoa(years))
		return e.finishRegistration(ctx, t)

	case regOccupation:
		occupation, err := utils.RequireText("occupation", t.text)
		if err != nil {
			return t.retry("Please enter your occupation.")
		}
		t.state.set(regOccupation, occupation)
		return e.finishRegistration(ctx, t)
	}
	return e.lost(t)
}

func (e *Engine) finishRegistration(ctx context.Context, t *turn) ([]Reply, error) {
	st := t.state
	contact := service.Contact{
		ExternalID: t.msg.ExternalID,
		FullName:   st.get(regName),
		Phone:      st.get(regPhone),
	}

	var (
		account *models.Account
		err     error
	)
	switch models.RoleKind(st.get(regRole)) {
	case models.RoleStudent:
		account, _, err = e.identity.RegisterStudent(ctx, contact, service.StudentDetails{
			Grade:  st.get(regGrade),
			School: st.get(regSchool),
			Age:    st.int(regAge),
		})
	case models.RoleTutor:
		account, _, err = e.identity.RegisterTutor(ctx, contact, service.TutorDetails{
			Subjects:        st.get(regSubjects),
			Education:       st.get(regEducation),
			ExperienceYears: st.int(regExperience),
		})
	case models.RoleParent:
		account, _, err = e.identity.RegisterParent(ctx, contact, service.ParentDetails{
			Occupation: st.get(regOccupation),
		})
	default:
		return e.lost(t)
	}
	if err != nil {
		return nil, err
	}

	if err := e.refreshRoles(ctx, t, account); err != nil {
		return nil, err
	}
	e.completed(FlowRegistration)
	return e.done(t, "Registration complete! 🎉 You can now use the menu below."), nil
}
