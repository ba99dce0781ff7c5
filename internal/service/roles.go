package service

import (
	"context"
	"fmt"

	"tutormula/internal/models"
	"tutormula/internal/repository"
	"tutormula/internal/utils"
)

// requireRole fails with NotFoundError when the account is missing and
// AuthorizationError when it lacks role
func requireRole(ctx context.Context, st *repository.Store, accountID int64, role models.RoleKind, action string) (*models.Account, error) {
	account, err := st.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		entity := EntityAccount
		switch role {
		case models.RoleTutor:
			entity = EntityTutor
		case models.RoleParent:
			entity = EntityParent
		}
		return nil, notFound(entity, accountID)
	}
	r, err := st.Accounts.GetRole(ctx, accountID, role)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &AuthorizationError{Action: action, Role: role}
	}
	return account, nil
}

func requireStudentProfile(ctx context.Context, st *repository.Store, id int64) (*models.StudentProfile, error) {
	p, err := st.Students.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound(EntityStudentProfile, id)
	}
	return p, nil
}

func requireSession(ctx context.Context, st *repository.Store, id int64) (*models.Session, error) {
	s, err := st.Sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, notFound(EntitySession, id)
	}
	return s, nil
}

func validRole(role models.RoleKind) error {
	if !role.Valid() {
		return utils.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	return nil
}
