package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tutormula/internal/database"
	"tutormula/internal/models"
	"tutormula/internal/repository"
	"tutormula/internal/utils"
)

// Contact is what a chat user supplies about themselves
type Contact struct {
	ExternalID int64
	FullName   string
	Phone      string
}

// StudentDetails are the fields collected for a student profile
type StudentDetails struct {
	FullName string
	Grade    string
	School   string
	Age      int
}

// TutorDetails are the fields collected for a tutor profile
type TutorDetails struct {
	Subjects        string
	Education       string
	ExperienceYears int
}

// ParentDetails are the fields collected for a parent profile
type ParentDetails struct {
	Occupation string
	Email      string
}

// IdentityService maps chat identities to accounts, roles and profiles
type IdentityService struct {
	db    *database.DB
	store *repository.Store
	log   *slog.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(db *database.DB, log *slog.Logger) *IdentityService {
	return &IdentityService{
		db:    db,
		store: repository.NewStore(db),
		log:   log.With(slog.String("component", "identity")),
	}
}

// ResolveOrCreateAccount looks up the account for externalID and creates it when absent.
// Name and phone on an existing account are only replaced by non-empty values.
func (s *IdentityService) ResolveOrCreateAccount(ctx context.Context, externalID int64, name, phone string) (*models.Account, error) {
	var account *models.Account
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		account, err = resolveOrCreate(ctx, repository.NewStore(tx), Contact{ExternalID: externalID, FullName: name, Phone: phone})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	return account, nil
}

func resolveOrCreate(ctx context.Context, st *repository.Store, c Contact) (*models.Account, error) {
	name := strings.TrimSpace(c.FullName)
	phone := strings.TrimSpace(c.Phone)

	account, err := st.Accounts.GetByExternalID(ctx, c.ExternalID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return st.Accounts.Create(ctx, c.ExternalID, name, phone)
	}

	changed := false
	if name != "" && name != account.FullName {
		account.FullName = name
		changed = true
	}
	if phone != "" && phone != account.Phone {
		account.Phone = phone
		changed = true
	}
	if changed {
		if err := st.Accounts.UpdateContact(ctx, account.ID, account.FullName, account.Phone); err != nil {
			return nil, err
		}
	}
	return account, nil
}

// AssignRole grants role to the account. Assigning a held role returns the existing row.
func (s *IdentityService) AssignRole(ctx context.Context, accountID int64, role models.RoleKind) (*models.Role, error) {
	if err := validRole(role); err != nil {
		return nil, err
	}
	var out *models.Role
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		account, err := st.Accounts.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return notFound(EntityAccount, accountID)
		}
		if err := st.Accounts.InsertRole(ctx, accountID, role); err != nil {
			return err
		}
		out, err = st.Accounts.GetRole(ctx, accountID, role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetRolesFor returns the roles held by the account
func (s *IdentityService) GetRolesFor(ctx context.Context, accountID int64) (models.RoleSet, error) {
	return s.store.Accounts.RolesFor(ctx, accountID)
}

// ResolveStudentProfile returns the profile owned by the account, or nil
func (s *IdentityService) ResolveStudentProfile(ctx context.Context, accountID int64) (*models.StudentProfile, error) {
	return s.store.Students.GetByAccountID(ctx, accountID)
}

// ResolveManagedChildren returns the profiles a parent manages in creation order
func (s *IdentityService) ResolveManagedChildren(ctx context.Context, parentAccountID int64) ([]models.StudentProfile, error) {
	return s.store.Students.ListByParent(ctx, parentAccountID)
}

// AccountByExternalID returns the account for a chat identity, or nil
func (s *IdentityService) AccountByExternalID(ctx context.Context, externalID int64) (*models.Account, error) {
	return s.store.Accounts.GetByExternalID(ctx, externalID)
}

// RequireRole returns the account when it exists and holds role
func (s *IdentityService) RequireRole(ctx context.Context, accountID int64, role models.RoleKind, action string) (*models.Account, error) {
	return requireRole(ctx, s.store, accountID, role, action)
}

// Account returns the account with id
func (s *IdentityService) Account(ctx context.Context, id int64) (*models.Account, error) {
	a, err := s.store.Accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound(EntityAccount, id)
	}
	return a, nil
}

// StudentProfile returns the profile with id
func (s *IdentityService) StudentProfile(ctx context.Context, id int64) (*models.StudentProfile, error) {
	return requireStudentProfile(ctx, s.store, id)
}

// TutorProfile returns the tutor profile of the account, or nil
func (s *IdentityService) TutorProfile(ctx context.Context, accountID int64) (*models.TutorProfile, error) {
	return s.store.Tutors.GetByAccountID(ctx, accountID)
}

// ParentProfile returns the parent profile of the account, or nil
func (s *IdentityService) ParentProfile(ctx context.Context, accountID int64) (*models.ParentProfile, error) {
	return s.store.Parents.GetByAccountID(ctx, accountID)
}

// RegisterStudent finalizes student registration: account, role and owned profile.
// Registering again updates the owned profile in place.
func (s *IdentityService) RegisterStudent(ctx context.Context, c Contact, d StudentDetails) (*models.Account, *models.StudentProfile, error) {
	var account *models.Account
	var profile *models.StudentProfile

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		var err error
		if account, err = resolveOrCreate(ctx, st, c); err != nil {
			return err
		}
		if err := st.Accounts.InsertRole(ctx, account.ID, models.RoleStudent); err != nil {
			return err
		}

		if profile, err = st.Students.GetByAccountID(ctx, account.ID); err != nil {
			return err
		}
		if profile == nil {
			profile = &models.StudentProfile{AccountID: &account.ID}
			profile.FullName, profile.Grade, profile.School, profile.Age = account.FullName, d.Grade, d.School, d.Age
			return st.Students.Create(ctx, profile)
		}
		// the owned profile's name follows the account name
		profile.FullName, profile.Grade, profile.School, profile.Age = account.FullName, d.Grade, d.School, d.Age
		return st.Students.Update(ctx, profile)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register student: %w", err)
	}

	s.log.Info("student registered", slog.Int64("account_id", account.ID), slog.Int64("profile_id", profile.ID))
	return account, profile, nil
}

// RegisterTutor finalizes tutor registration: account, role and tutor profile
func (s *IdentityService) RegisterTutor(ctx context.Context, c Contact, d TutorDetails) (*models.Account, *models.TutorProfile, error) {
	var account *models.Account
	var profile *models.TutorProfile

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		var err error
		if account, err = resolveOrCreate(ctx, st, c); err != nil {
			return err
		}
		if err := st.Accounts.InsertRole(ctx, account.ID, models.RoleTutor); err != nil {
			return err
		}

		if profile, err = st.Tutors.GetByAccountID(ctx, account.ID); err != nil {
			return err
		}
		if profile == nil {
			profile = &models.TutorProfile{AccountID: account.ID}
			profile.Subjects, profile.Education, profile.ExperienceYears = d.Subjects, d.Education, d.ExperienceYears
			return st.Tutors.Create(ctx, profile)
		}
		profile.Subjects, profile.Education, profile.ExperienceYears = d.Subjects, d.Education, d.ExperienceYears
		return st.Tutors.Update(ctx, profile)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register tutor: %w", err)
	}

	s.log.Info("tutor registered", slog.Int64("account_id", account.ID))
	return account, profile, nil
}

// RegisterParent finalizes parent registration: account, role and parent profile
func (s *IdentityService) RegisterParent(ctx context.Context, c Contact, d ParentDetails) (*models.Account, *models.ParentProfile, error) {
	if d.Email != "" {
		if err := utils.ValidateEmail(d.Email); err != nil {
			return nil, nil, err
		}
	}

	var account *models.Account
	var profile *models.ParentProfile

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		var err error
		if account, err = resolveOrCreate(ctx, st, c); err != nil {
			return err
		}
		if err := st.Accounts.InsertRole(ctx, account.ID, models.RoleParent); err != nil {
			return err
		}

		if profile, err = st.Parents.GetByAccountID(ctx, account.ID); err != nil {
			return err
		}
		if profile == nil {
			profile = &models.ParentProfile{AccountID: account.ID, Occupation: d.Occupation, Email: d.Email}
			return st.Parents.Create(ctx, profile)
		}
		profile.Occupation = d.Occupation
		if d.Email != "" {
			profile.Email = d.Email
		}
		return st.Parents.Update(ctx, profile)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register parent: %w", err)
	}

	s.log.Info("parent registered", slog.Int64("account_id", account.ID))
	return account, profile, nil
}

// AddManagedChild creates a profile managed by the parent with no owning account
func (s *IdentityService) AddManagedChild(ctx context.Context, parentAccountID int64, d StudentDetails) (*models.StudentProfile, error) {
	if err := utils.ValidateName(d.FullName); err != nil {
		return nil, err
	}

	var profile *models.StudentProfile
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		if _, err := requireRole(ctx, st, parentAccountID, models.RoleParent, "adding a student"); err != nil {
			return err
		}
		profile = &models.StudentProfile{
			ParentAccountID: &parentAccountID,
			FullName:        strings.TrimSpace(d.FullName),
			Grade:           d.Grade,
			School:          d.School,
			Age:             d.Age,
		}
		return st.Students.Create(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("managed child added", slog.Int64("parent_id", parentAccountID), slog.Int64("profile_id", profile.ID))
	return profile, nil
}

// FindStudentsByName returns every profile whose name matches case-insensitively
func (s *IdentityService) FindStudentsByName(ctx context.Context, name string) ([]models.StudentProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, utils.ValidationError{Field: "name", Message: "name is required"}
	}
	return s.store.Students.FindByName(ctx, name)
}

// LinkChild makes the parent the managing parent of an existing profile.
// An owning account, if any, is kept.
func (s *IdentityService) LinkChild(ctx context.Context, parentAccountID, profileID int64) (*models.StudentProfile, error) {
	var profile *models.StudentProfile
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		if _, err := requireRole(ctx, st, parentAccountID, models.RoleParent, "linking a child"); err != nil {
			return err
		}
		var err error
		if profile, err = requireStudentProfile(ctx, st, profileID); err != nil {
			return err
		}
		if err := st.Students.SetParent(ctx, profileID, parentAccountID); err != nil {
			return err
		}
		profile.ParentAccountID = &parentAccountID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("child linked", slog.Int64("parent_id", parentAccountID), slog.Int64("profile_id", profileID))
	return profile, nil
}

// SearchTutors lists tutors, optionally filtered by a subject substring
func (s *IdentityService) SearchTutors(ctx context.Context, subject string) ([]models.TutorWithProfile, error) {
	return s.store.Tutors.Search(ctx, subject)
}
