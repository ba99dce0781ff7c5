package service

import (
	"context"
	"log/slog"

	"tutormula/internal/database"
	"tutormula/internal/models"
	"tutormula/internal/repository"
)

// EnrollmentService links student profiles to tutors
type EnrollmentService struct {
	db    *database.DB
	store *repository.Store
	log   *slog.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(db *database.DB, log *slog.Logger) *EnrollmentService {
	return &EnrollmentService{
		db:    db,
		store: repository.NewStore(db),
		log:   log.With(slog.String("component", "enrollment")),
	}
}

// Enroll links the profile to the tutor. An existing active link for the pair is returned as is.
func (s *EnrollmentService) Enroll(ctx context.Context, studentProfileID, tutorAccountID int64) (*models.Enrollment, error) {
	var enrollment *models.Enrollment
	created := false

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		st := repository.NewStore(tx)
		if _, err := requireStudentProfile(ctx, st, studentProfileID); err != nil {
			return err
		}
		if _, err := requireRole(ctx, st, tutorAccountID, models.RoleTutor, "enrolling with a tutor"); err != nil {
			return err
		}

		var err error
		if enrollment, err = st.Enrollments.FindActive(ctx, studentProfileID, tutorAccountID); err != nil || enrollment != nil {
			return err
		}
		enrollment, err = st.Enrollments.Create(ctx, studentProfileID, tutorAccountID)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.log.Info("enrolled",
			slog.Int64("student_profile_id", studentProfileID),
			slog.Int64("tutor_id", tutorAccountID),
		)
	}
	return enrollment, nil
}

// EnrollSelf enrolls the caller's own student profile with the tutor
func (s *EnrollmentService) EnrollSelf(ctx context.Context, accountID, tutorAccountID int64) (*models.Enrollment, error) {
	profile, err := s.store.Students.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, notFound(EntityStudentProfile, accountID)
	}
	return s.Enroll(ctx, profile.ID, tutorAccountID)
}

// EnrollmentsForStudent returns the profile's active enrollments by start date
func (s *EnrollmentService) EnrollmentsForStudent(ctx context.Context, studentProfileID int64) ([]models.Enrollment, error) {
	return s.store.Enrollments.ListActiveByStudent(ctx, studentProfileID)
}

// EnrollmentsForTutor returns the tutor's active enrollments by start date
func (s *EnrollmentService) EnrollmentsForTutor(ctx context.Context, tutorAccountID int64) ([]models.Enrollment, error) {
	return s.store.Enrollments.ListActiveByTutor(ctx, tutorAccountID)
}

// TutorsForStudent returns the distinct tutors the profile is actively enrolled with
func (s *EnrollmentService) TutorsForStudent(ctx context.Context, studentProfileID int64) ([]models.Account, error) {
	enrollments, err := s.EnrollmentsForStudent(ctx, studentProfileID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var tutors []models.Account
	for _, e := range enrollments {
		if seen[e.TutorAccountID] {
			continue
		}
		seen[e.TutorAccountID] = true
		a, err := s.store.Accounts.GetByID(ctx, e.TutorAccountID)
		if err != nil {
			return nil, err
		}
		if a != nil {
			tutors = append(tutors, *a)
		}
	}
	return tutors, nil
}

// StudentsForTutor returns the distinct profiles actively enrolled with the tutor
func (s *EnrollmentService) StudentsForTutor(ctx context.Context, tutorAccountID int64) ([]models.StudentProfile, error) {
	enrollments, err := s.EnrollmentsForTutor(ctx, tutorAccountID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var students []models.StudentProfile
	for _, e := range enrollments {
		if seen[e.StudentProfileID] {
			continue
		}
		seen[e.StudentProfileID] = true
		p, err := s.store.Students.GetByID(ctx, e.StudentProfileID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			students = append(students, *p)
		}
	}
	return students, nil
}
