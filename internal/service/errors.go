package service

import (
	"errors"
	"fmt"

	"tutormula/internal/models"
	"tutormula/internal/utils"
)

// Entity names used in NotFoundError
const (
	EntityAccount        = "account"
	EntityStudentProfile = "student profile"
	EntityTutor          = "tutor"
	EntitySession        = "session"
	EntityParent         = "parent"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrStudentProfileNotFound = errors.New("student profile not found")
	ErrTutorNotFound          = errors.New("tutor not found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrParentNotFound         = errors.New("parent not found")
)

var sentinels = map[string]error{
	EntityAccount:        ErrAccountNotFound,
	EntityStudentProfile: ErrStudentProfileNotFound,
	EntityTutor:          ErrTutorNotFound,
	EntitySession:        ErrSessionNotFound,
	EntityParent:         ErrParentNotFound,
}

// NotFoundError reports a referenced row that does not exist
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is matches the sentinel for the entity, so errors.Is(err, ErrSessionNotFound) works
func (e *NotFoundError) Is(target error) bool {
	s, ok := sentinels[e.Entity]
	return ok && s == target
}

func notFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// AuthorizationError reports an action attempted without the required role
type AuthorizationError struct {
	Action string
	Role   models.RoleKind
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s requires the %s role", e.Action, e.Role)
}

// DeliveryError wraps a failed outbound notification
type DeliveryError struct {
	Recipient int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %d failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a utils.ValidationError
func IsValidation(err error) bool {
	var v utils.ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is a *NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAuthorization reports whether err is an *AuthorizationError
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
