package complaint

import (
	"errors"
	"fmt"

	"civicshield/backend/internal/models"
	"civicshield/backend/internal/storage"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("not authorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("complaint not found")
	// ErrConflict is returned when another writer committed the same
	// complaint first. The caller may retry.
	ErrConflict = storage.ErrConflict
)

// ValidationError reports bad input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AuthorizationError reports a role or ownership violation.
type AuthorizationError struct {
	ActorID     string
	Action      string
	ComplaintID string
}

func (e *AuthorizationError) Error() string {
	if e.ComplaintID == "" {
		return fmt.Sprintf("actor %q may not %s", e.ActorID, e.Action)
	}
	return fmt.Sprintf("actor %q may not %s complaint %s", e.ActorID, e.Action, e.ComplaintID)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

// InvalidTransitionError reports an operation attempted from a status that
// does not allow it.
type InvalidTransitionError struct {
	ComplaintID string
	Action      string
	From        models.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s complaint %s in status %s", e.Action, e.ComplaintID, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// NotFoundError reports an unknown complaint id.
type NotFoundError struct {
	ComplaintID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("complaint %s not found", e.ComplaintID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
