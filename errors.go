package fieldwork

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore         = errors.New("fieldwork: no store configured")
	ErrStoreClosed     = errors.New("fieldwork: store closed")
	ErrMigrationFailed = errors.New("fieldwork: migration failed")

	// Not found errors.
	ErrJobNotFound     = errors.New("fieldwork: job not found")
	ErrTaskNotFound    = errors.New("fieldwork: task not found")
	ErrScholarNotFound = errors.New("fieldwork: scholar not found")
	ErrPayoutNotFound  = errors.New("fieldwork: payout not found")
	ErrMediaNotFound   = errors.New("fieldwork: media not found")

	// Conflict errors. All of them match errors.Is(err, ErrConflict).
	ErrConflict        = errors.New("fieldwork: conflict")
	ErrAlreadyClaimed  = fmt.Errorf("%w: job already claimed", ErrConflict)
	ErrVersionConflict = fmt.Errorf("%w: job modified concurrently", ErrConflict)
	ErrJobExists       = fmt.Errorf("%w: job already exists", ErrConflict)
	ErrScholarExists   = fmt.Errorf("%w: scholar already exists", ErrConflict)
	ErrPayoutExists    = fmt.Errorf("%w: payout already exists", ErrConflict)

	// State errors.
	ErrGuardViolation    = errors.New("fieldwork: guard violation")
	ErrInvalidTransition = errors.New("fieldwork: invalid state transition")

	// Authorization errors.
	ErrUnauthorized = errors.New("fieldwork: unauthorized")

	// External collaborator errors.
	ErrGenerationFailed   = errors.New("fieldwork: document generation failed")
	ErrNotificationFailed = errors.New("fieldwork: notification failed")
)

// GuardError reports a rejected action together with the guard it violated.
// It unwraps to ErrInvalidTransition when the current state has no edge for
// the action, and to ErrGuardViolation otherwise.
type GuardError struct {
	Action string
	Guard  string
	State  string
	Reason string

	missingEdge bool
}

// NewGuardError builds a guard violation for action in state.
func NewGuardError(action, guard, state, reason string) *GuardError {
	return &GuardError{Action: action, Guard: guard, State: state, Reason: reason}
}

// NewTransitionError reports that state has no edge for action.
func NewTransitionError(action, state string) *GuardError {
	return &GuardError{
		Action:      action,
		Guard:       "edge",
		State:       state,
		Reason:      fmt.Sprintf("%s is not allowed from %s", action, state),
		missingEdge: true,
	}
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("fieldwork: %s rejected (%s): %s", e.Action, e.Guard, e.Reason)
}

func (e *GuardError) Unwrap() error {
	if e.missingEdge {
		return ErrInvalidTransition
	}
	return ErrGuardViolation
}

// AuthError reports an actor attempting an action its role does not allow.
type AuthError struct {
	Action string
	Role   Role
}

// NewAuthError builds an authorization failure for action.
func NewAuthError(action string, role Role) *AuthError {
	return &AuthError{Action: action, Role: role}
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("fieldwork: %s is not permitted for role %q", e.Action, e.Role)
}

func (e *AuthError) Unwrap() error { return ErrUnauthorized }

// IsConflict reports whether err is any conflict error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsGuard reports whether err is a guard violation or a missing edge.
func IsGuard(err error) bool {
	return errors.Is(err, ErrGuardViolation) || errors.Is(err, ErrInvalidTransition)
}

// IsNotFound reports whether err is any not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrScholarNotFound) ||
		errors.Is(err, ErrPayoutNotFound) ||
		errors.Is(err, ErrMediaNotFound)
}
