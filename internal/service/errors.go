package service

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Service sentinel errors. Callers check them with errors.Is; the API layer
// maps them to HTTP status codes.
var (
	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	// API layer should map this to HTTP 401 Unauthorized.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked indicates too many consecutive failed logins.
	// Returned wrapped in *AccountLockedError.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountInactive indicates the account is blocked or deleted.
	ErrAccountInactive = errors.New("account has been deleted or blocked")

	// ErrSessionRevoked indicates the token's session was logged out, trimmed or expired.
	ErrSessionRevoked = errors.New("session is no longer valid")

	// ErrAlreadyAssigned indicates a reassignment to the current assignee.
	// Returned wrapped in a *domain.ValidationError.
	ErrAlreadyAssigned = errors.New("task is already assigned to this user")

	// ErrTeamRequired indicates a team-scoped request without a team to scope it to.
	ErrTeamRequired = errors.New("team ID is required")
)

// AccountLockedError carries how long a locked account stays locked.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	minutes := int(math.Ceil(e.Remaining.Minutes()))
	return fmt.Sprintf("account locked. Try again after %d minutes", minutes)
}

// Is matches ErrAccountLocked.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// ServiceError records which service operation failed.
type ServiceError struct {
	Service   string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newTaskError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "task", Operation: operation, Message: message, Err: err}
}

func newUserError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "user", Operation: operation, Message: message, Err: err}
}
