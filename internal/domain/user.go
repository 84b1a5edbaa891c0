package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role determines what an identity may see and change.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the lifecycle state of an account. Deleted accounts are kept
// for referential integrity and hidden from every read.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusDeleted  UserStatus = "deleted"
)

// Valid reports whether s is a known account status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusDeleted:
		return true
	}
	return false
}

// User is an authenticated principal. Tasks are created by and assigned to users.
type User struct {
	ID             uuid.UUID     `json:"id"`
	HumanID        string        `json:"userId"`
	Username       string        `json:"username"`
	Email          string        `json:"email"`
	HashedPassword string        `json:"-"`
	Role           Role          `json:"role"`
	TeamID         uuid.NullUUID `json:"team"`
	Status         UserStatus    `json:"status"`
	FailedAttempts int           `json:"-"`
	LockUntil      *time.Time    `json:"-"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// NewUser creates an active user with the plain role. The caller hashes the
// password before calling and assigns HumanID before persisting.
func NewUser(username, email, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:             uuid.New(),
		Username:       strings.TrimSpace(username),
		Email:          strings.ToLower(strings.TrimSpace(email)),
		HashedPassword: hashedPassword,
		Role:           RoleUser,
		Status:         UserStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

// Validate checks the invariants that hold for every stored user.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if n := len(u.Username); n < 3 || n > 30 {
		return NewValidationError("username", "must be between 3 and 30 characters", ErrValidation)
	}
	if u.Email == "" {
		return NewValidationError("email", "cannot be empty", ErrInvalidEmail)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return NewValidationError("email", "has invalid format", ErrInvalidEmail)
	}
	if u.HashedPassword == "" {
		return NewValidationError("password", "cannot be empty", ErrValidation)
	}
	if !u.Role.Valid() {
		return NewValidationError("role", "must be one of user, manager, admin", ErrInvalidRole)
	}
	if !u.Status.Valid() {
		return NewValidationError("status", "must be one of active, inactive, deleted", ErrInvalidUserStatus)
	}
	return nil
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// InTeam reports whether u belongs to team.
func (u *User) InTeam(team uuid.UUID) bool {
	return u.TeamID.Valid && u.TeamID.UUID == team
}

// LockRemaining returns how long the login lock still holds, or zero.
func (u *User) LockRemaining(now time.Time) time.Duration {
	if u.LockUntil == nil || !u.LockUntil.After(now) {
		return 0
	}
	return u.LockUntil.Sub(now)
}

// RecordFailedLogin counts a failed password check and locks the account for
// lockout once threshold consecutive failures have accumulated. It reports
// whether this failure caused the lock.
func (u *User) RecordFailedLogin(now time.Time, threshold int, lockout time.Duration) bool {
	u.FailedAttempts++
	u.UpdatedAt = now
	if u.FailedAttempts >= threshold {
		until := now.Add(lockout)
		u.LockUntil = &until
		return true
	}
	return false
}

// ResetFailedLogins clears the failure counter and any lock.
func (u *User) ResetFailedLogins(now time.Time) {
	u.FailedAttempts = 0
	u.LockUntil = nil
	u.UpdatedAt = now
}
