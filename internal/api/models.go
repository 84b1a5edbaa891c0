package api

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/api/shared"
)

// Request payloads. IDs arrive as strings so malformed values are reported
// as validation errors rather than decode failures.

// SignupRequest defines the payload for the signup endpoint.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,password_strength"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// UpdateProfileRequest defines the payload for PUT /users/me. Omitted and
// empty fields are left unchanged.
type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Email    *string `json:"email"    validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,password_strength"`
}

// Validate drops blank fields before checking the rest.
func (r *UpdateProfileRequest) Validate() error {
	for _, field := range []**string{&r.Username, &r.Email, &r.Password} {
		if *field != nil && strings.TrimSpace(**field) == "" {
			*field = nil
		}
	}
	return shared.Validator().Struct(r)
}

// SetRoleRequest defines the payload for PUT /users/{id}/role.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,user_role"`
}

// SetStatusRequest defines the payload for PUT /users/{id}/status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// CreateTaskRequest defines the payload for POST /tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"       validate:"max=200"`
	Description string     `json:"description" validate:"max=2000"`
	DueDate     *time.Time `json:"dueDate"     validate:"required"`
	Priority    string     `json:"priority"    validate:"required,task_priority"`
	Status      string     `json:"status"      validate:"required,task_status"`
	AssignedTo  *string    `json:"assignedTo"  validate:"omitempty,uuid"`
}

// UpdateTaskRequest defines the payload for PUT /tasks/{id}. Every field is
// optional.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"       validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	DueDate     *time.Time `json:"dueDate"`
	Priority    *string    `json:"priority"    validate:"omitempty,task_priority"`
	Status      *string    `json:"status"      validate:"omitempty,task_status"`
}

// AssignTaskRequest defines the payload of both assignment endpoints.
type AssignTaskRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// CreateTeamRequest defines the payload for POST /teams. The manager
// defaults to the caller.
type CreateTeamRequest struct {
	Name    string   `json:"name"    validate:"required,max=100"`
	Manager *string  `json:"manager" validate:"omitempty,uuid"`
	Members []string `json:"members" validate:"dive,uuid"`
}

// parseOptionalUUID parses a validated optional ID field.
func parseOptionalUUID(raw *string) uuid.NullUUID {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return uuid.NullUUID{}
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: id, Valid: true}
}

// parseUUIDs parses validated ID fields.
func parseUUIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
