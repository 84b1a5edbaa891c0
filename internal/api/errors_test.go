package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/service"
	"github.com/phrazzld/taskhub/internal/service/auth"
	"github.com/phrazzld/taskhub/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"domain validation", domain.NewValidationError("title", "too long", domain.ErrValidation), http.StatusBadRequest},
		{"empty body", shared.ErrEmptyBody, http.StatusBadRequest},
		{"syntax error", &json.SyntaxError{}, http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"already assigned", domain.NewValidationError("userId", "already assigned", service.ErrAlreadyAssigned), http.StatusBadRequest},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"account locked", &service.AccountLockedError{Remaining: time.Minute}, http.StatusUnauthorized},
		{"inactive account", service.ErrAccountInactive, http.StatusUnauthorized},
		{"revoked session", service.ErrSessionRevoked, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("%w: nope", authz.ErrForbidden), http.StatusForbidden},
		{"wrapped not found", &service.ServiceError{Service: "task", Operation: "get", Err: store.ErrTaskNotFound}, http.StatusNotFound},
		{"duplicate email", store.ErrEmailExists, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"lock message", &service.AccountLockedError{Remaining: 14*time.Minute + time.Second}, "Account locked. Try again after 15 minutes"},
		{"invalid credentials", service.ErrInvalidCredentials, "Invalid credentials"},
		{"inactive", service.ErrAccountInactive, "Your account has been deleted or blocked"},
		{"revoked", service.ErrSessionRevoked, "Session expired or logged out"},
		{"expired token", auth.ErrExpiredToken, "Token expired"},
		{"refresh token", auth.ErrExpiredRefreshToken, "Invalid refresh token"},
		{"forbidden reason", fmt.Errorf("task service update failed: %w: only the task creator may do this", authz.ErrForbidden),
			"Only the task creator may do this"},
		{"bare forbidden", authz.ErrForbidden, "You are not allowed to perform this action"},
		{"user not found", store.ErrUserNotFound, "User not found"},
		{"task not found", fmt.Errorf("loading: %w", store.ErrTaskNotFound), "Task not found"},
		{"email taken", store.ErrEmailExists, "User with this email already exists"},
		{"username taken", store.ErrUsernameExists, "User with this username already exists"},
		{"field validation", domain.NewValidationError("status", "must be active or inactive", domain.ErrInvalidUserStatus),
			"Status must be active or inactive"},
		{"team required", domain.NewValidationError("teamId", "is required", service.ErrTeamRequired), "Team ID is required"},
		{"internal", errors.New("pq: connection refused to postgres://u:secret@db"), "An unexpected error occurred"},
		{"nil", nil, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestSanitizeValidationErrorUsesJSONNames(t *testing.T) {
	t.Parallel()

	err := shared.ValidateRequest(&CreateTaskRequest{Priority: "high", Status: "pending"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, MapErrorToStatusCode(err))
	assert.Equal(t, "Invalid dueDate: required field", GetSafeErrorMessage(err))
}

func TestHandleAPIErrorDoesNotLeakDetails(t *testing.T) {
	t.Parallel()

	log, buf := logger.NewTestLogger(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req = req.WithContext(logger.WithLogger(shared.SetTraceID(req.Context()), log))
	recorder := httptest.NewRecorder()

	secret := errors.New("dial postgres://admin:hunter2@db:5432/tasks failed")
	HandleAPIError(recorder, req, secret, "Failed to list tasks")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	var resp shared.ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Failed to list tasks", resp.Message)
	assert.NotEmpty(t, resp.TraceID)
	assert.False(t, strings.Contains(buf.String(), "hunter2"), "password must be redacted from logs")
}
