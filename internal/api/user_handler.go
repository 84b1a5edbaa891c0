package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/service"
)

// UserHandler handles profile and user administration requests.
type UserHandler struct {
	userService service.UserService
	logger      *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		userService: userService,
		logger:      logger.With(slog.String("component", "user_handler")),
	}
}

// GetProfile handles GET /users/me.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := getIdentity(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(r.Context(), identity)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get profile")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Profile retrieved successfully", user)
}

// UpdateProfile handles PUT /users/me.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := getIdentity(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), identity, service.UpdateProfileInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update profile")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Profile updated successfully", user)
}

// ListUsers handles GET /users. Query parameters: role, search, page, limit.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := getIdentity(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	page, err := getPageRequest(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	filter := service.UserFilter{
		Role:   domain.Role(r.URL.Query().Get("role")),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		HandleAPIError(w, r,
			domain.NewValidationError("role", "must be one of user, manager, admin", domain.ErrInvalidRole), "")
		return
	}

	users, err := h.userService.ListUsers(r.Context(), identity, filter, page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list users")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Users retrieved successfully", users)
}

// DeleteUser handles DELETE /users/{id}.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, id, ok := handleIdentityAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	user, err := h.userService.DeleteUser(r.Context(), identity, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete user")
		return
	}

	log.Info("user deleted",
		slog.String("user_id", id.String()),
		slog.String("actor_id", identity.ID.String()))
	shared.RespondWithData(w, r, http.StatusOK, "User deleted successfully", user)
}

// SetRole handles PUT /users/{id}/role.
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := handleIdentityAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req SetRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.SetRole(r.Context(), identity, id, domain.Role(req.Role))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update role")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Role updated successfully", user)
}

// SetStatus handles PUT /users/{id}/status. It locks (inactive) or unlocks
// (active) an account.
func (h *UserHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := handleIdentityAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req SetStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.SetStatus(r.Context(), identity, id, domain.UserStatus(req.Status))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update status")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Status updated successfully", user)
}
