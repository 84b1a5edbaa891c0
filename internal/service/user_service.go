package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/service/auth"
	"github.com/phrazzld/taskhub/internal/store"
)

// UpdateProfileInput holds the profile fields to change. Nil and empty
// values leave the field as it is.
type UpdateProfileInput struct {
	Username *string
	Email    *string
	Password *string
}

// UserFilter holds the optional filters of a user listing.
type UserFilter struct {
	Role   domain.Role
	Search string
}

// UserService provides profile and user administration operations.
type UserService interface {
	// GetProfile returns the caller's own account.
	GetProfile(ctx context.Context, actor authz.Identity) (*domain.User, error)

	// UpdateProfile changes the caller's username, email or password.
	UpdateProfile(ctx context.Context, actor authz.Identity, in UpdateProfileInput) (*domain.User, error)

	// ListUsers returns one page of the users actor may list.
	ListUsers(
		ctx context.Context,
		actor authz.Identity,
		filter UserFilter,
		page store.PageRequest,
	) (*store.Page[*domain.User], error)

	// DeleteUser soft-deletes a user and ends their sessions.
	DeleteUser(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.User, error)

	// SetRole changes a user's role.
	SetRole(ctx context.Context, actor authz.Identity, id uuid.UUID, role domain.Role) (*domain.User, error)

	// SetStatus blocks or unblocks a user. Blocking ends their sessions.
	SetStatus(ctx context.Context, actor authz.Identity, id uuid.UUID, status domain.UserStatus) (*domain.User, error)

	// PromoteByEmail sets the role of the user with email. It bypasses
	// authorization and is meant for operator tooling only.
	PromoteByEmail(ctx context.Context, email string, role domain.Role) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	users      store.UserStore
	sessions   store.SessionStore
	passwords  auth.PasswordHasher
	visibility *authz.Visibility
	logger     *slog.Logger
	now        func() time.Time
}

var _ UserService = (*UserServiceImpl)(nil)

// NewUserService creates a new UserService
func NewUserService(
	users store.UserStore,
	sessions store.SessionStore,
	passwords auth.PasswordHasher,
	visibility *authz.Visibility,
	logger *slog.Logger,
) (*UserServiceImpl, error) {
	if users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if sessions == nil {
		return nil, domain.NewValidationError("sessions", "cannot be nil", domain.ErrValidation)
	}
	if passwords == nil {
		return nil, domain.NewValidationError("passwords", "cannot be nil", domain.ErrValidation)
	}
	if visibility == nil {
		return nil, domain.NewValidationError("visibility", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UserServiceImpl{
		users:      users,
		sessions:   sessions,
		passwords:  passwords,
		visibility: visibility,
		logger:     logger.With("component", "user_service"),
		now:        time.Now,
	}, nil
}

// GetProfile retrieves the caller's user record
func (s *UserServiceImpl) GetProfile(ctx context.Context, actor authz.Identity) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrAccountInactive
		}
		return nil, newUserError("get_profile", "failed to retrieve user", err)
	}
	return user, nil
}

// UpdateProfile follows the pattern of getting the full user first, then
// changing only the requested fields and writing the complete record back.
func (s *UserServiceImpl) UpdateProfile(
	ctx context.Context,
	actor authz.Identity,
	in UpdateProfileInput,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.GetProfile(ctx, actor)
	if err != nil {
		return nil, err
	}

	var newEmail, newUsername string
	if v := trimmed(in.Email); v != "" && !strings.EqualFold(v, user.Email) {
		newEmail = strings.ToLower(v)
	}
	if v := trimmed(in.Username); v != "" && !strings.EqualFold(v, user.Username) {
		newUsername = v
	}
	if newEmail != "" || newUsername != "" {
		emailTaken, usernameTaken, err := s.users.Conflicts(ctx, newEmail, newUsername)
		if err != nil {
			return nil, newUserError("update_profile", "failed to check existing users", err)
		}
		if emailTaken {
			return nil, store.ErrEmailExists
		}
		if usernameTaken {
			return nil, store.ErrUsernameExists
		}
	}
	if newEmail != "" {
		user.Email = newEmail
	}
	if v := trimmed(in.Username); v != "" {
		user.Username = v
	}

	if in.Password != nil && *in.Password != "" {
		if !auth.IsStrongPassword(*in.Password) {
			return nil, domain.NewValidationError("password", auth.ErrWeakPassword.Error(), auth.ErrWeakPassword)
		}
		hashed, err := s.passwords.Hash(*in.Password)
		if err != nil {
			return nil, newUserError("update_profile", "failed to hash password", err)
		}
		user.HashedPassword = hashed
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		if store.IsDuplicateError(err) {
			return nil, err
		}
		log.Error("failed to update profile",
			"error", err,
			"user_id", user.ID)
		return nil, newUserError("update_profile", "failed to save user", err)
	}

	log.Info("profile updated", "user_id", user.ID)
	return user, nil
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// ListUsers returns users within the caller's reach, filtered by role and a
// case-insensitive search over username and email.
func (s *UserServiceImpl) ListUsers(
	ctx context.Context,
	actor authz.Identity,
	filter UserFilter,
	page store.PageRequest,
) (*store.Page[*domain.User], error) {
	if !authz.Allowed(actor.Role, authz.ActionListUsers) {
		return nil, fmt.Errorf("%w: only managers and admins can list users", authz.ErrForbidden)
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, domain.NewValidationError("role", "must be one of user, manager, admin", domain.ErrInvalidRole)
	}

	result, err := s.users.FindPage(ctx, store.UserQuery{
		Visibility: s.visibility.UserScope(actor),
		Role:       filter.Role,
		Search:     filter.Search,
	}, page)
	if err != nil {
		return nil, newUserError("list_users", "failed to query users", err)
	}
	return result, nil
}

// loadManaged fetches a user the actor may administer.
func (s *UserServiceImpl) loadManaged(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.User, error) {
	if !authz.Allowed(actor.Role, authz.ActionManageUsers) {
		return nil, fmt.Errorf("%w: only admins can manage users", authz.ErrForbidden)
	}
	return s.users.GetByID(ctx, id)
}

// DeleteUser marks the user deleted. Deleted users can no longer sign in and
// their email and username become available again.
func (s *UserServiceImpl) DeleteUser(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if err := s.users.SoftDelete(ctx, id); err != nil {
		log.Error("failed to delete user",
			"error", err,
			"user_id", id)
		return nil, newUserError("delete_user", "failed to delete user", err)
	}
	s.endSessions(ctx, id)

	user.Status = domain.UserStatusDeleted
	log.Info("user deleted", "user_id", id, "actor_id", actor.ID)
	return user, nil
}

// SetRole changes the role of a user
func (s *UserServiceImpl) SetRole(
	ctx context.Context,
	actor authz.Identity,
	id uuid.UUID,
	role domain.Role,
) (*domain.User, error) {
	if !role.Valid() {
		return nil, domain.NewValidationError("role", "must be one of user, manager, admin", domain.ErrInvalidRole)
	}
	user, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.saveRole(ctx, user, role)
}

func (s *UserServiceImpl) saveRole(ctx context.Context, user *domain.User, role domain.Role) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user.Role = role
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		log.Error("failed to update role",
			"error", err,
			"user_id", user.ID)
		return nil, newUserError("set_role", "failed to save user", err)
	}

	log.Info("role changed", "user_id", user.ID, "role", role)
	return user, nil
}

// SetStatus switches a user between active and inactive
func (s *UserServiceImpl) SetStatus(
	ctx context.Context,
	actor authz.Identity,
	id uuid.UUID,
	status domain.UserStatus,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if status != domain.UserStatusActive && status != domain.UserStatusInactive {
		return nil, domain.NewValidationError("status", "must be one of active, inactive", domain.ErrInvalidUserStatus)
	}
	user, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user.Status = status
	if status == domain.UserStatusActive {
		user.ResetFailedLogins(now)
	}
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		log.Error("failed to update status",
			"error", err,
			"user_id", id)
		return nil, newUserError("set_status", "failed to save user", err)
	}
	if status == domain.UserStatusInactive {
		s.endSessions(ctx, id)
	}

	log.Info("status changed", "user_id", id, "status", status)
	return user, nil
}

// PromoteByEmail sets the role of the user with the given email
func (s *UserServiceImpl) PromoteByEmail(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, domain.NewValidationError("role", "must be one of user, manager, admin", domain.ErrInvalidRole)
	}
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return s.saveRole(ctx, user, role)
}

// endSessions logs the user out everywhere. Failures are logged only; the
// auth middleware rejects inactive users regardless.
func (s *UserServiceImpl) endSessions(ctx context.Context, id uuid.UUID) {
	if err := s.sessions.DeleteForUser(ctx, id); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to end sessions",
			"error", err,
			"user_id", id)
	}
}
