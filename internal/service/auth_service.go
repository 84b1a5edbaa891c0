package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/config"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/events"
	"github.com/phrazzld/taskhub/internal/humanid"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/service/auth"
	"github.com/phrazzld/taskhub/internal/store"
)

// Login throttling defaults, used when the configuration leaves them unset.
const (
	DefaultMaxSessions     = 5
	DefaultMaxFailedLogins = 5
	DefaultLockout         = 15 * time.Minute
)

// SignupInput holds the fields of a new account.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// AuthResult is returned by every operation that starts or renews a session.
type AuthResult struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

// Principal is an authenticated request's caller.
type Principal struct {
	User      *domain.User
	SessionID uuid.UUID
}

// AuthService handles signup, login, session renewal and token checks.
type AuthService interface {
	// Signup creates an account and logs it in.
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)

	// Login checks credentials and opens a new session. Consecutive failures
	// lock the account for a while.
	Login(ctx context.Context, email, password string) (*AuthResult, error)

	// Refresh exchanges a refresh token for a new token pair on the same session.
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)

	// Logout ends a session. Tokens issued for it stop working.
	Logout(ctx context.Context, sessionID uuid.UUID) error

	// Authenticate resolves an access token to its live session and active user.
	Authenticate(ctx context.Context, accessToken string) (*Principal, error)
}

// AuthServiceDeps are the collaborators of the auth service.
type AuthServiceDeps struct {
	Users     store.UserStore
	Sessions  store.SessionStore
	Tokens    auth.JWTService
	Passwords auth.PasswordHasher
	Events    events.Emitter
	Config    config.AuthConfig
	Logger    *slog.Logger
}

type authServiceImpl struct {
	users       store.UserStore
	sessions    store.SessionStore
	tokens      auth.JWTService
	passwords   auth.PasswordHasher
	events      events.Emitter
	ids         *humanid.Generator
	maxSessions int
	maxFailures int
	lockout     time.Duration
	tokenTTL    time.Duration
	sessionTTL  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService creates an AuthService. Events is optional.
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	if deps.Users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if deps.Sessions == nil {
		return nil, domain.NewValidationError("sessions", "cannot be nil", domain.ErrValidation)
	}
	if deps.Tokens == nil {
		return nil, domain.NewValidationError("tokens", "cannot be nil", domain.ErrValidation)
	}
	if deps.Passwords == nil {
		return nil, domain.NewValidationError("passwords", "cannot be nil", domain.ErrValidation)
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	cfg := deps.Config
	s := &authServiceImpl{
		users:       deps.Users,
		sessions:    deps.Sessions,
		tokens:      deps.Tokens,
		passwords:   deps.Passwords,
		events:      deps.Events,
		ids:         humanid.NewGenerator(humanid.UserPrefix, deps.Users),
		maxSessions: orDefault(cfg.MaxSessions, DefaultMaxSessions),
		maxFailures: orDefault(cfg.MaxFailedLogins, DefaultMaxFailedLogins),
		lockout:     cfg.Lockout(),
		tokenTTL:    cfg.TokenLifetime(),
		sessionTTL:  cfg.RefreshTokenLifetime(),
		logger:      log.With(slog.String("component", "auth_service")),
		now:         time.Now,
	}
	if s.lockout <= 0 {
		s.lockout = DefaultLockout
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = time.Hour
	}
	if s.sessionTTL < s.tokenTTL {
		s.sessionTTL = s.tokenTTL
	}
	return s, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Signup implements AuthService.Signup
func (s *authServiceImpl) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !auth.IsStrongPassword(in.Password) {
		return nil, domain.NewValidationError("password", auth.ErrWeakPassword.Error(), auth.ErrWeakPassword)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	emailTaken, usernameTaken, err := s.users.Conflicts(ctx, email, username)
	if err != nil {
		return nil, newUserError("signup", "failed to check existing users", err)
	}
	if emailTaken {
		return nil, store.ErrEmailExists
	}
	if usernameTaken {
		return nil, store.ErrUsernameExists
	}

	hashed, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, newUserError("signup", "failed to hash password", err)
	}
	user, err := domain.NewUser(username, email, hashed)
	if err != nil {
		return nil, err
	}

	_, err = s.ids.Insert(ctx, func(id string) error {
		user.HumanID = id
		return s.users.Create(ctx, user)
	})
	if err != nil {
		if store.IsDuplicateError(err) {
			log.Debug("signup lost a uniqueness race", slog.String("error", err.Error()))
			return nil, err
		}
		log.Error("failed to create user", slog.String("error", err.Error()))
		return nil, newUserError("signup", "failed to save user", err)
	}

	log.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("human_id", user.HumanID))

	s.emitRegistered(ctx, user)
	return s.openSession(ctx, user)
}

// emitRegistered publishes user.registered. Handler failures are logged only.
func (s *authServiceImpl) emitRegistered(ctx context.Context, user *domain.User) {
	if s.events == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.New(events.TypeUserRegistered, events.UserRegistered{
		UserID:   user.ID,
		HumanID:  user.HumanID,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		log.Error("failed to build user.registered event", slog.String("error", err.Error()))
		return
	}
	if err := s.events.EmitEvent(ctx, event); err != nil {
		log.Warn("user.registered handler failed",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
	}
}

// Login implements AuthService.Login
func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, newUserError("login", "failed to load user", err)
	}
	if !user.IsActive() {
		return nil, ErrAccountInactive
	}

	now := s.now().UTC()
	if remaining := user.LockRemaining(now); remaining > 0 {
		log.Info("login attempt on locked account", slog.String("user_id", user.ID.String()))
		return nil, &AccountLockedError{Remaining: remaining}
	}
	if user.LockUntil != nil {
		user.ResetFailedLogins(now)
	}

	if err := s.passwords.Compare(user.HashedPassword, password); err != nil {
		locked := user.RecordFailedLogin(now, s.maxFailures, s.lockout)
		if err := s.users.Update(ctx, user); err != nil {
			log.Error("failed to record failed login",
				slog.String("error", err.Error()),
				slog.String("user_id", user.ID.String()))
		}
		if locked {
			log.Warn("account locked after failed logins",
				slog.String("user_id", user.ID.String()),
				slog.Int("attempts", user.FailedAttempts))
			return nil, &AccountLockedError{Remaining: s.lockout}
		}
		return nil, ErrInvalidCredentials
	}

	if user.FailedAttempts > 0 || user.LockUntil != nil {
		user.ResetFailedLogins(now)
		if err := s.users.Update(ctx, user); err != nil {
			return nil, newUserError("login", "failed to reset login failures", err)
		}
	}

	return s.openSession(ctx, user)
}

// openSession starts a session for user, trims the oldest ones beyond the
// limit and issues a token pair for it.
func (s *authServiceImpl) openSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	session := domain.NewSession(user.ID, s.sessionTTL)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, newUserError("open_session", "failed to save session", err)
	}
	if err := s.sessions.Trim(ctx, user.ID, s.maxSessions); err != nil {
		return nil, newUserError("open_session", "failed to trim sessions", err)
	}
	return s.issueTokens(ctx, user, session.ID)
}

func (s *authServiceImpl) issueTokens(ctx context.Context, user *domain.User, sessionID uuid.UUID) (*AuthResult, error) {
	access, err := s.tokens.GenerateToken(ctx, user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(ctx, user.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.now().UTC().Add(s.tokenTTL),
	}, nil
}

// Refresh implements AuthService.Refresh
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	principal, err := s.resolve(ctx, claims)
	if err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, principal.User, principal.SessionID)
}

// Logout implements AuthService.Logout
func (s *authServiceImpl) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return newUserError("logout", "failed to delete session", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("session closed",
		slog.String("session_id", sessionID.String()))
	return nil
}

// Authenticate implements AuthService.Authenticate
func (s *authServiceImpl) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.tokens.ValidateToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, claims)
}

// resolve checks that the claims' session is live and its user active.
func (s *authServiceImpl) resolve(ctx context.Context, claims *auth.Claims) (*Principal, error) {
	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, newUserError("authenticate", "failed to load session", err)
	}
	if session.UserID != claims.UserID {
		return nil, ErrSessionRevoked
	}
	if session.Expired(s.now()) {
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, ErrSessionRevoked
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrAccountInactive
		}
		return nil, newUserError("authenticate", "failed to load user", err)
	}
	if !user.IsActive() {
		return nil, ErrAccountInactive
	}
	return &Principal{User: user, SessionID: session.ID}, nil
}
