package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
)

// UserStore defines the interface for user data persistence.
// Soft-deleted users are invisible to every read method.
type UserStore interface {
	// Create saves a new user. Returns ErrEmailExists, ErrUsernameExists or
	// ErrHumanIDTaken on the matching unique violation.
	Create(ctx context.Context, user *domain.User) error

	// LastHumanSeq returns the highest numeric suffix of any USER-NN id, or 0.
	LastHumanSeq(ctx context.Context) (int, error)

	// GetByID returns ErrUserNotFound if the user does not exist or is deleted.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail returns ErrUserNotFound if no live user has the email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Conflicts reports whether the email or username is already used by a live user.
	Conflicts(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error)

	// Update writes every mutable field of user. Returns ErrUserNotFound when absent.
	Update(ctx context.Context, user *domain.User) error

	// SoftDelete flips the user to the deleted status.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// FindPage returns one page of users matching q, newest first.
	FindPage(ctx context.Context, q UserQuery, page PageRequest) (*Page[*domain.User], error)

	// ListByTeam returns every live member of team.
	ListByTeam(ctx context.Context, team uuid.UUID) ([]*domain.User, error)

	// TeamMemberIDs returns the IDs of every live member of team.
	TeamMemberIDs(ctx context.Context, team uuid.UUID) ([]uuid.UUID, error)

	// SetTeam points every user in ids at team.
	SetTeam(ctx context.Context, ids []uuid.UUID, team uuid.UUID) error

	// WithTx returns a UserStore bound to tx.
	WithTx(tx *sql.Tx) UserStore
}

// SessionStore persists login sessions.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error

	// Get returns ErrSessionNotFound if the session does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	// Delete removes one session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// Trim keeps the keep newest sessions of user and deletes the rest.
	Trim(ctx context.Context, user uuid.UUID, keep int) error

	// DeleteForUser removes every session of user.
	DeleteForUser(ctx context.Context, user uuid.UUID) error
}
