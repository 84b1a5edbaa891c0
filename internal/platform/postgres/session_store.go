package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/store"
)

// PostgresSessionStore implements store.SessionStore.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a PostgresSessionStore.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

var _ store.SessionStore = (*PostgresSessionStore)(nil)

func (s *PostgresSessionStore) Create(ctx context.Context, session *domain.Session) error {
	query := `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt,
	); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create session",
			slog.String("error", err.Error()),
			slog.String("user_id", session.UserID.String()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = $1`

	var session domain.Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get session",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &session, nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete session",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// Trim keeps the newest keep sessions of user.
func (s *PostgresSessionStore) Trim(ctx context.Context, user uuid.UUID, keep int) error {
	query := `
		DELETE FROM sessions
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM sessions
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
	`
	result, err := s.db.ExecContext(ctx, query, user, keep)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to trim sessions",
			slog.String("error", err.Error()),
			slog.String("user_id", user.String()))
		return MapError(err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		logger.FromContextOrDefault(ctx, s.logger).Debug("trimmed old sessions",
			slog.String("user_id", user.String()),
			slog.Int64("removed", n))
	}
	return nil
}

func (s *PostgresSessionStore) DeleteForUser(ctx context.Context, user uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, user); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete user sessions",
			slog.String("error", err.Error()),
			slog.String("user_id", user.String()))
		return MapError(err)
	}
	return nil
}
