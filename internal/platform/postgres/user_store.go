package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/store"
)

const userColumns = `id, human_id, username, email, hashed_password, role, team_id, status,
	failed_attempts, lock_until, created_at, updated_at`

var userConstraints = map[string]error{
	usersHumanIDKey:      store.ErrHumanIDTaken,
	usersEmailLiveKey:    store.ErrEmailExists,
	usersUsernameLiveKey: store.ErrUsernameExists,
}

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u            domain.User
		role, status string
		lockUntil    sql.NullTime
	)
	if err := row.Scan(
		&u.ID,
		&u.HumanID,
		&u.Username,
		&u.Email,
		&u.HashedPassword,
		&role,
		&u.TeamID,
		&status,
		&u.FailedAttempts,
		&lockUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	if lockUntil.Valid {
		t := lockUntil.Time
		u.LockUntil = &t
	}
	return &u, nil
}

// Create implements store.UserStore.Create.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.HumanID,
		user.Username,
		user.Email,
		user.HashedPassword,
		string(user.Role),
		user.TeamID,
		string(user.Status),
		user.FailedAttempts,
		user.LockUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		mapped := MapUniqueViolation(err, userConstraints)
		if store.IsDuplicateError(mapped) {
			log.Debug("unique violation during user creation",
				slog.String("error", mapped.Error()),
				slog.String("user_id", user.ID.String()))
			return mapped
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return mapped
	}

	log.Info("user created successfully",
		slog.String("user_id", user.ID.String()),
		slog.String("human_id", user.HumanID))
	return nil
}

// LastHumanSeq implements store.UserStore.LastHumanSeq.
func (s *PostgresUserStore) LastHumanSeq(ctx context.Context) (int, error) {
	seq, err := lastHumanSeq(ctx, s.db, userHumanIDs)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to read last user sequence",
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	return seq, nil
}

func (s *PostgresUserStore) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` AND status <> 'deleted'`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, MapError(err)
	}
	return user, nil
}

// GetByID implements store.UserStore.GetByID.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.getOne(ctx, "id = $1", id)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			log.Error("failed to get user by ID",
				slog.String("error", err.Error()),
				slog.String("user_id", id.String()))
		}
		return nil, err
	}
	return user, nil
}

// GetByEmail implements store.UserStore.GetByEmail.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.getOne(ctx, "LOWER(email) = LOWER($1)", email)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			log.Error("failed to get user by email", slog.String("error", err.Error()))
		}
		return nil, err
	}
	return user, nil
}

// Conflicts implements store.UserStore.Conflicts.
func (s *PostgresUserStore) Conflicts(ctx context.Context, email, username string) (bool, bool, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) AND status <> 'deleted'),
			EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($2) AND status <> 'deleted')
	`
	var emailTaken, usernameTaken bool
	if err := s.db.QueryRowContext(ctx, query, email, username).Scan(&emailTaken, &usernameTaken); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to check user conflicts",
			slog.String("error", err.Error()))
		return false, false, MapError(err)
	}
	return emailTaken, usernameTaken, nil
}

// Update implements store.UserStore.Update.
func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	query := `
		UPDATE users
		SET username = $1, email = $2, hashed_password = $3, role = $4, team_id = $5,
			status = $6, failed_attempts = $7, lock_until = $8, updated_at = $9
		WHERE id = $10 AND status <> 'deleted'
	`
	result, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.HashedPassword,
		string(user.Role),
		user.TeamID,
		string(user.Status),
		user.FailedAttempts,
		user.LockUntil,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		log.Error("failed to update user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapUniqueViolation(err, userConstraints)
	}
	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		log.Debug("user not found for update", slog.String("user_id", user.ID.String()))
		return err
	}
	return nil
}

// SoftDelete implements store.UserStore.SoftDelete.
func (s *PostgresUserStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE users
		SET status = 'deleted', updated_at = $1
		WHERE id = $2 AND status <> 'deleted'
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to soft delete user",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		return err
	}

	log.Info("user soft deleted", slog.String("user_id", id.String()))
	return nil
}

// FindPage implements store.UserStore.FindPage.
func (s *PostgresUserStore) FindPage(
	ctx context.Context,
	q store.UserQuery,
	page store.PageRequest,
) (*store.Page[*domain.User], error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	where, args := userWhere(q)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		log.Error("failed to count users", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	limit, args := pageClause(args, page)
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at DESC, id DESC` + limit
	users, err := s.query(ctx, query, args...)
	if err != nil {
		log.Error("failed to list users", slog.String("error", err.Error()))
		return nil, err
	}
	return store.NewPage(users, total, page), nil
}

// ListByTeam implements store.UserStore.ListByTeam. Members come back in
// the order they were created.
func (s *PostgresUserStore) ListByTeam(ctx context.Context, team uuid.UUID) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE team_id = $1 AND status <> 'deleted'
		ORDER BY created_at ASC, id ASC`
	users, err := s.query(ctx, query, team)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list team members",
			slog.String("error", err.Error()),
			slog.String("team_id", team.String()))
		return nil, err
	}
	return users, nil
}

// TeamMemberIDs implements store.UserStore.TeamMemberIDs.
func (s *PostgresUserStore) TeamMemberIDs(ctx context.Context, team uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT id FROM users WHERE team_id = $1 AND status <> 'deleted' ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, team)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return ids, nil
}

// SetTeam implements store.UserStore.SetTeam. It returns ErrUserNotFound
// when any of ids is not a live user.
func (s *PostgresUserStore) SetTeam(ctx context.Context, ids []uuid.UUID, team uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var b whereBuilder
	teamArg := b.arg(team)
	nowArg := b.arg(time.Now().UTC())
	b.add(b.in("id", unique))
	b.add("status <> 'deleted'")

	query := `UPDATE users SET team_id = ` + teamArg + `, updated_at = ` + nowArg + b.where()
	result, err := s.db.ExecContext(ctx, query, b.args...)
	if err != nil {
		log.Error("failed to set user team",
			slog.String("error", err.Error()),
			slog.String("team_id", team.String()))
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if int(affected) != len(unique) {
		return fmt.Errorf("%w: %d of %d team members do not exist",
			store.ErrUserNotFound, len(unique)-int(affected), len(unique))
	}
	return nil
}

// WithTx implements store.UserStore.WithTx.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

func (s *PostgresUserStore) query(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return users, nil
}
