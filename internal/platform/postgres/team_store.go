package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/store"
)

// PostgresTeamStore implements store.TeamStore. A team's roster is read
// from users.team_id, which is also what authorization consults.
type PostgresTeamStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTeamStore creates a PostgresTeamStore.
func NewPostgresTeamStore(db store.DBTX, logger *slog.Logger) *PostgresTeamStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTeamStore{
		db:     db,
		logger: logger.With(slog.String("component", "team_store")),
	}
}

var _ store.TeamStore = (*PostgresTeamStore)(nil)

// Create inserts the team row. Members join by having their team set, see
// store.UserStore.SetTeam.
func (s *PostgresTeamStore) Create(ctx context.Context, team *domain.Team) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := team.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO teams (id, name, manager_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query,
		team.ID, team.Name, team.ManagerID, team.CreatedAt, team.UpdatedAt,
	); err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("team manager does not exist",
				slog.String("manager_id", team.ManagerID.String()))
			return fmt.Errorf("%w: manager %s", store.ErrUserNotFound, team.ManagerID)
		}
		log.Error("failed to create team",
			slog.String("error", err.Error()),
			slog.String("team_id", team.ID.String()))
		return MapError(err)
	}

	log.Info("team created",
		slog.String("team_id", team.ID.String()),
		slog.String("manager_id", team.ManagerID.String()))
	return nil
}

// GetByID loads the team and its live members.
func (s *PostgresTeamStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT id, name, manager_id, created_at, updated_at FROM teams WHERE id = $1`
	var team domain.Team
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&team.ID,
		&team.Name,
		&team.ManagerID,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTeamNotFound
		}
		log.Error("failed to get team",
			slog.String("error", err.Error()),
			slog.String("team_id", id.String()))
		return nil, MapError(err)
	}

	members, err := (&PostgresUserStore{db: s.db, logger: s.logger}).TeamMemberIDs(ctx, id)
	if err != nil {
		log.Error("failed to load team members",
			slog.String("error", err.Error()),
			slog.String("team_id", id.String()))
		return nil, err
	}
	team.Members = members
	return &team, nil
}

// WithTx implements store.TeamStore.WithTx.
func (s *PostgresTeamStore) WithTx(tx *sql.Tx) store.TeamStore {
	return &PostgresTeamStore{db: tx, logger: s.logger}
}
