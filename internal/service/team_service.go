package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/store"
)

// CreateTeamInput holds the fields of a new team. Manager defaults to the caller.
type CreateTeamInput struct {
	Name    string
	Manager uuid.NullUUID
	Members []uuid.UUID
}

// TeamService manages teams.
type TeamService interface {
	// CreateTeam creates a team and points the manager and every member at it.
	CreateTeam(ctx context.Context, actor authz.Identity, in CreateTeamInput) (*domain.Team, error)

	// GetTeam returns a team with its live members.
	GetTeam(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Team, error)
}

type teamServiceImpl struct {
	db     store.TxBeginner
	teams  store.TeamStore
	users  store.UserStore
	logger *slog.Logger
}

// NewTeamService creates a TeamService. Team creation runs in one
// transaction on db.
func NewTeamService(
	db store.TxBeginner,
	teams store.TeamStore,
	users store.UserStore,
	logger *slog.Logger,
) (TeamService, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if teams == nil {
		return nil, domain.NewValidationError("teams", "cannot be nil", domain.ErrValidation)
	}
	if users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &teamServiceImpl{
		db:     db,
		teams:  teams,
		users:  users,
		logger: logger.With(slog.String("component", "team_service")),
	}, nil
}

// CreateTeam implements TeamService.CreateTeam
func (s *teamServiceImpl) CreateTeam(
	ctx context.Context,
	actor authz.Identity,
	in CreateTeamInput,
) (*domain.Team, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !authz.Allowed(actor.Role, authz.ActionCreateTeam) {
		return nil, fmt.Errorf("%w: only managers and admins can create teams", authz.ErrForbidden)
	}
	manager := actor.ID
	if in.Manager.Valid {
		manager = in.Manager.UUID
	}
	if err := authz.CheckTarget(actor, authz.ActionCreateTeam, manager, uuid.NullUUID{}); err != nil {
		return nil, fmt.Errorf("%w: managers can only create teams they manage", err)
	}

	team, err := domain.NewTeam(in.Name, manager, in.Members)
	if err != nil {
		return nil, err
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.teams.WithTx(tx).Create(ctx, team); err != nil {
			return err
		}
		return s.users.WithTx(tx).SetTeam(ctx, team.Members, team.ID)
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, fmt.Errorf("team members: %w", err)
		}
		log.Error("failed to create team",
			slog.String("error", err.Error()),
			slog.String("actor_id", actor.ID.String()))
		return nil, &ServiceError{Service: "team", Operation: "create_team", Message: "failed to save team", Err: err}
	}

	log.Info("team created",
		slog.String("team_id", team.ID.String()),
		slog.String("manager_id", manager.String()),
		slog.Int("members", len(team.Members)))
	return team, nil
}

// GetTeam implements TeamService.GetTeam
func (s *teamServiceImpl) GetTeam(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Team, error) {
	if err := authz.CheckTeam(actor, authz.ActionViewTeam, id); err != nil {
		return nil, fmt.Errorf("%w: you can only view your own team", err)
	}
	return s.teams.GetByID(ctx, id)
}
