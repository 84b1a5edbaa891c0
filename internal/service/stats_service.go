package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/store"
	"github.com/phrazzld/taskhub/internal/stats"
)

// StatsService reports on tasks, users and teams.
type StatsService interface {
	// TaskAnalytics summarizes every task actor may see.
	TaskAnalytics(ctx context.Context, actor authz.Identity) (*stats.TaskAnalytics, error)

	// UserStatistics reports on user, or on actor when user is not set.
	UserStatistics(ctx context.Context, actor authz.Identity, user uuid.NullUUID) (*stats.UserStatistics, error)

	// TeamStatistics reports on team, or on actor's team when team is not set.
	TeamStatistics(ctx context.Context, actor authz.Identity, team uuid.NullUUID) (*stats.TeamStatistics, error)
}

type statsServiceImpl struct {
	tasks      store.TaskStore
	users      store.UserStore
	teams      store.TeamStore
	visibility *authz.Visibility
	logger     *slog.Logger
	now        func() time.Time
}

// NewStatsService creates a StatsService.
func NewStatsService(
	tasks store.TaskStore,
	users store.UserStore,
	teams store.TeamStore,
	visibility *authz.Visibility,
	logger *slog.Logger,
) (StatsService, error) {
	if tasks == nil || users == nil || teams == nil {
		return nil, domain.NewValidationError("stores", "cannot be nil", domain.ErrValidation)
	}
	if visibility == nil {
		return nil, domain.NewValidationError("visibility", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &statsServiceImpl{
		tasks:      tasks,
		users:      users,
		teams:      teams,
		visibility: visibility,
		logger:     logger.With(slog.String("component", "stats_service")),
		now:        time.Now,
	}, nil
}

func newStatsError(operation, message string, err error) *ServiceError {
	return &ServiceError{Service: "stats", Operation: operation, Message: message, Err: err}
}

// TaskAnalytics implements StatsService.TaskAnalytics
func (s *statsServiceImpl) TaskAnalytics(ctx context.Context, actor authz.Identity) (*stats.TaskAnalytics, error) {
	visible, err := s.visibility.TaskScope(ctx, actor)
	if err != nil {
		return nil, newStatsError("task_analytics", "failed to resolve visibility", err)
	}
	tasks, err := s.tasks.Find(ctx, store.TaskQuery{Visibility: visible})
	if err != nil {
		return nil, newStatsError("task_analytics", "failed to load tasks", err)
	}
	out := stats.Analyze(tasks, s.now())
	return &out, nil
}

// UserStatistics implements StatsService.UserStatistics
func (s *statsServiceImpl) UserStatistics(
	ctx context.Context,
	actor authz.Identity,
	user uuid.NullUUID,
) (*stats.UserStatistics, error) {
	target := actor.ID
	if user.Valid {
		target = user.UUID
	}
	if target != actor.ID && authz.ScopeFor(actor.Role, authz.ActionViewUserStats) == authz.ScopeSelf {
		return nil, fmt.Errorf("%w: you can only view your own statistics", authz.ErrForbidden)
	}

	subject, err := s.users.GetByID(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := authz.CheckTarget(actor, authz.ActionViewUserStats, subject.ID, subject.TeamID); err != nil {
		return nil, fmt.Errorf("%w: you can only view statistics of your team members", err)
	}

	created, err := s.tasks.Find(ctx, store.TaskQuery{
		Visibility: store.MatchAllTasks(),
		CreatedBy:  uuid.NullUUID{UUID: target, Valid: true},
	})
	if err != nil {
		return nil, newStatsError("user_statistics", "failed to load created tasks", err)
	}
	assigned, err := s.tasks.Find(ctx, store.TaskQuery{
		Visibility: store.MatchAllTasks(),
		AssignedTo: uuid.NullUUID{UUID: target, Valid: true},
	})
	if err != nil {
		return nil, newStatsError("user_statistics", "failed to load assigned tasks", err)
	}

	out := stats.ForUser(subject, created, assigned, s.now())
	return &out, nil
}

// TeamStatistics implements StatsService.TeamStatistics
func (s *statsServiceImpl) TeamStatistics(
	ctx context.Context,
	actor authz.Identity,
	team uuid.NullUUID,
) (*stats.TeamStatistics, error) {
	if !authz.Allowed(actor.Role, authz.ActionViewTeamStats) {
		return nil, fmt.Errorf("%w: only managers and admins can view team statistics", authz.ErrForbidden)
	}
	if !team.Valid {
		team = actor.Team
	}
	if !team.Valid {
		return nil, domain.NewValidationError("teamId", ErrTeamRequired.Error(), ErrTeamRequired)
	}
	if err := authz.CheckTeam(actor, authz.ActionViewTeamStats, team.UUID); err != nil {
		return nil, fmt.Errorf("%w: you can only view statistics of your own team", err)
	}

	if _, err := s.teams.GetByID(ctx, team.UUID); err != nil {
		return nil, err
	}
	roster, err := s.users.ListByTeam(ctx, team.UUID)
	if err != nil {
		return nil, newStatsError("team_statistics", "failed to load team members", err)
	}

	var tasks []*domain.Task
	if len(roster) > 0 {
		ids := make([]uuid.UUID, 0, len(roster))
		for _, m := range roster {
			ids = append(ids, m.ID)
		}
		tasks, err = s.tasks.Find(ctx, store.TaskQuery{
			Visibility: store.TaskPredicate{CreatedByIn: ids, AssignedToIn: ids},
		})
		if err != nil {
			return nil, newStatsError("team_statistics", "failed to load team tasks", err)
		}
	}

	out := stats.ForTeam(team.UUID, roster, tasks, s.now())
	return &out, nil
}
