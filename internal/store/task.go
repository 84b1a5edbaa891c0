package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create inserts a task. Returns ErrHumanIDTaken when task.HumanID collided.
	Create(ctx context.Context, task *domain.Task) error

	// LastHumanSeq returns the highest numeric suffix of any TASK-NN id, or 0.
	LastHumanSeq(ctx context.Context) (int, error)

	// GetByID returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Find returns every task matching q, newest first.
	Find(ctx context.Context, q TaskQuery) ([]*domain.Task, error)

	// FindPage returns one page of tasks matching q, newest first.
	FindPage(ctx context.Context, q TaskQuery, page PageRequest) (*Page[*domain.Task], error)

	// Update writes every mutable field and returns the stored record.
	// Returns ErrTaskNotFound when the task is absent.
	Update(ctx context.Context, task *domain.Task) (*domain.Task, error)

	// Delete removes the task and returns the removed record.
	// Returns ErrTaskNotFound when the task is absent.
	Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// WithTx returns a TaskStore bound to tx.
	WithTx(tx *sql.Tx) TaskStore
}

// TeamStore defines the interface for team data persistence.
type TeamStore interface {
	// Create inserts the team. Members are attached with UserStore.SetTeam.
	Create(ctx context.Context, team *domain.Team) error

	// GetByID returns the team with its live members, or ErrTeamNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error)

	// WithTx returns a TeamStore bound to tx.
	WithTx(tx *sql.Tx) TeamStore
}
