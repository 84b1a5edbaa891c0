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

const taskColumns = `id, human_id, title, description, due_date, priority, status,
	created_by, created_by_role, assigned_to, created_at, updated_at`

var taskConstraints = map[string]error{
	tasksHumanIDKey: store.ErrHumanIDTaken,
}

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                        domain.Task
		priority, status, crRole string
	)
	if err := row.Scan(
		&t.ID,
		&t.HumanID,
		&t.Title,
		&t.Description,
		&t.DueDate,
		&priority,
		&status,
		&t.CreatedBy,
		&crRole,
		&t.AssignedTo,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.TaskStatus(status)
	t.CreatedByRole = domain.Role(crRole)
	return &t, nil
}

// Create implements store.TaskStore.Create.
// Returns store.ErrHumanIDTaken when the human-readable ID collided and
// store.ErrInvalidEntity when the creator or assignee does not exist.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.HumanID,
		task.Title,
		task.Description,
		task.DueDate,
		string(task.Priority),
		string(task.Status),
		task.CreatedBy,
		string(task.CreatedByRole),
		task.AssignedTo,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		mapped := MapUniqueViolation(err, taskConstraints)
		if errors.Is(mapped, store.ErrHumanIDTaken) {
			log.Debug("task human id collided",
				slog.String("human_id", task.HumanID))
			return mapped
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return mapped
	}

	log.Info("task created successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("human_id", task.HumanID))
	return nil
}

// LastHumanSeq implements store.TaskStore.LastHumanSeq.
func (s *PostgresTaskStore) LastHumanSeq(ctx context.Context) (int, error) {
	seq, err := lastHumanSeq(ctx, s.db, taskHumanIDs)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to read last task sequence",
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	return seq, nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return task, nil
}

// Find implements store.TaskStore.Find.
func (s *PostgresTaskStore) Find(ctx context.Context, q store.TaskQuery) ([]*domain.Task, error) {
	where, args := taskWhere(q)
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY created_at DESC, id DESC`

	tasks, err := s.query(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to find tasks",
			slog.String("error", err.Error()))
		return nil, err
	}
	return tasks, nil
}

// FindPage implements store.TaskStore.FindPage.
func (s *PostgresTaskStore) FindPage(
	ctx context.Context,
	q store.TaskQuery,
	page store.PageRequest,
) (*store.Page[*domain.Task], error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	where, args := taskWhere(q)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	limit, args := pageClause(args, page)
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY created_at DESC, id DESC` + limit
	tasks, err := s.query(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, err
	}

	log.Debug("tasks page loaded",
		slog.Int("total", total),
		slog.Int("returned", len(tasks)))
	return store.NewPage(tasks, total, page), nil
}

// Update implements store.TaskStore.Update.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return nil, err
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, due_date = $3, priority = $4, status = $5,
			assigned_to = $6, updated_at = $7
		WHERE id = $8
		RETURNING ` + taskColumns
	updated, err := scanTask(s.db.QueryRowContext(ctx, query,
		task.Title,
		task.Description,
		task.DueDate,
		string(task.Priority),
		string(task.Status),
		task.AssignedTo,
		task.UpdatedAt,
		task.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return nil, MapError(err)
	}

	log.Debug("task updated", slog.String("task_id", task.ID.String()))
	return updated, nil
}

// Delete implements store.TaskStore.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM tasks WHERE id = $1 RETURNING ` + taskColumns
	deleted, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	log.Info("task deleted", slog.String("task_id", id.String()))
	return deleted, nil
}

// WithTx implements store.TaskStore.WithTx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

func (s *PostgresTaskStore) query(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}
