package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/cache"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/humanid"
	"github.com/phrazzld/taskhub/internal/notify"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/store"
)

// Notifier delivers real-time events. notify.Dispatcher implements it.
type Notifier interface {
	Notify(ctx context.Context, target uuid.UUID, event notify.Event, payload any) notify.Outcome
}

// CreateTaskInput holds the fields of a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     time.Time
	Priority    domain.Priority
	Status      domain.TaskStatus
	AssignedTo  uuid.NullUUID
}

// UpdateTaskInput holds the fields to change; nil fields are left as they are.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *domain.Priority
	Status      *domain.TaskStatus
}

// TaskFilter holds the caller's optional list filters. They are AND-ed with
// the caller's visibility.
type TaskFilter struct {
	Status     domain.TaskStatus
	Priority   domain.Priority
	AssignedTo uuid.NullUUID
	CreatedBy  uuid.NullUUID
	Search     string
}

// cacheFields renders the filter for the list cache key.
func (f TaskFilter) cacheFields() map[string]string {
	fields := map[string]string{
		"status":   string(f.Status),
		"priority": string(f.Priority),
		"search":   f.Search,
	}
	if f.AssignedTo.Valid {
		fields["assignedTo"] = f.AssignedTo.UUID.String()
	}
	if f.CreatedBy.Valid {
		fields["createdBy"] = f.CreatedBy.UUID.String()
	}
	return fields
}

func (f TaskFilter) validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return domain.NewValidationError("status",
			"must be one of pending, in-progress, completed, cancelled", domain.ErrInvalidTaskStatus)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return domain.NewValidationError("priority",
			"must be one of low, medium, high, urgent", domain.ErrInvalidPriority)
	}
	return nil
}

// NotificationStatus reports what happened to the real-time notification
// sent on task creation.
type NotificationStatus struct {
	Sent           bool       `json:"sent"`
	Message        string     `json:"message"`
	AssignedUserID *uuid.UUID `json:"assignedUserId"`
	Timestamp      *time.Time `json:"timestamp"`
}

// CreateTaskResult is the created task and its notification outcome.
type CreateTaskResult struct {
	Task         *domain.Task       `json:"task"`
	Notification NotificationStatus `json:"notification"`
}

// TaskService provides task management and assignment.
type TaskService interface {
	// CreateTask creates a task authored by actor. Who may be named as
	// assignee depends on the actor's role.
	CreateTask(ctx context.Context, actor authz.Identity, in CreateTaskInput) (*CreateTaskResult, error)

	// ListTasks returns one page of the tasks actor may see, newest first.
	// Pages are served from the cache when possible.
	ListTasks(
		ctx context.Context,
		actor authz.Identity,
		filter TaskFilter,
		page store.PageRequest,
	) (*store.Page[*domain.Task], error)

	// GetTask returns a task actor may see.
	GetTask(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Task, error)

	// UpdateTask changes a task actor created.
	UpdateTask(ctx context.Context, actor authz.Identity, id uuid.UUID, in UpdateTaskInput) (*domain.Task, error)

	// DeleteTask removes a task actor created and returns it.
	DeleteTask(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Task, error)

	// AssignTask hands a task to assignee and notifies them.
	AssignTask(ctx context.Context, actor authz.Identity, taskID, assignee uuid.UUID) (*domain.Task, error)

	// UpdateAssignment moves a task to a new assignee and notifies both the
	// previous and the new assignee.
	UpdateAssignment(ctx context.Context, actor authz.Identity, taskID, assignee uuid.UUID) (*domain.Task, error)

	// ListAssigned returns one page of the tasks assigned to user, or to
	// actor when user is not set.
	ListAssigned(
		ctx context.Context,
		actor authz.Identity,
		user uuid.NullUUID,
		status domain.TaskStatus,
		page store.PageRequest,
	) (*store.Page[*domain.Task], error)
}

// TaskServiceDeps are the collaborators of the task service.
type TaskServiceDeps struct {
	Tasks      store.TaskStore
	Users      store.UserStore
	Visibility *authz.Visibility
	Cache      *cache.Cache
	Notifier   Notifier
	ListTTL    time.Duration
	Logger     *slog.Logger
}

type taskServiceImpl struct {
	tasks      store.TaskStore
	users      store.UserStore
	visibility *authz.Visibility
	ids        *humanid.Generator
	cache      *cache.Cache
	notifier   Notifier
	listTTL    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewTaskService creates a TaskService. A nil Cache disables caching; a nil
// Notifier reports every notification as channel-unavailable.
func NewTaskService(deps TaskServiceDeps) (TaskService, error) {
	if deps.Tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}
	if deps.Users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if deps.Visibility == nil {
		return nil, domain.NewValidationError("visibility", "cannot be nil", domain.ErrValidation)
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	c := deps.Cache
	if c == nil {
		c = cache.Disabled(log)
	}
	var notifier Notifier = deps.Notifier
	if notifier == nil {
		notifier = (*notify.Dispatcher)(nil)
	}
	ttl := deps.ListTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	return &taskServiceImpl{
		tasks:      deps.Tasks,
		users:      deps.Users,
		visibility: deps.Visibility,
		ids:        humanid.NewGenerator(humanid.TaskPrefix, deps.Tasks),
		cache:      c,
		notifier:   notifier,
		listTTL:    ttl,
		logger:     log.With(slog.String("component", "task_service")),
		now:        time.Now,
	}, nil
}

// taskEvent is the payload of every task notification.
type taskEvent struct {
	Message    string       `json:"message"`
	Task       *domain.Task `json:"task"`
	AssignedBy *assigner    `json:"assignedBy,omitempty"`
}

type assigner struct {
	ID   uuid.UUID   `json:"id"`
	Role domain.Role `json:"role"`
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	actor authz.Identity,
	in CreateTaskInput,
) (*CreateTaskResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(actor.ID, actor.Role, in.Title, in.Description, in.DueDate, in.Priority, in.Status)
	if err != nil {
		return nil, err
	}

	if in.AssignedTo.Valid {
		if err := s.checkAssignOnCreate(ctx, actor, in.AssignedTo.UUID); err != nil {
			return nil, err
		}
		task.AssignTo(in.AssignedTo.UUID)
	}

	humanID, err := s.ids.Insert(ctx, func(id string) error {
		task.HumanID = id
		return s.tasks.Create(ctx, task)
	})
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("actor_id", actor.ID.String()))
		return nil, newTaskError("create_task", "failed to save task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("human_id", humanID),
		slog.String("actor_id", actor.ID.String()))

	assignee, assigned := task.Assignee()
	s.invalidate(ctx, actor.ID, assignee)

	result := &CreateTaskResult{
		Task:         task,
		Notification: NotificationStatus{Message: "No user assigned to this task."},
	}
	if assigned {
		out := s.notifier.Notify(ctx, assignee, notify.EventNewTask, taskEvent{
			Message:    "A new task has been assigned to you",
			Task:       task,
			AssignedBy: &assigner{ID: actor.ID, Role: actor.Role},
		})
		result.Notification = notificationStatus(out)
	}
	return result, nil
}

// checkAssignOnCreate applies the role rule for naming an assignee at creation.
func (s *taskServiceImpl) checkAssignOnCreate(ctx context.Context, actor authz.Identity, assignee uuid.UUID) error {
	if assignee == actor.ID {
		return nil
	}
	if authz.ScopeFor(actor.Role, authz.ActionAssignOnCreate) == authz.ScopeSelf {
		return fmt.Errorf("%w: you can only assign tasks to yourself", authz.ErrForbidden)
	}

	target, err := s.users.GetByID(ctx, assignee)
	if err != nil {
		return fmt.Errorf("assigned user: %w", err)
	}
	if err := authz.CheckTarget(actor, authz.ActionAssignOnCreate, target.ID, target.TeamID); err != nil {
		return fmt.Errorf("%w: you can only assign tasks to your team members", err)
	}
	return nil
}

func notificationStatus(out notify.Outcome) NotificationStatus {
	target, at := out.Target, out.At
	return NotificationStatus{
		Sent:           out.Sent(),
		Message:        out.Describe(),
		AssignedUserID: &target,
		Timestamp:      &at,
	}
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(
	ctx context.Context,
	actor authz.Identity,
	filter TaskFilter,
	page store.PageRequest,
) (*store.Page[*domain.Task], error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := filter.validate(); err != nil {
		return nil, err
	}
	page = page.Normalize()

	key := cache.TaskListKey(actor.ID, page.Page, page.Limit, filter.cacheFields())
	var cached store.Page[*domain.Task]
	if s.cache.GetJSON(ctx, key, &cached) {
		log.Debug("task list served from cache", slog.String("key", key))
		return &cached, nil
	}

	visible, err := s.visibility.TaskScope(ctx, actor)
	if err != nil {
		return nil, newTaskError("list_tasks", "failed to resolve visibility", err)
	}

	result, err := s.tasks.FindPage(ctx, store.TaskQuery{
		Visibility: visible,
		Status:     filter.Status,
		Priority:   filter.Priority,
		AssignedTo: filter.AssignedTo,
		CreatedBy:  filter.CreatedBy,
		Search:     filter.Search,
	}, page)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("actor_id", actor.ID.String()))
		return nil, newTaskError("list_tasks", "failed to query tasks", err)
	}

	s.cache.Set(ctx, key, result, s.listTTL)
	return result, nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.visibility.CanView(ctx, actor, task)
	if err != nil {
		return nil, newTaskError("get_task", "failed to resolve visibility", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: you can only view tasks you created, are assigned or that belong to your team",
			authz.ErrForbidden)
	}
	return task, nil
}

// loadForMutation fetches a task and checks actor may perform action on it.
func (s *taskServiceImpl) loadForMutation(
	ctx context.Context,
	actor authz.Identity,
	id uuid.UUID,
	action authz.Action,
) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.visibility.CanMutate(ctx, actor, task, action)
	if err != nil {
		return nil, newTaskError(string(action), "failed to resolve visibility", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: only the task creator may do this", authz.ErrForbidden)
	}
	return task, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	actor authz.Identity,
	id uuid.UUID,
	in UpdateTaskInput,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.loadForMutation(ctx, actor, id, authz.ActionUpdateTask)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate.UTC()
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	task.UpdatedAt = s.now().UTC()

	updated, err := s.tasks.Update(ctx, task)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, newTaskError("update_task", "failed to save task", err)
	}

	assignee, assigned := updated.Assignee()
	s.invalidate(ctx, actor.ID, assignee)
	if assigned {
		s.notifier.Notify(ctx, assignee, notify.EventTaskUpdated, taskEvent{
			Message: "Task updated successfully",
			Task:    updated,
		})
	}
	return updated, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.loadForMutation(ctx, actor, id, authz.ActionDeleteTask); err != nil {
		return nil, err
	}

	deleted, err := s.tasks.Delete(ctx, id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, newTaskError("delete_task", "failed to delete task", err)
	}

	log.Info("task deleted",
		slog.String("task_id", id.String()),
		slog.String("actor_id", actor.ID.String()))

	assignee, _ := deleted.Assignee()
	s.invalidate(ctx, actor.ID, assignee)
	return deleted, nil
}

// AssignTask implements TaskService.AssignTask
func (s *taskServiceImpl) AssignTask(
	ctx context.Context,
	actor authz.Identity,
	taskID, assignee uuid.UUID,
) (*domain.Task, error) {
	task, _, err := s.assign(ctx, actor, taskID, assignee)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, assignee, notify.EventTaskAssigned, taskEvent{
		Message:    "A new task has been assigned to you",
		Task:       task,
		AssignedBy: &assigner{ID: actor.ID, Role: actor.Role},
	})
	return task, nil
}

// UpdateAssignment implements TaskService.UpdateAssignment
func (s *taskServiceImpl) UpdateAssignment(
	ctx context.Context,
	actor authz.Identity,
	taskID, assignee uuid.UUID,
) (*domain.Task, error) {
	task, previous, err := s.assign(ctx, actor, taskID, assignee)
	if err != nil {
		return nil, err
	}

	if previous.Valid {
		s.notifier.Notify(ctx, previous.UUID, notify.EventTaskAssignmentUpdated, taskEvent{
			Message: "Your task assignment has been updated",
			Task:    task,
		})
	}
	s.notifier.Notify(ctx, assignee, notify.EventTaskAssigned, taskEvent{
		Message:    "A new task has been assigned to you",
		Task:       task,
		AssignedBy: &assigner{ID: actor.ID, Role: actor.Role},
	})
	return task, nil
}

// assign moves task to assignee after every check passes and returns the
// stored task with its previous assignee.
func (s *taskServiceImpl) assign(
	ctx context.Context,
	actor authz.Identity,
	taskID, assignee uuid.UUID,
) (*domain.Task, uuid.NullUUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, uuid.NullUUID{}, err
	}
	target, err := s.users.GetByID(ctx, assignee)
	if err != nil {
		return nil, uuid.NullUUID{}, fmt.Errorf("assigned user: %w", err)
	}
	if err := s.visibility.CheckAssign(ctx, actor, task, target); err != nil {
		if errors.Is(err, authz.ErrForbidden) {
			return nil, uuid.NullUUID{}, fmt.Errorf("%w: you are not authorized to assign this task to this user", err)
		}
		return nil, uuid.NullUUID{}, newTaskError("assign_task", "failed to resolve visibility", err)
	}
	if task.IsAssignedTo(assignee) {
		return nil, uuid.NullUUID{}, domain.NewValidationError("userId", ErrAlreadyAssigned.Error(), ErrAlreadyAssigned)
	}

	previous := task.AssignedTo
	task.AssignTo(assignee)
	task.UpdatedAt = s.now().UTC()

	updated, err := s.tasks.Update(ctx, task)
	if err != nil {
		log.Error("failed to assign task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("assignee_id", assignee.String()))
		return nil, uuid.NullUUID{}, newTaskError("assign_task", "failed to save task", err)
	}

	log.Info("task assigned",
		slog.String("task_id", taskID.String()),
		slog.String("assignee_id", assignee.String()),
		slog.String("actor_id", actor.ID.String()))

	s.invalidate(ctx, actor.ID, assignee, previous.UUID)
	return updated, previous, nil
}

// ListAssigned implements TaskService.ListAssigned
func (s *taskServiceImpl) ListAssigned(
	ctx context.Context,
	actor authz.Identity,
	user uuid.NullUUID,
	status domain.TaskStatus,
	page store.PageRequest,
) (*store.Page[*domain.Task], error) {
	if err := (TaskFilter{Status: status}).validate(); err != nil {
		return nil, err
	}

	target := actor.ID
	if user.Valid && user.UUID != actor.ID {
		target = user.UUID
		if authz.ScopeFor(actor.Role, authz.ActionListAssigned) == authz.ScopeSelf {
			return nil, fmt.Errorf("%w: you can only list your own assigned tasks", authz.ErrForbidden)
		}
		u, err := s.users.GetByID(ctx, target)
		if err != nil {
			return nil, err
		}
		if err := authz.CheckTarget(actor, authz.ActionListAssigned, u.ID, u.TeamID); err != nil {
			return nil, fmt.Errorf("%w: you can only list tasks of your team members", err)
		}
	}

	result, err := s.tasks.FindPage(ctx, store.TaskQuery{
		Visibility: store.MatchAllTasks(),
		AssignedTo: uuid.NullUUID{UUID: target, Valid: true},
		Status:     status,
	}, page)
	if err != nil {
		return nil, newTaskError("list_assigned", "failed to query tasks", err)
	}
	return result, nil
}

// invalidate drops the cached task lists of every distinct non-nil identity.
func (s *taskServiceImpl) invalidate(ctx context.Context, ids ...uuid.UUID) {
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		s.cache.Invalidate(ctx, cache.TaskListPattern(id))
	}
}
