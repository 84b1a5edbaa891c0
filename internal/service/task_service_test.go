package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/cache"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/mocks"
	"github.com/phrazzld/taskhub/internal/notify"
	"github.com/phrazzld/taskhub/internal/service"
	"github.com/phrazzld/taskhub/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	Target uuid.UUID
	Event  notify.Event
}

// recordingNotifier reports every target as connected and records what it sent.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, target uuid.UUID, event notify.Event, _ any) notify.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Target: target, Event: event})
	return notify.Outcome{Status: notify.StatusSent, Target: target, At: time.Now().UTC()}
}

func (n *recordingNotifier) events() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type taskFixture struct {
	tasks    *mocks.TaskStore
	users    *mocks.UserStore
	notifier *recordingNotifier
	cache    *cache.Cache
	svc      service.TaskService
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()

	f := &taskFixture{
		tasks:    new(mocks.TaskStore),
		users:    new(mocks.UserStore),
		notifier: &recordingNotifier{},
		cache:    cache.New(cache.NewMemoryBackend(0), time.Minute, nil),
	}
	svc, err := service.NewTaskService(service.TaskServiceDeps{
		Tasks:      f.tasks,
		Users:      f.users,
		Visibility: authz.NewVisibility(f.users),
		Cache:      f.cache,
		Notifier:   f.notifier,
		ListTTL:    time.Minute,
	})
	require.NoError(t, err)
	f.svc = svc

	t.Cleanup(func() {
		f.tasks.AssertExpectations(t)
		f.users.AssertExpectations(t)
	})
	return f
}

func (f *taskFixture) expectInsert() {
	f.tasks.On("LastHumanSeq", mock.Anything).Return(6, nil).Once()
	f.tasks.On("Create", mock.Anything, mock.AnythingOfType("*domain.Task")).Return(nil).Once()
}

func newUser(role domain.Role, team uuid.NullUUID) *domain.User {
	return &domain.User{
		ID:     uuid.New(),
		Role:   role,
		Status: domain.UserStatusActive,
		TeamID: team,
	}
}

func validTaskInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:    "Write report",
		DueDate:  time.Now().Add(48 * time.Hour),
		Priority: domain.PriorityHigh,
		Status:   domain.TaskStatusPending,
	}
}

func teamID() uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.New(), Valid: true}
}

func TestNewTaskServiceValidatesDeps(t *testing.T) {
	_, err := service.NewTaskService(service.TaskServiceDeps{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateTask(t *testing.T) {
	t.Run("unassigned task reports no notification", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
		f.expectInsert()

		result, err := f.svc.CreateTask(context.Background(), actor, validTaskInput())
		require.NoError(t, err)
		assert.Equal(t, "TASK-07", result.Task.HumanID)
		assert.Equal(t, actor.ID, result.Task.CreatedBy)
		assert.False(t, result.Notification.Sent)
		assert.Equal(t, "No user assigned to this task.", result.Notification.Message)
		assert.Nil(t, result.Notification.AssignedUserID)
		assert.Empty(t, f.notifier.events())
	})

	t.Run("user may assign self", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
		f.expectInsert()

		in := validTaskInput()
		in.AssignedTo = uuid.NullUUID{UUID: actor.ID, Valid: true}
		result, err := f.svc.CreateTask(context.Background(), actor, in)
		require.NoError(t, err)
		assert.True(t, result.Notification.Sent)
		require.NotNil(t, result.Notification.AssignedUserID)
		assert.Equal(t, actor.ID, *result.Notification.AssignedUserID)
		assert.Equal(t, []sentNotification{{Target: actor.ID, Event: notify.EventNewTask}}, f.notifier.events())
	})

	t.Run("user may not assign others", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))

		in := validTaskInput()
		in.AssignedTo = uuid.NullUUID{UUID: uuid.New(), Valid: true}
		_, err := f.svc.CreateTask(context.Background(), actor, in)
		assert.ErrorIs(t, err, authz.ErrForbidden)
		f.tasks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("manager may assign a team member", func(t *testing.T) {
		f := newTaskFixture(t)
		team := teamID()
		actor := authz.IdentityOf(newUser(domain.RoleManager, team))
		member := newUser(domain.RoleUser, team)
		f.users.On("GetByID", mock.Anything, member.ID).Return(member, nil).Once()
		f.expectInsert()

		in := validTaskInput()
		in.AssignedTo = uuid.NullUUID{UUID: member.ID, Valid: true}
		result, err := f.svc.CreateTask(context.Background(), actor, in)
		require.NoError(t, err)
		assert.True(t, result.Task.IsAssignedTo(member.ID))
	})

	t.Run("manager may not assign outside the team", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleManager, teamID()))
		outsider := newUser(domain.RoleUser, teamID())
		f.users.On("GetByID", mock.Anything, outsider.ID).Return(outsider, nil).Once()

		in := validTaskInput()
		in.AssignedTo = uuid.NullUUID{UUID: outsider.ID, Valid: true}
		_, err := f.svc.CreateTask(context.Background(), actor, in)
		assert.ErrorIs(t, err, authz.ErrForbidden)
	})

	t.Run("unknown assignee", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleAdmin, uuid.NullUUID{}))
		missing := uuid.New()
		f.users.On("GetByID", mock.Anything, missing).Return(nil, store.ErrUserNotFound).Once()

		in := validTaskInput()
		in.AssignedTo = uuid.NullUUID{UUID: missing, Valid: true}
		_, err := f.svc.CreateTask(context.Background(), actor, in)
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("invalid priority fails before any lookup", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleAdmin, uuid.NullUUID{}))

		in := validTaskInput()
		in.Priority = "critical"
		_, err := f.svc.CreateTask(context.Background(), actor, in)
		assert.ErrorIs(t, err, domain.ErrInvalidPriority)
	})
}

func TestListTasksUsesCache(t *testing.T) {
	f := newTaskFixture(t)
	actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
	ctx := context.Background()

	stored := &store.Page[*domain.Task]{
		Items: []*domain.Task{{ID: uuid.New(), Title: "cached"}},
		Total: 1, Page: 1, Limit: 10,
	}
	f.tasks.On("FindPage", mock.Anything, mock.AnythingOfType("store.TaskQuery"), store.PageRequest{Page: 1, Limit: 10}).
		Return(stored, nil).Twice()

	first, err := f.svc.ListTasks(ctx, actor, service.TaskFilter{}, store.PageRequest{})
	require.NoError(t, err)
	second, err := f.svc.ListTasks(ctx, actor, service.TaskFilter{}, store.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, first.Items[0].ID, second.Items[0].ID)
	f.tasks.AssertNumberOfCalls(t, "FindPage", 1)

	// Creating a task drops the creator's cached lists.
	f.expectInsert()
	_, err = f.svc.CreateTask(ctx, actor, validTaskInput())
	require.NoError(t, err)

	_, err = f.svc.ListTasks(ctx, actor, service.TaskFilter{}, store.PageRequest{})
	require.NoError(t, err)
	f.tasks.AssertNumberOfCalls(t, "FindPage", 2)
}

func TestListTasksScopesToVisibility(t *testing.T) {
	f := newTaskFixture(t)
	team := teamID()
	actor := authz.IdentityOf(newUser(domain.RoleManager, team))
	member := uuid.New()
	f.users.On("TeamMemberIDs", mock.Anything, team.UUID).Return([]uuid.UUID{actor.ID, member}, nil).Once()

	var got store.TaskQuery
	f.tasks.On("FindPage", mock.Anything, mock.AnythingOfType("store.TaskQuery"), mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(store.TaskQuery) }).
		Return(&store.Page[*domain.Task]{Page: 1, Limit: 10}, nil).Once()

	_, err := f.svc.ListTasks(context.Background(), actor, service.TaskFilter{
		Status: domain.TaskStatusPending,
		Search: "report",
	}, store.PageRequest{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{actor.ID, member}, got.Visibility.CreatedByIn)
	assert.ElementsMatch(t, []uuid.UUID{actor.ID, member}, got.Visibility.AssignedToIn)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.Equal(t, "report", got.Search)
}

func TestListTasksRejectsBadFilter(t *testing.T) {
	f := newTaskFixture(t)
	actor := authz.IdentityOf(newUser(domain.RoleAdmin, uuid.NullUUID{}))

	_, err := f.svc.ListTasks(context.Background(), actor, service.TaskFilter{Status: "done"}, store.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
}

func TestGetTask(t *testing.T) {
	f := newTaskFixture(t)
	owner := newUser(domain.RoleUser, uuid.NullUUID{})
	stranger := newUser(domain.RoleUser, uuid.NullUUID{})
	task := &domain.Task{ID: uuid.New(), CreatedBy: owner.ID}
	f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil)

	got, err := f.svc.GetTask(context.Background(), authz.IdentityOf(owner), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, got)

	_, err = f.svc.GetTask(context.Background(), authz.IdentityOf(stranger), task.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)

	missing := uuid.New()
	f.tasks.On("GetByID", mock.Anything, missing).Return(nil, store.ErrTaskNotFound)
	_, err = f.svc.GetTask(context.Background(), authz.IdentityOf(owner), missing)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestUpdateTask(t *testing.T) {
	newStored := func(creator, assignee uuid.UUID) *domain.Task {
		task := &domain.Task{
			ID:        uuid.New(),
			Title:     "old",
			DueDate:   time.Now().Add(time.Hour),
			Priority:  domain.PriorityLow,
			Status:    domain.TaskStatusPending,
			CreatedBy: creator,
		}
		task.AssignTo(assignee)
		return task
	}

	t.Run("creator updates and assignee is notified", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
		assignee := uuid.New()
		task := newStored(actor.ID, assignee)
		f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
		f.tasks.On("Update", mock.Anything, task).Return(task, nil).Once()

		title, status := "new", domain.TaskStatusInProgress
		got, err := f.svc.UpdateTask(context.Background(), actor, task.ID, service.UpdateTaskInput{
			Title:  &title,
			Status: &status,
		})
		require.NoError(t, err)
		assert.Equal(t, "new", got.Title)
		assert.Equal(t, domain.TaskStatusInProgress, got.Status)
		assert.Equal(t, []sentNotification{{Target: assignee, Event: notify.EventTaskUpdated}}, f.notifier.events())
	})

	t.Run("admin who is not the creator is forbidden", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleAdmin, uuid.NullUUID{}))
		task := newStored(uuid.New(), uuid.Nil)
		f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()

		title := "hijack"
		_, err := f.svc.UpdateTask(context.Background(), actor, task.ID, service.UpdateTaskInput{Title: &title})
		assert.ErrorIs(t, err, authz.ErrForbidden)
	})

	t.Run("invalid status", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
		task := newStored(actor.ID, uuid.Nil)
		f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()

		status := domain.TaskStatus("done")
		_, err := f.svc.UpdateTask(context.Background(), actor, task.ID, service.UpdateTaskInput{Status: &status})
		assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
	})
}

func TestDeleteTask(t *testing.T) {
	f := newTaskFixture(t)
	actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
	task := &domain.Task{ID: uuid.New(), CreatedBy: actor.ID}
	f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
	f.tasks.On("Delete", mock.Anything, task.ID).Return(task, nil).Once()

	deleted, err := f.svc.DeleteTask(context.Background(), actor, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, deleted.ID)

	other := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
	f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
	_, err = f.svc.DeleteTask(context.Background(), other, task.ID)
	assert.ErrorIs(t, err, authz.ErrForbidden)
}

func TestAssignment(t *testing.T) {
	t.Run("assign notifies the new assignee", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
		target := newUser(domain.RoleUser, uuid.NullUUID{})
		task := &domain.Task{ID: uuid.New(), CreatedBy: actor.ID}
		f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
		f.users.On("GetByID", mock.Anything, target.ID).Return(target, nil).Once()
		f.tasks.On("Update", mock.Anything, task).Return(task, nil).Once()

		got, err := f.svc.AssignTask(context.Background(), actor, task.ID, target.ID)
		require.NoError(t, err)
		assert.True(t, got.IsAssignedTo(target.ID))
		assert.Equal(t, []sentNotification{{Target: target.ID, Event: notify.EventTaskAssigned}}, f.notifier.events())
	})

	t.Run("reassign notifies previous and new assignee", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleAdmin, uuid.NullUUID{}))
		previous := uuid.New()
		target := newUser(domain.RoleUser, uuid.NullUUID{})
		task := &domain.Task{ID: uuid.New(), CreatedBy: uuid.New()}
		task.AssignTo(previous)
		f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
		f.users.On("GetByID", mock.Anything, target.ID).Return(target, nil).Once()
		f.tasks.On("Update", mock.Anything, task).Return(task, nil).Once()

		_, err := f.svc.UpdateAssignment(context.Background(), actor, task.ID, target.ID)
		require.NoError(t, err)
		assert.Equal(t, []sentNotification{
			{Target: previous, Event: notify.EventTaskAssignmentUpdated},
			{Target: target.ID, Event: notify.EventTaskAssigned},
		}, f.notifier.events())
	})

	t.Run("reassigning to the current assignee is rejected", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleAdmin, uuid.NullUUID{}))
		target := newUser(domain.RoleUser, uuid.NullUUID{})
		task := &domain.Task{ID: uuid.New(), CreatedBy: actor.ID}
		task.AssignTo(target.ID)
		f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
		f.users.On("GetByID", mock.Anything, target.ID).Return(target, nil).Once()

		_, err := f.svc.UpdateAssignment(context.Background(), actor, task.ID, target.ID)
		assert.ErrorIs(t, err, service.ErrAlreadyAssigned)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, f.notifier.events())
	})

	t.Run("manager may not assign outside the team", func(t *testing.T) {
		f := newTaskFixture(t)
		team := teamID()
		actor := authz.IdentityOf(newUser(domain.RoleManager, team))
		outsider := newUser(domain.RoleUser, teamID())
		task := &domain.Task{ID: uuid.New(), CreatedBy: actor.ID}
		f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
		f.users.On("GetByID", mock.Anything, outsider.ID).Return(outsider, nil).Once()
		f.users.On("TeamMemberIDs", mock.Anything, team.UUID).Return([]uuid.UUID{actor.ID}, nil).Once()

		_, err := f.svc.AssignTask(context.Background(), actor, task.ID, outsider.ID)
		assert.ErrorIs(t, err, authz.ErrForbidden)
	})

	t.Run("unknown assignee", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleAdmin, uuid.NullUUID{}))
		task := &domain.Task{ID: uuid.New(), CreatedBy: actor.ID}
		missing := uuid.New()
		f.tasks.On("GetByID", mock.Anything, task.ID).Return(task, nil).Once()
		f.users.On("GetByID", mock.Anything, missing).Return(nil, store.ErrUserNotFound).Once()

		_, err := f.svc.AssignTask(context.Background(), actor, task.ID, missing)
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestListAssigned(t *testing.T) {
	t.Run("defaults to the caller", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
		f.tasks.On("FindPage", mock.Anything, store.TaskQuery{
			Visibility: store.MatchAllTasks(),
			AssignedTo: uuid.NullUUID{UUID: actor.ID, Valid: true},
			Status:     domain.TaskStatusPending,
		}, store.PageRequest{}).Return(&store.Page[*domain.Task]{}, nil).Once()

		_, err := f.svc.ListAssigned(context.Background(), actor, uuid.NullUUID{}, domain.TaskStatusPending, store.PageRequest{})
		require.NoError(t, err)
	})

	t.Run("user may not read another user's list", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleUser, uuid.NullUUID{}))
		other := uuid.NullUUID{UUID: uuid.New(), Valid: true}

		_, err := f.svc.ListAssigned(context.Background(), actor, other, "", store.PageRequest{})
		assert.ErrorIs(t, err, authz.ErrForbidden)
	})

	t.Run("manager reads a team member's list", func(t *testing.T) {
		f := newTaskFixture(t)
		team := teamID()
		actor := authz.IdentityOf(newUser(domain.RoleManager, team))
		member := newUser(domain.RoleUser, team)
		f.users.On("GetByID", mock.Anything, member.ID).Return(member, nil).Once()
		f.tasks.On("FindPage", mock.Anything, mock.AnythingOfType("store.TaskQuery"), mock.Anything).
			Return(&store.Page[*domain.Task]{}, nil).Once()

		_, err := f.svc.ListAssigned(context.Background(), actor,
			uuid.NullUUID{UUID: member.ID, Valid: true}, "", store.PageRequest{})
		require.NoError(t, err)
	})

	t.Run("manager may not read outside the team", func(t *testing.T) {
		f := newTaskFixture(t)
		actor := authz.IdentityOf(newUser(domain.RoleManager, teamID()))
		outsider := newUser(domain.RoleUser, teamID())
		f.users.On("GetByID", mock.Anything, outsider.ID).Return(outsider, nil).Once()

		_, err := f.svc.ListAssigned(context.Background(), actor,
			uuid.NullUUID{UUID: outsider.ID, Valid: true}, "", store.PageRequest{})
		assert.ErrorIs(t, err, authz.ErrForbidden)
	})
}
