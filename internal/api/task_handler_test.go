package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/service"
	"github.com/phrazzld/taskhub/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTaskHandler(t *testing.T) (*TaskHandler, *mockTaskService) {
	t.Helper()
	svc := new(mockTaskService)
	t.Cleanup(func() { svc.AssertExpectations(t) })
	return NewTaskHandler(svc, nil), svc
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	due := time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC)

	t.Run("unassigned task reports the notification status", func(t *testing.T) {
		handler, svc := newTaskHandler(t)
		caller := testPrincipal(domain.RoleUser)
		task := testTask(caller.User.ID)

		svc.On("CreateTask", mock.Anything, authz.IdentityOf(caller.User), service.CreateTaskInput{
			Title:    "Write report",
			DueDate:  due,
			Priority: domain.PriorityHigh,
			Status:   domain.TaskStatusPending,
		}).Return(&service.CreateTaskResult{
			Task:         task,
			Notification: service.NotificationStatus{Message: "No user assigned to this task."},
		}, nil).Once()

		recorder := httptest.NewRecorder()
		handler.CreateTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks", map[string]any{
			"title":    "  Write report ",
			"dueDate":  due.Format(time.RFC3339),
			"priority": "high",
			"status":   "pending",
		}, caller))

		require.Equal(t, http.StatusCreated, recorder.Code)
		env := decodeEnvelope(t, recorder)
		assert.True(t, env.Success)

		var data struct {
			Task         domain.Task `json:"task"`
			Notification struct {
				Sent           bool    `json:"sent"`
				AssignedUserID *string `json:"assignedUserId"`
				Timestamp      *string `json:"timestamp"`
			} `json:"notification"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "TASK-01", data.Task.HumanID)
		assert.False(t, data.Notification.Sent)
		assert.Nil(t, data.Notification.AssignedUserID)
		assert.Nil(t, data.Notification.Timestamp)
	})

	t.Run("missing required fields", func(t *testing.T) {
		handler, _ := newTaskHandler(t)
		recorder := httptest.NewRecorder()
		handler.CreateTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks", map[string]any{
			"title":  "No due date",
			"status": "pending",
		}, testPrincipal(domain.RoleUser)))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "Invalid dueDate: required field", decodeEnvelope(t, recorder).Message)
	})

	t.Run("unknown priority", func(t *testing.T) {
		handler, _ := newTaskHandler(t)
		recorder := httptest.NewRecorder()
		handler.CreateTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks", map[string]any{
			"dueDate":  due.Format(time.RFC3339),
			"priority": "critical",
			"status":   "pending",
		}, testPrincipal(domain.RoleUser)))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "Invalid priority: must be one of low, medium, high, urgent", decodeEnvelope(t, recorder).Message)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		handler, _ := newTaskHandler(t)
		recorder := httptest.NewRecorder()
		handler.CreateTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks", "{", testPrincipal(domain.RoleUser)))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("user assigning someone else is forbidden", func(t *testing.T) {
		handler, svc := newTaskHandler(t)
		other := uuid.New()
		svc.On("CreateTask", mock.Anything, mock.Anything, mock.MatchedBy(func(in service.CreateTaskInput) bool {
			return in.AssignedTo.Valid && in.AssignedTo.UUID == other
		})).Return(nil, fmt.Errorf("%w: you can only assign tasks to yourself", authz.ErrForbidden)).Once()

		recorder := httptest.NewRecorder()
		handler.CreateTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks", map[string]any{
			"dueDate":    due.Format(time.RFC3339),
			"priority":   "low",
			"status":     "pending",
			"assignedTo": other.String(),
		}, testPrincipal(domain.RoleUser)))

		assert.Equal(t, http.StatusForbidden, recorder.Code)
		assert.Equal(t, "You can only assign tasks to yourself", decodeEnvelope(t, recorder).Message)
	})

	t.Run("no principal", func(t *testing.T) {
		handler, _ := newTaskHandler(t)
		recorder := httptest.NewRecorder()
		handler.CreateTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks", map[string]any{}, nil))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestListTasksParsesFilters(t *testing.T) {
	t.Parallel()

	handler, svc := newTaskHandler(t)
	caller := testPrincipal(domain.RoleManager)
	creator := uuid.New()

	page := store.NewPage([]*domain.Task{testTask(creator)}, 11, store.PageRequest{Page: 2, Limit: 5})
	svc.On("ListTasks", mock.Anything, authz.IdentityOf(caller.User), service.TaskFilter{
		Status:    domain.TaskStatusPending,
		Priority:  domain.PriorityUrgent,
		CreatedBy: uuid.NullUUID{UUID: creator, Valid: true},
		Search:    "report",
	}, store.PageRequest{Page: 2, Limit: 5}).Return(page, nil).Once()

	target := fmt.Sprintf("/api/v1/tasks?status=pending&priority=urgent&createdBy=%s&search=report&page=2&limit=5", creator)
	recorder := httptest.NewRecorder()
	handler.ListTasks(recorder, newRequest(t, http.MethodGet, target, nil, caller))

	require.Equal(t, http.StatusOK, recorder.Code)
	var data struct {
		Total   int  `json:"total"`
		HasNext bool `json:"isNext"`
		HasPrev bool `json:"isPrev"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, recorder).Data, &data))
	assert.Equal(t, 11, data.Total)
	assert.True(t, data.HasNext)
	assert.True(t, data.HasPrev)
}

func TestListTasksRejectsBadQuery(t *testing.T) {
	t.Parallel()

	for _, target := range []string{
		"/api/v1/tasks?assignedTo=nope",
		"/api/v1/tasks?page=two",
	} {
		t.Run(target, func(t *testing.T) {
			handler, _ := newTaskHandler(t)
			recorder := httptest.NewRecorder()
			handler.ListTasks(recorder, newRequest(t, http.MethodGet, target, nil, testPrincipal(domain.RoleUser)))
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

func TestGetTask(t *testing.T) {
	t.Parallel()

	t.Run("invalid id", func(t *testing.T) {
		handler, _ := newTaskHandler(t)
		recorder := httptest.NewRecorder()
		handler.GetTask(recorder, newRequest(t, http.MethodGet, "/api/v1/tasks/x", nil,
			testPrincipal(domain.RoleUser), "id", "x"))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("not found", func(t *testing.T) {
		handler, svc := newTaskHandler(t)
		id := uuid.New()
		svc.On("GetTask", mock.Anything, mock.Anything, id).Return(nil, store.ErrTaskNotFound).Once()

		recorder := httptest.NewRecorder()
		handler.GetTask(recorder, newRequest(t, http.MethodGet, "/api/v1/tasks/"+id.String(), nil,
			testPrincipal(domain.RoleUser), "id", id.String()))
		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Equal(t, "Task not found", decodeEnvelope(t, recorder).Message)
	})
}

func TestUpdateTaskPassesOnlyProvidedFields(t *testing.T) {
	t.Parallel()

	handler, svc := newTaskHandler(t)
	caller := testPrincipal(domain.RoleUser)
	task := testTask(caller.User.ID)
	status := domain.TaskStatusCompleted

	svc.On("UpdateTask", mock.Anything, authz.IdentityOf(caller.User), task.ID, service.UpdateTaskInput{
		Status: &status,
	}).Return(task, nil).Once()

	recorder := httptest.NewRecorder()
	handler.UpdateTask(recorder, newRequest(t, http.MethodPut, "/api/v1/tasks/"+task.ID.String(),
		map[string]any{"status": "completed"}, caller, "id", task.ID.String()))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestDeleteTaskByNonCreator(t *testing.T) {
	t.Parallel()

	handler, svc := newTaskHandler(t)
	id := uuid.New()
	svc.On("DeleteTask", mock.Anything, mock.Anything, id).
		Return(nil, fmt.Errorf("%w: only the task creator may do this", authz.ErrForbidden)).Once()

	recorder := httptest.NewRecorder()
	handler.DeleteTask(recorder, newRequest(t, http.MethodDelete, "/api/v1/tasks/"+id.String(), nil,
		testPrincipal(domain.RoleUser), "id", id.String()))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestAssignmentEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("assign", func(t *testing.T) {
		handler, svc := newTaskHandler(t)
		caller := testPrincipal(domain.RoleManager)
		task := testTask(caller.User.ID)
		assignee := uuid.New()
		svc.On("AssignTask", mock.Anything, authz.IdentityOf(caller.User), task.ID, assignee).Return(task, nil).Once()

		recorder := httptest.NewRecorder()
		handler.AssignTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/assign",
			map[string]any{"userId": assignee.String()}, caller, "id", task.ID.String()))
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "Task assigned successfully", decodeEnvelope(t, recorder).Message)
	})

	t.Run("reassigning to the current assignee", func(t *testing.T) {
		handler, svc := newTaskHandler(t)
		id, assignee := uuid.New(), uuid.New()
		svc.On("UpdateAssignment", mock.Anything, mock.Anything, id, assignee).
			Return(nil, domain.NewValidationError("userId", "already assigned", service.ErrAlreadyAssigned)).Once()

		recorder := httptest.NewRecorder()
		handler.UpdateAssignment(recorder, newRequest(t, http.MethodPut, "/api/v1/tasks/"+id.String()+"/assignment",
			map[string]any{"userId": assignee.String()}, testPrincipal(domain.RoleUser), "id", id.String()))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "Task is already assigned to this user", decodeEnvelope(t, recorder).Message)
	})

	t.Run("manager outside team", func(t *testing.T) {
		handler, svc := newTaskHandler(t)
		id, assignee := uuid.New(), uuid.New()
		svc.On("AssignTask", mock.Anything, mock.Anything, id, assignee).Return(nil, authz.ErrForbidden).Once()

		recorder := httptest.NewRecorder()
		handler.AssignTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks/"+id.String()+"/assign",
			map[string]any{"userId": assignee.String()}, testPrincipal(domain.RoleManager), "id", id.String()))
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("malformed user id", func(t *testing.T) {
		handler, _ := newTaskHandler(t)
		id := uuid.New()
		recorder := httptest.NewRecorder()
		handler.AssignTask(recorder, newRequest(t, http.MethodPost, "/api/v1/tasks/"+id.String()+"/assign",
			map[string]any{"userId": "bob"}, testPrincipal(domain.RoleManager), "id", id.String()))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "Invalid userId: must be a valid ID", decodeEnvelope(t, recorder).Message)
	})
}

func TestListAssigned(t *testing.T) {
	t.Parallel()

	t.Run("defaults to the caller", func(t *testing.T) {
		handler, svc := newTaskHandler(t)
		caller := testPrincipal(domain.RoleUser)
		svc.On("ListAssigned", mock.Anything, authz.IdentityOf(caller.User), uuid.NullUUID{},
			domain.TaskStatusInProgress, store.PageRequest{Page: 1, Limit: store.DefaultPageLimit}).
			Return(store.NewPage[*domain.Task](nil, 0, store.PageRequest{}), nil).Once()

		recorder := httptest.NewRecorder()
		handler.ListAssigned(recorder, newRequest(t, http.MethodGet, "/api/v1/tasks/assigned?status=in-progress", nil, caller))
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		handler, _ := newTaskHandler(t)
		recorder := httptest.NewRecorder()
		handler.ListAssigned(recorder, newRequest(t, http.MethodGet, "/api/v1/tasks/assigned?status=done", nil,
			testPrincipal(domain.RoleUser)))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}
