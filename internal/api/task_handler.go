package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/service"
)

// TaskHandler handles task and assignment requests.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks. The response carries the outcome of the
// notification sent to the assignee next to the task itself.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, ok := getIdentity(w, r, log)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.taskService.CreateTask(r.Context(), identity, service.CreateTaskInput{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		DueDate:     *req.DueDate,
		Priority:    domain.Priority(req.Priority),
		Status:      domain.TaskStatus(req.Status),
		AssignedTo:  parseOptionalUUID(req.AssignedTo),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created",
		slog.String("task_id", result.Task.ID.String()),
		slog.Bool("notification_sent", result.Notification.Sent))
	shared.RespondWithData(w, r, http.StatusCreated, "Task created successfully", result)
}

// taskFilter reads the list filters shared by the task listing.
func taskFilter(r *http.Request) (service.TaskFilter, error) {
	q := r.URL.Query()
	filter := service.TaskFilter{
		Status:   domain.TaskStatus(q.Get("status")),
		Priority: domain.Priority(q.Get("priority")),
		Search:   strings.TrimSpace(q.Get("search")),
	}

	var err error
	if filter.AssignedTo, err = getQueryUUID(r, "assignedTo"); err != nil {
		return filter, err
	}
	if filter.CreatedBy, err = getQueryUUID(r, "createdBy"); err != nil {
		return filter, err
	}
	return filter, nil
}

// ListTasks handles GET /tasks. Query parameters: status, priority,
// assignedTo, createdBy, search, page, limit.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	identity, ok := getIdentity(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	filter, err := taskFilter(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	page, err := getPageRequest(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tasks, err := h.taskService.ListTasks(r.Context(), identity, filter, page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Tasks retrieved successfully", tasks)
}

// GetTask handles GET /tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := handleIdentityAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), identity, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Task retrieved successfully", task)
}

// UpdateTask handles PUT /tasks/{id}. Only the creator may update a task.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := handleIdentityAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	in := service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		in.Priority = &p
	}
	if req.Status != nil {
		s := domain.TaskStatus(*req.Status)
		in.Status = &s
	}

	task, err := h.taskService.UpdateTask(r.Context(), identity, id, in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update task")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Task updated successfully", task)
}

// DeleteTask handles DELETE /tasks/{id}. Only the creator may delete a task.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, id, ok := handleIdentityAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	task, err := h.taskService.DeleteTask(r.Context(), identity, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}

	log.Debug("task deleted", slog.String("task_id", id.String()))
	shared.RespondWithData(w, r, http.StatusOK, "Task deleted successfully", task)
}

// assignFunc is the service call behind one of the assignment endpoints.
type assignFunc func(ctx context.Context, actor authz.Identity, taskID, assignee uuid.UUID) (*domain.Task, error)

// handleAssignment shares request handling between both assignment endpoints.
func (h *TaskHandler) handleAssignment(w http.ResponseWriter, r *http.Request, message string, assign assignFunc) {
	identity, taskID, ok := handleIdentityAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	var req AssignTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	assignee, err := uuid.Parse(req.UserID)
	if err != nil {
		HandleAPIError(w, r, domain.NewValidationError("userId", "has invalid format", domain.ErrInvalidID), "")
		return
	}

	task, err := assign(r.Context(), identity, taskID, assignee)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to assign task")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, message, task)
}

// AssignTask handles POST /tasks/{id}/assign.
func (h *TaskHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	h.handleAssignment(w, r, "Task assigned successfully", h.taskService.AssignTask)
}

// UpdateAssignment handles PUT /tasks/{id}/assignment.
func (h *TaskHandler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	h.handleAssignment(w, r, "Task assignment updated successfully", h.taskService.UpdateAssignment)
}

// ListAssigned handles GET /tasks/assigned. Query parameters: userId
// (defaults to the caller), status, page, limit.
func (h *TaskHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	identity, ok := getIdentity(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	user, err := getQueryUUID(r, "userId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	page, err := getPageRequest(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	status := domain.TaskStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		HandleAPIError(w, r, domain.NewValidationError("status",
			"must be one of pending, in-progress, completed, cancelled", domain.ErrInvalidTaskStatus), "")
		return
	}

	tasks, err := h.taskService.ListAssigned(r.Context(), identity, user, status, page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list assigned tasks")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Assigned tasks retrieved successfully", tasks)
}
