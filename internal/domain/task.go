package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every task status.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusCancelled,
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further work is expected on a task in state s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// Task is a unit of work created by one user and optionally assigned to another.
type Task struct {
	ID            uuid.UUID     `json:"id"`
	HumanID       string        `json:"taskId"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	DueDate       time.Time     `json:"dueDate"`
	Priority      Priority      `json:"priority"`
	Status        TaskStatus    `json:"status"`
	CreatedBy     uuid.UUID     `json:"createdBy"`
	CreatedByRole Role          `json:"createdByRole"`
	AssignedTo    uuid.NullUUID `json:"assignedTo"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// NewTask creates a task authored by creator. HumanID is assigned at insert time.
func NewTask(
	creator uuid.UUID,
	creatorRole Role,
	title, description string,
	dueDate time.Time,
	priority Priority,
	status TaskStatus,
) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(title),
		Description:   description,
		DueDate:       dueDate.UTC(),
		Priority:      priority,
		Status:        status,
		CreatedBy:     creator,
		CreatedByRole: creatorRole,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// Validate checks the invariants that hold for every stored task.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if t.DueDate.IsZero() {
		return NewValidationError("dueDate", "is required", ErrValidation)
	}
	if !t.Priority.Valid() {
		return NewValidationError("priority", "must be one of low, medium, high, urgent", ErrInvalidPriority)
	}
	if !t.Status.Valid() {
		return NewValidationError(
			"status",
			"must be one of pending, in-progress, completed, cancelled",
			ErrInvalidTaskStatus,
		)
	}
	if t.CreatedBy == uuid.Nil {
		return NewValidationError("createdBy", "cannot be empty", ErrInvalidID)
	}
	return nil
}

// IsOverdue reports whether the task is past due and still open at now.
// Overdue is always derived and never stored.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate.Before(now) && !t.Status.Terminal()
}

// Assignee returns the assigned user, if any.
func (t *Task) Assignee() (uuid.UUID, bool) {
	return t.AssignedTo.UUID, t.AssignedTo.Valid
}

// IsAssignedTo reports whether id is the current assignee.
func (t *Task) IsAssignedTo(id uuid.UUID) bool {
	return t.AssignedTo.Valid && t.AssignedTo.UUID == id
}

// AssignTo sets the assignee; uuid.Nil clears it.
func (t *Task) AssignTo(id uuid.UUID) {
	t.AssignedTo = uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
