package mocks

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/store"
	"github.com/stretchr/testify/mock"
)

// TaskStore is a mock of store.TaskStore for use with testify/mock
type TaskStore struct {
	mock.Mock
}

var _ store.TaskStore = (*TaskStore)(nil)

// Create is a mock implementation of store.TaskStore.Create
func (m *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

// LastHumanSeq is a mock implementation of store.TaskStore.LastHumanSeq
func (m *TaskStore) LastHumanSeq(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// GetByID is a mock implementation of store.TaskStore.GetByID
func (m *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if task, ok := args.Get(0).(*domain.Task); ok {
		return task, args.Error(1)
	}
	return nil, args.Error(1)
}

// Find is a mock implementation of store.TaskStore.Find
func (m *TaskStore) Find(ctx context.Context, q store.TaskQuery) ([]*domain.Task, error) {
	args := m.Called(ctx, q)
	if tasks, ok := args.Get(0).([]*domain.Task); ok {
		return tasks, args.Error(1)
	}
	return nil, args.Error(1)
}

// FindPage is a mock implementation of store.TaskStore.FindPage
func (m *TaskStore) FindPage(
	ctx context.Context,
	q store.TaskQuery,
	page store.PageRequest,
) (*store.Page[*domain.Task], error) {
	args := m.Called(ctx, q, page)
	if p, ok := args.Get(0).(*store.Page[*domain.Task]); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// Update is a mock implementation of store.TaskStore.Update
func (m *TaskStore) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	args := m.Called(ctx, task)
	if t, ok := args.Get(0).(*domain.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

// Delete is a mock implementation of store.TaskStore.Delete
func (m *TaskStore) Delete(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if t, ok := args.Get(0).(*domain.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

// WithTx is a mock implementation of store.TaskStore.WithTx
func (m *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	args := m.Called(tx)
	if ret, ok := args.Get(0).(store.TaskStore); ok {
		return ret
	}
	return m
}

// TeamStore is a mock of store.TeamStore for use with testify/mock
type TeamStore struct {
	mock.Mock
}

var _ store.TeamStore = (*TeamStore)(nil)

// Create is a mock implementation of store.TeamStore.Create
func (m *TeamStore) Create(ctx context.Context, team *domain.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

// GetByID is a mock implementation of store.TeamStore.GetByID
func (m *TeamStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	args := m.Called(ctx, id)
	if team, ok := args.Get(0).(*domain.Team); ok {
		return team, args.Error(1)
	}
	return nil, args.Error(1)
}

// WithTx is a mock implementation of store.TeamStore.WithTx
func (m *TeamStore) WithTx(tx *sql.Tx) store.TeamStore {
	args := m.Called(tx)
	if ret, ok := args.Get(0).(store.TeamStore); ok {
		return ret
	}
	return m
}
