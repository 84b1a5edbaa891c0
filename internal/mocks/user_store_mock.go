package mocks

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/store"
	"github.com/stretchr/testify/mock"
)

// UserStore is a mock of store.UserStore for use with testify/mock
type UserStore struct {
	mock.Mock
}

var _ store.UserStore = (*UserStore)(nil)

// Create is a mock implementation of store.UserStore.Create
func (m *UserStore) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// LastHumanSeq is a mock implementation of store.UserStore.LastHumanSeq
func (m *UserStore) LastHumanSeq(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// GetByID is a mock implementation of store.UserStore.GetByID
func (m *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if user, ok := args.Get(0).(*domain.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// GetByEmail is a mock implementation of store.UserStore.GetByEmail
func (m *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if user, ok := args.Get(0).(*domain.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

// Conflicts is a mock implementation of store.UserStore.Conflicts
func (m *UserStore) Conflicts(ctx context.Context, email, username string) (bool, bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

// Update is a mock implementation of store.UserStore.Update
func (m *UserStore) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// SoftDelete is a mock implementation of store.UserStore.SoftDelete
func (m *UserStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// FindPage is a mock implementation of store.UserStore.FindPage
func (m *UserStore) FindPage(
	ctx context.Context,
	q store.UserQuery,
	page store.PageRequest,
) (*store.Page[*domain.User], error) {
	args := m.Called(ctx, q, page)
	if p, ok := args.Get(0).(*store.Page[*domain.User]); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// ListByTeam is a mock implementation of store.UserStore.ListByTeam
func (m *UserStore) ListByTeam(ctx context.Context, team uuid.UUID) ([]*domain.User, error) {
	args := m.Called(ctx, team)
	if users, ok := args.Get(0).([]*domain.User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}

// TeamMemberIDs is a mock implementation of store.UserStore.TeamMemberIDs
func (m *UserStore) TeamMemberIDs(ctx context.Context, team uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, team)
	if ids, ok := args.Get(0).([]uuid.UUID); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

// SetTeam is a mock implementation of store.UserStore.SetTeam
func (m *UserStore) SetTeam(ctx context.Context, ids []uuid.UUID, team uuid.UUID) error {
	args := m.Called(ctx, ids, team)
	return args.Error(0)
}

// WithTx is a mock implementation of store.UserStore.WithTx
func (m *UserStore) WithTx(tx *sql.Tx) store.UserStore {
	args := m.Called(tx)
	if ret, ok := args.Get(0).(store.UserStore); ok {
		return ret
	}
	return m
}

// SessionStore is a mock of store.SessionStore for use with testify/mock
type SessionStore struct {
	mock.Mock
}

var _ store.SessionStore = (*SessionStore)(nil)

// Create is a mock implementation of store.SessionStore.Create
func (m *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// Get is a mock implementation of store.SessionStore.Get
func (m *SessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if s, ok := args.Get(0).(*domain.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// Delete is a mock implementation of store.SessionStore.Delete
func (m *SessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Trim is a mock implementation of store.SessionStore.Trim
func (m *SessionStore) Trim(ctx context.Context, user uuid.UUID, keep int) error {
	args := m.Called(ctx, user, keep)
	return args.Error(0)
}

// DeleteForUser is a mock implementation of store.SessionStore.DeleteForUser
func (m *SessionStore) DeleteForUser(ctx context.Context, user uuid.UUID) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
