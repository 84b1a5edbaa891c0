package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/service"
	"github.com/phrazzld/taskhub/internal/stats"
	"github.com/phrazzld/taskhub/internal/store"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Service doubles live here rather than in internal/mocks because the
// service package's own tests import internal/mocks.

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*service.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*service.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error) {
	args := m.Called(ctx, refreshToken)
	res, _ := args.Get(0).(*service.AuthResult)
	return res, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockAuthService) Authenticate(ctx context.Context, accessToken string) (*service.Principal, error) {
	args := m.Called(ctx, accessToken)
	p, _ := args.Get(0).(*service.Principal)
	return p, args.Error(1)
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) GetProfile(ctx context.Context, actor authz.Identity) (*domain.User, error) {
	args := m.Called(ctx, actor)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserService) UpdateProfile(
	ctx context.Context,
	actor authz.Identity,
	in service.UpdateProfileInput,
) (*domain.User, error) {
	args := m.Called(ctx, actor, in)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserService) ListUsers(
	ctx context.Context,
	actor authz.Identity,
	filter service.UserFilter,
	page store.PageRequest,
) (*store.Page[*domain.User], error) {
	args := m.Called(ctx, actor, filter, page)
	p, _ := args.Get(0).(*store.Page[*domain.User])
	return p, args.Error(1)
}

func (m *mockUserService) DeleteUser(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, actor, id)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserService) SetRole(
	ctx context.Context,
	actor authz.Identity,
	id uuid.UUID,
	role domain.Role,
) (*domain.User, error) {
	args := m.Called(ctx, actor, id, role)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserService) SetStatus(
	ctx context.Context,
	actor authz.Identity,
	id uuid.UUID,
	status domain.UserStatus,
) (*domain.User, error) {
	args := m.Called(ctx, actor, id, status)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *mockUserService) PromoteByEmail(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	args := m.Called(ctx, email, role)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

type mockTaskService struct{ mock.Mock }

func (m *mockTaskService) CreateTask(
	ctx context.Context,
	actor authz.Identity,
	in service.CreateTaskInput,
) (*service.CreateTaskResult, error) {
	args := m.Called(ctx, actor, in)
	res, _ := args.Get(0).(*service.CreateTaskResult)
	return res, args.Error(1)
}

func (m *mockTaskService) ListTasks(
	ctx context.Context,
	actor authz.Identity,
	filter service.TaskFilter,
	page store.PageRequest,
) (*store.Page[*domain.Task], error) {
	args := m.Called(ctx, actor, filter, page)
	p, _ := args.Get(0).(*store.Page[*domain.Task])
	return p, args.Error(1)
}

func (m *mockTaskService) GetTask(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, actor, id)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) UpdateTask(
	ctx context.Context,
	actor authz.Identity,
	id uuid.UUID,
	in service.UpdateTaskInput,
) (*domain.Task, error) {
	args := m.Called(ctx, actor, id, in)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) DeleteTask(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Task, error) {
	args := m.Called(ctx, actor, id)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) AssignTask(
	ctx context.Context,
	actor authz.Identity,
	taskID, assignee uuid.UUID,
) (*domain.Task, error) {
	args := m.Called(ctx, actor, taskID, assignee)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) UpdateAssignment(
	ctx context.Context,
	actor authz.Identity,
	taskID, assignee uuid.UUID,
) (*domain.Task, error) {
	args := m.Called(ctx, actor, taskID, assignee)
	task, _ := args.Get(0).(*domain.Task)
	return task, args.Error(1)
}

func (m *mockTaskService) ListAssigned(
	ctx context.Context,
	actor authz.Identity,
	user uuid.NullUUID,
	status domain.TaskStatus,
	page store.PageRequest,
) (*store.Page[*domain.Task], error) {
	args := m.Called(ctx, actor, user, status, page)
	p, _ := args.Get(0).(*store.Page[*domain.Task])
	return p, args.Error(1)
}

type mockStatsService struct{ mock.Mock }

func (m *mockStatsService) TaskAnalytics(ctx context.Context, actor authz.Identity) (*stats.TaskAnalytics, error) {
	args := m.Called(ctx, actor)
	a, _ := args.Get(0).(*stats.TaskAnalytics)
	return a, args.Error(1)
}

func (m *mockStatsService) UserStatistics(
	ctx context.Context,
	actor authz.Identity,
	user uuid.NullUUID,
) (*stats.UserStatistics, error) {
	args := m.Called(ctx, actor, user)
	s, _ := args.Get(0).(*stats.UserStatistics)
	return s, args.Error(1)
}

func (m *mockStatsService) TeamStatistics(
	ctx context.Context,
	actor authz.Identity,
	team uuid.NullUUID,
) (*stats.TeamStatistics, error) {
	args := m.Called(ctx, actor, team)
	s, _ := args.Get(0).(*stats.TeamStatistics)
	return s, args.Error(1)
}

type mockTeamService struct{ mock.Mock }

func (m *mockTeamService) CreateTeam(
	ctx context.Context,
	actor authz.Identity,
	in service.CreateTeamInput,
) (*domain.Team, error) {
	args := m.Called(ctx, actor, in)
	team, _ := args.Get(0).(*domain.Team)
	return team, args.Error(1)
}

func (m *mockTeamService) GetTeam(ctx context.Context, actor authz.Identity, id uuid.UUID) (*domain.Team, error) {
	args := m.Called(ctx, actor, id)
	team, _ := args.Get(0).(*domain.Team)
	return team, args.Error(1)
}

var (
	_ service.AuthService  = (*mockAuthService)(nil)
	_ service.UserService  = (*mockUserService)(nil)
	_ service.TaskService  = (*mockTaskService)(nil)
	_ service.StatsService = (*mockStatsService)(nil)
	_ service.TeamService  = (*mockTeamService)(nil)
)

// testPrincipal builds an authenticated caller with the given role.
func testPrincipal(role domain.Role) *service.Principal {
	return &service.Principal{
		User: &domain.User{
			ID:       uuid.New(),
			Username: "tester",
			Email:    "tester@example.com",
			Role:     role,
			Status:   domain.UserStatusActive,
		},
		SessionID: uuid.New(),
	}
}

// newRequest builds a request with an optional JSON body, caller and chi
// path parameters given as name, value pairs.
func newRequest(
	t *testing.T,
	method, target string,
	body any,
	principal *service.Principal,
	params ...string,
) *http.Request {
	t.Helper()

	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	ctx := req.Context()
	if principal != nil {
		ctx = shared.WithPrincipal(ctx, principal)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for i := 0; i+1 < len(params); i += 2 {
			rctx.URLParams.Add(params[i], params[i+1])
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

// envelope is the decoded shape of every response.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&env))
	return env
}

func testTask(creator uuid.UUID) *domain.Task {
	now := time.Now().UTC()
	return &domain.Task{
		ID:        uuid.New(),
		HumanID:   "TASK-01",
		Title:     "Write report",
		DueDate:   now.Add(24 * time.Hour),
		Priority:  domain.PriorityHigh,
		Status:    domain.TaskStatusPending,
		CreatedBy: creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
