package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestTaskWhere(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tests := []struct {
		name     string
		query    store.TaskQuery
		wantSQL  string
		wantArgs []any
	}{
		{
			name:  "admin sees everything",
			query: store.TaskQuery{Visibility: store.MatchAllTasks()},
		},
		{
			name:    "zero predicate matches nothing",
			query:   store.TaskQuery{},
			wantSQL: " WHERE FALSE",
		},
		{
			name: "self scope",
			query: store.TaskQuery{Visibility: store.TaskPredicate{
				CreatedByIn:  []uuid.UUID{a},
				AssignedToIn: []uuid.UUID{a},
			}},
			wantSQL:  " WHERE (created_by IN ($1) OR assigned_to IN ($2))",
			wantArgs: []any{a, a},
		},
		{
			name: "creator scope",
			query: store.TaskQuery{Visibility: store.TaskPredicate{
				CreatedByIn: []uuid.UUID{a},
			}},
			wantSQL:  " WHERE created_by IN ($1)",
			wantArgs: []any{a},
		},
		{
			name: "team scope with filters",
			query: store.TaskQuery{
				Visibility: store.TaskPredicate{
					CreatedByIn:  []uuid.UUID{a, b},
					AssignedToIn: []uuid.UUID{a, b},
				},
				Status:     domain.TaskStatusPending,
				Priority:   domain.PriorityHigh,
				AssignedTo: uuid.NullUUID{UUID: b, Valid: true},
				CreatedBy:  uuid.NullUUID{UUID: a, Valid: true},
			},
			wantSQL: " WHERE (created_by IN ($1, $2) OR assigned_to IN ($3, $4))" +
				" AND status = $5 AND priority = $6 AND assigned_to = $7 AND created_by = $8",
			wantArgs: []any{a, b, a, b, "pending", "high", b, a},
		},
		{
			name:     "search escapes wildcards",
			query:    store.TaskQuery{Visibility: store.MatchAllTasks(), Search: `50%_off\`},
			wantSQL:  " WHERE (title ILIKE $1 OR description ILIKE $1)",
			wantArgs: []any{`%50\%\_off\\%`},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sql, args := taskWhere(tc.query)
			assert.Equal(t, tc.wantSQL, sql)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}

func TestUserWhere(t *testing.T) {
	self, team := uuid.New(), uuid.New()

	sql, args := userWhere(store.UserQuery{Visibility: store.UserPredicate{All: true}})
	assert.Equal(t, " WHERE status <> 'deleted'", sql)
	assert.Empty(t, args)

	sql, args = userWhere(store.UserQuery{
		Visibility: store.UserPredicate{IDs: []uuid.UUID{self}, Team: uuid.NullUUID{UUID: team, Valid: true}},
		Role:       domain.RoleUser,
		Search:     "ali",
	})
	assert.Equal(t,
		" WHERE status <> 'deleted' AND (id IN ($1) OR team_id = $2) AND role = $3 AND (username ILIKE $4 OR email ILIKE $4)",
		sql)
	assert.Equal(t, []any{self, team, "user", "%ali%"}, args)

	sql, _ = userWhere(store.UserQuery{})
	assert.Equal(t, " WHERE status <> 'deleted' AND FALSE", sql)
}

func TestPageClause(t *testing.T) {
	clause, args := pageClause([]any{"x"}, store.PageRequest{Page: 3, Limit: 20})
	assert.Equal(t, " LIMIT $2 OFFSET $3", clause)
	assert.Equal(t, []any{"x", 20, 40}, args)

	clause, args = pageClause(nil, store.PageRequest{})
	assert.Equal(t, " LIMIT $1 OFFSET $2", clause)
	assert.Equal(t, []any{store.DefaultPageLimit, 0}, args)
}
