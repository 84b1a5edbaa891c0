package store

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
)

// TaskPredicate restricts which tasks an identity may see. A task matches when
// All is set, or its creator is in CreatedByIn, or its assignee is in
// AssignedToIn. The zero value matches nothing.
type TaskPredicate struct {
	All          bool
	CreatedByIn  []uuid.UUID
	AssignedToIn []uuid.UUID
}

// MatchAllTasks returns the unconditional predicate.
func MatchAllTasks() TaskPredicate {
	return TaskPredicate{All: true}
}

// Matches evaluates the predicate against a single task.
func (p TaskPredicate) Matches(t *domain.Task) bool {
	if t == nil {
		return false
	}
	if p.All {
		return true
	}
	if slices.Contains(p.CreatedByIn, t.CreatedBy) {
		return true
	}
	return t.AssignedTo.Valid && slices.Contains(p.AssignedToIn, t.AssignedTo.UUID)
}

// UserPredicate restricts which users an identity may list. A user matches
// when All is set, or its ID is in IDs, or it belongs to Team. Deleted users
// never match.
type UserPredicate struct {
	All  bool
	IDs  []uuid.UUID
	Team uuid.NullUUID
}

// Matches evaluates the predicate against a single user.
func (p UserPredicate) Matches(u *domain.User) bool {
	if u == nil || u.Status == domain.UserStatusDeleted {
		return false
	}
	if p.All || slices.Contains(p.IDs, u.ID) {
		return true
	}
	return p.Team.Valid && u.InTeam(p.Team.UUID)
}

// TaskQuery combines a visibility predicate with optional caller filters.
// Every non-empty filter is AND-ed with the predicate.
type TaskQuery struct {
	Visibility TaskPredicate
	Status     domain.TaskStatus
	Priority   domain.Priority
	AssignedTo uuid.NullUUID
	CreatedBy  uuid.NullUUID
	Search     string
}

// Matches evaluates the full query against a single task.
func (q TaskQuery) Matches(t *domain.Task) bool {
	if !q.Visibility.Matches(t) {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Priority != "" && t.Priority != q.Priority {
		return false
	}
	if q.AssignedTo.Valid && !t.IsAssignedTo(q.AssignedTo.UUID) {
		return false
	}
	if q.CreatedBy.Valid && t.CreatedBy != q.CreatedBy.UUID {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// UserQuery combines a visibility predicate with optional caller filters.
type UserQuery struct {
	Visibility UserPredicate
	Role       domain.Role
	Search     string
}

// Matches evaluates the full query against a single user.
func (q UserQuery) Matches(u *domain.User) bool {
	if !q.Visibility.Matches(u) {
		return false
	}
	if q.Role != "" && u.Role != q.Role {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(u.Username), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) {
			return false
		}
	}
	return true
}
