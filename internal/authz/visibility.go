package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/store"
)

// MemberLister resolves a team roster. store.UserStore implements it.
type MemberLister interface {
	TeamMemberIDs(ctx context.Context, team uuid.UUID) ([]uuid.UUID, error)
}

// Visibility turns policy rows into store predicates and pointwise checks.
type Visibility struct {
	members MemberLister
}

// NewVisibility creates a Visibility that resolves team rosters via members.
func NewVisibility(members MemberLister) *Visibility {
	if members == nil {
		panic("members cannot be nil")
	}
	return &Visibility{members: members}
}

// TaskScope returns the predicate selecting every task id may see.
func (v *Visibility) TaskScope(ctx context.Context, id Identity) (store.TaskPredicate, error) {
	return v.taskPredicate(ctx, id, ScopeFor(id.Role, ActionViewTask))
}

func (v *Visibility) taskPredicate(ctx context.Context, id Identity, scope Scope) (store.TaskPredicate, error) {
	switch scope {
	case ScopeAll:
		return store.MatchAllTasks(), nil
	case ScopeSelf:
		self := []uuid.UUID{id.ID}
		return store.TaskPredicate{CreatedByIn: self, AssignedToIn: self}, nil
	case ScopeCreator:
		return store.TaskPredicate{CreatedByIn: []uuid.UUID{id.ID}}, nil
	case ScopeTeam:
		members, err := v.teamMembers(ctx, id)
		if err != nil {
			return store.TaskPredicate{}, err
		}
		return store.TaskPredicate{CreatedByIn: members, AssignedToIn: members}, nil
	}
	return store.TaskPredicate{}, nil
}

// teamMembers returns the identity's roster with the identity itself included.
func (v *Visibility) teamMembers(ctx context.Context, id Identity) ([]uuid.UUID, error) {
	members := []uuid.UUID{id.ID}
	if !id.Team.Valid {
		return members, nil
	}

	roster, err := v.members.TeamMemberIDs(ctx, id.Team.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team members: %w", err)
	}
	for _, m := range roster {
		if m != id.ID {
			members = append(members, m)
		}
	}
	return members, nil
}

// UserScope returns the predicate selecting every user id may list.
func (v *Visibility) UserScope(id Identity) store.UserPredicate {
	switch ScopeFor(id.Role, ActionListUsers) {
	case ScopeAll:
		return store.UserPredicate{All: true}
	case ScopeTeam:
		return store.UserPredicate{IDs: []uuid.UUID{id.ID}, Team: id.Team}
	}
	return store.UserPredicate{IDs: []uuid.UUID{id.ID}}
}

// CanView reports whether id may see task. It evaluates the same predicate
// used for list queries.
func (v *Visibility) CanView(ctx context.Context, id Identity, task *domain.Task) (bool, error) {
	pred, err := v.TaskScope(ctx, id)
	if err != nil {
		return false, err
	}
	return pred.Matches(task), nil
}

// CanMutate reports whether id may perform action (update or delete) on task.
func (v *Visibility) CanMutate(ctx context.Context, id Identity, task *domain.Task, action Action) (bool, error) {
	pred, err := v.taskPredicate(ctx, id, ScopeFor(id.Role, action))
	if err != nil {
		return false, err
	}
	return pred.Matches(task), nil
}

// CheckAssign decides whether id may hand task to target.
func (v *Visibility) CheckAssign(ctx context.Context, id Identity, task *domain.Task, target *domain.User) error {
	ok, err := v.CanMutate(ctx, id, task, ActionAssignTask)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return CheckTarget(id, ActionChooseAssignee, target.ID, target.TeamID)
}
