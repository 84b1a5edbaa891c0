// Package authz decides what an identity may see and change. Every rule is a
// row in a (role, action) policy table; list predicates and pointwise checks
// are derived from the same rows so they cannot disagree.
package authz

import (
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
)

// ErrForbidden is returned when the identity is known but not permitted.
var ErrForbidden = errors.New("forbidden")

// AdminExemptFromCreatorRule controls whether admins may update and delete
// tasks they did not create. It is false: the creator-only rule binds every role.
const AdminExemptFromCreatorRule = false

// Identity is the authenticated caller as seen by authorization.
type Identity struct {
	ID   uuid.UUID
	Role domain.Role
	Team uuid.NullUUID
}

// IdentityOf derives the identity of a loaded user.
func IdentityOf(u *domain.User) Identity {
	return Identity{ID: u.ID, Role: u.Role, Team: u.TeamID}
}

// Action names an operation subject to authorization.
type Action string

const (
	// ActionViewTask scopes task reads and list predicates.
	ActionViewTask Action = "task:view"
	// ActionAssignOnCreate scopes who may be named as assignee when creating.
	ActionAssignOnCreate Action = "task:assign-on-create"
	// ActionUpdateTask scopes task updates.
	ActionUpdateTask Action = "task:update"
	// ActionDeleteTask scopes task deletes.
	ActionDeleteTask Action = "task:delete"
	// ActionAssignTask scopes which tasks may be (re)assigned.
	ActionAssignTask Action = "task:assign"
	// ActionChooseAssignee scopes who may receive an assignment.
	ActionChooseAssignee Action = "task:choose-assignee"
	// ActionListAssigned scopes whose assigned-task list may be read.
	ActionListAssigned Action = "task:list-assigned"
	// ActionListUsers scopes user listings.
	ActionListUsers Action = "user:list"
	// ActionManageUsers covers delete, role change and lock/unlock.
	ActionManageUsers Action = "user:manage"
	// ActionCreateTeam covers team creation.
	ActionCreateTeam Action = "team:create"
	// ActionViewTeam scopes which teams may be read.
	ActionViewTeam Action = "team:view"
	// ActionViewUserStats scopes whose statistics may be read.
	ActionViewUserStats Action = "stats:user"
	// ActionViewTeamStats scopes which team's statistics may be read.
	ActionViewTeamStats Action = "stats:team"
)

// Scope is the reach a role has for an action.
type Scope int

const (
	// ScopeNone denies the action.
	ScopeNone Scope = iota
	// ScopeSelf allows records the identity created, is assigned, or is.
	ScopeSelf
	// ScopeTeam allows records touching the identity's team, self included.
	ScopeTeam
	// ScopeCreator allows only records the identity created.
	ScopeCreator
	// ScopeAll allows everything.
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeSelf:
		return "self"
	case ScopeTeam:
		return "team"
	case ScopeCreator:
		return "creator"
	case ScopeAll:
		return "all"
	}
	return "none"
}

var policy = buildPolicy()

func buildPolicy() map[domain.Role]map[Action]Scope {
	adminMutate := ScopeCreator
	if AdminExemptFromCreatorRule {
		adminMutate = ScopeAll
	}

	return map[domain.Role]map[Action]Scope{
		domain.RoleUser: {
			ActionViewTask:       ScopeSelf,
			ActionAssignOnCreate: ScopeSelf,
			ActionUpdateTask:     ScopeCreator,
			ActionDeleteTask:     ScopeCreator,
			ActionAssignTask:     ScopeCreator,
			ActionChooseAssignee: ScopeAll,
			ActionListAssigned:   ScopeSelf,
			ActionViewTeam:       ScopeSelf,
			ActionViewUserStats:  ScopeSelf,
		},
		domain.RoleManager: {
			ActionViewTask:       ScopeTeam,
			ActionAssignOnCreate: ScopeTeam,
			ActionUpdateTask:     ScopeCreator,
			ActionDeleteTask:     ScopeCreator,
			ActionAssignTask:     ScopeTeam,
			ActionChooseAssignee: ScopeTeam,
			ActionListAssigned:   ScopeTeam,
			ActionListUsers:      ScopeTeam,
			ActionCreateTeam:     ScopeSelf,
			ActionViewTeam:       ScopeTeam,
			ActionViewUserStats:  ScopeTeam,
			ActionViewTeamStats:  ScopeTeam,
		},
		domain.RoleAdmin: {
			ActionViewTask:       ScopeAll,
			ActionAssignOnCreate: ScopeAll,
			ActionUpdateTask:     adminMutate,
			ActionDeleteTask:     adminMutate,
			ActionAssignTask:     ScopeAll,
			ActionChooseAssignee: ScopeAll,
			ActionListAssigned:   ScopeAll,
			ActionListUsers:      ScopeAll,
			ActionManageUsers:    ScopeAll,
			ActionCreateTeam:     ScopeAll,
			ActionViewTeam:       ScopeAll,
			ActionViewUserStats:  ScopeAll,
			ActionViewTeamStats:  ScopeAll,
		},
	}
}

// ScopeFor looks up the policy row for (role, action). Unknown pairs are ScopeNone.
func ScopeFor(role domain.Role, action Action) Scope {
	return policy[role][action]
}

// Allowed reports whether role may perform action on at least some records.
func Allowed(role domain.Role, action Action) bool {
	return ScopeFor(role, action) != ScopeNone
}

// CheckTarget decides whether id may perform action against the user
// identified by target who belongs to targetTeam.
func CheckTarget(id Identity, action Action, target uuid.UUID, targetTeam uuid.NullUUID) error {
	switch ScopeFor(id.Role, action) {
	case ScopeAll:
		return nil
	case ScopeTeam:
		if target == id.ID || sameTeam(id, targetTeam) {
			return nil
		}
	case ScopeSelf, ScopeCreator:
		if target == id.ID {
			return nil
		}
	}
	return ErrForbidden
}

// CheckTeam decides whether id may perform action against a whole team.
func CheckTeam(id Identity, action Action, team uuid.UUID) error {
	switch ScopeFor(id.Role, action) {
	case ScopeAll:
		return nil
	case ScopeTeam, ScopeSelf:
		if id.Team.Valid && id.Team.UUID == team {
			return nil
		}
	}
	return ErrForbidden
}

func sameTeam(id Identity, other uuid.NullUUID) bool {
	return id.Team.Valid && other.Valid && id.Team.UUID == other.UUID
}
