package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Team groups users under a manager. Membership for authorization purposes
// is the set of users whose TeamID points at the team.
type Team struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	ManagerID uuid.UUID   `json:"manager"`
	Members   []uuid.UUID `json:"members"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewTeam creates a team. Duplicate member IDs are collapsed and the manager
// is always counted as a member.
func NewTeam(name string, manager uuid.UUID, members []uuid.UUID) (*Team, error) {
	seen := map[uuid.UUID]bool{manager: true}
	roster := []uuid.UUID{manager}
	for _, id := range members {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		roster = append(roster, id)
	}

	now := time.Now().UTC()
	team := &Team{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		ManagerID: manager,
		Members:   roster,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := team.Validate(); err != nil {
		return nil, err
	}
	return team, nil
}

// Validate checks the team invariants.
func (t *Team) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if t.Name == "" {
		return NewValidationError("name", "cannot be empty", ErrEmptyContent)
	}
	if t.ManagerID == uuid.Nil {
		return NewValidationError("managerId", "cannot be empty", ErrInvalidID)
	}
	return nil
}
