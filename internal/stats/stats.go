// Package stats derives task analytics from a set of tasks the caller is
// already allowed to see. Every function is pure: the clock is a parameter.
package stats

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/domain"
)

// PriorityCounts buckets tasks by priority.
type PriorityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
	Urgent int `json:"urgent"`
}

func (p *PriorityCounts) add(priority domain.Priority) {
	switch priority {
	case domain.PriorityLow:
		p.Low++
	case domain.PriorityMedium:
		p.Medium++
	case domain.PriorityHigh:
		p.High++
	case domain.PriorityUrgent:
		p.Urgent++
	}
}

// Counts is the status, priority and overdue breakdown of a task set.
type Counts struct {
	Total          int            `json:"total"`
	Pending        int            `json:"pending"`
	InProgress     int            `json:"inProgress"`
	Completed      int            `json:"completed"`
	Cancelled      int            `json:"cancelled"`
	Overdue        int            `json:"overdue"`
	ByPriority     PriorityCounts `json:"byPriority"`
	CompletionRate float64        `json:"completionRate"`
}

// Count computes the breakdown of tasks as of now.
func Count(tasks []*domain.Task, now time.Time) Counts {
	var c Counts
	for _, t := range tasks {
		c.Total++
		switch t.Status {
		case domain.TaskStatusPending:
			c.Pending++
		case domain.TaskStatusInProgress:
			c.InProgress++
		case domain.TaskStatusCompleted:
			c.Completed++
		case domain.TaskStatusCancelled:
			c.Cancelled++
		}
		if t.IsOverdue(now) {
			c.Overdue++
		}
		c.ByPriority.add(t.Priority)
	}
	c.CompletionRate = CompletionRate(c.Completed, c.Total)
	return c
}

// CompletionRate is 100*completed/total rounded to two decimals, or 0 for
// an empty set.
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(100 * float64(completed) / float64(total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summary condenses Counts into the headline figures.
type Summary struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

// TaskAnalytics describes every task visible to the caller.
type TaskAnalytics struct {
	Counts
	Summary Summary `json:"summary"`
}

// Analyze builds TaskAnalytics over the visible set.
func Analyze(visible []*domain.Task, now time.Time) TaskAnalytics {
	c := Count(visible, now)
	return TaskAnalytics{
		Counts: c,
		Summary: Summary{
			Active:    c.Pending + c.InProgress,
			Completed: c.Completed,
			Overdue:   c.Overdue,
		},
	}
}

// UserRef identifies the subject of a statistics report.
type UserRef struct {
	ID       uuid.UUID   `json:"id"`
	HumanID  string      `json:"userId"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
}

// RefOf builds the UserRef of u.
func RefOf(u *domain.User) UserRef {
	return UserRef{ID: u.ID, HumanID: u.HumanID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// UserStatistics separates authorship from the workload assigned to a user.
// Every breakdown is over the assigned set only.
type UserStatistics struct {
	User            UserRef        `json:"user"`
	TasksCreated    int            `json:"tasksCreated"`
	TasksAssigned   int            `json:"tasksAssigned"`
	TasksCompleted  int            `json:"tasksCompleted"`
	TasksPending    int            `json:"tasksPending"`
	TasksInProgress int            `json:"tasksInProgress"`
	TasksOverdue    int            `json:"tasksOverdue"`
	CompletionRate  float64        `json:"completionRate"`
	ByPriority      PriorityCounts `json:"byPriority"`
}

// ForUser reports on user given the tasks they created and the tasks
// assigned to them.
func ForUser(user *domain.User, created, assigned []*domain.Task, now time.Time) UserStatistics {
	c := Count(assigned, now)
	return UserStatistics{
		User:            RefOf(user),
		TasksCreated:    len(created),
		TasksAssigned:   c.Total,
		TasksCompleted:  c.Completed,
		TasksPending:    c.Pending,
		TasksInProgress: c.InProgress,
		TasksOverdue:    c.Overdue,
		CompletionRate:  c.CompletionRate,
		ByPriority:      c.ByPriority,
	}
}

// MemberStatistics is one roster entry of a team report.
type MemberStatistics struct {
	UserID         uuid.UUID `json:"userId"`
	HumanID        string    `json:"humanId"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	TasksCreated   int       `json:"tasksCreated"`
	TasksAssigned  int       `json:"tasksAssigned"`
	TasksCompleted int       `json:"tasksCompleted"`
	TasksPending   int       `json:"tasksPending"`
	TasksOverdue   int       `json:"tasksOverdue"`
	CompletionRate float64   `json:"completionRate"`
}

// TeamStatistics covers every task created by or assigned to a team member.
type TeamStatistics struct {
	TeamID         uuid.UUID          `json:"teamId"`
	TotalMembers   int                `json:"totalMembers"`
	TotalTasks     int                `json:"totalTasks"`
	Pending        int                `json:"pending"`
	InProgress     int                `json:"inProgress"`
	Completed      int                `json:"completed"`
	Cancelled      int                `json:"cancelled"`
	Overdue        int                `json:"overdue"`
	ByPriority     PriorityCounts     `json:"byPriority"`
	CompletionRate float64            `json:"completionRate"`
	ByMember       []MemberStatistics `json:"byMember"`
}

// ForTeam reports on team. roster is the full member list; members without
// tasks appear with zero counts in roster order.
func ForTeam(team uuid.UUID, roster []*domain.User, tasks []*domain.Task, now time.Time) TeamStatistics {
	c := Count(tasks, now)
	out := TeamStatistics{
		TeamID:         team,
		TotalMembers:   len(roster),
		TotalTasks:     c.Total,
		Pending:        c.Pending,
		InProgress:     c.InProgress,
		Completed:      c.Completed,
		Cancelled:      c.Cancelled,
		Overdue:        c.Overdue,
		ByPriority:     c.ByPriority,
		CompletionRate: c.CompletionRate,
		ByMember:       make([]MemberStatistics, 0, len(roster)),
	}

	index := make(map[uuid.UUID]int, len(roster))
	for i, m := range roster {
		index[m.ID] = i
		out.ByMember = append(out.ByMember, MemberStatistics{
			UserID:   m.ID,
			HumanID:  m.HumanID,
			Username: m.Username,
			Email:    m.Email,
		})
	}

	for _, t := range tasks {
		if i, ok := index[t.CreatedBy]; ok {
			out.ByMember[i].TasksCreated++
		}
		assignee, assigned := t.Assignee()
		if !assigned {
			continue
		}
		i, ok := index[assignee]
		if !ok {
			continue
		}
		m := &out.ByMember[i]
		m.TasksAssigned++
		switch t.Status {
		case domain.TaskStatusCompleted:
			m.TasksCompleted++
		case domain.TaskStatusPending:
			m.TasksPending++
		}
		if t.IsOverdue(now) {
			m.TasksOverdue++
		}
	}

	for i := range out.ByMember {
		m := &out.ByMember[i]
		m.CompletionRate = CompletionRate(m.TasksCompleted, m.TasksAssigned)
	}
	return out
}
