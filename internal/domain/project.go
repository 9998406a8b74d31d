package domain

import "time"

// ProjectStatus tracks a project's lifecycle.
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// Valid reports whether the status is a known value.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// Project groups tasks within a team.
type Project struct {
	ID          string
	TeamID      string
	Name        string
	Description string
	Status      ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
	Color       string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectStats summarizes task completion within a project.
type ProjectStats struct {
	TotalTasks     int
	CompletedTasks int
}

// CompletionPercent computes the share of completed tasks.
func (s ProjectStats) CompletionPercent() float64 {
	if s.TotalTasks == 0 {
		return 0
	}
	return float64(s.CompletedTasks) / float64(s.TotalTasks) * 100
}
