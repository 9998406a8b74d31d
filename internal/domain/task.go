package domain

import "time"

// TaskStatus tracks a task's workflow state.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskInReview   TaskStatus = "in_review"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// Valid reports whether the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskInReview, TaskDone, TaskCancelled:
		return true
	}
	return false
}

// Completed reports whether the status terminates the workflow.
func (s TaskStatus) Completed() bool {
	return s == TaskDone || s == TaskCancelled
}

// TaskPriority orders tasks by urgency.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether the priority is a known value.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is a unit of work owned by a team, optionally grouped in a project.
type Task struct {
	ID             string
	TeamID         string
	ProjectID      string
	CreatorID      string
	Title          string
	Description    string
	Status         TaskStatus
	Priority       TaskPriority
	DueDate        *time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Position       int
	EstimatedHours *int
	Archived       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOverdue reports whether the task is past its due date and still open.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status.Completed() {
		return false
	}
	return now.After(*t.DueDate)
}

// TaskAssignment links an assignee to a task.
type TaskAssignment struct {
	ID         string
	TaskID     string
	AssigneeID string
	AssignedBy string
	AssignedAt time.Time
}

// TaskDependency records that the dependent task cannot start until the
// prerequisite task completes.
type TaskDependency struct {
	ID             string
	DependentID    string
	PrerequisiteID string
	CreatedBy      string
	CreatedAt      time.Time
}

// TaskDetail is a task joined with its assignment and dependency context.
type TaskDetail struct {
	Task
	AssigneeIDs     []string
	PrerequisiteIDs []string
	Blocked         bool
}
