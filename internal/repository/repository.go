package repository

import (
	"context"
	"time"

	"github.com/rafa761/task-management-api/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

// TeamRepository manages teams.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *domain.Team) error
	GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error)
	UpdateTeam(ctx context.Context, team *domain.Team) error
	DeleteTeam(ctx context.Context, teamID string) error
	ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error)
}

// MembershipRepository manages team memberships and their invitation lifecycle.
type MembershipRepository interface {
	CreateMembership(ctx context.Context, member *domain.TeamMembership) error
	GetMembership(ctx context.Context, teamID, userID string) (*domain.TeamMembership, error)
	UpdateMembership(ctx context.Context, member *domain.TeamMembership) error
	ListMembers(ctx context.Context, teamID string) ([]domain.TeamMembership, error)
	CountActiveOwners(ctx context.Context, teamID string) (int, error)
}

// ProjectRepository persists projects.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	UpdateProject(ctx context.Context, project *domain.Project) error
	DeleteProject(ctx context.Context, projectID string) error
	ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error)
	GetProjectStats(ctx context.Context, projectID string) (domain.ProjectStats, error)
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	TeamID          string
	ProjectID       string
	AssigneeID      string
	Status          domain.TaskStatus
	IncludeArchived bool
	Limit           int
	Offset          int
}

// TaskRepository persists tasks, assignments and dependencies.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	DeleteTask(ctx context.Context, taskID string) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error)

	CreateAssignment(ctx context.Context, assignment *domain.TaskAssignment) error
	DeleteAssignment(ctx context.Context, taskID, assigneeID string) error
	ListAssignments(ctx context.Context, taskID string) ([]domain.TaskAssignment, error)

	CreateDependency(ctx context.Context, dependency *domain.TaskDependency) error
	DeleteDependency(ctx context.Context, dependentID, prerequisiteID string) error
	ListDependencies(ctx context.Context, dependentID string) ([]domain.TaskDependency, error)
	ListDependencyEdges(ctx context.Context, teamID string) ([]domain.TaskDependency, error)
	CountOpenPrerequisites(ctx context.Context, taskID string) (int, error)
}

// ActivityRepository stores the per-team activity feed.
type ActivityRepository interface {
	InsertEvent(ctx context.Context, event *domain.ActivityEvent) error
	ListEvents(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityEvent, error)
}
