package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
	"github.com/rafa761/task-management-api/internal/service/activity"
	"github.com/rafa761/task-management-api/internal/service/team"
)

// Service handles task workflows: CRUD, assignments, dependencies and the
// status state machine.
type Service struct {
	tasks    repository.TaskRepository
	projects repository.ProjectRepository
	teams    team.Service
	activity activity.Service
	logger   *slog.Logger
}

// New constructs a Service.
func New(tasks repository.TaskRepository, projects repository.ProjectRepository, teams team.Service, activitySvc activity.Service, logger *slog.Logger) Service {
	return Service{tasks: tasks, projects: projects, teams: teams, activity: activitySvc, logger: logger}
}

var (
	errTitleRequired   = errors.New("task title is required")
	errInvalidStatus   = errors.New("invalid task status")
	errInvalidPriority = errors.New("invalid task priority")
	errProjectTeam     = errors.New("project does not belong to the task's team")
	errAssigneeMember  = errors.New("assignee must be an active team member")

	// ErrBlocked is returned when starting a task whose prerequisites are
	// still open.
	ErrBlocked = errors.New("task is blocked by incomplete prerequisites")
	// ErrSelfDependency is returned when a task is made its own prerequisite.
	ErrSelfDependency = errors.New("task cannot depend on itself")
	// ErrDependencyCycle is returned when a dependency would close a cycle.
	ErrDependencyCycle = errors.New("dependency would create a cycle")
)

// CreateInput captures task creation attributes.
type CreateInput struct {
	Title          string
	Description    string
	ProjectID      string
	Priority       domain.TaskPriority
	DueDate        *time.Time
	Position       int
	EstimatedHours *int
}

// UpdateInput carries optional task mutations; nil fields are left untouched.
type UpdateInput struct {
	Title          *string
	Description    *string
	Status         *domain.TaskStatus
	Priority       *domain.TaskPriority
	DueDate        *time.Time
	ClearDueDate   bool
	ProjectID      *string
	Position       *int
	EstimatedHours *int
	Archived       *bool
}

// Create registers a task in the team. Requires member or above. Priority
// defaults to the team's default task priority.
func (s Service) Create(ctx context.Context, teamID, callerID string, input CreateInput) (*domain.Task, error) {
	if _, err := s.teams.Authorize(ctx, teamID, callerID, domain.RoleMember); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errTitleRequired
	}
	priority := input.Priority
	if priority == "" {
		t, err := s.teams.Get(ctx, teamID, callerID)
		if err != nil {
			return nil, err
		}
		priority = t.DefaultTaskPriority
	}
	if !priority.Valid() {
		return nil, errInvalidPriority
	}
	if input.ProjectID != "" {
		if err := s.checkProjectTeam(ctx, input.ProjectID, teamID); err != nil {
			return nil, err
		}
	}
	task := &domain.Task{
		ID:             uuid.NewString(),
		TeamID:         teamID,
		ProjectID:      input.ProjectID,
		CreatorID:      callerID,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Status:         domain.TaskTodo,
		Priority:       priority,
		DueDate:        input.DueDate,
		Position:       input.Position,
		EstimatedHours: input.EstimatedHours,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, teamID, callerID, domain.EventTaskCreated, task.ID, map[string]any{"title": task.Title})
	s.logger.Info("task created", "task_id", task.ID, "team_id", teamID)
	return task, nil
}

// Get returns a task with its assignees, prerequisites and blocked state.
func (s Service) Get(ctx context.Context, taskID, callerID string) (*domain.TaskDetail, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.teams.Authorize(ctx, task.TeamID, callerID, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, task)
}

// List returns tasks matching the filter. The filter's team is required and
// the caller must hold an active membership there.
func (s Service) List(ctx context.Context, callerID string, filter repository.TaskFilter) ([]domain.Task, error) {
	if _, err := s.teams.Authorize(ctx, filter.TeamID, callerID, domain.RoleViewer); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errInvalidStatus
	}
	return s.tasks.ListTasks(ctx, filter)
}

// Update applies task changes. Requires member or above. Status transitions
// run through the state machine: starting a blocked task is refused, starting
// an unassigned task assigns the caller, and terminal states stamp the
// completion time.
func (s Service) Update(ctx context.Context, taskID, callerID string, input UpdateInput) (*domain.TaskDetail, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.teams.Authorize(ctx, task.TeamID, callerID, domain.RoleMember); err != nil {
		return nil, err
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, errTitleRequired
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, errInvalidPriority
		}
		task.Priority = *input.Priority
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.ProjectID != nil {
		if *input.ProjectID != "" {
			if err := s.checkProjectTeam(ctx, *input.ProjectID, task.TeamID); err != nil {
				return nil, err
			}
		}
		task.ProjectID = *input.ProjectID
	}
	if input.Position != nil {
		task.Position = *input.Position
	}
	if input.EstimatedHours != nil {
		task.EstimatedHours = input.EstimatedHours
	}
	if input.Archived != nil {
		task.Archived = *input.Archived
	}
	if input.Status != nil && *input.Status != task.Status {
		if err := s.transition(ctx, task, *input.Status, callerID); err != nil {
			return nil, err
		}
	}
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, task)
}

// Delete removes a task. Allowed for the creator or admin and above.
func (s Service) Delete(ctx context.Context, taskID, callerID string) error {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	minimum := domain.RoleAdmin
	if task.CreatorID == callerID {
		minimum = domain.RoleMember
	}
	if _, err := s.teams.Authorize(ctx, task.TeamID, callerID, minimum); err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.recordEvent(ctx, task.TeamID, callerID, domain.EventTaskDeleted, taskID, map[string]any{"title": task.Title})
	return nil
}

// Assign adds an assignee to a task. Requires member or above; the assignee
// must hold an active membership in the task's team.
func (s Service) Assign(ctx context.Context, taskID, callerID, assigneeID string) (*domain.TaskAssignment, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.teams.Authorize(ctx, task.TeamID, callerID, domain.RoleMember); err != nil {
		return nil, err
	}
	if _, err := s.teams.Authorize(ctx, task.TeamID, assigneeID, domain.RoleViewer); err != nil {
		return nil, errAssigneeMember
	}
	assignment := &domain.TaskAssignment{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		AssigneeID: assigneeID,
		AssignedBy: callerID,
		AssignedAt: time.Now().UTC(),
	}
	if err := s.tasks.CreateAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, task.TeamID, callerID, domain.EventTaskAssigned, taskID, map[string]any{"assignee_id": assigneeID})
	return assignment, nil
}

// Unassign removes an assignee from a task.
func (s Service) Unassign(ctx context.Context, taskID, callerID, assigneeID string) error {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := s.teams.Authorize(ctx, task.TeamID, callerID, domain.RoleMember); err != nil {
		return err
	}
	if err := s.tasks.DeleteAssignment(ctx, taskID, assigneeID); err != nil {
		return err
	}
	s.recordEvent(ctx, task.TeamID, callerID, domain.EventTaskUnassigned, taskID, map[string]any{"assignee_id": assigneeID})
	return nil
}

// AddDependency records that the dependent task cannot start until the
// prerequisite completes. Both tasks must belong to the same team, a task
// cannot depend on itself, and the edge must not close a cycle.
func (s Service) AddDependency(ctx context.Context, dependentID, prerequisiteID, callerID string) (*domain.TaskDependency, error) {
	if dependentID == prerequisiteID {
		return nil, ErrSelfDependency
	}
	dependent, err := s.tasks.GetTaskByID(ctx, dependentID)
	if err != nil {
		return nil, err
	}
	prerequisite, err := s.tasks.GetTaskByID(ctx, prerequisiteID)
	if err != nil {
		return nil, err
	}
	if dependent.TeamID != prerequisite.TeamID {
		return nil, errors.New("tasks must belong to the same team")
	}
	if _, err := s.teams.Authorize(ctx, dependent.TeamID, callerID, domain.RoleMember); err != nil {
		return nil, err
	}
	if err := s.checkCycle(ctx, dependent.TeamID, dependentID, prerequisiteID); err != nil {
		return nil, err
	}
	dependency := &domain.TaskDependency{
		ID:             uuid.NewString(),
		DependentID:    dependentID,
		PrerequisiteID: prerequisiteID,
		CreatedBy:      callerID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.tasks.CreateDependency(ctx, dependency); err != nil {
		return nil, err
	}
	return dependency, nil
}

// RemoveDependency deletes a dependency edge.
func (s Service) RemoveDependency(ctx context.Context, dependentID, prerequisiteID, callerID string) error {
	dependent, err := s.tasks.GetTaskByID(ctx, dependentID)
	if err != nil {
		return err
	}
	if _, err := s.teams.Authorize(ctx, dependent.TeamID, callerID, domain.RoleMember); err != nil {
		return err
	}
	return s.tasks.DeleteDependency(ctx, dependentID, prerequisiteID)
}

func (s Service) transition(ctx context.Context, task *domain.Task, next domain.TaskStatus, callerID string) error {
	if !next.Valid() {
		return errInvalidStatus
	}
	previous := task.Status
	now := time.Now().UTC()
	switch {
	case next == domain.TaskInProgress:
		open, err := s.tasks.CountOpenPrerequisites(ctx, task.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrBlocked
		}
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
		assignments, err := s.tasks.ListAssignments(ctx, task.ID)
		if err != nil {
			return err
		}
		if len(assignments) == 0 {
			assignment := &domain.TaskAssignment{
				ID:         uuid.NewString(),
				TaskID:     task.ID,
				AssigneeID: callerID,
				AssignedBy: callerID,
				AssignedAt: now,
			}
			if err := s.tasks.CreateAssignment(ctx, assignment); err != nil {
				return err
			}
			s.recordEvent(ctx, task.TeamID, callerID, domain.EventTaskAssigned, task.ID, map[string]any{"assignee_id": callerID})
		}
	case next.Completed():
		if task.CompletedAt == nil {
			task.CompletedAt = &now
		}
	}
	if previous.Completed() && !next.Completed() {
		// Leaving a completed status reopens the task; back to todo also
		// clears the start.
		task.CompletedAt = nil
		if next == domain.TaskTodo {
			task.StartedAt = nil
		}
	}
	task.Status = next
	eventType := domain.EventTaskStatusChanged
	if next == domain.TaskDone {
		eventType = domain.EventTaskCompleted
	}
	s.recordEvent(ctx, task.TeamID, callerID, eventType, task.ID, map[string]any{
		"from": previous,
		"to":   next,
	})
	return nil
}

// checkCycle walks the team's dependency edges from the prerequisite; if the
// dependent is reachable the new edge would close a cycle.
func (s Service) checkCycle(ctx context.Context, teamID, dependentID, prerequisiteID string) error {
	edges, err := s.tasks.ListDependencyEdges(ctx, teamID)
	if err != nil {
		return err
	}
	prereqs := make(map[string][]string, len(edges))
	for _, e := range edges {
		prereqs[e.DependentID] = append(prereqs[e.DependentID], e.PrerequisiteID)
	}
	seen := map[string]bool{prerequisiteID: true}
	queue := []string{prerequisiteID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == dependentID {
			return ErrDependencyCycle
		}
		for _, next := range prereqs[current] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return nil
}

func (s Service) checkProjectTeam(ctx context.Context, projectID, teamID string) error {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project.TeamID != teamID {
		return errProjectTeam
	}
	return nil
}

func (s Service) buildDetail(ctx context.Context, task *domain.Task) (*domain.TaskDetail, error) {
	assignments, err := s.tasks.ListAssignments(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	dependencies, err := s.tasks.ListDependencies(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	open, err := s.tasks.CountOpenPrerequisites(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	detail := &domain.TaskDetail{
		Task:            *task,
		AssigneeIDs:     make([]string, 0, len(assignments)),
		PrerequisiteIDs: make([]string, 0, len(dependencies)),
		Blocked:         open > 0,
	}
	for _, a := range assignments {
		detail.AssigneeIDs = append(detail.AssigneeIDs, a.AssigneeID)
	}
	for _, d := range dependencies {
		detail.PrerequisiteIDs = append(detail.PrerequisiteIDs, d.PrerequisiteID)
	}
	return detail, nil
}

func (s Service) recordEvent(ctx context.Context, teamID, actorID string, eventType domain.EventType, subjectID string, payload map[string]any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn("failed to marshal event payload", "error", err)
		} else {
			raw = data
		}
	}
	s.activity.Record(ctx, domain.ActivityEvent{
		TeamID:    teamID,
		ActorID:   actorID,
		EventType: eventType,
		SubjectID: subjectID,
		Payload:   raw,
	})
}
