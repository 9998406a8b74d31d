package project

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

// Service handles project workflows.
type Service struct {
	projects repository.ProjectRepository
	teams    team.Service
	activity activity.Service
	logger   *slog.Logger
}

// New constructs a Service.
func New(projects repository.ProjectRepository, teams team.Service, activitySvc activity.Service, logger *slog.Logger) Service {
	return Service{projects: projects, teams: teams, activity: activitySvc, logger: logger}
}

var (
	errNameRequired  = errors.New("project name is required")
	errInvalidStatus = errors.New("invalid project status")
	errTimelineOrder = errors.New("start date must not be after end date")
)

// CreateInput captures project creation attributes.
type CreateInput struct {
	Name        string
	Description string
	Status      domain.ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
	Color       string
	Position    int
}

// UpdateInput carries optional project mutations; nil fields are left
// untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	Status      *domain.ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
	Color       *string
	Position    *int
}

// Detail pairs a project with its completion stats.
type Detail struct {
	Project domain.Project
	Stats   domain.ProjectStats
}

// Create registers a project in the team. Requires member or above. Project
// names are unique within a team.
func (s Service) Create(ctx context.Context, teamID, callerID string, input CreateInput) (*domain.Project, error) {
	if _, err := s.teams.Authorize(ctx, teamID, callerID, domain.RoleMember); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errNameRequired
	}
	if err := validateTimeline(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = domain.ProjectPlanning
	}
	if !status.Valid() {
		return nil, errInvalidStatus
	}
	project := &domain.Project{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Color:       input.Color,
		Position:    input.Position,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, teamID, callerID, domain.EventProjectCreated, project.ID, map[string]any{"name": project.Name})
	s.logger.Info("project created", "project_id", project.ID, "team_id", teamID)
	return project, nil
}

// List returns the team's projects ordered by position.
func (s Service) List(ctx context.Context, teamID, callerID string) ([]domain.Project, error) {
	if _, err := s.teams.Authorize(ctx, teamID, callerID, domain.RoleViewer); err != nil {
		return nil, err
	}
	return s.projects.ListProjectsByTeam(ctx, teamID)
}

// Get returns a project with its task completion stats.
func (s Service) Get(ctx context.Context, projectID, callerID string) (*Detail, error) {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.teams.Authorize(ctx, project.TeamID, callerID, domain.RoleViewer); err != nil {
		return nil, err
	}
	stats, err := s.projects.GetProjectStats(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &Detail{Project: *project, Stats: stats}, nil
}

// Update applies project changes. Requires member or above. Status
// transitions stamp the timeline: activation sets the start date, completion
// or cancellation sets the end date.
func (s Service) Update(ctx context.Context, projectID, callerID string, input UpdateInput) (*domain.Project, error) {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.teams.Authorize(ctx, project.TeamID, callerID, domain.RoleMember); err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errNameRequired
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if input.StartDate != nil {
		project.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		project.EndDate = input.EndDate
	}
	if err := validateTimeline(project.StartDate, project.EndDate); err != nil {
		return nil, err
	}
	if input.Color != nil {
		project.Color = *input.Color
	}
	if input.Position != nil {
		project.Position = *input.Position
	}
	if input.Status != nil && *input.Status != project.Status {
		if err := s.transition(ctx, project, *input.Status, callerID); err != nil {
			return nil, err
		}
	}
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes a project and detaches its tasks. Requires admin or above.
func (s Service) Delete(ctx context.Context, projectID, callerID string) error {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return err
	}
	if _, err := s.teams.Authorize(ctx, project.TeamID, callerID, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", projectID, "team_id", project.TeamID, "actor_id", callerID)
	return nil
}

func (s Service) transition(ctx context.Context, project *domain.Project, next domain.ProjectStatus, callerID string) error {
	if !next.Valid() {
		return errInvalidStatus
	}
	previous := project.Status
	now := time.Now().UTC()
	switch next {
	case domain.ProjectActive:
		if project.StartDate == nil {
			project.StartDate = &now
		}
	case domain.ProjectCompleted, domain.ProjectCancelled:
		if project.EndDate == nil {
			project.EndDate = &now
		}
	}
	project.Status = next
	eventType := domain.EventProjectStatusChanged
	if next == domain.ProjectCompleted {
		eventType = domain.EventProjectCompleted
	}
	s.recordEvent(ctx, project.TeamID, callerID, eventType, project.ID, map[string]any{
		"from": previous,
		"to":   next,
	})
	return nil
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

func validateTimeline(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return errTimelineOrder
	}
	return nil
}
