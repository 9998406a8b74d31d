package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rafa761/task-management-api/internal/domain"
	"github.com/rafa761/task-management-api/internal/repository"
	"github.com/rafa761/task-management-api/internal/service/activity"
	"github.com/rafa761/task-management-api/internal/service/team"
	"github.com/rafa761/task-management-api/internal/ws"
)

type stubTaskRepository struct {
	tasks        map[string]domain.Task
	assignments  map[string][]domain.TaskAssignment
	dependencies []domain.TaskDependency
	openPrereqs  map[string]int
}

func newStubTaskRepository() *stubTaskRepository {
	return &stubTaskRepository{
		tasks:       make(map[string]domain.Task),
		assignments: make(map[string][]domain.TaskAssignment),
		openPrereqs: make(map[string]int),
	}
}

func (s *stubTaskRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	s.tasks[task.ID] = *task
	return nil
}

func (s *stubTaskRepository) GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error) {
	if t, ok := s.tasks[taskID]; ok {
		return &t, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubTaskRepository) UpdateTask(ctx context.Context, task *domain.Task) error {
	if _, ok := s.tasks[task.ID]; !ok {
		return repository.ErrNotFound
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *stubTaskRepository) DeleteTask(ctx context.Context, taskID string) error {
	if _, ok := s.tasks[taskID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.tasks, taskID)
	return nil
}

func (s *stubTaskRepository) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var tasks []domain.Task
	for _, t := range s.tasks {
		if t.TeamID != filter.TeamID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if !filter.IncludeArchived && t.Archived {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *stubTaskRepository) CreateAssignment(ctx context.Context, assignment *domain.TaskAssignment) error {
	for _, existing := range s.assignments[assignment.TaskID] {
		if existing.AssigneeID == assignment.AssigneeID {
			return repository.ErrConflict
		}
	}
	s.assignments[assignment.TaskID] = append(s.assignments[assignment.TaskID], *assignment)
	return nil
}

func (s *stubTaskRepository) DeleteAssignment(ctx context.Context, taskID, assigneeID string) error {
	assignments := s.assignments[taskID]
	for i, a := range assignments {
		if a.AssigneeID == assigneeID {
			s.assignments[taskID] = append(assignments[:i], assignments[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *stubTaskRepository) ListAssignments(ctx context.Context, taskID string) ([]domain.TaskAssignment, error) {
	return append([]domain.TaskAssignment(nil), s.assignments[taskID]...), nil
}

func (s *stubTaskRepository) CreateDependency(ctx context.Context, dependency *domain.TaskDependency) error {
	for _, existing := range s.dependencies {
		if existing.DependentID == dependency.DependentID && existing.PrerequisiteID == dependency.PrerequisiteID {
			return repository.ErrConflict
		}
	}
	s.dependencies = append(s.dependencies, *dependency)
	return nil
}

func (s *stubTaskRepository) DeleteDependency(ctx context.Context, dependentID, prerequisiteID string) error {
	for i, d := range s.dependencies {
		if d.DependentID == dependentID && d.PrerequisiteID == prerequisiteID {
			s.dependencies = append(s.dependencies[:i], s.dependencies[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *stubTaskRepository) ListDependencies(ctx context.Context, dependentID string) ([]domain.TaskDependency, error) {
	var deps []domain.TaskDependency
	for _, d := range s.dependencies {
		if d.DependentID == dependentID {
			deps = append(deps, d)
		}
	}
	return deps, nil
}

func (s *stubTaskRepository) ListDependencyEdges(ctx context.Context, teamID string) ([]domain.TaskDependency, error) {
	return append([]domain.TaskDependency(nil), s.dependencies...), nil
}

func (s *stubTaskRepository) CountOpenPrerequisites(ctx context.Context, taskID string) (int, error) {
	return s.openPrereqs[taskID], nil
}

type stubProjectRepository struct {
	projects map[string]domain.Project
}

func (s *stubProjectRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	return nil
}

func (s *stubProjectRepository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	if p, ok := s.projects[projectID]; ok {
		return &p, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubProjectRepository) UpdateProject(ctx context.Context, project *domain.Project) error {
	return nil
}

func (s *stubProjectRepository) DeleteProject(ctx context.Context, projectID string) error {
	return nil
}

func (s *stubProjectRepository) ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error) {
	return nil, nil
}

func (s *stubProjectRepository) GetProjectStats(ctx context.Context, projectID string) (domain.ProjectStats, error) {
	return domain.ProjectStats{}, nil
}

type stubTeamRepository struct {
	teams map[string]domain.Team
}

func (s *stubTeamRepository) CreateTeam(ctx context.Context, team *domain.Team) error { return nil }

func (s *stubTeamRepository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	if t, ok := s.teams[teamID]; ok {
		return &t, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubTeamRepository) UpdateTeam(ctx context.Context, team *domain.Team) error { return nil }
func (s *stubTeamRepository) DeleteTeam(ctx context.Context, teamID string) error     { return nil }
func (s *stubTeamRepository) ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	return nil, nil
}

type stubMembershipRepository struct {
	memberships map[string]domain.TeamMembership
}

func (s *stubMembershipRepository) CreateMembership(ctx context.Context, member *domain.TeamMembership) error {
	return nil
}

func (s *stubMembershipRepository) GetMembership(ctx context.Context, teamID, userID string) (*domain.TeamMembership, error) {
	if m, ok := s.memberships[teamID+"|"+userID]; ok {
		return &m, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubMembershipRepository) UpdateMembership(ctx context.Context, member *domain.TeamMembership) error {
	return nil
}

func (s *stubMembershipRepository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMembership, error) {
	return nil, nil
}

func (s *stubMembershipRepository) CountActiveOwners(ctx context.Context, teamID string) (int, error) {
	return 1, nil
}

type stubActivityRepository struct {
	events []domain.ActivityEvent
}

func (s *stubActivityRepository) InsertEvent(ctx context.Context, event *domain.ActivityEvent) error {
	event.ID = int64(len(s.events) + 1)
	s.events = append(s.events, *event)
	return nil
}

func (s *stubActivityRepository) ListEvents(ctx context.Context, teamID string, limit, offset int) ([]domain.ActivityEvent, error) {
	return append([]domain.ActivityEvent(nil), s.events...), nil
}

type fixture struct {
	svc    Service
	tasks  *stubTaskRepository
	events *stubActivityRepository
}

func memberOf(teamID, userID string, role domain.TeamRole) domain.TeamMembership {
	now := time.Now().UTC()
	return domain.TeamMembership{
		TeamID:    teamID,
		UserID:    userID,
		Role:      role,
		InvitedAt: now,
		JoinedAt:  &now,
	}
}

func newFixture(memberships map[string]domain.TeamMembership) fixture {
	tasks := newStubTaskRepository()
	teams := &stubTeamRepository{teams: map[string]domain.Team{
		"team-1": {ID: "team-1", Name: "Team One", DefaultTaskPriority: domain.PriorityHigh, IsActive: true},
	}}
	projects := &stubProjectRepository{projects: map[string]domain.Project{
		"project-1": {ID: "project-1", TeamID: "team-1", Name: "Website"},
		"project-x": {ID: "project-x", TeamID: "team-2", Name: "Other"},
	}}
	members := &stubMembershipRepository{memberships: memberships}
	events := &stubActivityRepository{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	activitySvc := activity.New(events, ws.NewHub(), log)
	teamSvc := team.New(teams, members, nil, activitySvc, log)
	return fixture{
		svc:    New(tasks, projects, teamSvc, activitySvc, log),
		tasks:  tasks,
		events: events,
	}
}

func defaultMemberships() map[string]domain.TeamMembership {
	return map[string]domain.TeamMembership{
		"team-1|user-1": memberOf("team-1", "user-1", domain.RoleMember),
		"team-1|user-2": memberOf("team-1", "user-2", domain.RoleMember),
	}
}

func seedTask(f fixture, id string, status domain.TaskStatus) domain.Task {
	task := domain.Task{
		ID:        id,
		TeamID:    "team-1",
		CreatorID: "user-1",
		Title:     "Task " + id,
		Status:    status,
		Priority:  domain.PriorityMedium,
		CreatedAt: time.Now().UTC(),
	}
	f.tasks.tasks[id] = task
	return task
}

func TestCreateDefaultsToTeamPriority(t *testing.T) {
	f := newFixture(defaultMemberships())
	created, err := f.svc.Create(context.Background(), "team-1", "user-1", CreateInput{Title: "Ship it"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Priority != domain.PriorityHigh {
		t.Fatalf("expected team default priority, got %q", created.Priority)
	}
	if created.Status != domain.TaskTodo {
		t.Fatalf("unexpected status: %q", created.Status)
	}
	if len(f.events.events) != 1 || f.events.events[0].EventType != domain.EventTaskCreated {
		t.Fatalf("expected task_created event, got %+v", f.events.events)
	}
}

func TestCreateRejectsForeignProject(t *testing.T) {
	f := newFixture(defaultMemberships())
	_, err := f.svc.Create(context.Background(), "team-1", "user-1", CreateInput{
		Title:     "Ship it",
		ProjectID: "project-x",
	})
	if !errors.Is(err, errProjectTeam) {
		t.Fatalf("expected errProjectTeam, got %v", err)
	}
}

func TestStartStampsAndAutoAssigns(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-1", domain.TaskTodo)

	status := domain.TaskInProgress
	detail, err := f.svc.Update(context.Background(), "task-1", "user-2", UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if detail.StartedAt == nil {
		t.Fatalf("expected started_at stamped")
	}
	if len(detail.AssigneeIDs) != 1 || detail.AssigneeIDs[0] != "user-2" {
		t.Fatalf("expected caller auto-assigned, got %v", detail.AssigneeIDs)
	}
}

func TestStartKeepsExistingAssignees(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-1", domain.TaskTodo)
	f.tasks.assignments["task-1"] = []domain.TaskAssignment{{TaskID: "task-1", AssigneeID: "user-1"}}

	status := domain.TaskInProgress
	detail, err := f.svc.Update(context.Background(), "task-1", "user-2", UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if len(detail.AssigneeIDs) != 1 || detail.AssigneeIDs[0] != "user-1" {
		t.Fatalf("expected existing assignee untouched, got %v", detail.AssigneeIDs)
	}
}

func TestBlockedTaskRefusesStart(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-1", domain.TaskTodo)
	f.tasks.openPrereqs["task-1"] = 2

	status := domain.TaskInProgress
	_, err := f.svc.Update(context.Background(), "task-1", "user-1", UpdateInput{Status: &status})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if f.tasks.tasks["task-1"].Status != domain.TaskTodo {
		t.Fatalf("status should not have changed")
	}
}

func TestCompleteStampsCompletedAt(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-1", domain.TaskInProgress)

	status := domain.TaskDone
	detail, err := f.svc.Update(context.Background(), "task-1", "user-1", UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if detail.CompletedAt == nil {
		t.Fatalf("expected completed_at stamped")
	}
	last := f.events.events[len(f.events.events)-1]
	if last.EventType != domain.EventTaskCompleted {
		t.Fatalf("expected task_completed event, got %q", last.EventType)
	}
}

func TestReopenClearsStamps(t *testing.T) {
	f := newFixture(defaultMemberships())
	task := seedTask(f, "task-1", domain.TaskDone)
	now := time.Now().UTC()
	task.StartedAt = &now
	task.CompletedAt = &now
	f.tasks.tasks["task-1"] = task

	status := domain.TaskTodo
	detail, err := f.svc.Update(context.Background(), "task-1", "user-1", UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if detail.StartedAt != nil || detail.CompletedAt != nil {
		t.Fatalf("expected stamps cleared, got started=%v completed=%v", detail.StartedAt, detail.CompletedAt)
	}
}

func TestRestartClearsCompletedAt(t *testing.T) {
	f := newFixture(defaultMemberships())
	task := seedTask(f, "task-1", domain.TaskDone)
	started := time.Now().UTC().Add(-2 * time.Hour)
	completed := time.Now().UTC().Add(-time.Hour)
	task.StartedAt = &started
	task.CompletedAt = &completed
	f.tasks.tasks["task-1"] = task
	f.tasks.assignments["task-1"] = []domain.TaskAssignment{{TaskID: "task-1", AssigneeID: "user-1"}}

	status := domain.TaskInProgress
	detail, err := f.svc.Update(context.Background(), "task-1", "user-1", UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if detail.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared on restart, got %v", detail.CompletedAt)
	}
	if detail.StartedAt == nil || !detail.StartedAt.Equal(started) {
		t.Fatalf("expected original started_at kept, got %v", detail.StartedAt)
	}

	status = domain.TaskDone
	detail, err = f.svc.Update(context.Background(), "task-1", "user-1", UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("second Update returned error: %v", err)
	}
	if detail.CompletedAt == nil || detail.CompletedAt.Equal(completed) {
		t.Fatalf("expected a fresh completed_at, got %v", detail.CompletedAt)
	}
}

func TestAssignRejectsNonMember(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-1", domain.TaskTodo)

	_, err := f.svc.Assign(context.Background(), "task-1", "user-1", "outsider")
	if !errors.Is(err, errAssigneeMember) {
		t.Fatalf("expected errAssigneeMember, got %v", err)
	}
}

func TestAssignDuplicateConflicts(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-1", domain.TaskTodo)

	if _, err := f.svc.Assign(context.Background(), "task-1", "user-1", "user-2"); err != nil {
		t.Fatalf("first Assign returned error: %v", err)
	}
	_, err := f.svc.Assign(context.Background(), "task-1", "user-1", "user-2")
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAddDependencySelfRefused(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-1", domain.TaskTodo)

	_, err := f.svc.AddDependency(context.Background(), "task-1", "task-1", "user-1")
	if !errors.Is(err, ErrSelfDependency) {
		t.Fatalf("expected ErrSelfDependency, got %v", err)
	}
}

func TestAddDependencyDetectsCycle(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-a", domain.TaskTodo)
	seedTask(f, "task-b", domain.TaskTodo)
	seedTask(f, "task-c", domain.TaskTodo)

	if _, err := f.svc.AddDependency(context.Background(), "task-b", "task-a", "user-1"); err != nil {
		t.Fatalf("a<-b dependency returned error: %v", err)
	}
	if _, err := f.svc.AddDependency(context.Background(), "task-c", "task-b", "user-1"); err != nil {
		t.Fatalf("b<-c dependency returned error: %v", err)
	}
	_, err := f.svc.AddDependency(context.Background(), "task-a", "task-c", "user-1")
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("expected ErrDependencyCycle, got %v", err)
	}
}

func TestAddDependencyDuplicateConflicts(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-a", domain.TaskTodo)
	seedTask(f, "task-b", domain.TaskTodo)

	if _, err := f.svc.AddDependency(context.Background(), "task-b", "task-a", "user-1"); err != nil {
		t.Fatalf("first AddDependency returned error: %v", err)
	}
	_, err := f.svc.AddDependency(context.Background(), "task-b", "task-a", "user-1")
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteRequiresCreatorOrAdmin(t *testing.T) {
	memberships := defaultMemberships()
	memberships["team-1|admin-1"] = memberOf("team-1", "admin-1", domain.RoleAdmin)
	f := newFixture(memberships)
	seedTask(f, "task-1", domain.TaskTodo)

	if err := f.svc.Delete(context.Background(), "task-1", "user-2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-creator member, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), "task-1", "admin-1"); err != nil {
		t.Fatalf("admin delete returned error: %v", err)
	}
}

func TestGetReportsBlockedState(t *testing.T) {
	f := newFixture(defaultMemberships())
	seedTask(f, "task-1", domain.TaskTodo)
	f.tasks.openPrereqs["task-1"] = 1
	f.tasks.dependencies = []domain.TaskDependency{{DependentID: "task-1", PrerequisiteID: "task-0"}}

	detail, err := f.svc.Get(context.Background(), "task-1", "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !detail.Blocked {
		t.Fatalf("expected blocked task")
	}
	if len(detail.PrerequisiteIDs) != 1 || detail.PrerequisiteIDs[0] != "task-0" {
		t.Fatalf("unexpected prerequisites: %v", detail.PrerequisiteIDs)
	}
}
