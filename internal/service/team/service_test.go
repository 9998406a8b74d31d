package team

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
	"github.com/rafa761/task-management-api/internal/ws"
)

type stubTeamRepository struct {
	teams map[string]domain.Team
}

func newStubTeamRepository() *stubTeamRepository {
	return &stubTeamRepository{teams: make(map[string]domain.Team)}
}

func (s *stubTeamRepository) CreateTeam(ctx context.Context, team *domain.Team) error {
	s.teams[team.ID] = *team
	return nil
}

func (s *stubTeamRepository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	if team, ok := s.teams[teamID]; ok {
		return &team, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubTeamRepository) UpdateTeam(ctx context.Context, team *domain.Team) error {
	if _, ok := s.teams[team.ID]; !ok {
		return repository.ErrNotFound
	}
	s.teams[team.ID] = *team
	return nil
}

func (s *stubTeamRepository) DeleteTeam(ctx context.Context, teamID string) error {
	if _, ok := s.teams[teamID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.teams, teamID)
	return nil
}

func (s *stubTeamRepository) ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	return nil, nil
}

type stubMembershipRepository struct {
	memberships map[string]domain.TeamMembership
}

func newStubMembershipRepository() *stubMembershipRepository {
	return &stubMembershipRepository{memberships: make(map[string]domain.TeamMembership)}
}

func membershipKey(teamID, userID string) string {
	return teamID + "|" + userID
}

func (s *stubMembershipRepository) CreateMembership(ctx context.Context, member *domain.TeamMembership) error {
	key := membershipKey(member.TeamID, member.UserID)
	if _, ok := s.memberships[key]; ok {
		return repository.ErrConflict
	}
	s.memberships[key] = *member
	return nil
}

func (s *stubMembershipRepository) GetMembership(ctx context.Context, teamID, userID string) (*domain.TeamMembership, error) {
	if m, ok := s.memberships[membershipKey(teamID, userID)]; ok {
		return &m, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubMembershipRepository) UpdateMembership(ctx context.Context, member *domain.TeamMembership) error {
	key := membershipKey(member.TeamID, member.UserID)
	if _, ok := s.memberships[key]; !ok {
		return repository.ErrNotFound
	}
	s.memberships[key] = *member
	return nil
}

func (s *stubMembershipRepository) ListMembers(ctx context.Context, teamID string) ([]domain.TeamMembership, error) {
	var members []domain.TeamMembership
	for _, m := range s.memberships {
		if m.TeamID == teamID && m.DeletedAt == nil {
			members = append(members, m)
		}
	}
	return members, nil
}

func (s *stubMembershipRepository) CountActiveOwners(ctx context.Context, teamID string) (int, error) {
	count := 0
	for _, m := range s.memberships {
		if m.TeamID == teamID && m.Role == domain.RoleOwner && m.IsActive() {
			count++
		}
	}
	return count, nil
}

type stubUserRepository struct {
	users map[string]domain.User
}

func newStubUserRepository(users ...domain.User) *stubUserRepository {
	s := &stubUserRepository{users: make(map[string]domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
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

func newTestService(users *stubUserRepository) (Service, *stubTeamRepository, *stubMembershipRepository) {
	teams := newStubTeamRepository()
	members := newStubMembershipRepository()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	activitySvc := activity.New(&stubActivityRepository{}, ws.NewHub(), log)
	return New(teams, members, users, activitySvc, log), teams, members
}

func activeMembership(teamID, userID string, role domain.TeamRole) domain.TeamMembership {
	now := time.Now().UTC()
	return domain.TeamMembership{
		ID:        teamID + "-" + userID,
		TeamID:    teamID,
		UserID:    userID,
		Role:      role,
		InvitedAt: now,
		JoinedAt:  &now,
		InvitedBy: userID,
	}
}

func TestCreateMakesCreatorActiveOwner(t *testing.T) {
	svc, _, members := newTestService(newStubUserRepository())

	created, err := svc.Create(context.Background(), "user-1", CreateInput{Name: "Platform Team"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Slug != "platform-team" {
		t.Fatalf("unexpected slug: %q", created.Slug)
	}
	if created.DefaultTaskPriority != domain.PriorityMedium {
		t.Fatalf("unexpected default priority: %q", created.DefaultTaskPriority)
	}
	membership, err := members.GetMembership(context.Background(), created.ID, "user-1")
	if err != nil {
		t.Fatalf("expected owner membership, got %v", err)
	}
	if membership.Role != domain.RoleOwner || !membership.IsActive() {
		t.Fatalf("expected active owner membership, got %+v", membership)
	}
}

func TestInviteRequiresAdmin(t *testing.T) {
	invitee := domain.User{ID: "user-2", Email: "invitee@example.com"}
	svc, _, members := newTestService(newStubUserRepository(invitee))
	members.memberships[membershipKey("team-1", "caller")] = activeMembership("team-1", "caller", domain.RoleMember)

	_, err := svc.Invite(context.Background(), "team-1", "caller", invitee.Email, domain.RoleMember)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestInviteOwnerRoleRequiresOwner(t *testing.T) {
	invitee := domain.User{ID: "user-2", Email: "invitee@example.com"}
	svc, _, members := newTestService(newStubUserRepository(invitee))
	members.memberships[membershipKey("team-1", "caller")] = activeMembership("team-1", "caller", domain.RoleAdmin)

	_, err := svc.Invite(context.Background(), "team-1", "caller", invitee.Email, domain.RoleOwner)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestInviteActiveMemberConflicts(t *testing.T) {
	invitee := domain.User{ID: "user-2", Email: "invitee@example.com"}
	svc, _, members := newTestService(newStubUserRepository(invitee))
	members.memberships[membershipKey("team-1", "caller")] = activeMembership("team-1", "caller", domain.RoleAdmin)
	members.memberships[membershipKey("team-1", "user-2")] = activeMembership("team-1", "user-2", domain.RoleMember)

	_, err := svc.Invite(context.Background(), "team-1", "caller", invitee.Email, domain.RoleMember)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInviteReactivatesRemovedMembership(t *testing.T) {
	invitee := domain.User{ID: "user-2", Email: "invitee@example.com"}
	svc, _, members := newTestService(newStubUserRepository(invitee))
	members.memberships[membershipKey("team-1", "caller")] = activeMembership("team-1", "caller", domain.RoleAdmin)

	removed := activeMembership("team-1", "user-2", domain.RoleMember)
	deletedAt := time.Now().UTC()
	removed.DeletedAt = &deletedAt
	members.memberships[membershipKey("team-1", "user-2")] = removed

	membership, err := svc.Invite(context.Background(), "team-1", "caller", invitee.Email, domain.RoleViewer)
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if !membership.IsPending() {
		t.Fatalf("expected reactivated membership to be pending, got %+v", membership)
	}
	if membership.Role != domain.RoleViewer {
		t.Fatalf("unexpected role: %q", membership.Role)
	}
}

func TestListMembersFallsBackToEmail(t *testing.T) {
	named := domain.User{ID: "user-1", Email: "named@example.com", FirstName: "Ada", LastName: "L"}
	unnamed := domain.User{ID: "user-2", Email: "unnamed@example.com"}
	svc, _, members := newTestService(newStubUserRepository(named, unnamed))
	members.memberships[membershipKey("team-1", "user-1")] = activeMembership("team-1", "user-1", domain.RoleOwner)
	members.memberships[membershipKey("team-1", "user-2")] = activeMembership("team-1", "user-2", domain.RoleMember)

	roster, err := svc.ListMembers(context.Background(), "team-1", "user-1")
	if err != nil {
		t.Fatalf("ListMembers returned error: %v", err)
	}
	byUser := make(map[string]Member, len(roster))
	for _, m := range roster {
		byUser[m.Membership.UserID] = m
	}
	if got := byUser["user-1"].FullName; got != "Ada L" {
		t.Fatalf("unexpected display name: %q", got)
	}
	if got := byUser["user-2"].FullName; got != "unnamed@example.com" {
		t.Fatalf("expected email fallback, got %q", got)
	}
}

func TestAcceptMarksMembershipJoined(t *testing.T) {
	svc, _, members := newTestService(newStubUserRepository())
	pending := activeMembership("team-1", "user-2", domain.RoleMember)
	pending.JoinedAt = nil
	members.memberships[membershipKey("team-1", "user-2")] = pending

	membership, err := svc.Accept(context.Background(), "team-1", "user-2")
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if !membership.IsActive() {
		t.Fatalf("expected active membership after accept, got %+v", membership)
	}
}

func TestAcceptWithoutInvitation(t *testing.T) {
	svc, _, _ := newTestService(newStubUserRepository())
	if _, err := svc.Accept(context.Background(), "team-1", "user-2"); !errors.Is(err, ErrNotInvited) {
		t.Fatalf("expected ErrNotInvited, got %v", err)
	}
}

func TestChangeRoleProtectsLastOwner(t *testing.T) {
	svc, _, members := newTestService(newStubUserRepository())
	members.memberships[membershipKey("team-1", "owner-1")] = activeMembership("team-1", "owner-1", domain.RoleOwner)

	_, err := svc.ChangeRole(context.Background(), "team-1", "owner-1", "owner-1", domain.RoleAdmin)
	if !errors.Is(err, ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner, got %v", err)
	}
}

func TestChangeRoleDemotesOwnerWhenAnotherRemains(t *testing.T) {
	svc, _, members := newTestService(newStubUserRepository())
	members.memberships[membershipKey("team-1", "owner-1")] = activeMembership("team-1", "owner-1", domain.RoleOwner)
	members.memberships[membershipKey("team-1", "owner-2")] = activeMembership("team-1", "owner-2", domain.RoleOwner)

	membership, err := svc.ChangeRole(context.Background(), "team-1", "owner-1", "owner-2", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("ChangeRole returned error: %v", err)
	}
	if membership.Role != domain.RoleAdmin {
		t.Fatalf("unexpected role: %q", membership.Role)
	}
}

func TestRemoveMemberSelfLeave(t *testing.T) {
	svc, _, members := newTestService(newStubUserRepository())
	members.memberships[membershipKey("team-1", "owner-1")] = activeMembership("team-1", "owner-1", domain.RoleOwner)
	members.memberships[membershipKey("team-1", "user-2")] = activeMembership("team-1", "user-2", domain.RoleViewer)

	if err := svc.RemoveMember(context.Background(), "team-1", "user-2", "user-2"); err != nil {
		t.Fatalf("RemoveMember returned error: %v", err)
	}
	membership := members.memberships[membershipKey("team-1", "user-2")]
	if membership.DeletedAt == nil {
		t.Fatalf("expected soft deleted membership, got %+v", membership)
	}
}

func TestRemoveLastOwnerRefused(t *testing.T) {
	svc, _, members := newTestService(newStubUserRepository())
	members.memberships[membershipKey("team-1", "owner-1")] = activeMembership("team-1", "owner-1", domain.RoleOwner)

	if err := svc.RemoveMember(context.Background(), "team-1", "owner-1", "owner-1"); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("expected ErrLastOwner, got %v", err)
	}
}

func TestAuthorizeIgnoresPendingMembership(t *testing.T) {
	svc, _, members := newTestService(newStubUserRepository())
	pending := activeMembership("team-1", "user-2", domain.RoleAdmin)
	pending.JoinedAt = nil
	members.memberships[membershipKey("team-1", "user-2")] = pending

	_, err := svc.Authorize(context.Background(), "team-1", "user-2", domain.RoleViewer)
	if !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Platform Team":      "platform-team",
		"  QA / Release  ":   "qa-release",
		"Data--Science":      "data-science",
		"ops":                "ops",
		"Équipe Produit 2.0": "équipe-produit-2-0",
	}
	for input, want := range cases {
		if got := slugify(input); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", input, got, want)
		}
	}
}
